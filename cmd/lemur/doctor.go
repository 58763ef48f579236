package main

import (
	"errors"
	"fmt"

	"github.com/willia4/electriclemur-v3/internal/ui"
	"github.com/willia4/electriclemur-v3/pkg/capabilities"
	"github.com/willia4/electriclemur-v3/pkg/certs"

	"github.com/spf13/cobra"
)

// clientBundle checks that an environment's docker client certificates load
// and chain to their CA. It returns the bundle directory.
func (a *app) clientBundle(name string) (string, error) {
	e, err := a.environment(name)
	if err != nil {
		return "", err
	}
	if _, err := certs.LoadClientTLS(e.DockerCertPath, e.FQDN); err != nil {
		return e.DockerCertPath, err
	}
	return e.DockerCertPath, nil
}

func doctorCmd(flags *globalFlags) *cobra.Command {
	var envName string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check that doctl, docker and ansible are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.load(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			b := a.cfg.Binaries
			statuses := capabilities.Detect(cmd.Context(), a.exec,
				capabilities.Tools(b.Doctl, b.Docker, b.Ansible, b.AnsiblePlaybook))

			rows := make([][]string, 0, len(statuses))
			for _, st := range statuses {
				state := ui.SuccessStyle.Render("ok")
				if !st.Available {
					state = ui.ErrorStyle.Render("missing")
				}
				rows = append(rows, []string{st.Name, st.Binary, st.Version, state})
			}
			sys := capabilities.GetSystemInfo()
			fmt.Fprint(cmd.OutOrStdout(), ui.KeyValues("", ui.KV("OS", sys.OS), ui.KV("Arch", sys.Arch)))
			fmt.Fprintln(cmd.OutOrStdout(), ui.Table([]string{"TOOL", "BINARY", "VERSION", "STATUS"}, rows))
			for _, st := range statuses {
				if !st.Available {
					fmt.Fprintln(cmd.OutOrStdout(), ui.WarnMsg("%s: %v", st.Binary, st.Err))
				}
			}
			toolsErr := wrapOp("doctor", "tools", capabilities.Missing(statuses))
			if envName == "" {
				return toolsErr
			}

			dir, err := a.clientBundle(envName)
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), ui.WarnMsg("docker client certificates for %s: %v", envName, err))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("docker client certificates in %s are valid", dir))
			}
			return errors.Join(toolsErr, wrapOp("doctor", envName, err))
		},
	}
	cmd.Flags().StringVar(&envName, "environment", "", "Also check this environment's docker client certificates")
	return cmd
}
