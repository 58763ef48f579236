package main

import (
	"fmt"

	"github.com/willia4/electriclemur-v3/internal/playbooks"
	"github.com/willia4/electriclemur-v3/internal/ui"

	"github.com/spf13/cobra"
)

func playbooksCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playbooks",
		Short: "Manage the bundled ansible playbooks",
	}
	cmd.AddCommand(playbooksSyncCmd(flags))
	return cmd
}

func playbooksSyncCmd(flags *globalFlags) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Extract the bundled playbooks into the playbooks directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.load(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			dir := a.cfg.Paths.PlaybooksDir()
			written, err := playbooks.Sync(dir, force)
			if err != nil {
				return wrapOp("sync playbooks", dir, err)
			}
			for _, path := range written {
				fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("wrote %s", path))
			}
			if len(written) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), ui.InfoMsg("playbooks in %s are present; use --force to overwrite", dir))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite playbooks that already exist")
	return cmd
}
