package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/willia4/electriclemur-v3/internal/reconcile"
	"github.com/willia4/electriclemur-v3/internal/ui"
	"github.com/willia4/electriclemur-v3/pkg/docker"
	"github.com/willia4/electriclemur-v3/pkg/env"

	"github.com/spf13/cobra"
)

func containerCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "container",
		Short: "Start containers from their definitions",
	}
	cmd.AddCommand(containerCreateCmd(flags))
	cmd.AddCommand(containerCreateAllCmd(flags))
	cmd.AddCommand(printEnvCmd(flags))
	return cmd
}

func printStarted(w io.Writer, containers []*docker.Container) {
	for _, c := range containers {
		if c == nil || c.ContainerJSONBase == nil {
			continue
		}
		id := c.ID
		if len(id) > 12 {
			id = id[:12]
		}
		fmt.Fprintln(w, ui.SuccessMsg("started %s %s", ui.Accent(strings.TrimPrefix(c.Name, "/")), ui.Muted(id)))
	}
}

func containerCreateCmd(flags *globalFlags) *cobra.Command {
	var opts reconcile.ContainerOptions

	cmd := &cobra.Command{
		Use:   "create <environment> <container>",
		Short: "Replace the containers defined in containers/<container>",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.load(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			e, err := a.environment(args[0])
			if err != nil {
				return wrapOp("create container", args[1], err)
			}
			created, err := a.reconciler(e).CreateContainer(cmd.Context(), args[1], opts)
			printStarted(cmd.OutOrStdout(), created)
			return wrapOp("create container", args[1], err)
		},
	}
	cmd.Flags().BoolVar(&opts.NoSidecar, "noSidecar", false, "Do not start sftp sidecars")
	return cmd
}

func containerCreateAllCmd(flags *globalFlags) *cobra.Command {
	var opts reconcile.ContainerOptions

	cmd := &cobra.Command{
		Use:   "create-all <environment>",
		Short: "Ensure the proxy and replace every defined container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.load(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			e, err := a.environment(args[0])
			if err != nil {
				return wrapOp("create containers", args[0], err)
			}
			created, err := a.reconciler(e).CreateAllContainers(cmd.Context(), opts)
			printStarted(cmd.OutOrStdout(), created)
			return wrapOp("create containers", e.Name, err)
		},
	}
	cmd.Flags().BoolVar(&opts.NoSidecar, "noSidecar", false, "Do not start sftp sidecars")
	return cmd
}

func printEnvCmd(flags *globalFlags) *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "print-env <environment>",
		Short: "Print shell exports pointing a docker CLI at the environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.load(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			e, err := a.environment(args[0])
			if err != nil {
				return wrapOp("print env", args[0], err)
			}

			var pairs []env.Pair
			for _, p := range a.dockerConnection(e).Env() {
				pairs = append(pairs, env.Pair{Key: p.Key, Value: p.Value})
			}
			if envFile != "" {
				return wrapOp("print env", e.Name, env.Save(envFile, pairs))
			}
			return wrapOp("print env", e.Name, env.WriteExports(cmd.OutOrStdout(), pairs))
		},
	}
	cmd.Flags().StringVar(&envFile, "env-file", "", "Write a .env file instead of shell exports")
	return cmd
}
