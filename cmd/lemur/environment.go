package main

import (
	"fmt"

	"github.com/willia4/electriclemur-v3/internal/playbooks"
	"github.com/willia4/electriclemur-v3/internal/reconcile"
	"github.com/willia4/electriclemur-v3/internal/ui"

	"github.com/spf13/cobra"
)

func environmentCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "environment",
		Aliases: []string{"env"},
		Short:   "Create, delete and re-point environments",
	}
	cmd.AddCommand(environmentCreateCmd(flags))
	cmd.AddCommand(environmentDeleteCmd(flags))
	cmd.AddCommand(environmentUpdateDNSCmd(flags))
	return cmd
}

func environmentCreateCmd(flags *globalFlags) *cobra.Command {
	var opts reconcile.CreateOptions

	cmd := &cobra.Command{
		Use:   "create <environment>",
		Short: "Create the droplet, DNS, docker TLS, volumes and databases for an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.load(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			env, err := a.environment(args[0])
			if err != nil {
				return wrapOp("create environment", args[0], err)
			}
			if _, err := playbooks.Sync(a.cfg.Paths.PlaybooksDir(), false); err != nil {
				return wrapOp("create environment", env.Name, err)
			}
			if err := a.writeInventoryScripts(env.Name); err != nil {
				return wrapOp("create environment", env.Name, err)
			}
			if err := a.reconciler(env).CreateEnvironment(cmd.Context(), opts); err != nil {
				return wrapOp("create environment", env.Name, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("environment %s is ready", ui.Accent(env.Name)))
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&opts.SkipDNS, "skipDNS", false, "Do not create or update DNS records")
	f.BoolVar(&opts.SkipInit, "skipInit", false, "Do not generate or install docker TLS material")
	f.BoolVar(&opts.SkipVolumes, "skipVolumes", false, "Do not create or fill volumes")
	f.BoolVar(&opts.SkipDatabase, "skipDatabase", false, "Do not start or restore the database")
	return cmd
}

func environmentDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <environment>",
		Short: "Delete the droplet and DNS records of an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.load(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			env, err := a.environment(args[0])
			if err != nil {
				return wrapOp("delete environment", args[0], err)
			}
			if err := a.reconciler(env).DeleteEnvironment(cmd.Context()); err != nil {
				return wrapOp("delete environment", env.Name, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessMsg("deleted environment %s", ui.Accent(env.Name)))
			return nil
		},
	}
}

func environmentUpdateDNSCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "update-dns <environment>",
		Short: "Point every domain of an environment at its droplet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.load(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			env, err := a.environment(args[0])
			if err != nil {
				return wrapOp("update dns", args[0], err)
			}
			_, err = a.reconciler(env).UpdateDNS(cmd.Context())
			return wrapOp("update dns", env.Name, err)
		},
	}
}
