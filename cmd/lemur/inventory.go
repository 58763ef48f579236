package main

import (
	"fmt"

	"github.com/willia4/electriclemur-v3/internal/inventory"
	"github.com/willia4/electriclemur-v3/internal/ui"

	"github.com/spf13/cobra"
)

func inventoryCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Ansible dynamic inventory and host lookups",
	}
	cmd.AddCommand(inventoryListCmd(flags))
	cmd.AddCommand(inventoryHostCmd(flags))
	cmd.AddCommand(inventoryIPCmd(flags))
	cmd.AddCommand(inventoryFQDNCmd(flags))
	cmd.AddCommand(inventoryVolumeListCmd(flags))
	return cmd
}

// emitter loads the environment and builds its inventory emitter.
func emitter(flags *globalFlags, cmd *cobra.Command, name string) (*inventory.Emitter, *app, error) {
	a, err := flags.load(cmd.OutOrStdout())
	if err != nil {
		return nil, nil, err
	}
	e, err := a.environment(name)
	if err != nil {
		return nil, nil, err
	}
	return a.inventory(e), a, nil
}

func inventoryListCmd(flags *globalFlags) *cobra.Command {
	var (
		envName   string
		noVolumes bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the inventory JSON for an environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			em, _, err := emitter(flags, cmd, envName)
			if err != nil {
				return wrapOp("inventory list", envName, err)
			}
			inv, err := em.List(cmd.Context(), noVolumes)
			if err != nil {
				return wrapOp("inventory list", envName, err)
			}
			return inventory.WriteJSON(cmd.OutOrStdout(), inv)
		},
	}
	cmd.Flags().StringVar(&envName, "environment", "", "Environment name")
	cmd.Flags().BoolVar(&noVolumes, "noVolumes", false, "Leave out volume variables")
	_ = cmd.MarkFlagRequired("environment")
	return cmd
}

func inventoryHostCmd(flags *globalFlags) *cobra.Command {
	var envName string

	cmd := &cobra.Command{
		Use:   "host <host>",
		Short: "Print the per-host variables",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			em, _, err := emitter(flags, cmd, envName)
			if err != nil {
				return wrapOp("inventory host", args[0], err)
			}
			return inventory.WriteJSON(cmd.OutOrStdout(), em.Host(args[0]))
		},
	}
	cmd.Flags().StringVar(&envName, "environment", "", "Environment name")
	_ = cmd.MarkFlagRequired("environment")
	return cmd
}

func inventoryIPCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ip <environment>",
		Short: "Print the droplet's public address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			em, _, err := emitter(flags, cmd, args[0])
			if err != nil {
				return wrapOp("inventory ip", args[0], err)
			}
			ip, err := em.IP(cmd.Context())
			if err != nil {
				return wrapOp("inventory ip", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ip)
			return nil
		},
	}
}

func inventoryFQDNCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fqdn <environment>",
		Short: "Print the environment's primary domain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			em, _, err := emitter(flags, cmd, args[0])
			if err != nil {
				return wrapOp("inventory fqdn", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), em.FQDN())
			return nil
		},
	}
}

func inventoryVolumeListCmd(flags *globalFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "volume-ls <environment>",
		Short: "List the volume behind every known role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			em, a, err := emitter(flags, cmd, args[0])
			if err != nil {
				return wrapOp("volume-ls", args[0], err)
			}
			roles, err := a.volumeRoles()
			if err != nil {
				return wrapOp("volume-ls", args[0], err)
			}
			entries, err := em.VolumeList(cmd.Context(), roles)
			if err != nil {
				return wrapOp("volume-ls", args[0], err)
			}
			if asJSON {
				return inventory.WriteJSON(cmd.OutOrStdout(), entries)
			}

			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.Role, e.Name, e.Mountpoint})
			}
			fmt.Fprintln(cmd.OutOrStdout(), ui.Table([]string{"ROLE", "VOLUME", "MOUNTPOINT"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}
