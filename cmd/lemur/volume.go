package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func volumeCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "volume",
		Short: "Look up volumes by role, creating them when missing",
	}
	cmd.AddCommand(volumeLookupCmd(flags, "mount-path", "Print the host mountpoint of a volume role", false))
	cmd.AddCommand(volumeLookupCmd(flags, "volume-id", "Print the docker volume name of a volume role", true))
	return cmd
}

func volumeLookupCmd(flags *globalFlags, use, short string, name bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <environment> <type>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.load(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			e, err := a.environment(args[0])
			if err != nil {
				return wrapOp(use, args[1], err)
			}

			r := a.reconciler(e)
			lookup := r.VolumePath
			if name {
				lookup = r.VolumeID
			}
			v, err := lookup(cmd.Context(), args[1])
			if err != nil {
				return wrapOp(use, args[1], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}
