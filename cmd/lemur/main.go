package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/willia4/electriclemur-v3/internal/ui"
	"github.com/willia4/electriclemur-v3/pkg/log"
	"github.com/willia4/electriclemur-v3/pkg/version"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	report(os.Stdout, os.Stderr, err)
	os.Exit(exitCode(err))
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "lemur",
		Short:         "Provision and reconcile electriclemur environments",
		Version:       fmt.Sprintf("%s (#%d)", version.GetVersion(), version.Numeric(version.GetVersion())),
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch flags.logFormat {
			case "", log.FormatText, log.FormatJSON:
			default:
				return fmt.Errorf("--log-format must be %q or %q", log.FormatText, log.FormatJSON)
			}
			ui.ConfigureInteraction(flags.noInteraction)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Echo child process output and log at debug level")
	pf.StringVar(&flags.configPath, "config", "", "Path to the TOML config (default <root>/lemur.toml)")
	pf.StringVar(&flags.root, "root", "", "Definitions root (overrides paths.root)")
	pf.BoolVarP(&flags.yes, "yes", "y", false, "Answer yes to every confirmation")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: text or json (overrides log.format)")
	pf.BoolVar(&flags.noInteraction, "no-interaction", false, "Never prompt; fail where a prompt would be needed")

	root.AddCommand(environmentCmd(flags))
	root.AddCommand(containerCmd(flags))
	root.AddCommand(volumeCmd(flags))
	root.AddCommand(inventoryCmd(flags))
	root.AddCommand(playbooksCmd(flags))
	root.AddCommand(doctorCmd(flags))
	return root
}
