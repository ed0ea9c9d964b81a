//go:build !js && !wasm

package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:   "tubetuner",
		Short: "Finger-hole placement for wind-instrument tubes",
		Long: `tubetuner places finger holes on a tube so each opened hole sounds its note.
Verified measurements stored in the calibration database take precedence over
the open-tube model.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path (YAML or TOML)")
	flags.StringVar(&ctx.dbFlag, "db", "", "Path to the SQLite calibration database")
	flags.BoolVar(&ctx.jsonFlag, "json", false, "Print machine-readable JSON")
	flags.BoolVarP(&ctx.verbose, "verbose", "v", false, "Log engine activity to stderr")

	rootCmd.AddCommand(newCalculateCommand(ctx))
	rootCmd.AddCommand(newSingleCommand(ctx))
	rootCmd.AddCommand(newCalibrateCommand(ctx))
	rootCmd.AddCommand(newCalibrationsCommand(ctx))
	rootCmd.AddCommand(newSimilarCommand(ctx))
	rootCmd.AddCommand(newNoteCommand(ctx))
	rootCmd.AddCommand(newNotesCommand(ctx))
	rootCmd.AddCommand(newToneCommand(ctx))
	rootCmd.AddCommand(newVerifyCommand(ctx))
	rootCmd.AddCommand(newSpectrogramCommand())
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
