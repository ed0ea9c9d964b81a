//go:build !js && !wasm

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
)

func newNoteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "note NOTE",
		Short: "Show the parts and frequency of a note",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc tubetuner.Service) error {
				info := svc.NoteInfo(notes.Note(strings.TrimSpace(args[0])))
				if ctx.jsonFlag {
					return writeJSON(cmd, info)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Note:      %s\n", info.Note)
				fmt.Fprintf(out, "Name:      %s\n", info.Name)
				if info.HasOctave {
					fmt.Fprintf(out, "Octave:    %d\n", info.Octave)
				}
				if info.Known {
					fmt.Fprintf(out, "Frequency: %.2f Hz\n", info.Frequency)
				} else {
					fmt.Fprintln(out, "Frequency: not in table")
				}
				return nil
			})
		},
	}
}

func newNotesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "notes",
		Short: "Print the equal-temperament frequency table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc tubetuner.Service) error {
				list := svc.Notes()
				if ctx.jsonFlag {
					return writeJSON(cmd, list)
				}
				rows := make([][]string, len(list))
				for i, info := range list {
					rows[i] = []string{string(info.Note), fmt.Sprintf("%d", info.Octave), fmt.Sprintf("%.2f", info.Frequency)}
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Note", "Octave", "Hz"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight},
				))
				return nil
			})
		},
	}
}

func newToneCommand(ctx *commandContext) *cobra.Command {
	var output string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "tone NOTE",
		Short: "Write a reference sine tone for NOTE as WAV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			note := notes.Note(strings.TrimSpace(args[0]))
			if output == "" {
				output = string(note) + ".wav"
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("duration") {
				duration = cfg.ToneDuration()
			}

			return ctx.withService(cmd, func(svc tubetuner.Service) error {
				if dir := filepath.Dir(output); dir != "." {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						return fmt.Errorf("create output directory: %w", err)
					}
				}
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				if err := svc.RenderTone(note, f, duration); err != nil {
					f.Close()
					os.Remove(output)
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				if ctx.jsonFlag {
					return writeJSON(cmd, map[string]any{"note": note, "path": output, "duration_ms": duration.Milliseconds()})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s tone to %s\n", note, output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output WAV path (default NOTE.wav)")
	cmd.Flags().DurationVar(&duration, "duration", 0, "Tone length (default from config)")
	return cmd
}
