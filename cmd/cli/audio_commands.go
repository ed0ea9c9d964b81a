//go:build !js && !wasm

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/audio"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
)

func newVerifyCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "verify NOTE RECORDING.wav",
		Short: "Check a recorded take against the target pitch of NOTE",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			note := notes.Note(strings.TrimSpace(args[0]))
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("open recording: %w", err)
			}
			defer f.Close()

			return ctx.withService(cmd, func(svc tubetuner.Service) error {
				v, err := svc.VerifyRecording(cmd.Context(), note, f)
				if err != nil {
					return err
				}
				if ctx.jsonFlag {
					return writeJSON(cmd, v)
				}
				verdict := "in tune"
				if !v.InTune {
					verdict = "out of tune"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: detected %.2f Hz, target %.2f Hz, %+.1f cents (%s)\n",
					v.Note, v.Detected, v.Target, v.Cents, verdict)
				return nil
			})
		},
	}
}

func newSpectrogramCommand() *cobra.Command {
	var output string
	var width, height int

	cmd := &cobra.Command{
		Use:         "spectrogram RECORDING.wav",
		Short:       "Render a PNG spectrogram of a WAV file",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			clip, err := audio.ReadFile(args[0])
			if err != nil {
				return err
			}
			if output == "" {
				output = strings.TrimSuffix(args[0], ".wav") + ".png"
			}
			if err := audio.RenderSpectrogram(clip.Samples, clip.SampleRate, output, width, height); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote spectrogram of %s (%s, %d Hz) to %s\n",
				args[0], clip.Duration().Round(time.Millisecond), clip.SampleRate, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output PNG path (default RECORDING.png)")
	cmd.Flags().IntVar(&width, "width", 1024, "Image width in pixels")
	cmd.Flags().IntVar(&height, "height", 512, "Image height in pixels")
	return cmd
}
