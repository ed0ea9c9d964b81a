//go:build !js && !wasm

package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
)

func newCalibrateCommand(ctx *commandContext) *cobra.Command {
	var (
		position    float64
		length      float64
		diameter    float64
		material    string
		temperature float64
		comment     string
		recording   string
	)

	cmd := &cobra.Command{
		Use:   "calibrate NOTE",
		Short: "Record a measured hole position",
		Long: `Record where the hole for NOTE sits on a tested instrument.

With --recording the WAV take is checked against the note first; takes more
than the configured tolerance off pitch are stored unverified and never used
for matching.`,
		Example: `  tubetuner calibrate G4 --position 180.5 --length 450 --diameter 20
  tubetuner calibrate A4 --position 150 --length 450 --diameter 20 --recording a4.wav`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			in := tubetuner.CalibrationInput{
				Note:         notes.Note(strings.TrimSpace(args[0])),
				Position:     position,
				TubeDiameter: diameter,
				TubeLength:   length,
				Material:     material,
				Temperature:  cfg.Engine.Temperature,
				Comment:      comment,
			}
			if cmd.Flags().Changed("temperature") {
				in.Temperature = temperature
			}

			return ctx.withService(cmd, func(svc tubetuner.Service) error {
				if recording == "" {
					id, err := svc.RecordCalibration(cmd.Context(), in)
					if err != nil {
						return err
					}
					if ctx.jsonFlag {
						return writeJSON(cmd, map[string]any{"id": id, "is_verified": true})
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Recorded calibration %s: %s at %.1f mm\n", id, in.Note, in.Position)
					return nil
				}

				f, err := os.Open(recording)
				if err != nil {
					return fmt.Errorf("open recording: %w", err)
				}
				defer f.Close()

				id, v, err := svc.RecordMeasuredCalibration(cmd.Context(), in, f)
				if err != nil {
					return err
				}
				if ctx.jsonFlag {
					return writeJSON(cmd, map[string]any{"id": id, "is_verified": v.InTune, "verification": v})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Recorded calibration %s: %s at %.1f mm\n", id, in.Note, in.Position)
				fmt.Fprintf(out, "Detected %.2f Hz against %.2f Hz (%+.1f cents), verified: %s\n",
					v.Detected, v.Target, v.Cents, yesNo(v.InTune))
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.Float64VarP(&position, "position", "p", 0, "Measured hole position from the mouthpiece end in mm")
	flags.Float64VarP(&length, "length", "l", 0, "Tube length in mm")
	flags.Float64VarP(&diameter, "diameter", "d", 0, "Tube inner diameter in mm")
	flags.StringVarP(&material, "material", "m", "pvc", "Tube material")
	flags.Float64Var(&temperature, "temperature", 0, "Air temperature during the measurement in °C")
	flags.StringVar(&comment, "comment", "", "Free-form note stored with the record")
	flags.StringVarP(&recording, "recording", "r", "", "WAV take of the note to verify before storing")
	_ = cmd.MarkFlagRequired("position")
	_ = cmd.MarkFlagRequired("length")
	_ = cmd.MarkFlagRequired("diameter")
	return cmd
}

func newCalibrationsCommand(ctx *commandContext) *cobra.Command {
	var verifiedOnly bool

	cmd := &cobra.Command{
		Use:     "calibrations",
		Aliases: []string{"list"},
		Short:   "List stored calibration records",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withService(cmd, func(svc tubetuner.Service) error {
				records, err := svc.ListCalibrations(cmd.Context(), verifiedOnly)
				if err != nil {
					return err
				}
				if ctx.jsonFlag {
					return writeJSON(cmd, records)
				}

				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, "No calibrations stored")
					return nil
				}
				rows := make([][]string, len(records))
				for i, r := range records {
					rows[i] = []string{
						shortID(r.ID),
						string(r.Note),
						fmt.Sprintf("%.1f", r.Position),
						fmt.Sprintf("%.1f", r.TubeDiameter),
						fmt.Sprintf("%.1f", r.TubeLength),
						string(r.Material),
						r.Source,
						yesNo(r.IsVerified),
						r.CreatedAt.Local().Format(time.DateOnly),
					}
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Note", "Position", "Diameter", "Length", "Material", "Source", "Verified", "Created"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&verifiedOnly, "verified", false, "Only show verified records")
	return cmd
}

func newSimilarCommand(ctx *commandContext) *cobra.Command {
	var length, diameter, threshold float64

	cmd := &cobra.Command{
		Use:   "similar NOTE",
		Short: "Rank verified calibrations for NOTE by tube similarity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			note := notes.Note(strings.TrimSpace(args[0]))
			return ctx.withService(cmd, func(svc tubetuner.Service) error {
				similar, err := svc.FindSimilarCalibrations(cmd.Context(), note, diameter, length, threshold)
				if err != nil {
					return err
				}
				if ctx.jsonFlag {
					return writeJSON(cmd, map[string]any{
						"note":                 note,
						"similar_calibrations": similar,
						"count":                len(similar),
					})
				}
				if len(similar) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No calibrations for %s on similar tubes\n", note)
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), similarTable(similar))
				return nil
			})
		},
	}
	flags := cmd.Flags()
	flags.Float64VarP(&length, "length", "l", 450, "Tube length in mm")
	flags.Float64VarP(&diameter, "diameter", "d", 20, "Tube inner diameter in mm")
	flags.Float64Var(&threshold, "threshold", 0, "Relative geometry difference tolerated (default from config)")
	return cmd
}
