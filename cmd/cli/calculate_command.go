//go:build !js && !wasm

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/calibration"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/resolver"
)

func newCalculateCommand(ctx *commandContext) *cobra.Command {
	var tube tubeFlags

	cmd := &cobra.Command{
		Use:     "calculate NOTE...",
		Aliases: []string{"calc"},
		Short:   "Place holes for a list of notes",
		Example: `  tubetuner calculate D4 E4 F#4 G4 A4 B4 --length 450 --diameter 20`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := tube.request(cmd, ctx, notes.ParseList(splitNotes(args))...)
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(svc tubetuner.Service) error {
				layout, err := svc.ResolvePositions(cmd.Context(), req)
				if err != nil {
					return err
				}
				calibrated, calculated := layout.Counts()
				if ctx.jsonFlag {
					return writeJSON(cmd, map[string]any{
						"holes":            layout.Holes,
						"calibrated_count": calibrated,
						"calculated_count": calculated,
						"skipped":          layout.Skipped,
					})
				}

				out := cmd.OutOrStdout()
				if len(layout.Holes) > 0 {
					fmt.Fprintln(out, holesTable(layout.Holes))
				}
				fmt.Fprintf(out, "%d holes: %d calibrated, %d calculated\n", len(layout.Holes), calibrated, calculated)
				if len(layout.Skipped) > 0 {
					fmt.Fprintf(out, "Skipped unknown notes: %s\n", joinNotes(layout.Skipped))
				}
				return nil
			})
		},
	}
	tube.bind(cmd)
	return cmd
}

func newSingleCommand(ctx *commandContext) *cobra.Command {
	var tube tubeFlags
	var threshold float64

	cmd := &cobra.Command{
		Use:   "single NOTE",
		Short: "Place one hole and show calibrations from similar tubes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			note := notes.Note(strings.TrimSpace(args[0]))
			req, err := tube.request(cmd, ctx)
			if err != nil {
				return err
			}
			return ctx.withService(cmd, func(svc tubetuner.Service) error {
				hole, err := svc.ResolveSingle(cmd.Context(), note, req)
				if err != nil {
					return err
				}
				similar, err := svc.FindSimilarCalibrations(cmd.Context(), note, tube.diameter, tube.length, threshold)
				if err != nil {
					return err
				}
				if ctx.jsonFlag {
					return writeJSON(cmd, map[string]any{
						"calculation":          hole,
						"similar_calibrations": similar,
					})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, holesTable([]resolver.HoleResult{hole}))
				if len(similar) == 0 {
					fmt.Fprintln(out, "No calibrations on similar tubes")
					return nil
				}
				fmt.Fprintln(out, similarTable(similar))
				return nil
			})
		},
	}
	tube.bind(cmd)
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Relative geometry difference tolerated (default from config)")
	return cmd
}

func holesTable(holes []resolver.HoleResult) string {
	rows := make([][]string, len(holes))
	for i, h := range holes {
		rows[i] = []string{
			string(h.Note),
			fmt.Sprintf("%.2f", h.Frequency),
			fmt.Sprintf("%.1f", h.Position),
			string(h.Source),
			fmt.Sprintf("%.1f", h.Confidence),
			yesNo(h.IsVerified),
		}
	}
	return renderTable(
		[]string{"Note", "Hz", "Position (mm)", "Source", "Confidence", "Verified"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignRight, alignLeft},
	)
}

func similarTable(scored []calibration.Scored) string {
	rows := make([][]string, len(scored))
	for i, sc := range scored {
		rows[i] = []string{
			shortID(sc.Record.ID),
			fmt.Sprintf("%.1f", sc.Record.Position),
			fmt.Sprintf("%.1f", sc.Record.TubeDiameter),
			fmt.Sprintf("%.1f", sc.Record.TubeLength),
			string(sc.Record.Material),
			fmt.Sprintf("%.2f", sc.Similarity),
		}
	}
	return renderTable(
		[]string{"ID", "Position", "Diameter", "Length", "Material", "Similarity"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignRight},
	)
}

// splitNotes accepts both "D4 E4" and "D4,E4".
func splitNotes(args []string) []string {
	var out []string
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func joinNotes(list []notes.Note) string {
	parts := make([]string, len(list))
	for i, n := range list {
		parts[i] = string(n)
	}
	return strings.Join(parts, ", ")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
