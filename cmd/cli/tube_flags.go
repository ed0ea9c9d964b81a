//go:build !js && !wasm

package main

import (
	"github.com/spf13/cobra"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
)

// tubeFlags are the geometry and environment flags shared by the
// calculation commands.
type tubeFlags struct {
	length        float64
	diameter      float64
	material      string
	endCorrection float64
	temperature   float64
}

func (f *tubeFlags) bind(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Float64VarP(&f.length, "length", "l", 0, "Tube length in mm")
	flags.Float64VarP(&f.diameter, "diameter", "d", 0, "Tube inner diameter in mm")
	flags.StringVarP(&f.material, "material", "m", "pvc", "Tube material")
	flags.Float64Var(&f.endCorrection, "end-correction", 0, "Mouthpiece end correction in mm (default from config)")
	flags.Float64Var(&f.temperature, "temperature", 0, "Air temperature in °C (default from config)")
	_ = cmd.MarkFlagRequired("length")
	_ = cmd.MarkFlagRequired("diameter")
}

// request builds a service request, taking unset environment flags from
// the loaded configuration.
func (f *tubeFlags) request(cmd *cobra.Command, ctx *commandContext, list ...notes.Note) (tubetuner.Request, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return tubetuner.Request{}, err
	}
	req := tubetuner.NewRequest(f.length, f.diameter, f.material, list...)
	req.Environment = cfg.Environment()
	if cmd.Flags().Changed("end-correction") {
		req.Environment.EndCorrection = f.endCorrection
	}
	if cmd.Flags().Changed("temperature") {
		req.Environment.Temperature = f.temperature
	}
	return req, nil
}
