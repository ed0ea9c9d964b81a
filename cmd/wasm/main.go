//go:build js && wasm
// +build js,wasm

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"syscall/js"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/calibration"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/material"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/pitch"
	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/resolver"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorProcessing
	ErrorInvalidGeometry
	ErrorInvalidEnvironment
	ErrorNoPitch
)

var table = notes.DefaultTable()

// Resolves hole positions over an in-memory store seeded from the
// caller's calibration array.
// Args: notes, length, diameter, material, endCorrection, temperature, calibrations
// Returns: {error: number, data: {holes, calibrated_count, calculated_count, skipped} | string}
func resolvePositions(this js.Value, args []js.Value) any {
	if len(args) < 3 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected at least 3 arguments: notes, length, diameter")
	}

	list, err := stringArray(args[0])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, "notes: "+err.Error())
	}
	if args[1].Type() != js.TypeNumber || args[2].Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "length and diameter must be numbers")
	}

	g := resolver.Geometry{
		Length:   args[1].Float(),
		Diameter: args[2].Float(),
		Material: material.Normalize(optionalString(args, 3)),
	}
	env := resolver.DefaultEnvironment()
	if v, ok := optionalNumber(args, 4); ok {
		env.EndCorrection = v
	}
	if v, ok := optionalNumber(args, 5); ok {
		env.Temperature = v
	}

	var seed []calibration.Record
	if len(args) > 6 && args[6].Truthy() {
		seed, err = calibrationArray(args[6])
		if err != nil {
			return makeErrorResponse(ErrorInvalidArgs, "calibrations: "+err.Error())
		}
	}

	r := resolver.New(table, calibration.NewStore(seed...), resolver.WithWorkers(1))
	layout, err := r.ResolveAll(notes.ParseList(list), g, env)
	if err != nil {
		switch {
		case errors.Is(err, resolver.ErrInvalidGeometry):
			return makeErrorResponse(ErrorInvalidGeometry, err.Error())
		case errors.Is(err, resolver.ErrInvalidEnvironment):
			return makeErrorResponse(ErrorInvalidEnvironment, err.Error())
		default:
			return makeErrorResponse(ErrorProcessing, err.Error())
		}
	}

	calibrated, calculated := layout.Counts()
	skipped := layout.Skipped
	if skipped == nil {
		skipped = []notes.Note{}
	}
	return makeDataResponse(map[string]any{
		"holes":            layout.Holes,
		"calibrated_count": calibrated,
		"calculated_count": calculated,
		"skipped":          skipped,
	})
}

// Detects the fundamental of microphone samples and compares it with a note.
// Args: audioArray, sampleRate, channels, note, [toleranceCents]
// Returns: {error: number, data: verification | string}
func verifyPitch(this js.Value, args []js.Value) any {
	if len(args) < 4 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 4 arguments: audioArray, sampleRate, channels, note")
	}

	audioDataJS := args[0]
	if audioDataJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray must be an Array or Float64Array")
	}
	if args[1].Type() != js.TypeNumber || args[2].Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "sampleRate and channels must be numbers")
	}

	sampleRate := args[1].Int()
	channels := args[2].Int()
	if sampleRate <= 0 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Invalid sample rate: %d", sampleRate))
	}
	if channels < 1 || channels > 2 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Channels must be 1 (mono) or 2 (stereo), got: %d", channels))
	}

	note := notes.Note(args[3].String())
	target, err := table.FrequencyOf(note)
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, err.Error())
	}
	tolerance, _ := optionalNumber(args, 4)

	length := audioDataJS.Length()
	if length == 0 {
		return makeErrorResponse(ErrorInvalidArgs, "audioArray is empty")
	}
	samples := make([]float64, length)
	for i := 0; i < length; i++ {
		val := audioDataJS.Index(i)
		if val.Type() != js.TypeNumber {
			return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("audioArray element %d is not a number", i))
		}
		samples[i] = val.Float()
	}
	if channels == 2 {
		samples = stereoToMono(samples)
	}

	detected, err := pitch.DetectFundamental(samples, sampleRate)
	if err != nil {
		if errors.Is(err, pitch.ErrNoPitch) {
			return makeErrorResponse(ErrorNoPitch, "No pitch found (audio may be silent or too short)")
		}
		return makeErrorResponse(ErrorProcessing, err.Error())
	}
	return makeDataResponse(pitch.Verify(note, target, detected, tolerance))
}

func stereoToMono(stereo []float64) []float64 {
	mono := make([]float64, len(stereo)/2)
	for i := range mono {
		mono[i] = (stereo[i*2] + stereo[i*2+1]) / 2.0
	}
	return mono
}

func stringArray(v js.Value) ([]string, error) {
	if v.Type() != js.TypeObject {
		return nil, errors.New("must be an array of strings")
	}
	out := make([]string, v.Length())
	for i := range out {
		item := v.Index(i)
		if item.Type() != js.TypeString {
			return nil, fmt.Errorf("element %d is not a string", i)
		}
		out[i] = item.String()
	}
	return out, nil
}

// calibrationArray reads [{note, position, tube_diameter, tube_length,
// material, is_verified}] objects. Records default to verified.
func calibrationArray(v js.Value) ([]calibration.Record, error) {
	if v.Type() != js.TypeObject {
		return nil, errors.New("must be an array of objects")
	}
	out := make([]calibration.Record, 0, v.Length())
	for i := 0; i < v.Length(); i++ {
		item := v.Index(i)
		if item.Type() != js.TypeObject {
			return nil, fmt.Errorf("element %d is not an object", i)
		}
		rec := calibration.Record{
			ID:           stringField(item, "id"),
			Note:         notes.Note(stringField(item, "note")),
			Position:     numberField(item, "position"),
			TubeDiameter: numberField(item, "tube_diameter"),
			TubeLength:   numberField(item, "tube_length"),
			Material:     material.Normalize(stringField(item, "material")),
			IsVerified:   true,
			HoleDiameter: calibration.DefaultHoleDiameter,
			Source:       calibration.SourceUser,
		}
		if verified := item.Get("is_verified"); verified.Type() == js.TypeBoolean {
			rec.IsVerified = verified.Bool()
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func stringField(v js.Value, key string) string {
	field := v.Get(key)
	if field.Type() != js.TypeString {
		return ""
	}
	return field.String()
}

func numberField(v js.Value, key string) float64 {
	field := v.Get(key)
	if field.Type() != js.TypeNumber {
		return 0
	}
	return field.Float()
}

func optionalString(args []js.Value, i int) string {
	if i >= len(args) || args[i].Type() != js.TypeString {
		return ""
	}
	return args[i].String()
}

func optionalNumber(args []js.Value, i int) (float64, bool) {
	if i >= len(args) || args[i].Type() != js.TypeNumber {
		return 0, false
	}
	return args[i].Float(), true
}

func makeDataResponse(data any) js.Value {
	encoded, err := json.Marshal(data)
	if err != nil {
		return makeErrorResponse(ErrorProcessing, fmt.Sprintf("Failed to encode result: %v", err))
	}
	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", js.Global().Get("JSON").Call("parse", string(encoded)))
	return result
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	logf := func(method, msg string) {
		if !console.IsUndefined() {
			console.Call(method, msg)
		}
	}

	js.Global().Set("resolvePositions", js.FuncOf(resolvePositions))
	js.Global().Set("verifyPitch", js.FuncOf(verifyPitch))
	logf("log", "TubeTuner WASM: resolvePositions and verifyPitch registered")

	window := js.Global().Get("window")
	if window.IsUndefined() {
		logf("error", "TubeTuner WASM: window object is undefined")
	} else {
		event := js.Global().Get("CustomEvent").New("wasmReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
	}

	select {}
}
