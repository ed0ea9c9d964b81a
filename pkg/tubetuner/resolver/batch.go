package resolver

import (
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/himanishpuri/TubeTuner/pkg/tubetuner/notes"
)

// Layout is a resolved set of holes ordered from the mouthpiece to the far
// end of the tube.
type Layout struct {
	Holes   []HoleResult `json:"holes"`
	Skipped []notes.Note `json:"skipped,omitempty"`
}

// Get returns the hole for note, if it was resolved.
func (l *Layout) Get(note notes.Note) (HoleResult, bool) {
	for _, h := range l.Holes {
		if h.Note == note {
			return h, true
		}
	}
	return HoleResult{}, false
}

// Counts reports how many holes came from calibration data and how many
// from the formula.
func (l *Layout) Counts() (calibrated, calculated int) {
	for _, h := range l.Holes {
		if h.Source == SourceCalibrated {
			calibrated++
		} else {
			calculated++
		}
	}
	return calibrated, calculated
}

// ResolveAll resolves every note independently and orders the holes by
// ascending position; equal positions keep input order. Notes outside the
// frequency table are listed in Skipped instead of failing the batch.
// Repeated notes are resolved once.
func (r *Resolver) ResolveAll(list []notes.Note, g Geometry, env Environment) (*Layout, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}

	unique := dedupe(list)
	results := make([]HoleResult, len(unique))
	resolved := make([]bool, len(unique))

	var eg errgroup.Group
	eg.SetLimit(r.workers)
	for i, note := range unique {
		i, note := i, note
		eg.Go(func() error {
			res, err := r.resolve(note, g, env)
			if errors.Is(err, notes.ErrUnknownNote) {
				return nil
			}
			if err != nil {
				return err
			}
			results[i] = res
			resolved[i] = true
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	layout := &Layout{Holes: make([]HoleResult, 0, len(unique))}
	for i, note := range unique {
		if resolved[i] {
			layout.Holes = append(layout.Holes, results[i])
		} else {
			layout.Skipped = append(layout.Skipped, note)
		}
	}
	sort.SliceStable(layout.Holes, func(i, j int) bool {
		return layout.Holes[i].Position < layout.Holes[j].Position
	})
	return layout, nil
}

func dedupe(list []notes.Note) []notes.Note {
	seen := make(map[notes.Note]struct{}, len(list))
	out := make([]notes.Note, 0, len(list))
	for _, n := range list {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
