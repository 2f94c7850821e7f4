package main

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/pavanmanishd/arena/v2"
)

// Arena kinds a step can exercise.
const (
	kindTyped     = "typed"
	kindDropless  = "dropless"
	kindComposite = "composite"
)

// Workload is a sequence of allocation steps run against fresh arenas.
type Workload struct {
	Arena arena.Config `yaml:"arena"`
	// Rounds repeats every step, each time on a new arena.
	Rounds int    `yaml:"rounds"`
	Steps  []Step `yaml:"steps"`
}

// Step allocates Count values into one arena of the given kind. With a
// non-zero Batch, values are allocated Batch at a time from an iterator.
type Step struct {
	Kind  string `yaml:"kind"`
	Count int    `yaml:"count"`
	Batch int    `yaml:"batch"`
}

func (w *Workload) Validate() error {
	if err := w.Arena.Validate(); err != nil {
		return errors.Wrap(err, "invalid arena config")
	}
	if w.Rounds <= 0 {
		return errors.Errorf("rounds must be positive, got %d", w.Rounds)
	}
	if len(w.Steps) == 0 {
		return errors.New("workload has no steps")
	}
	for i, s := range w.Steps {
		if err := s.Validate(); err != nil {
			return errors.Wrapf(err, "step %d", i)
		}
	}
	return nil
}

func (s Step) Validate() error {
	switch s.Kind {
	case kindTyped, kindDropless, kindComposite:
	default:
		return errors.Errorf("unknown arena kind %q", s.Kind)
	}
	if s.Count <= 0 {
		return errors.Errorf("count must be positive, got %d", s.Count)
	}
	if s.Batch < 0 {
		return errors.Errorf("batch must not be negative, got %d", s.Batch)
	}
	return nil
}

// loadWorkload reads a YAML workload from path. Fields the file leaves out
// keep the values already in base.
func loadWorkload(path string, base Workload) (Workload, error) {
	f, err := os.Open(path)
	if err != nil {
		return Workload{}, errors.Wrap(err, "open workload")
	}
	defer f.Close()

	w, err := parseWorkload(f, base)
	if err != nil {
		return Workload{}, errors.Wrapf(err, "workload %s", path)
	}
	return w, nil
}

func parseWorkload(r io.Reader, base Workload) (Workload, error) {
	w := base
	w.Steps = nil
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&w); err != nil && !errors.Is(err, io.EOF) {
		return Workload{}, errors.Wrap(err, "decode")
	}
	if len(w.Steps) == 0 {
		w.Steps = base.Steps
	}
	return w, w.Validate()
}
