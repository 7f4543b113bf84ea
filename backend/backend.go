// Package backend provides the pluggable loudness analysis engines.
//
// A Computer takes a batch of file paths and returns the measured gain and
// peak for each, plus album level values when asked. The numeric analysis
// always happens outside this process, so a crashing engine can only ever
// take down its own batch.
package backend

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.senan.xyz/rgain/replaygain"
)

var (
	ErrNotFound    = errors.New("backend not found")
	ErrUnavailable = errors.New("backend unavailable")
)

// Result holds the measurements for one file.
type Result struct {
	Track replaygain.Level
	// Album is set on every entry of a batch when album level analysis was
	// requested, and holds the same value for all of them.
	Album *replaygain.Level
	// LoudnessLUFS is the measured integrated loudness, when the engine
	// reports it.
	LoudnessLUFS float64
}

type Computer interface {
	// SupportsFile reports whether the engine can analyse path. It must be
	// cheap and side effect free, it is called once per candidate file.
	SupportsFile(path string) bool
	// ComputeGain analyses paths and returns a result per path. When album
	// is true every result carries the shared album level too.
	ComputeGain(ctx context.Context, paths []string, album bool) (map[string]Result, error)
}

var registry = map[string]func(conf string) (Computer, error){}
var registryMu sync.Mutex

// Register adds a backend constructor to the global registry.
func Register[C Computer](name string, newC func(conf string) (C, error)) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[name]; ok {
		panic(fmt.Errorf("backend %q already registered", name))
	}

	registry[name] = func(conf string) (Computer, error) {
		return newC(conf)
	}
}

// New initialises the named backend with the provided conf. Construction
// fails when the engine's prerequisites are missing.
func New(name string, conf string) (Computer, error) {
	registryMu.Lock()
	newComputer, ok := registry[name]
	registryMu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return newComputer(conf)
}

// autoOrder is the probe order for Auto. Only backends that need no conf
// can be auto selected.
var autoOrder = []string{"rsgain"}

// Auto returns the first usable backend in preference order. When none can
// be constructed the errors from every probe are returned together.
func Auto() (Computer, error) {
	var probeErrs []error
	for _, name := range autoOrder {
		c, err := New(name, "")
		if err != nil {
			probeErrs = append(probeErrs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(probeErrs...))
}
