package backend

import (
	"context"
	"fmt"
)

func init() {
	Register("null", NewNull)
}

// Null supports no files. It exists so the rest of the pipeline can be
// exercised without an analysis engine installed.
type Null struct{}

func NewNull(conf string) (Null, error) {
	return Null{}, nil
}

func (Null) SupportsFile(path string) bool { return false }

func (Null) ComputeGain(ctx context.Context, paths []string, album bool) (map[string]Result, error) {
	if len(paths) > 0 {
		return nil, fmt.Errorf("null backend cannot analyse %d files", len(paths))
	}
	return map[string]Result{}, nil
}

func (Null) String() string { return "null" }
