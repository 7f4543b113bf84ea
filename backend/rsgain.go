package backend

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"go.senan.xyz/rgain/tags"
)

func init() {
	Register("rsgain", NewRsgain)
}

const rsgainCommand = "rsgain"

// Rsgain computes loudness with the rsgain tool, one process per batch.
type Rsgain struct {
	path string
}

// NewRsgain locates the rsgain executable, honouring $RSGAIN_PATH. The
// conf string is unused.
func NewRsgain(conf string) (*Rsgain, error) {
	if path := os.Getenv("RSGAIN_PATH"); path != "" {
		return &Rsgain{path: path}, nil
	}
	path, err := exec.LookPath(rsgainCommand)
	if err != nil {
		return nil, fmt.Errorf("%w: %s not found in PATH: %w", ErrUnavailable, rsgainCommand, err)
	}
	return &Rsgain{path: path}, nil
}

func (b *Rsgain) SupportsFile(path string) bool {
	return tags.CanRead(path)
}

func (b *Rsgain) ComputeGain(ctx context.Context, paths []string, album bool) (_ map[string]Result, err error) {
	if len(paths) == 0 {
		return map[string]Result{}, nil
	}

	args := []string{"custom", "--output", "--tagmode", "s"}
	if album {
		args = append(args, "--album")
	}
	args = append(args, paths...)

	cmd := exec.CommandContext(ctx, b.path, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	defer func() {
		if err != nil && stderr.Len() > 0 {
			err = fmt.Errorf("%w: stderr: %q", err, stderr.String())
		}
	}()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("get stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start cmd: %w", err)
	}

	albumLev, trackLevs, err := parseOutput(stdout)
	if err != nil {
		_ = cmd.Wait()
		return nil, err
	}
	if err := cmd.Wait(); err != nil {
		return nil, fmt.Errorf("wait cmd: %w", err)
	}

	return collect(paths, albumLev, trackLevs, album)
}

func (b *Rsgain) String() string {
	return fmt.Sprintf("rsgain (%s)", b.path)
}
