package backend

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"slices"
	"strings"

	"github.com/google/shlex"

	"go.senan.xyz/rgain/tags"
)

func init() {
	Register("exec", NewExec)
}

const (
	markerFiles = "<files>"
	markerAlbum = "<album>"
)

// Exec runs a user supplied analysis command. The command must speak the
// same tab separated output protocol as "rsgain custom --output". The conf
// string is shlex split; "<files>" expands to the batch's paths and
// "<album>" to "--album" when album mode is requested (dropped otherwise).
type Exec struct {
	command string
	args    []string
}

func NewExec(conf string) (*Exec, error) {
	parts, err := shlex.Split(conf)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no command provided")
	}
	if !slices.Contains(parts, markerFiles) {
		return nil, fmt.Errorf("command needs a %s marker", markerFiles)
	}
	if _, err := exec.LookPath(parts[0]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &Exec{command: parts[0], args: parts[1:]}, nil
}

func (b *Exec) SupportsFile(path string) bool {
	return tags.CanRead(path)
}

func (b *Exec) ComputeGain(ctx context.Context, paths []string, album bool) (_ map[string]Result, err error) {
	if len(paths) == 0 {
		return map[string]Result{}, nil
	}

	var args []string
	for _, arg := range b.args {
		switch arg {
		case markerFiles:
			args = append(args, paths...)
		case markerAlbum:
			if album {
				args = append(args, "--album")
			}
		default:
			args = append(args, arg)
		}
	}

	cmd := exec.CommandContext(ctx, b.command, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("run cmd: %w: stderr: %q", err, stderr.String())
		}
		return nil, fmt.Errorf("run cmd: %w", err)
	}

	albumLev, trackLevs, err := parseOutput(&stdout)
	if err != nil {
		return nil, err
	}
	return collect(paths, albumLev, trackLevs, album)
}

func (b *Exec) String() string {
	args := fmt.Sprintf("%q", append([]string{b.command}, b.args...))
	args = strings.TrimPrefix(args, "[")
	args = strings.TrimSuffix(args, "]")
	return fmt.Sprintf("exec (%s)", args)
}
