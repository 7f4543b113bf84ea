package rgain

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.senan.xyz/rgain/backend"
	"go.senan.xyz/rgain/replaygain"
)

// memFile is the "on disk" state behind a memStore. Opening the same path
// twice sees the same persisted tags, like re-opening a real file.
type memFile struct {
	disk   map[string]string
	length time.Duration
	saves  int
}

type memStore struct {
	file *memFile
	mem  map[string]string
}

type memFS map[string]*memFile

func (fs memFS) add(path string, tags map[string]string) {
	if tags == nil {
		tags = map[string]string{}
	}
	fs[path] = &memFile{disk: tags, length: 3 * time.Minute}
}

func (fs memFS) opener(path string) (TagStore, error) {
	f, ok := fs[path]
	if !ok {
		return nil, fmt.Errorf("no such file %q", path)
	}
	return &memStore{file: f, mem: maps.Clone(f.disk)}, nil
}

func (s *memStore) Read(t string) string { return s.mem[t] }
func (s *memStore) Write(t string, v ...string) {
	if len(v) == 0 || v[0] == "" {
		delete(s.mem, t)
		return
	}
	s.mem[t] = v[0]
}
func (s *memStore) Clear(t string) { delete(s.mem, t) }
func (s *memStore) Keys() []string {
	keys := slices.Sorted(maps.Keys(s.mem))
	return keys
}
func (s *memStore) Save() error {
	s.file.disk = maps.Clone(s.mem)
	s.file.saves++
	return nil
}
func (s *memStore) Close()                {}
func (s *memStore) Length() time.Duration { return s.file.length }

// fakeComputer scripts ComputeGain results per directory.
type fakeComputer struct {
	calls   int
	support func(path string) bool
	compute func(paths []string, album bool) (map[string]backend.Result, error)
}

func (c *fakeComputer) SupportsFile(path string) bool {
	if c.support == nil {
		return true
	}
	return c.support(path)
}

func (c *fakeComputer) ComputeGain(ctx context.Context, paths []string, album bool) (map[string]backend.Result, error) {
	c.calls++
	return c.compute(paths, album)
}

// levels returns a scripted computer handing out gain -6, -7, ... in path
// order with peaks descending from 0.9, plus fixed album values.
func levels(albumGain, albumPeak float64) func(paths []string, album bool) (map[string]backend.Result, error) {
	return func(paths []string, album bool) (map[string]backend.Result, error) {
		sorted := slices.Sorted(slices.Values(paths))
		results := map[string]backend.Result{}
		for i, p := range sorted {
			r := backend.Result{Track: replaygain.Level{GaindB: -6 - float64(i), Peak: 0.9 - float64(i)/10}}
			if album {
				r.Album = &replaygain.Level{GaindB: albumGain, Peak: albumPeak}
			}
			results[p] = r
		}
		return results, nil
	}
}

func newTestTrack(t *testing.T, fs memFS, path string, tags map[string]string) *Track {
	t.Helper()
	fs.add(path, tags)
	track, err := NewTrack(path, fs.opener, false)
	require.NoError(t, err)
	return track
}

func sortedPaths(sets []*TrackSet) [][]string {
	var out [][]string
	for _, ts := range sets {
		out = append(out, ts.Paths())
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
