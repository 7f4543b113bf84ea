package rgain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"go.senan.xyz/rgain/backend"
)

var (
	ErrEmptyTrackSet = errors.New("track set must contain at least one track")
	ErrKeyMismatch   = errors.New("all tracks in a set must share one key")
	ErrBadGainType   = errors.New(`gain type must be "album", "track", or "auto"`)
)

type GainType string

const (
	GainTypeAuto  GainType = "auto"
	GainTypeAlbum GainType = "album"
	GainTypeTrack GainType = "track"
)

func ParseGainType(s string) (GainType, error) {
	switch gt := GainType(s); gt {
	case GainTypeAuto, GainTypeAlbum, GainTypeTrack:
		return gt, nil
	}
	return "", fmt.Errorf("%w, got %q", ErrBadGainType, s)
}

// AlbumState describes what a track set's members collectively say about an
// album level tag.
type AlbumState uint8

const (
	// AlbumAbsent, no member carries the tag.
	AlbumAbsent AlbumState = iota
	// AlbumAgreed, every member carries the tag with the same value.
	AlbumAgreed
	// AlbumConflict, members disagree, or only some carry the tag.
	AlbumConflict
)

func (s AlbumState) String() string {
	switch s {
	case AlbumAbsent:
		return "absent"
	case AlbumAgreed:
		return "agreed"
	case AlbumConflict:
		return "conflict"
	}
	return "unknown"
}

// dropping one of these files into a directory forces track mode there
// when the gain type is auto.
var trackGainMarkers = []string{"TRACKGAIN", ".TRACKGAIN", "_TRACKGAIN"}

// TrackSet is a group of tracks sharing one grouping key, typically an
// album. It is built fresh for one analysis pass and discarded after being
// saved or skipped.
type TrackSet struct {
	tracks   map[string]*Track
	paths    []string
	key      Key
	length   time.Duration
	computer backend.Computer
	gainType GainType
}

func NewTrackSet(computer backend.Computer, gainType GainType, tracks ...*Track) (*TrackSet, error) {
	if len(tracks) == 0 {
		return nil, ErrEmptyTrackSet
	}
	if _, err := ParseGainType(string(gainType)); err != nil {
		return nil, err
	}

	ts := &TrackSet{
		tracks:   make(map[string]*Track, len(tracks)),
		key:      tracks[0].Key(),
		computer: computer,
		gainType: gainType,
	}
	for _, t := range tracks {
		if t.Key() != ts.key {
			return nil, fmt.Errorf("%w: %v / %v", ErrKeyMismatch, t.Key(), ts.key)
		}
		ts.tracks[t.Path()] = t
		ts.length += t.Length()
	}
	ts.paths = slices.Sorted(maps.Keys(ts.tracks))

	return ts, nil
}

func (ts *TrackSet) Paths() []string       { return ts.paths }
func (ts *TrackSet) NumTracks() int        { return len(ts.tracks) }
func (ts *TrackSet) Length() time.Duration { return ts.length }
func (ts *TrackSet) Dir() string           { return ts.key.Dir }
func (ts *TrackSet) Key() Key              { return ts.key }
func (ts *TrackSet) String() string        { return ts.key.String() }

func (ts *TrackSet) Close() {
	for _, t := range ts.tracks {
		t.Close()
	}
}

// WantAlbumGain reports whether this set should carry album gain tags.
// Single tracks and tracks without an album are never "real" albums. For
// the auto gain type, a marker file in the directory opts it out.
func (ts *TrackSet) WantAlbumGain() bool {
	if len(ts.tracks) <= 1 || ts.key.Album == "" {
		return false
	}
	switch ts.gainType {
	case GainTypeAlbum:
		return true
	case GainTypeTrack:
		return false
	}
	for _, marker := range trackGainMarkers {
		if _, err := os.Stat(filepath.Join(ts.key.Dir, marker)); err == nil {
			return false
		}
	}
	return true
}

func (ts *TrackSet) AlbumGain() (float64, AlbumState) {
	return ts.albumValue((*Track).AlbumGain)
}

func (ts *TrackSet) AlbumPeak() (float64, AlbumState) {
	return ts.albumValue((*Track).AlbumPeak)
}

// albumValue distills the members' values for one album level tag into the
// three way state. A present-but-unparsable tag counts the same as a
// missing one, which still surfaces as a conflict when other members carry
// a real value.
func (ts *TrackSet) albumValue(get func(*Track) (float64, bool)) (float64, AlbumState) {
	type value struct {
		v  float64
		ok bool
	}
	distinct := map[value]struct{}{}
	for _, t := range ts.tracks {
		v, ok := get(t)
		distinct[value{v, ok}] = struct{}{}
	}
	if len(distinct) > 1 {
		return 0, AlbumConflict
	}
	for d := range distinct {
		if d.ok {
			return d.v, AlbumAgreed
		}
	}
	return 0, AlbumAbsent
}

func (ts *TrackSet) SetAlbumGain(v float64) {
	for _, t := range ts.tracks {
		t.SetAlbumGain(v)
	}
}

func (ts *TrackSet) SetAlbumPeak(v float64) {
	for _, t := range ts.tracks {
		t.SetAlbumPeak(v)
	}
}

func (ts *TrackSet) DeleteAlbumGain() {
	for _, t := range ts.tracks {
		t.DeleteAlbumGain()
	}
}

func (ts *TrackSet) DeleteAlbumPeak() {
	for _, t := range ts.tracks {
		t.DeleteAlbumPeak()
	}
}

// HasValidRGData reports whether the set looks already analysed: every
// member has track data, and the album data is exactly what WantAlbumGain
// prescribes. Conflicting album values are never valid.
func (ts *TrackSet) HasValidRGData() bool {
	for _, t := range ts.tracks {
		if !t.HasValidRGData() {
			return false
		}
	}
	_, gainState := ts.AlbumGain()
	_, peakState := ts.AlbumPeak()
	if ts.WantAlbumGain() {
		return gainState == AlbumAgreed && peakState == AlbumAgreed
	}
	return gainState == AlbumAbsent && peakState == AlbumAbsent
}

// DoGain analyses the set and writes the resulting tags to every member.
// Sets that already carry valid data are skipped unless forced. A non
// empty gainType overrides the one given at construction.
func (ts *TrackSet) DoGain(ctx context.Context, force bool, gainType GainType) error {
	if gainType != "" {
		if _, err := ParseGainType(string(gainType)); err != nil {
			return err
		}
		ts.gainType = gainType
	}
	wantAlbum := ts.WantAlbumGain()

	if ts.HasValidRGData() {
		if !force {
			slog.Info("skipping previously analysed track set", "set", ts)
			return nil
		}
		slog.Info("forcing reanalysis of previously analysed track set", "set", ts)
	} else {
		slog.Info("analysing track set", "set", ts)
	}

	results, err := ts.computer.ComputeGain(ctx, ts.paths, wantAlbum)
	if err != nil {
		return fmt.Errorf("compute gain: %w", err)
	}

	for _, path := range ts.paths {
		r, ok := results[path]
		if !ok {
			return fmt.Errorf("backend reported no result for %q", path)
		}
		t := ts.tracks[path]
		t.SetGain(r.Track.GaindB)
		t.SetPeak(r.Track.Peak)
	}

	if wantAlbum {
		first := results[ts.paths[0]]
		if first.Album == nil {
			return fmt.Errorf("backend reported no album level for %q", ts)
		}
		ts.SetAlbumGain(first.Album.GaindB)
		ts.SetAlbumPeak(first.Album.Peak)
	} else {
		ts.DeleteAlbumGain()
		ts.DeleteAlbumPeak()
	}

	return ts.Save()
}

// Save reports then persists every member track.
func (ts *TrackSet) Save() error {
	ts.report()
	for _, path := range ts.paths {
		if err := ts.tracks[path].Save(true); err != nil {
			return fmt.Errorf("save %q: %w", path, err)
		}
	}
	return nil
}

func (ts *TrackSet) report() {
	for _, path := range ts.paths {
		t := ts.tracks[path]
		gain, _ := t.Gain()
		peak, _ := t.Peak()
		slog.Info("set track gain tags", "file", path, "gain_db", gain, "peak", peak)
	}
	if ts.WantAlbumGain() {
		gain, _ := ts.AlbumGain()
		peak, _ := ts.AlbumPeak()
		slog.Info("set album gain tags", "set", ts, "gain_db", gain, "peak", peak)
	} else {
		slog.Info("no album gain tags for track set", "set", ts)
	}
}
