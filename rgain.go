// Package rgain computes and persists ReplayGain loudness tags for music
// collections. Files are clustered into track sets, one per album or per
// directory of loose tracks, each set is analysed by an external backend,
// and the resulting gain and peak values are written back into the files'
// tags.
package rgain

import (
	"cmp"
	"context"
	"fmt"
	"iter"
	"maps"
	"slices"

	"go.senan.xyz/rgain/backend"
)

// Key identifies the track set a track belongs to. Two tracks are
// normalised together iff their keys are equal. Keys order
// lexicographically over their fields, directory first.
type Key struct {
	Dir     string
	Kind    string
	Album   string
	Artist  string
	AlbumID string
	Disc    string
}

func (k Key) Compare(o Key) int {
	return cmp.Or(
		cmp.Compare(k.Dir, o.Dir),
		cmp.Compare(k.Kind, o.Kind),
		cmp.Compare(k.Album, o.Album),
		cmp.Compare(k.Artist, o.Artist),
		cmp.Compare(k.AlbumID, o.AlbumID),
		cmp.Compare(k.Disc, o.Disc),
	)
}

// String renders the key for humans. Not guaranteed unique, unlike the key
// itself.
func (k Key) String() string {
	album := k.Album
	if album == "" {
		album = "[No album]"
	}
	s := album
	if k.Disc != "" {
		s += fmt.Sprintf(" Disc %s", k.Disc)
	}
	if k.Artist != "" {
		s += fmt.Sprintf(" by %s", k.Artist)
	}
	s += fmt.Sprintf(" in directory %s of type %s", k.Dir, k.Kind)
	return s
}

// MakeTrackSets clusters tracks into track sets, dropping tracks the
// backend can't analyse. Sets are emitted per directory run in ascending
// key order.
//
// Tracks from the same directory must arrive consecutively or they will
// land in separate sets. Holding only one directory at a time is what
// keeps memory bounded when streaming a huge collection.
func MakeTrackSets(tracks iter.Seq[*Track], computer backend.Computer, gainType GainType) iter.Seq2[*TrackSet, error] {
	return func(yield func(*TrackSet, error) bool) {
		var dir string
		var run []*Track

		flush := func() bool {
			if len(run) == 0 {
				return true
			}
			buckets := map[Key][]*Track{}
			for _, t := range run {
				k := t.Key()
				buckets[k] = append(buckets[k], t)
			}
			run = nil

			for _, k := range slices.SortedFunc(maps.Keys(buckets), Key.Compare) {
				ts, err := NewTrackSet(computer, gainType, buckets[k]...)
				if !yield(ts, err) {
					return false
				}
			}
			return true
		}

		for t := range tracks {
			if !computer.SupportsFile(t.Path()) {
				t.Close()
				continue
			}
			if t.Dir() != dir {
				if !flush() {
					return
				}
				dir = t.Dir()
			}
			run = append(run, t)
		}
		flush()
	}
}

// ProcessSet runs one track set's analysis, converting panics into errors
// so that a fault in one set cannot take down the rest of a batch.
func ProcessSet(ctx context.Context, ts *TrackSet, force bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic analysing track set: %v", r)
		}
	}()
	return ts.DoGain(ctx, force, "")
}
