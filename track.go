package rgain

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"go.senan.xyz/rgain/replaygain"
	"go.senan.xyz/rgain/rva2"
	"go.senan.xyz/rgain/tags"
)

// TagStore is one file's tag storage. *tags.File implements it, tests use
// an in memory fake.
type TagStore interface {
	Read(t string) string
	Write(t string, v ...string)
	Clear(t string)
	Keys() []string
	Save() error
	Close()
	Length() time.Duration
}

// Opener opens the tag storage for a path. Tracks re-open their storage
// after a tag cleanup to pick up the cleaned on disk state.
type Opener func(path string) (TagStore, error)

func tagsOpener(path string) (TagStore, error) {
	return tags.Read(path)
}

// Track is one audio file along with its loudness tags.
type Track struct {
	path   string
	dir    string
	open   Opener
	store  TagStore
	dryRun bool
}

// NewTrack opens the tag storage for path. A nil opener means taglib. A
// dry run track reads normally but never modifies the file.
func NewTrack(path string, open Opener, dryRun bool) (*Track, error) {
	if open == nil {
		open = tagsOpener
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	store, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("open tags: %w", err)
	}
	return &Track{
		path:   path,
		dir:    filepath.Dir(path),
		open:   open,
		store:  store,
		dryRun: dryRun,
	}, nil
}

func (t *Track) Path() string          { return t.path }
func (t *Track) Dir() string           { return t.dir }
func (t *Track) Length() time.Duration { return t.store.Length() }
func (t *Track) Close()                { t.store.Close() }

func (t *Track) Gain() (float64, bool)      { return t.readGain(tags.ReplayGainTrackGain) }
func (t *Track) Peak() (float64, bool)      { return t.readPeak(tags.ReplayGainTrackPeak) }
func (t *Track) AlbumGain() (float64, bool) { return t.readGain(tags.ReplayGainAlbumGain) }
func (t *Track) AlbumPeak() (float64, bool) { return t.readPeak(tags.ReplayGainAlbumPeak) }

func (t *Track) SetGain(v float64)      { t.store.Write(tags.ReplayGainTrackGain, replaygain.FormatGain(v)) }
func (t *Track) SetPeak(v float64)      { t.store.Write(tags.ReplayGainTrackPeak, replaygain.FormatPeak(v)) }
func (t *Track) SetAlbumGain(v float64) { t.store.Write(tags.ReplayGainAlbumGain, replaygain.FormatGain(v)) }
func (t *Track) SetAlbumPeak(v float64) { t.store.Write(tags.ReplayGainAlbumPeak, replaygain.FormatPeak(v)) }

func (t *Track) DeleteGain()      { t.store.Clear(tags.ReplayGainTrackGain) }
func (t *Track) DeletePeak()      { t.store.Clear(tags.ReplayGainTrackPeak) }
func (t *Track) DeleteAlbumGain() { t.store.Clear(tags.ReplayGainAlbumGain) }
func (t *Track) DeleteAlbumPeak() { t.store.Clear(tags.ReplayGainAlbumPeak) }

// missing or unparsable tags both read as absent, legacy files store all
// sorts of junk.
func (t *Track) readGain(key string) (float64, bool) {
	s := t.store.Read(key)
	if s == "" {
		return 0, false
	}
	v, err := replaygain.ParseGain(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (t *Track) readPeak(key string) (float64, bool) {
	s := t.store.Read(key)
	if s == "" {
		return 0, false
	}
	v, err := replaygain.ParsePeak(s)
	if err != nil {
		return 0, false
	}
	return v, true
}

// HasValidRGData reports whether the track has both gain and peak tags.
// The values are not checked for accuracy, only presence. Album level data
// is the enclosing track set's concern.
func (t *Track) HasValidRGData() bool {
	_, gok := t.Gain()
	_, pok := t.Peak()
	return gok && pok
}

// Key derives the grouping key identifying the track's "album": the set of
// tracks whose volume should be normalised together.
func (t *Track) Key() Key {
	return Key{
		Dir:     t.dir,
		Kind:    tags.FileKind(t.path),
		Album:   t.probe(tags.AlbumSort, tags.Album),
		Artist:  t.probe(tags.AlbumArtistSort, tags.AlbumArtist, tags.ArtistSort, tags.Artist),
		AlbumID: t.probe(tags.AlbumGrouping, tags.LabelID, tags.MBReleaseID),
		Disc:    t.store.Read(tags.DiscNumber),
	}
}

func (t *Track) probe(keys ...string) string {
	for _, k := range keys {
		if v := t.store.Read(k); v != "" {
			return v
		}
	}
	return ""
}

// cleanupKeys holds every known spelling, current and historical, that
// could carry ReplayGain data. Matched case insensitively.
var cleanupKeys = func() map[string]struct{} {
	keys := map[string]struct{}{
		"rva2:track": {},
		"rva2:album": {},
		// a very old release wrote these misspelt names, clean them up too
		"replaypeak_track_peak": {},
		"replaypeak_album_peak": {},
	}
	for _, tag := range tags.ReplayGainTags {
		keys[tag] = struct{}{}
		keys["quodlibet::"+tag] = struct{}{}
		keys["txxx:"+tag] = struct{}{}
	}
	return keys
}()

// CleanupTags deletes every known ReplayGain tag spelling from the on disk
// state and persists. The file is re-read first, so unsaved edits of any
// kind are discarded rather than smuggled onto disk alongside the cleanup.
// Writing fresh values without this step could leave a stale duplicate
// behind with a conflicting value.
func (t *Track) CleanupTags() error {
	if t.dryRun {
		return nil
	}

	t.store.Close()
	store, err := t.open(t.path)
	if err != nil {
		return fmt.Errorf("reload tags: %w", err)
	}
	t.store = store

	for _, k := range t.store.Keys() {
		if _, ok := cleanupKeys[strings.ToLower(k)]; ok {
			slog.Debug("deleting tag", "file", t.path, "tag", k)
			t.store.Clear(k)
		}
	}
	if err := t.store.Save(); err != nil {
		return fmt.Errorf("save cleaned tags: %w", err)
	}
	return nil
}

// Save persists the track's ReplayGain values. With cleanup, the four
// values are snapshotted, every historical spelling is wiped from disk
// first, and the values are written back onto the cleaned state. The ID3v2
// dual encoding sync runs after the write.
func (t *Track) Save(cleanup bool) error {
	if t.dryRun {
		return nil
	}

	if cleanup {
		gain, gok := t.Gain()
		peak, pok := t.Peak()
		albumGain, agok := t.AlbumGain()
		albumPeak, apok := t.AlbumPeak()

		if err := t.CleanupTags(); err != nil {
			return err
		}

		if gok {
			t.SetGain(gain)
		}
		if pok {
			t.SetPeak(peak)
		}
		if agok {
			t.SetAlbumGain(albumGain)
		}
		if apok {
			t.SetAlbumPeak(albumPeak)
		}
	}

	if err := t.store.Save(); err != nil {
		return fmt.Errorf("save tags: %w", err)
	}
	if err := rva2.Sync(t.path); err != nil {
		return fmt.Errorf("sync id3 encodings: %w", err)
	}
	return nil
}
