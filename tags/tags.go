// Package tags reads and writes audio file tags with taglib, normalising
// known tag variants to canonical lower case keys.
package tags

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/sentriz/audiotags"
)

var ErrWrite = errors.New("error writing tags")

// https://picard-docs.musicbrainz.org/downloads/MusicBrainz_Picard_Tag_Map.html
const (
	Album           = "album"
	AlbumSort       = "albumsort"
	AlbumArtist     = "albumartist" //tag: alts "album_artist"
	AlbumArtistSort = "albumartistsort"
	Artist          = "artist"
	ArtistSort      = "artistsort"
	Title           = "title"
	TrackNumber     = "tracknumber" //tag: alts "track" "trackc"
	DiscNumber      = "discnumber"
	LabelID         = "labelid"
	AlbumGrouping   = "album_grouping_key"

	MBReleaseID = "musicbrainz_albumid"

	ReplayGainTrackGain         = "replaygain_track_gain"
	ReplayGainTrackPeak         = "replaygain_track_peak"
	ReplayGainAlbumGain         = "replaygain_album_gain"
	ReplayGainAlbumPeak         = "replaygain_album_peak"
	ReplayGainReferenceLoudness = "replaygain_reference_loudness"
)

// ReplayGainTags are the canonical names under which loudness data is stored.
var ReplayGainTags = []string{
	ReplayGainTrackGain,
	ReplayGainTrackPeak,
	ReplayGainAlbumGain,
	ReplayGainAlbumPeak,
	ReplayGainReferenceLoudness,
}

var alternatives = map[string]string{
	"album_artist": AlbumArtist,
	"track":        TrackNumber,
	"trackc":       TrackNumber,
}

func CanRead(absPath string) bool {
	switch ext := strings.ToLower(filepath.Ext(absPath)); ext {
	case ".mp3", ".flac", ".aac", ".m4a", ".m4b", ".ogg", ".oga", ".opus", ".wma", ".wav", ".wv":
		return true
	}
	return false
}

// FileKind identifies the tag container family for a path. Tracks of
// different kinds are never grouped together even when they share a
// directory and album tags.
func FileKind(absPath string) string {
	switch ext := strings.ToLower(filepath.Ext(absPath)); ext {
	case ".mp3":
		return "mp3"
	case ".flac":
		return "flac"
	case ".aac", ".m4a", ".m4b":
		return "mp4"
	case ".ogg", ".oga":
		return "vorbis"
	case ".opus":
		return "opus"
	case ".wma":
		return "asf"
	case ".wav":
		return "wav"
	case ".wv":
		return "wavpack"
	default:
		return strings.TrimPrefix(ext, ".")
	}
}

type File struct {
	raw        map[string][]string
	properties *audiotags.AudioProperties
	file       *audiotags.File
	path       string
}

func Read(path string) (*File, error) {
	f, err := audiotags.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	raw := f.ReadTags()
	normalise(raw, alternatives)

	return &File{raw: raw, file: f, path: path}, nil
}

func (f *File) Read(t string) string        { return first(f.raw[t]) }
func (f *File) ReadMulti(t string) []string { return f.raw[t] }

func (f *File) Keys() []string {
	keys := make([]string, 0, len(f.raw))
	for k := range f.raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (f *File) ReadAll(fn func(k string, vs []string) bool) {
	for _, k := range f.Keys() {
		if !fn(k, f.raw[k]) {
			break
		}
	}
}

func (f *File) Write(t string, v ...string) {
	v = deleteZero(v)
	if len(v) == 0 {
		delete(f.raw, t)
		return
	}
	f.raw[t] = v
}

func (f *File) Clear(t string) { delete(f.raw, t) }

func (f *File) Length() time.Duration {
	if f.properties == nil {
		f.properties = f.file.ReadAudioProperties()
	}
	return time.Duration(f.properties.LengthMs) * time.Millisecond
}

func (f *File) Save() error {
	if !f.file.WriteTags(f.raw) {
		return ErrWrite
	}
	return nil
}

func (f *File) Close() {
	f.file.Close()
}

func (f *File) Path() string {
	return f.path
}

func first(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

func normalise(raw map[string][]string, alternatives map[string]string) {
	for kbad, kgood := range alternatives {
		if _, ok := raw[kgood]; ok {
			continue
		}
		if v, ok := raw[kbad]; ok {
			raw[kgood] = v
			delete(raw, kbad)
			continue
		}
	}
}

func deleteZero[T comparable](elms []T) []T {
	var zero T
	return slices.DeleteFunc(elms, func(t T) bool { return t == zero })
}
