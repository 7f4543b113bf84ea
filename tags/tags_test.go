package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanRead(t *testing.T) {
	t.Parallel()

	assert.True(t, CanRead("/m/a/01.flac"))
	assert.True(t, CanRead("/m/a/01.FLAC"))
	assert.True(t, CanRead("/m/a/01.opus"))
	assert.False(t, CanRead("/m/a/cover.jpg"))
	assert.False(t, CanRead("/m/a/notes.txt"))
}

func TestFileKind(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "flac", FileKind("/m/a/01.flac"))
	assert.Equal(t, "mp3", FileKind("/m/a/01.MP3"))
	assert.Equal(t, "mp4", FileKind("/m/a/01.m4a"))
	assert.Equal(t, "mp4", FileKind("/m/a/01.m4b"))
	assert.Equal(t, "vorbis", FileKind("/m/a/01.oga"))
	assert.Equal(t, "tak", FileKind("/m/a/01.tak"))
}

func TestNormalise(t *testing.T) {
	t.Parallel()

	raw := map[string][]string{
		"album_artist": {"Band"},
		"track":        {"4"},
		"album":        {"A"},
	}
	normalise(raw, alternatives)

	assert.Equal(t, map[string][]string{
		AlbumArtist: {"Band"},
		TrackNumber: {"4"},
		Album:       {"A"},
	}, raw)

	// canonical keys win over their alternatives
	raw = map[string][]string{
		AlbumArtist:    {"Canonical"},
		"album_artist": {"Alternative"},
	}
	normalise(raw, alternatives)
	assert.Equal(t, []string{"Canonical"}, raw[AlbumArtist])
}
