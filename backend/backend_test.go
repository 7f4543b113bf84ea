package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleOutput = "" +
	"Filename\tLoudness (LUFS)\tGain (dB)\tPeak\tPeak (dB)\tPeak Type\tClipping Adjustment?\n" +
	"/m/a/01.flac\t-13.51\t-6.00\t0.900000\t-0.92\tSample\tN\n" +
	"/m/a/02.flac\t-12.01\t-7.50\t0.800000\t-1.94\tSample\tN\n" +
	"Album\t-12.75\t-6.75\t0.900000\t-0.92\tSample\tN\n"

func TestParseOutput(t *testing.T) {
	t.Parallel()

	album, tracks, err := parseOutput(strings.NewReader(sampleOutput))
	require.NoError(t, err)

	require.NotNil(t, album)
	assert.InDelta(t, -6.75, album.level.GaindB, 0.001)
	assert.InDelta(t, 0.9, album.level.Peak, 0.001)

	require.Len(t, tracks, 2)
	assert.InDelta(t, -6.00, tracks["/m/a/01.flac"].level.GaindB, 0.001)
	assert.InDelta(t, 0.8, tracks["/m/a/02.flac"].level.Peak, 0.001)
	assert.InDelta(t, -13.51, tracks["/m/a/01.flac"].loudness, 0.001)
}

func TestParseOutputBadRow(t *testing.T) {
	t.Parallel()

	_, _, err := parseOutput(strings.NewReader("header\n/m/a.flac\tnope\n"))
	require.Error(t, err)
}

func TestCollect(t *testing.T) {
	t.Parallel()

	album, tracks, err := parseOutput(strings.NewReader(sampleOutput))
	require.NoError(t, err)

	paths := []string{"/m/a/01.flac", "/m/a/02.flac"}

	results, err := collect(paths, album, tracks, true)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.NotNil(t, results["/m/a/01.flac"].Album)
	assert.InDelta(t, -6.75, results["/m/a/01.flac"].Album.GaindB, 0.001)

	// album level must be reported when asked for
	_, err = collect(paths, nil, tracks, true)
	require.Error(t, err)

	// every requested path must be measured
	_, err = collect(append(paths, "/m/a/03.flac"), album, tracks, false)
	require.Error(t, err)

	results, err = collect(paths, album, tracks, false)
	require.NoError(t, err)
	assert.Nil(t, results["/m/a/01.flac"].Album)
}

func TestRegistry(t *testing.T) {
	_, err := New("does-not-exist", "")
	require.ErrorIs(t, err, ErrNotFound)

	c, err := New("null", "")
	require.NoError(t, err)
	assert.False(t, c.SupportsFile("/m/a.flac"))

	_, err = c.ComputeGain(context.Background(), []string{"/m/a.flac"}, false)
	require.Error(t, err)

	results, err := c.ComputeGain(context.Background(), nil, false)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestNewExecValidation(t *testing.T) {
	_, err := NewExec("")
	require.Error(t, err)

	_, err = NewExec("sh -c something")
	require.ErrorContains(t, err, markerFiles)

	b, err := NewExec("sh run.sh <album> <files>")
	require.NoError(t, err)
	assert.True(t, b.SupportsFile("/m/a.flac"))
	assert.False(t, b.SupportsFile("/m/cover.jpg"))
}

func TestAutoUnavailable(t *testing.T) {
	t.Setenv("RSGAIN_PATH", "")
	t.Setenv("PATH", t.TempDir())

	_, err := Auto()
	require.ErrorIs(t, err, ErrUnavailable)
}
