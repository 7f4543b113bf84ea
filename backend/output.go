package backend

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"go.senan.xyz/rgain/replaygain"
)

// engines speaking the rsgain "custom --output" protocol emit one tab
// separated row per analysed file, plus a row named "Album" carrying the
// album level values when album mode was requested.
type column uint8

const (
	colFilename column = iota
	colLoudnessLUFS
	colGaindB
	colPeak
	colPeakdB
	colPeakType
	colClippingAdjustment
	numColumns
)

type measurement struct {
	level    replaygain.Level
	loudness float64
}

// parseOutput reads the TSV protocol from r. Rows are keyed by their
// filename column, the album row (if any) is returned separately.
func parseOutput(r io.Reader) (album *measurement, tracks map[string]measurement, err error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.ReuseRecord = true

	if _, err := reader.Read(); err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	tracks = map[string]measurement{}
	for {
		columns, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read line: %w", err)
		}
		if len(columns) != int(numColumns) {
			return nil, nil, fmt.Errorf("num columns mismatch %d / %d", len(columns), numColumns)
		}

		var m measurement
		if m.level.GaindB, err = strconv.ParseFloat(columns[colGaindB], 64); err != nil {
			return nil, nil, fmt.Errorf("read gain dB: %w", err)
		}
		if m.level.Peak, err = strconv.ParseFloat(columns[colPeak], 64); err != nil {
			return nil, nil, fmt.Errorf("read peak: %w", err)
		}
		if m.loudness, err = strconv.ParseFloat(columns[colLoudnessLUFS], 64); err != nil {
			return nil, nil, fmt.Errorf("read loudness: %w", err)
		}

		switch name := columns[colFilename]; name {
		case "Album":
			m := m
			album = &m
		default:
			tracks[name] = m
		}
	}

	return album, tracks, nil
}

// collect pairs parsed rows back up with the requested paths, attaching the
// shared album level to every entry when album mode was requested.
func collect(paths []string, album *measurement, tracks map[string]measurement, wantAlbum bool) (map[string]Result, error) {
	if wantAlbum && album == nil {
		return nil, fmt.Errorf("album level requested but not reported")
	}

	results := make(map[string]Result, len(paths))
	for _, path := range paths {
		m, ok := tracks[path]
		if !ok {
			return nil, fmt.Errorf("no measurement reported for %q", path)
		}
		r := Result{Track: m.level, LoudnessLUFS: m.loudness}
		if wantAlbum {
			r.Album = &album.level
		}
		results[path] = r
	}
	return results, nil
}
