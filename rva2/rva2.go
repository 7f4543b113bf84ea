// Package rva2 keeps the two ID3v2 loudness encodings in agreement.
//
// ID3v2 can carry ReplayGain data both as structured RVA2 frames and as
// free text TXXX frames. Taggers disagree about which one to honour, so
// after writing we propagate whatever the RVA2 frames say into the TXXX
// equivalents. The direction is one way only, RVA2 is never derived from
// the text frames.
package rva2

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2/v2"

	"go.senan.xyz/rgain/replaygain"
	"go.senan.xyz/rgain/tags"
)

// channel 1 is the "master volume" channel. adjustments for any other
// channel are ignored.
const channelMaster = 1

// Sync propagates RVA2 track/album adjustments to TXXX replaygain tags.
// Files without ID3v2 tags are left alone.
func Sync(path string) error {
	if strings.ToLower(filepath.Ext(path)) != ".mp3" {
		return nil
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return fmt.Errorf("open id3v2: %w", err)
	}
	defer tag.Close()

	var track, album *adjustment
	for _, frame := range tag.GetFrames("RVA2") {
		unknown, ok := frame.(id3v2.UnknownFrame)
		if !ok {
			continue
		}
		adj, err := decodeAdjustment(unknown.Body)
		if err != nil {
			return fmt.Errorf("decode rva2 frame: %w", err)
		}
		if adj.channel != channelMaster {
			continue
		}
		switch strings.ToLower(adj.identification) {
		case "track":
			track = adj
		case "album":
			album = adj
		}
	}
	if track == nil && album == nil {
		return nil
	}

	if track != nil {
		writeText(tag, tags.ReplayGainTrackGain, replaygain.FormatGain(track.gaindB))
		writeText(tag, tags.ReplayGainTrackPeak, replaygain.FormatPeak(track.peak))
	}
	if album != nil {
		writeText(tag, tags.ReplayGainAlbumGain, replaygain.FormatGain(album.gaindB))
		writeText(tag, tags.ReplayGainAlbumPeak, replaygain.FormatPeak(album.peak))
	}

	if err := tag.Save(); err != nil {
		return fmt.Errorf("save id3v2: %w", err)
	}
	return nil
}

func writeText(tag *id3v2.Tag, desc, value string) {
	tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
		Encoding:    id3v2.EncodingUTF8,
		Description: desc,
		Value:       value,
	})
}

type adjustment struct {
	identification string
	channel        uint8
	gaindB         float64
	peak           float64
}

// decodeAdjustment unpacks an RVA2 frame body per ID3v2.4:
//
//	identification       <text> $00
//	channel type         $xx
//	volume adjustment    $xx xx      (signed, 1/512 dB units)
//	bits representing peak $xx
//	peak volume          $xx (xx ...)
func decodeAdjustment(body []byte) (*adjustment, error) {
	ident, rest, ok := strings.Cut(string(body), "\x00")
	if !ok {
		return nil, fmt.Errorf("missing identification terminator")
	}
	if len(rest) < 4 {
		return nil, fmt.Errorf("frame body too short")
	}

	var adj adjustment
	adj.identification = ident
	adj.channel = rest[0]
	adj.gaindB = float64(int16(binary.BigEndian.Uint16([]byte(rest[1:3])))) / 512

	bits := int(rest[3])
	peakBytes := min(4, (bits+7)/8)
	if len(rest) < 4+peakBytes {
		return nil, fmt.Errorf("truncated peak volume")
	}
	var peak uint64
	for _, b := range []byte(rest[4 : 4+peakBytes]) {
		peak = peak<<8 | uint64(b)
	}
	// normalise to 32 bit full scale, whatever width was stored
	shift := (8-bits%8)%8 + (4-peakBytes)*8
	if bits > 0 {
		adj.peak = float64(peak<<shift) / float64(1<<31-1)
	}

	return &adj, nil
}
