package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Clips are standard RIFF/WAVE, PCM only. Slicing and concatenation work on the
// raw sample data; nothing here resamples or mixes.

var (
	ErrNotWAV        = errors.New("audio: not a RIFF/WAVE file")
	ErrNotPCM        = errors.New("audio: unsupported encoding, PCM required")
	ErrFormatMismatch = errors.New("audio: clip formats do not match")
)

type Format struct {
	Channels      uint16
	SampleRate    uint32
	BitsPerSample uint16
}

func (f Format) byteRate() int64 {
	return int64(f.SampleRate) * int64(f.Channels) * int64(f.BitsPerSample) / 8
}

func (f Format) frameSize() int64 {
	return int64(f.Channels) * int64(f.BitsPerSample) / 8
}

// Decode splits a WAV file into its format and raw PCM data. Chunks other than
// "fmt " and "data" (LIST, INFO, ...) are skipped.
func Decode(b []byte) (Format, []byte, error) {
	var f Format
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return f, nil, ErrNotWAV
	}

	var data []byte
	haveFmt := false
	off := 12
	for off+8 <= len(b) {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		if body+size > len(b) {
			size = len(b) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return f, nil, ErrNotWAV
			}
			audioFormat := binary.LittleEndian.Uint16(b[body : body+2])
			if audioFormat != 1 {
				return f, nil, ErrNotPCM
			}
			f.Channels = binary.LittleEndian.Uint16(b[body+2 : body+4])
			f.SampleRate = binary.LittleEndian.Uint32(b[body+4 : body+8])
			f.BitsPerSample = binary.LittleEndian.Uint16(b[body+14 : body+16])
			haveFmt = true
		case "data":
			data = b[body : body+size]
		}

		// chunks are word-aligned
		if size%2 == 1 {
			size++
		}
		off = body + size
	}

	if !haveFmt || data == nil {
		return f, nil, ErrNotWAV
	}
	// bit depths below 8 or not byte-aligned would give a zero frame size
	if f.Channels == 0 || f.SampleRate == 0 || f.BitsPerSample == 0 || f.BitsPerSample%8 != 0 {
		return f, nil, ErrNotPCM
	}
	return f, data, nil
}

// Encode builds a WAV file from raw PCM data.
func Encode(f Format, pcm []byte) []byte {
	byteRate := f.SampleRate * uint32(f.Channels) * uint32(f.BitsPerSample) / 8
	blockAlign := f.Channels * f.BitsPerSample / 8

	buf := &bytes.Buffer{}
	buf.Grow(44 + len(pcm))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, f.Channels)
	binary.Write(buf, binary.LittleEndian, f.SampleRate)
	binary.Write(buf, binary.LittleEndian, byteRate)
	binary.Write(buf, binary.LittleEndian, blockAlign)
	binary.Write(buf, binary.LittleEndian, f.BitsPerSample)
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// DurationMS returns the clip length in milliseconds.
func DurationMS(b []byte) (int64, error) {
	f, pcm, err := Decode(b)
	if err != nil {
		return 0, err
	}
	return int64(len(pcm)) * 1000 / f.byteRate(), nil
}

// Slice extracts [startMS, endMS) as a standalone WAV clip. Bounds are clamped
// to the clip length.
func Slice(b []byte, startMS, endMS int64) ([]byte, error) {
	f, pcm, err := Decode(b)
	if err != nil {
		return nil, err
	}
	if startMS < 0 {
		startMS = 0
	}
	if endMS < startMS {
		return nil, fmt.Errorf("audio: invalid range %d..%d", startMS, endMS)
	}

	// multiply before dividing so odd byte rates (22.05 kHz etc.) don't drift
	rate := f.byteRate()
	frame := f.frameSize()
	lo := (startMS * rate / 1000 / frame) * frame
	hi := (endMS * rate / 1000 / frame) * frame
	if lo > int64(len(pcm)) {
		lo = int64(len(pcm))
	}
	if hi > int64(len(pcm)) {
		hi = int64(len(pcm))
	}
	return Encode(f, pcm[lo:hi]), nil
}

// Concat joins clips back to back. All clips must share one format; segments
// from sequential diarization are disjoint, so plain concatenation is enough.
func Concat(clips ...[]byte) ([]byte, error) {
	if len(clips) == 0 {
		return nil, errors.New("audio: nothing to concat")
	}

	var f Format
	var pcm []byte
	for i, c := range clips {
		cf, cp, err := Decode(c)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			f = cf
		} else if cf != f {
			return nil, ErrFormatMismatch
		}
		pcm = append(pcm, cp...)
	}
	return Encode(f, pcm), nil
}
