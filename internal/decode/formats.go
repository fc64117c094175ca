// SPDX-License-Identifier: MIT
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

const readChunk = 8192

// WAV decodes RIFF/WAVE integer PCM.
type WAV struct{}

func (WAV) Decode(r io.ReadSeeker) (*Audio, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a wav file", ErrUnsupportedFormat)
	}
	// 1 is integer PCM, 0xFFFE the extensible header used for >16 bit files.
	if dec.WavAudioFormat != 1 && dec.WavAudioFormat != 0xFFFE {
		return nil, fmt.Errorf("%w: wav audio format %d", ErrUnsupportedFormat, dec.WavAudioFormat)
	}
	bitDepth := int(dec.BitDepth)
	scale := fullScale(bitDepth)
	if scale == 0 || dec.NumChans == 0 {
		return nil, fmt.Errorf("%w: %d-bit wav with %d channels", ErrUnsupportedFormat, bitDepth, dec.NumChans)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading wav data: %w", err)
	}

	// 8-bit wav samples are unsigned.
	var offset float32
	if bitDepth == 8 {
		offset = 128
	}
	return &Audio{
		Channels:   deinterleaveInts(buf.Data, int(dec.NumChans), offset, scale),
		SampleRate: int(dec.SampleRate),
	}, nil
}

// aiffReader is the subset of aiff.Decoder used here.
type aiffReader interface {
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// AIFF decodes AIFF integer PCM.
type AIFF struct{}

func (AIFF) Decode(r io.ReadSeeker) (*Audio, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not an aiff file", ErrUnsupportedFormat)
	}
	dec.ReadInfo()

	bitDepth := int(dec.BitDepth)
	scale := fullScale(bitDepth)
	format := dec.Format()
	if scale == 0 || format == nil || format.NumChannels == 0 {
		return nil, fmt.Errorf("%w: %d-bit aiff", ErrUnsupportedFormat, bitDepth)
	}

	samples, err := readAllInts(dec, format)
	if err != nil {
		return nil, fmt.Errorf("reading aiff data: %w", err)
	}
	return &Audio{
		Channels:   deinterleaveInts(samples, format.NumChannels, 0, scale),
		SampleRate: format.SampleRate,
	}, nil
}

func readAllInts(dec aiffReader, format *goaudio.Format) ([]int, error) {
	buf := &goaudio.IntBuffer{
		Format: format,
		Data:   make([]int, readChunk*format.NumChannels),
	}
	var all []int
	for {
		n, err := dec.PCMBuffer(buf)
		all = append(all, buf.Data[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return all, nil
			}
			return nil, err
		}
		if n == 0 {
			return all, nil
		}
	}
}

// MP3 decodes MPEG-1/2 layer III. go-mp3 always produces 16-bit stereo.
type MP3 struct{}

func (MP3) Decode(r io.ReadSeeker) (*Audio, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}

	var samples []float32
	buf := make([]byte, readChunk*4)
	for {
		n, err := dec.Read(buf)
		// Each sample is 2 bytes (int16 little-endian).
		for i := 0; i+1 < n; i += 2 {
			v := int16(uint16(buf[i]) | uint16(buf[i+1])<<8)
			samples = append(samples, float32(v)/32768.0)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading mp3 data: %w", err)
		}
	}

	return &Audio{
		Channels:   deinterleave(samples, 2),
		SampleRate: dec.SampleRate(),
	}, nil
}

// Vorbis decodes Ogg Vorbis.
type Vorbis struct{}

func (Vorbis) Decode(r io.ReadSeeker) (*Audio, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	channels := dec.Channels()
	if channels == 0 {
		return nil, fmt.Errorf("%w: vorbis stream without channels", ErrUnsupportedFormat)
	}

	var samples []float32
	// Read returns values (frames * channels) and always whole frames.
	buf := make([]float32, readChunk*channels)
	for {
		n, err := dec.Read(buf)
		samples = append(samples, buf[:n]...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading vorbis data: %w", err)
		}
	}

	return &Audio{
		Channels:   deinterleave(samples, channels),
		SampleRate: dec.SampleRate(),
	}, nil
}
