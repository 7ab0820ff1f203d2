package encoder

import (
	"fmt"
	"io"
	"math"

	"github.com/linuxmatters/squelch/internal/audio"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// DefaultFLACBlockSize is the number of samples per FLAC frame
const DefaultFLACBlockSize = 4096

// FLACEncoder writes a lossless mono FLAC copy using mewkiz/flac.
// FLAC carries the capture's native rate, so no resampling is needed.
type FLACEncoder struct {
	BlockSize int
}

// Extension returns the file extension of encoded output
func (e *FLACEncoder) Extension() string {
	return ".flac"
}

// Encode streams wavPath into a FLAC file at outPath
func (e *FLACEncoder) Encode(wavPath, outPath string) error {
	blockSize := e.BlockSize
	if blockSize <= 0 || blockSize > math.MaxUint16 {
		blockSize = DefaultFLACBlockSize
	}

	tmp, err := audio.CreateTemp(outPath)
	if err != nil {
		return err
	}
	fail := func(err error) error {
		tmp.Close()
		removeTemp(tmp)
		return err
	}

	var (
		enc        *flac.Encoder
		sampleRate int
		bitDepth   int
		scale      float64
		pending    []int32
		frameNum   uint64
	)

	writeBlock := func(block []int32) error {
		subframe := &frame.Subframe{
			SubHeader: frame.SubHeader{
				Pred: frame.PredVerbatim,
			},
			Samples:  block,
			NSamples: len(block),
		}
		f := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(len(block)),
				SampleRate:        uint32(sampleRate),
				Channels:          frame.ChannelsMono,
				BitsPerSample:     uint8(bitDepth),
				Num:               frameNum,
			},
			Subframes: []*frame.Subframe{subframe},
		}
		if err := enc.WriteFrame(f); err != nil {
			return fmt.Errorf("%w: writing flac frame: %v", audio.ErrIO, err)
		}
		frameNum++
		return nil
	}

	_, err = streamWAV(wavPath, func(m *audio.Metadata) error {
		sampleRate = m.SampleRate
		bitDepth = m.BitDepth
		if bitDepth != 16 && bitDepth != 24 {
			return fmt.Errorf("%w: flac output supports 16 or 24-bit sources, got %d-bit", audio.ErrFormat, bitDepth)
		}
		scale = float64(int64(1) << uint(bitDepth-1))

		info := &meta.StreamInfo{
			BlockSizeMin:  uint16(blockSize),
			BlockSizeMax:  uint16(blockSize),
			SampleRate:    uint32(sampleRate),
			NChannels:     1,
			BitsPerSample: uint8(bitDepth),
			NSamples:      0,
		}
		var err error
		// Seekable so Close can patch the stream info, but not closable:
		// CommitTemp owns closing the file
		enc, err = flac.NewEncoder(struct{ io.WriteSeeker }{tmp}, info)
		if err != nil {
			return fmt.Errorf("creating flac encoder: %w", err)
		}
		return nil
	}, func(samples []float32) error {
		for _, s := range samples {
			v := math.Round(float64(s) * scale)
			if v > scale-1 {
				v = scale - 1
			} else if v < -scale {
				v = -scale
			}
			pending = append(pending, int32(v))
		}
		for len(pending) >= blockSize {
			block := append([]int32(nil), pending[:blockSize]...)
			if err := writeBlock(block); err != nil {
				return err
			}
			pending = append(pending[:0], pending[blockSize:]...)
		}
		return nil
	})
	if err != nil {
		return fail(err)
	}

	if len(pending) > 0 {
		if err := writeBlock(pending); err != nil {
			return fail(err)
		}
	}
	if err := enc.Close(); err != nil {
		return fail(fmt.Errorf("%w: closing flac stream: %v", audio.ErrIO, err))
	}

	return audio.CommitTemp(tmp, outPath)
}
