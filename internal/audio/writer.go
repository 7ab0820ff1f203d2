package audio

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Writer streams mono PCM samples into a temporary WAV file next to the
// destination and renames it into place on Commit. A file at the destination
// path is never partially written.
type Writer struct {
	path       string
	tmpPath    string
	file       *os.File
	encoder    *wav.Encoder
	buf        *goaudio.IntBuffer
	scale      float64
	sampleRate int
	bitDepth   int

	samplesWritten int64
	done           bool
}

// CreateWriter prepares a WAV writer for path at the given sample rate and bit depth
func CreateWriter(path string, sampleRate, bitDepth int) (*Writer, error) {
	switch bitDepth {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: unsupported output bit depth %d", ErrFormat, bitDepth)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: invalid output sample rate %d", ErrFormat, sampleRate)
	}

	tmp, err := CreateTemp(path)
	if err != nil {
		return nil, err
	}

	return &Writer{
		path:       path,
		tmpPath:    tmp.Name(),
		file:       tmp,
		encoder:    wav.NewEncoder(tmp, sampleRate, bitDepth, 1, wavFormatPCM),
		buf:        &goaudio.IntBuffer{Format: &goaudio.Format{NumChannels: 1, SampleRate: sampleRate}, SourceBitDepth: bitDepth},
		scale:      fullScale(bitDepth),
		sampleRate: sampleRate,
		bitDepth:   bitDepth,
	}, nil
}

// WriteSamples appends normalised samples to the output
func (w *Writer) WriteSamples(samples []float32) error {
	if w.done {
		return fmt.Errorf("%w: write to closed writer for %s", ErrIO, w.path)
	}
	if len(samples) == 0 {
		return nil
	}

	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, s := range samples {
		w.buf.Data[i] = quantize(s, w.scale)
	}

	if err := w.encoder.Write(w.buf); err != nil {
		return fmt.Errorf("%w: failed to write samples to %s: %v", ErrIO, w.tmpPath, err)
	}
	w.samplesWritten += int64(len(samples))
	return nil
}

// SamplesWritten returns the number of samples accepted so far
func (w *Writer) SamplesWritten() int64 {
	return w.samplesWritten
}

// Path returns the final destination path
func (w *Writer) Path() string {
	return w.path
}

// Commit finalises the WAV header and atomically moves the file into place.
// Safe to call multiple times - subsequent calls are no-ops.
func (w *Writer) Commit() error {
	if w.done {
		return nil
	}
	w.done = true

	// The encoder only emits its header on the first write
	if w.samplesWritten == 0 {
		w.buf.Data = w.buf.Data[:0]
		if err := w.encoder.Write(w.buf); err != nil {
			w.file.Close()
			os.Remove(w.tmpPath)
			return fmt.Errorf("%w: failed to write WAV header: %v", ErrIO, err)
		}
	}

	if err := w.encoder.Close(); err != nil {
		w.file.Close()
		os.Remove(w.tmpPath)
		return fmt.Errorf("%w: failed to finalise WAV header: %v", ErrIO, err)
	}
	return CommitTemp(w.file, w.path)
}

// Abort discards everything written so far.
// Safe to call after Commit - it is a no-op then.
func (w *Writer) Abort() {
	if w.done {
		return
	}
	w.done = true
	w.file.Close()
	os.Remove(w.tmpPath)
}

// CreateTemp creates a hidden temporary file in the directory of path.
// Keeping it on the same filesystem makes the final rename atomic.
func CreateTemp(path string) (*os.File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: failed to create output directory %s: %v", ErrIO, dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create temporary file for %s: %v", ErrIO, path, err)
	}
	return tmp, nil
}

// CommitTemp flushes and closes tmp, then renames it over path.
// The temporary is removed if any step fails.
func CommitTemp(tmp *os.File, path string) error {
	tmpPath := tmp.Name()
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to sync %s: %v", ErrIO, tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to close %s: %v", ErrIO, tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to set permissions on %s: %v", ErrIO, tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to move output into place at %s: %v", ErrIO, path, err)
	}
	return nil
}

// quantize converts a normalised sample to integer PCM, rounding to nearest and clipping
func quantize(s float32, scale float64) int {
	v := math.Round(float64(s) * scale)
	if v > scale-1 {
		v = scale - 1
	} else if v < -scale {
		v = -scale
	}
	return int(v)
}
