package processor

import (
	"path/filepath"
	"strings"
)

// FilteredPath derives the filtered output path from a capture path:
// the last occurrence of the capture suffix in the stem is replaced by the
// filtered suffix, or the filtered suffix is appended when absent.
// The output keeps the capture's directory and a .wav extension.
//
//	library/20240101_060000_sound.wav -> library/20240101_060000_filtered.wav
//	library/night.wav                 -> library/night_filtered.wav
func FilteredPath(inputPath string, cfg *FilterConfig) string {
	dir := filepath.Dir(inputPath)
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))

	if cfg.CaptureSuffix != "" {
		if i := strings.LastIndex(stem, cfg.CaptureSuffix); i >= 0 {
			stem = stem[:i] + cfg.FilteredSuffix + stem[i+len(cfg.CaptureSuffix):]
			return filepath.Join(dir, stem+".wav")
		}
	}
	return filepath.Join(dir, stem+cfg.FilteredSuffix+".wav")
}

// CompressedPath swaps the extension of a filtered WAV path for ext
func CompressedPath(wavPath, ext string) string {
	return strings.TrimSuffix(wavPath, filepath.Ext(wavPath)) + ext
}

// PlotPath returns <input stem><plot suffix>.jpg beside the input
func PlotPath(inputPath string, cfg *FilterConfig) string {
	return strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + cfg.PlotSuffix + ".jpg"
}

// ReportPath returns the text report path for a filtered output
func ReportPath(outputPath string) string {
	return strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + "-analysis.txt"
}
