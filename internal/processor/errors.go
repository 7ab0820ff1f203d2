package processor

import "fmt"

// Stage names the part of a pass that failed
type Stage string

const (
	StageCapture   Stage = "capture"
	StageAnalysis  Stage = "analysis"
	StageWriting   Stage = "writing"
	StageEncoding  Stage = "encoding"
	StageRendering Stage = "rendering"
)

// StageError reports a fatal pass failure with the stage and file involved.
// The wrapped error keeps its class (audio.ErrIO, audio.ErrFormat, ErrConfig).
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Path: path, Err: err}
}
