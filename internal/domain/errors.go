package domain

import "fmt"

// AssemblyError описывает сбой конкретного этапа сборки медиа
// (manifest, download, frame, merge, transcode, size_check).
type AssemblyError struct {
	Stage string
	Err   error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("сборка медиа: этап %s: %v", e.Stage, e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// NewAssemblyError оборачивает ошибку этапа сборки.
func NewAssemblyError(stage string, err error) *AssemblyError {
	return &AssemblyError{Stage: stage, Err: err}
}
