package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies pipeline failures.
type ErrorKind string

const (
	KindNetwork         ErrorKind = "network"
	KindFormat          ErrorKind = "format"
	KindIO              ErrorKind = "io"
	KindMetadataCorrupt ErrorKind = "metadata_corrupt"
)

// Sentinels matched with errors.Is against a PipelineError of the same kind.
var (
	ErrNetwork         = errors.New("network error")
	ErrFormat          = errors.New("format error")
	ErrIO              = errors.New("io error")
	ErrMetadataCorrupt = errors.New("run metadata corrupt")
)

// PipelineError carries the kind of a failure and where it happened.
type PipelineError struct {
	Kind      ErrorKind
	DatasetID string
	Op        string
	Err       error
}

func (e *PipelineError) Error() string {
	if e.DatasetID != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Op, e.DatasetID, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrFormat) match any format PipelineError.
func (e *PipelineError) Is(target error) bool {
	return sentinelFor(e.Kind) == target
}

func sentinelFor(kind ErrorKind) error {
	switch kind {
	case KindNetwork:
		return ErrNetwork
	case KindFormat:
		return ErrFormat
	case KindIO:
		return ErrIO
	case KindMetadataCorrupt:
		return ErrMetadataCorrupt
	default:
		return nil
	}
}

// Error wrapping functions with context
func NetworkError(op, datasetID string, err error) error {
	return &PipelineError{Kind: KindNetwork, Op: op, DatasetID: datasetID, Err: err}
}

func FormatError(op, datasetID string, err error) error {
	return &PipelineError{Kind: KindFormat, Op: op, DatasetID: datasetID, Err: err}
}

func IOError(op, datasetID string, err error) error {
	return &PipelineError{Kind: KindIO, Op: op, DatasetID: datasetID, Err: err}
}

func MetadataCorruptError(op string, err error) error {
	return &PipelineError{Kind: KindMetadataCorrupt, Op: op, Err: err}
}

// KindOf returns the kind of the first PipelineError in err's chain, or "unknown".
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return "unknown"
}
