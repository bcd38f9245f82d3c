// Package etlerr defines the error kinds raised by the CDA ETL pipeline.
//
// Fatal kinds (InputFormatError, ReferentialAnomaly, StoreWriteError) abort the
// run. DateParseError is always recovered by the caller. Integrity exclusions
// (negative balances, orphaned bridge rows) are counted, never returned.
package etlerr

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// InputFormatError reports a missing column or an unparsable required field.
type InputFormatError struct {
	Dataset string
	Line    int // 1-based line in the source file, 0 when not row-specific
	Column  string
	Value   string
	Err     error
}

func (e *InputFormatError) Error() string {
	msg := fmt.Sprintf("input format: dataset %s", e.Dataset)
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	if e.Column != "" {
		msg += fmt.Sprintf(" column %q", e.Column)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" value %q", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InputFormatError) Unwrap() error {
	return e.Err
}

// ErrMissingColumn is the cause of every MissingColumn error.
var ErrMissingColumn = eris.New("missing column")

// MissingColumn builds an InputFormatError for a header without the column.
func MissingColumn(dataset, column string) *InputFormatError {
	return &InputFormatError{Dataset: dataset, Column: column, Err: ErrMissingColumn}
}

// DateParseError reports a date value that matched no accepted layout.
type DateParseError struct {
	Value string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("date parse: unrecognised value %q", e.Value)
}

// ReferentialAnomaly reports a foreign key with no canonicalization target.
type ReferentialAnomaly struct {
	Entity string
	Key    string
	Reason string
}

func (e *ReferentialAnomaly) Error() string {
	return fmt.Sprintf("referential anomaly: %s %s: %s", e.Entity, e.Key, e.Reason)
}

// StoreWriteError reports a persistence failure.
type StoreWriteError struct {
	Table string
	Err   error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write %s: %v", e.Table, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

// StageError tags a fatal error with the pipeline stage that raised it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// InStage wraps err as a StageError unless it is nil or already carries a stage.
func InStage(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// StageOf returns the stage name carried by err, or "" if none.
func StageOf(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// IsFatal reports whether err must abort the run. Everything except a bare
// DateParseError is fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var de *DateParseError
	return !errors.As(err, &de)
}
