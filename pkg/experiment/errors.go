package experiment

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies trial failures. Every kind is fatal to the single trial it
// occurs in and never unwinds past the scheduler.
type Kind string

const (
	// ConfigurationError marks an invalid profile or interface, or a failure
	// to apply emulation state. Not retried: partial emulation state would
	// corrupt subsequent trials on the shared interface.
	ConfigurationError Kind = "configuration error"
	// ToolUnavailable marks an absent scheme whose single install attempt
	// failed, or a traffic generator that could not be brought up.
	ToolUnavailable Kind = "tool unavailable"
	// CaptureTimeout marks a generator exceeding the trial timeout. The
	// capture is forcibly terminated; teardown still runs.
	CaptureTimeout Kind = "capture timeout"
	// DataFormatError marks raw output missing expected fields. The trial is
	// marked failed and a zero-substituted record is stored so downstream
	// aggregation never crashes.
	DataFormatError Kind = "data format error"
	// StoreError marks a persistence failure. The batch continues for other
	// keys.
	StoreError Kind = "store error"
)

// TrialError is a classified trial failure.
type TrialError struct {
	Kind  Kind
	cause error
}

func newTrialError(kind Kind, cause error) *TrialError {
	return &TrialError{Kind: kind, cause: cause}
}

func (e *TrialError) Error() string {
	if e.cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.cause)
}

func (e *TrialError) Unwrap() error {
	return e.cause
}

// KindOf returns the failure kind carried by the error, or false for
// unclassified errors.
func KindOf(err error) (Kind, bool) {
	var trialError *TrialError
	if errors.As(err, &trialError) {
		return trialError.Kind, true
	}
	return "", false
}
