// Package process defines the sink for status, progress, errors and
// warnings produced during a comparison run.
package process

import (
	"context"
	"errors"
	"sync"
)

// Phase identifies the unit of subsequent progress reports
type Phase int

const (
	PhaseNone Phase = iota
	PhaseScanning
	PhaseComparingContent
)

func (p Phase) String() string {
	switch p {
	case PhaseScanning:
		return "scanning"
	case PhaseComparingContent:
		return "comparing_content"
	default:
		return "none"
	}
}

// Response is the caller's decision after an error report
type Response int

const (
	// ResponseIgnore skips the failing operation
	ResponseIgnore Response = iota
	// ResponseRetry re-attempts the failing operation
	ResponseRetry
)

// UnknownTotal signals an object total that grows while the phase runs
const UnknownTotal = -1

// Callback receives all user-facing feedback of a comparison run.
//
// ReportFatalError marks the run as failed; the engine unwinds without
// committing a result after it returns.
type Callback interface {
	// ReportStatus updates the status line; callers throttle it to about 50ms
	ReportStatus(text string)

	// ReportError asks how to proceed after a failed operation.
	// retryNumber counts previous attempts of the same operation.
	ReportError(msg string, retryNumber int) Response

	// ReportWarning shows a configuration concern. The callback may clear
	// *active to silence repeats of the same warning.
	ReportWarning(msg string, active *bool)

	// ReportFatalError reports an unrecoverable error
	ReportFatalError(msg string)

	// InitNewPhase declares totals for the following progress updates
	InitNewPhase(objectsTotal int, bytesTotal int64, phase Phase)

	// UpdateProcessedData reports incremental progress
	UpdateProcessedData(objectsDelta int, bytesDelta int64)
}

// ErrIgnored is returned by TryReportingError when the caller chose to ignore a failure
var ErrIgnored = errors.New("operation ignored after error")

// TryReportingError runs op until it succeeds, the callback answers
// ResponseIgnore or ctx is cancelled. On ignore it returns an error
// wrapping both ErrIgnored and the last failure.
func TryReportingError(ctx context.Context, cb Callback, op func() error) error {
	for retry := 0; ; retry++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := op()
		if err == nil {
			return nil
		}
		if cb.ReportError(err.Error(), retry) != ResponseRetry {
			return errors.Join(ErrIgnored, err)
		}
	}
}

// Serialized wraps cb so that concurrent workers never call it in parallel
func Serialized(cb Callback) Callback {
	if s, ok := cb.(*serialized); ok {
		return s
	}
	return &serialized{inner: cb}
}

type serialized struct {
	mu    sync.Mutex
	inner Callback
}

func (s *serialized) ReportStatus(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.ReportStatus(text)
}

func (s *serialized) ReportError(msg string, retryNumber int) Response {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.ReportError(msg, retryNumber)
}

func (s *serialized) ReportWarning(msg string, active *bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.ReportWarning(msg, active)
}

func (s *serialized) ReportFatalError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.ReportFatalError(msg)
}

func (s *serialized) InitNewPhase(objectsTotal int, bytesTotal int64, phase Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.InitNewPhase(objectsTotal, bytesTotal, phase)
}

func (s *serialized) UpdateProcessedData(objectsDelta int, bytesDelta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inner.UpdateProcessedData(objectsDelta, bytesDelta)
}

// Silent is a Callback that ignores every error and discards all output.
// Used for unattended runs and as a default.
type Silent struct{}

func (Silent) ReportStatus(string) {}
func (Silent) ReportError(string, int) Response { return ResponseIgnore }
func (Silent) ReportWarning(string, *bool) {}
func (Silent) ReportFatalError(string) {}
func (Silent) InitNewPhase(int, int64, Phase) {}
func (Silent) UpdateProcessedData(int, int64) {}
