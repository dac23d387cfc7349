// Package processtest provides a scripted process.Callback for tests.
package processtest

import (
	"sync"

	"github.com/sdejongh/dircompare/pkg/process"
)

// Recorder records every callback invocation. ReportError answers from
// Responses in order and falls back to ResponseIgnore once they run out.
type Recorder struct {
	mu sync.Mutex

	Responses []process.Response

	Statuses []string
	Errors   []string
	Warnings []string
	Fatals   []string
	Phases   []process.Phase
	Objects  int
	Bytes    int64

	// Suppress clears the warning flag after the first report
	Suppress bool
}

// ReportStatus records the status text
func (r *Recorder) ReportStatus(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Statuses = append(r.Statuses, text)
}

// ReportError records the message and returns the next scripted response
func (r *Recorder) ReportError(msg string, retryNumber int) process.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Errors = append(r.Errors, msg)
	if len(r.Responses) == 0 {
		return process.ResponseIgnore
	}
	resp := r.Responses[0]
	r.Responses = r.Responses[1:]
	return resp
}

// ReportWarning records the warning when it is active
func (r *Recorder) ReportWarning(msg string, active *bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if active != nil && !*active {
		return
	}
	r.Warnings = append(r.Warnings, msg)
	if r.Suppress && active != nil {
		*active = false
	}
}

// ReportFatalError records the message
func (r *Recorder) ReportFatalError(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Fatals = append(r.Fatals, msg)
}

// InitNewPhase records the phase and resets counters
func (r *Recorder) InitNewPhase(objectsTotal int, bytesTotal int64, phase process.Phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Phases = append(r.Phases, phase)
	r.Objects = 0
	r.Bytes = 0
}

// UpdateProcessedData accumulates progress
func (r *Recorder) UpdateProcessedData(objectsDelta int, bytesDelta int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Objects += objectsDelta
	r.Bytes += bytesDelta
}

// WarningCount returns the number of recorded warnings
func (r *Recorder) WarningCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Warnings)
}

// ErrorCount returns the number of recorded errors
func (r *Recorder) ErrorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Errors)
}
