package logging

import (
	"context"
	"errors"

	"github.com/sdejongh/dircompare/pkg/process"
)

// CallbackLogger decorates a process.Callback so that warnings, errors and
// phase changes also end up in the log
type CallbackLogger struct {
	process.Callback
	ctx    context.Context
	logger Logger
}

// NewCallbackLogger wraps cb. Status and progress updates are not logged.
func NewCallbackLogger(ctx context.Context, cb process.Callback, logger Logger) *CallbackLogger {
	return &CallbackLogger{Callback: cb, ctx: ctx, logger: logger}
}

func (c *CallbackLogger) ReportError(msg string, retryNumber int) process.Response {
	resp := c.Callback.ReportError(msg, retryNumber)
	c.logger.Error(c.ctx, "operation failed", errors.New(msg), Fields{
		"retry_number": retryNumber,
		"retry":        resp == process.ResponseRetry,
	})
	return resp
}

func (c *CallbackLogger) ReportWarning(msg string, active *bool) {
	if active == nil || *active {
		c.logger.Warn(c.ctx, msg, nil)
	}
	c.Callback.ReportWarning(msg, active)
}

func (c *CallbackLogger) ReportFatalError(msg string) {
	c.logger.Error(c.ctx, "fatal error", errors.New(msg), nil)
	c.Callback.ReportFatalError(msg)
}

func (c *CallbackLogger) InitNewPhase(objectsTotal int, bytesTotal int64, phase process.Phase) {
	c.logger.Info(c.ctx, "phase started", Fields{
		"phase":         phase.String(),
		"objects_total": objectsTotal,
		"bytes_total":   bytesTotal,
	})
	c.Callback.InitNewPhase(objectsTotal, bytesTotal, phase)
}
