// Package report turns a run outcome into the final log line and the
// process exit status.
package report

import (
	"errors"
	"log/slog"

	"github.com/y0f/checkin/internal/config"
	"github.com/y0f/checkin/internal/preview"
	"github.com/y0f/checkin/internal/runner"
)

// Exit statuses.
const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitConfig      = 2
	ExitInterrupted = 130
)

type Reporter struct {
	logger   *slog.Logger
	logBytes int
}

func New(logger *slog.Logger, logBytes int) *Reporter {
	return &Reporter{logger: logger, logBytes: logBytes}
}

// Report logs the outcome and returns the exit status for it.
func (r *Reporter) Report(out *runner.Outcome) int {
	switch {
	case out.Success:
		r.logger.Info("check-in succeeded", "attempts", len(out.Attempts), "message", out.Message)
		return ExitSuccess
	case out.Interrupted():
		r.logger.Warn("check-in interrupted", "attempts", len(out.Attempts), "message", out.Message)
		return ExitInterrupted
	}

	args := []any{"attempts", len(out.Attempts), "message", out.Message}
	if out.Snapshot != nil {
		if p := preview.Body(out.Snapshot.Body, r.logBytes); p != "" {
			args = append(args, "response", p)
		}
	}
	r.logger.Error("check-in failed", args...)
	return ExitFailure
}

// ConfigFailure logs a configuration problem and returns its exit status.
func (r *Reporter) ConfigFailure(err error) int {
	var ce *config.ConfigError
	if errors.As(err, &ce) {
		r.logger.Error("invalid configuration", "field", ce.Field, "category", ce.Category, "error", err)
	} else {
		r.logger.Error("invalid configuration", "error", err)
	}
	return ExitConfig
}
