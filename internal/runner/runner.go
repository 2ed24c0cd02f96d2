// Package runner drives one check-in run: an optional warm-up request, then
// up to 1+Retry attempts that stop at the first matching response.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/y0f/checkin/internal/assertion"
	"github.com/y0f/checkin/internal/config"
	"github.com/y0f/checkin/internal/preview"
	"github.com/y0f/checkin/internal/request"
	"github.com/y0f/checkin/internal/transport"
)

// State is the position of a run in its lifecycle.
type State string

const (
	StatePending     State = "pending"
	StateAttempting  State = "attempting"
	StateRetrying    State = "retrying"
	StateSuccess     State = "success"
	StateExhausted   State = "exhausted"
	StateInterrupted State = "interrupted"
)

// Terminal reports whether no further attempts follow s.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateExhausted || s == StateInterrupted
}

// Attempt records one request and its verdict.
type Attempt struct {
	Index    int
	Snapshot *transport.Snapshot
	Matched  bool
	Reason   string
}

// Outcome is the single result of a run.
type Outcome struct {
	Success  bool
	State    State
	Snapshot *transport.Snapshot // last attempt's snapshot, nil if none ran
	Attempts []Attempt
	Message  string
	// Err is the last attempt's failure: a *transport.TransportError or an
	// *assertion.Mismatch. Nil on success.
	Err error
}

// Interrupted reports whether the run was stopped by cancellation.
func (o *Outcome) Interrupted() bool { return o.State == StateInterrupted }

// Pacer gates each attempt. *rate.Limiter satisfies it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewPacer spaces attempt starts at least delay apart. The first attempt is
// never delayed. A zero delay never waits.
func NewPacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Options configure a Runner.
type Options struct {
	Criteria assertion.Criteria
	Retry    int
	Pacer    Pacer
	Warmup   *request.Descriptor
	LogBytes int
}

// OptionsFrom derives runner options from a loaded configuration. warmup may
// be nil.
func OptionsFrom(cfg *config.Config, warmup *request.Descriptor) Options {
	return Options{
		Criteria: assertion.CriteriaFrom(cfg),
		Retry:    cfg.Retry,
		Pacer:    NewPacer(cfg.RetryDelay),
		Warmup:   warmup,
		LogBytes: cfg.LogBytes,
	}
}

// Runner executes check-in runs over a transport.
type Runner struct {
	transport transport.Transport
	opts      Options
	logger    *slog.Logger
}

func New(t transport.Transport, opts Options, logger *slog.Logger) *Runner {
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	if opts.Retry > config.MaxRetry {
		opts.Retry = config.MaxRetry
	}
	if opts.Pacer == nil {
		opts.Pacer = NewPacer(0)
	}
	return &Runner{transport: t, opts: opts, logger: logger}
}

// Run performs the check-in described by d. It always returns an Outcome in
// a terminal state and makes at most 1+Retry attempts.
func (r *Runner) Run(ctx context.Context, d *request.Descriptor) *Outcome {
	out := &Outcome{State: StatePending}
	budget := r.opts.Retry + 1

	r.warmup(ctx)

	for i := 1; i <= budget; i++ {
		if err := r.opts.Pacer.Wait(ctx); err != nil {
			return r.interrupt(out, err)
		}

		out.State = StateAttempting
		r.logger.Info("check-in attempt", "attempt", i, "of", budget, "method", d.Method, "url", d.URL)

		snap := r.transport.Do(ctx, d)
		res := assertion.Evaluate(snap, r.opts.Criteria)
		out.Attempts = append(out.Attempts, Attempt{Index: i, Snapshot: snap, Matched: res.Match, Reason: res.Reason})
		out.Snapshot = snap

		if ctx.Err() != nil && !res.Match {
			return r.interrupt(out, ctx.Err())
		}

		r.logAttempt(i, snap, res)

		if res.Match {
			out.Success = true
			out.State = StateSuccess
			out.Message = fmt.Sprintf("check-in succeeded on attempt %d: %s", i, res.Reason)
			return out
		}

		out.Err = res.Err(snap)
		if snap.Err != nil {
			out.Err = snap.Err
		}

		if i < budget {
			out.State = StateRetrying
			r.logger.Info("retrying check-in", "next_attempt", i+1)
		}
	}

	out.State = StateExhausted
	out.Message = fmt.Sprintf("check-in failed after %d attempt(s): last attempt %s", len(out.Attempts), describe(out))
	return out
}

func (r *Runner) warmup(ctx context.Context) {
	w := r.opts.Warmup
	if w == nil {
		return
	}

	r.logger.Info("warm-up request", "url", w.URL)
	snap := r.transport.Do(ctx, w)
	if snap.Err != nil {
		r.logger.Warn("warm-up failed, continuing", "error", snap.Err)
		return
	}
	r.logger.Info("warm-up response", "status", snap.StatusCode, "elapsed", snap.Elapsed)
	if p := preview.Body(snap.Body, r.opts.LogBytes); p != "" {
		r.logger.Debug("warm-up body", "preview", p)
	}
}

func (r *Runner) logAttempt(i int, snap *transport.Snapshot, res assertion.Result) {
	if snap.Err != nil {
		r.logger.Warn("check-in request failed", "attempt", i, "kind", snap.Err.Kind, "error", snap.Err.Err, "elapsed", snap.Elapsed)
		return
	}

	if res.Match {
		r.logger.Info("check-in response matched", "attempt", i, "status", snap.StatusCode,
			"proto", snap.Proto, "elapsed", snap.Elapsed, "reason", res.Reason)
		return
	}

	r.logger.Warn("check-in response did not match", "attempt", i, "status", snap.StatusCode,
		"proto", snap.Proto, "elapsed", snap.Elapsed, "reason", res.Reason)
	if p := preview.Body(snap.Body, r.opts.LogBytes); p != "" {
		r.logger.Info("response preview", "attempt", i, "body", p)
	}
}

func (r *Runner) interrupt(out *Outcome, err error) *Outcome {
	out.State = StateInterrupted
	out.Success = false
	out.Err = err
	out.Message = fmt.Sprintf("check-in interrupted after %d attempt(s)", len(out.Attempts))
	r.logger.Warn("check-in interrupted", "attempts", len(out.Attempts), "error", err)
	return out
}

func describe(out *Outcome) string {
	snap := out.Snapshot
	switch {
	case snap == nil:
		return "did not run"
	case snap.Err != nil:
		return "transport error: " + snap.Err.Error()
	case out.Err != nil:
		return out.Err.Error()
	default:
		return fmt.Sprintf("status %d", snap.StatusCode)
	}
}
