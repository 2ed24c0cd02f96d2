// Package notifier pushes the result of a run to the configured providers.
// Delivery is best-effort: failures are logged and returned for inspection
// but never change the run's outcome.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/y0f/checkin/internal/config"
	"github.com/y0f/checkin/internal/preview"
	"github.com/y0f/checkin/internal/runner"
)

// Sink delivers a notification through one provider.
type Sink interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Notification is the message sent to every sink.
type Notification struct {
	Title   string
	Body    string
	Success bool
}

// NotificationError records a failed delivery to one sink.
type NotificationError struct {
	Sink string
	Err  error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify %s: %v", e.Sink, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

// NewSinks builds the sinks enabled in cfg: PushPlus when a token is set,
// Bark when a URL is set. client is shared by all of them.
func NewSinks(cfg config.NotifyConfig, client *http.Client) []Sink {
	var sinks []Sink
	if cfg.PushPlusToken != "" {
		sinks = append(sinks, &PushPlusSink{Token: cfg.PushPlusToken, Endpoint: cfg.PushPlusURL, Client: client})
	}
	if cfg.BarkURL != "" {
		sinks = append(sinks, &BarkSink{URL: cfg.BarkURL, Client: client})
	}
	return sinks
}

// Dispatcher fans a notification out to its sinks.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatcher creates a dispatcher. Each sink gets its own timeout.
func NewDispatcher(sinks []Sink, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sinks: sinks, timeout: timeout, logger: logger}
}

// Notify sends n to every sink concurrently and waits for all of them. One
// sink failing or hanging does not affect the others.
func (d *Dispatcher) Notify(ctx context.Context, n *Notification) []*NotificationError {
	if len(d.sinks) == 0 {
		d.logger.Debug("no notification sinks configured")
		return nil
	}

	results := make([]*NotificationError, len(d.sinks))
	var g errgroup.Group
	for i, s := range d.sinks {
		g.Go(func() error {
			sctx := ctx
			if d.timeout > 0 {
				var cancel context.CancelFunc
				sctx, cancel = context.WithTimeout(ctx, d.timeout)
				defer cancel()
			}

			if err := s.Send(sctx, n); err != nil {
				d.logger.Error("notification send failed", "sink", s.Name(), "error", err)
				results[i] = &NotificationError{Sink: s.Name(), Err: err}
				return nil
			}
			d.logger.Info("notification sent", "sink", s.Name())
			return nil
		})
	}
	g.Wait()

	var errs []*NotificationError
	for _, e := range results {
		if e != nil {
			errs = append(errs, e)
		}
	}
	return errs
}

// FromOutcome formats a run outcome as a plain-text notification. The last
// response is previewed up to logBytes characters on failure.
func FromOutcome(name string, out *runner.Outcome, logBytes int) *Notification {
	var verdict string
	switch {
	case out.Success:
		verdict = "success"
	case out.Interrupted():
		verdict = "interrupted"
	default:
		verdict = "failed"
	}

	var b strings.Builder
	if snap := out.Snapshot; snap != nil && snap.Err == nil {
		fmt.Fprintf(&b, "Status: %d\n", snap.StatusCode)
	}
	fmt.Fprintf(&b, "Attempts: %d\n", len(out.Attempts))
	fmt.Fprintf(&b, "Detail: %s", out.Message)

	if !out.Success && out.Snapshot != nil {
		if p := preview.Body(out.Snapshot.Body, logBytes); p != "" {
			fmt.Fprintf(&b, "\nResponse:\n%s", p)
		}
	}

	return &Notification{
		Title:   fmt.Sprintf("%s: %s", name, verdict),
		Body:    b.String(),
		Success: out.Success,
	}
}
