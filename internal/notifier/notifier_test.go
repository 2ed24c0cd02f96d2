package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/y0f/checkin/internal/config"
	"github.com/y0f/checkin/internal/runner"
	"github.com/y0f/checkin/internal/transport"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type funcSink struct {
	name string
	send func(ctx context.Context, n *Notification) error
}

func (s *funcSink) Name() string { return s.name }

func (s *funcSink) Send(ctx context.Context, n *Notification) error { return s.send(ctx, n) }

func TestPushPlusSink(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "application/json")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"code":200,"msg":"请求成功","data":"abc"}`))
	}))
	defer server.Close()

	s := &PushPlusSink{Token: "tok123", Endpoint: server.URL, Client: server.Client()}
	err := s.Send(context.Background(), &Notification{Title: "Check-in: success", Body: "Attempts: 1"})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"token":    "tok123",
		"title":    "Check-in: success",
		"content":  "Attempts: 1",
		"template": "txt",
	}, got)
}

func TestPushPlusSinkRejectedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":903,"msg":"无效的用户token"}`))
	}))
	defer server.Close()

	s := &PushPlusSink{Token: "bad", Endpoint: server.URL, Client: server.Client()}
	err := s.Send(context.Background(), &Notification{Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "code 903")
}

func TestBarkSink(t *testing.T) {
	var got barkMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/devicekey", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"code":200,"message":"success"}`))
	}))
	defer server.Close()

	s := &BarkSink{URL: server.URL + "/devicekey", Client: server.Client()}
	require.NoError(t, s.Send(context.Background(), &Notification{Title: "Check-in: failed", Body: "Detail: x"}))
	assert.Equal(t, barkMessage{Title: "Check-in: failed", Body: "Detail: x", Group: "checkin"}, got)
}

func TestBarkSinkErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	s := &BarkSink{URL: server.URL, Client: server.Client()}
	err := s.Send(context.Background(), &Notification{Title: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}

func TestDispatcherIsolatesSinkFailures(t *testing.T) {
	var delivered atomic.Int32
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered.Add(1)
		w.Write([]byte(`{"code":200}`))
	}))
	defer good.Close()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	sinks := []Sink{
		&PushPlusSink{Token: "tok", Endpoint: deadURL, Client: &http.Client{Timeout: time.Second}},
		&BarkSink{URL: good.URL, Client: good.Client()},
	}

	errs := NewDispatcher(sinks, 5*time.Second, discard()).Notify(context.Background(), &Notification{Title: "t", Body: "b"})
	require.Len(t, errs, 1)
	assert.Equal(t, "pushplus", errs[0].Sink)
	assert.EqualValues(t, 1, delivered.Load())
}

func TestDispatcherTimeoutPerSink(t *testing.T) {
	var fastCalled atomic.Bool
	sinks := []Sink{
		&funcSink{name: "slow", send: func(ctx context.Context, _ *Notification) error {
			<-ctx.Done()
			return ctx.Err()
		}},
		&funcSink{name: "fast", send: func(context.Context, *Notification) error {
			fastCalled.Store(true)
			return nil
		}},
	}

	start := time.Now()
	errs := NewDispatcher(sinks, 100*time.Millisecond, discard()).Notify(context.Background(), &Notification{})
	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, errs, 1)
	assert.Equal(t, "slow", errs[0].Sink)
	assert.ErrorIs(t, errs[0], context.DeadlineExceeded)
	assert.True(t, fastCalled.Load())
}

func TestDispatcherNoSinks(t *testing.T) {
	assert.Empty(t, NewDispatcher(nil, time.Second, discard()).Notify(context.Background(), &Notification{}))
}

func TestNewSinks(t *testing.T) {
	assert.Empty(t, NewSinks(config.NotifyConfig{}, nil))

	sinks := NewSinks(config.NotifyConfig{PushPlusToken: "t", BarkURL: "https://api.day.app/k"}, nil)
	require.Len(t, sinks, 2)
	assert.Equal(t, "pushplus", sinks[0].Name())
	assert.Equal(t, "bark", sinks[1].Name())

	sinks = NewSinks(config.NotifyConfig{PushPlusToken: "t", PushPlusURL: "http://127.0.0.1:9/send"}, nil)
	require.Len(t, sinks, 1)
	assert.Equal(t, "http://127.0.0.1:9/send", sinks[0].(*PushPlusSink).Endpoint)
}

func TestNewClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"code":200}`))
	}))
	defer server.Close()

	s := &BarkSink{URL: server.URL, Client: NewClient(1, 5*time.Second, discard())}
	require.NoError(t, s.Send(context.Background(), &Notification{Title: "t"}))
	assert.EqualValues(t, 2, hits.Load())
}

func TestFromOutcome(t *testing.T) {
	success := &runner.Outcome{
		Success:  true,
		State:    runner.StateSuccess,
		Snapshot: &transport.Snapshot{StatusCode: 200, Body: `{"ret":1}`},
		Attempts: make([]runner.Attempt, 1),
		Message:  "check-in succeeded on attempt 1: body contains \"ret\"",
	}
	n := FromOutcome("AnyRouter", success, 500)
	assert.Equal(t, "AnyRouter: success", n.Title)
	assert.True(t, n.Success)
	assert.Equal(t, "Status: 200\nAttempts: 1\nDetail: check-in succeeded on attempt 1: body contains \"ret\"", n.Body)

	failed := &runner.Outcome{
		State:    runner.StateExhausted,
		Snapshot: &transport.Snapshot{StatusCode: 401, Body: `{"msg":"expired"}`},
		Attempts: make([]runner.Attempt, 2),
		Message:  "check-in failed after 2 attempt(s)",
		Err:      errors.New("unmatched"),
	}
	n = FromOutcome("AnyRouter", failed, 500)
	assert.Equal(t, "AnyRouter: failed", n.Title)
	assert.Contains(t, n.Body, "Status: 401")
	assert.Contains(t, n.Body, "Response:\n{\n  \"msg\": \"expired\"\n}")

	n = FromOutcome("AnyRouter", failed, 0)
	assert.NotContains(t, n.Body, "Response:")

	interrupted := &runner.Outcome{State: runner.StateInterrupted, Message: "check-in interrupted after 0 attempt(s)"}
	n = FromOutcome("AnyRouter", interrupted, 500)
	assert.Equal(t, "AnyRouter: interrupted", n.Title)
	assert.Equal(t, "Attempts: 0\nDetail: check-in interrupted after 0 attempt(s)", n.Body)
}
