package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/console/internal/backend"
	"github.com/dennisdiepolder/monti/console/internal/poller"
	"github.com/rs/zerolog"
)

type fakeRefresher struct {
	calls []poller.Category
}

func (f *fakeRefresher) Refresh(category poller.Category) bool {
	f.calls = append(f.calls, category)
	return true
}

type fakeRecorder struct {
	outcomes map[string][]error
}

func (f *fakeRecorder) RecordCommand(command string, err error) {
	if f.outcomes == nil {
		f.outcomes = make(map[string][]error)
	}
	f.outcomes[command] = append(f.outcomes[command], err)
}

// newBackend serves the command endpoints with the given statuses and counts hits
func newBackend(t *testing.T, startStatus, stopStatus int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/simulation/start":
			var body map[string]interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				http.Error(w, "bad body", http.StatusBadRequest)
				return
			}
			w.WriteHeader(startStatus)
			if startStatus == http.StatusConflict {
				w.Write([]byte("simulation already running"))
				return
			}
			w.Write([]byte(`{"status":"started"}`))
		case "/simulation/stop":
			w.WriteHeader(stopStatus)
			w.Write([]byte(`{}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newController(srv *httptest.Server) (*Controller, *fakeRefresher, *fakeRecorder) {
	client := backend.NewClient(srv.URL, time.Second, backend.DefaultMaxBatches)
	ref := &fakeRefresher{}
	rec := &fakeRecorder{}
	return NewController(client, ref, rec, zerolog.Nop()), ref, rec
}

func TestStartRejectsInvalidInputWithoutRequest(t *testing.T) {
	tests := []struct {
		name    string
		batches int
		policy  string
	}{
		{"too many batches", 501, "CUCB-OTA"},
		{"zero batches", 0, "FCFS"},
		{"unknown policy", 50, "Unknown-Policy"},
		{"empty policy", 50, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := newBackend(t, http.StatusOK, http.StatusOK)
			c, ref, _ := newController(srv)

			err := c.Start(context.Background(), tt.batches, tt.policy)
			if !backend.IsValidation(err) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if hits.Load() != 0 {
				t.Errorf("expected no request, got %d", hits.Load())
			}
			if len(ref.calls) != 0 {
				t.Errorf("expected no refresh, got %v", ref.calls)
			}
		})
	}
}

func TestStartSuccessRefreshesLive(t *testing.T) {
	srv, hits := newBackend(t, http.StatusOK, http.StatusOK)
	c, ref, rec := newController(srv)

	if err := c.Start(context.Background(), 50, "CUCB-OTA"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("expected 1 request, got %d", hits.Load())
	}
	if len(ref.calls) != 1 || ref.calls[0] != poller.CategoryLive {
		t.Errorf("expected one live refresh, got %v", ref.calls)
	}
	if got := rec.outcomes["start"]; len(got) != 1 || got[0] != nil {
		t.Errorf("expected one successful start recorded, got %v", got)
	}
}

func TestStartRejectedByBackend(t *testing.T) {
	srv, hits := newBackend(t, http.StatusConflict, http.StatusOK)
	c, ref, _ := newController(srv)

	err := c.Start(context.Background(), 10, "FCFS")

	var ce *backend.CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CommandError, got %v", err)
	}
	if ce.Status != http.StatusConflict || ce.Command != "start" {
		t.Errorf("unexpected command error: %+v", ce)
	}
	if ce.Detail != "simulation already running" {
		t.Errorf("expected backend detail to be kept, got %q", ce.Detail)
	}
	if hits.Load() != 1 {
		t.Errorf("expected exactly one attempt, got %d", hits.Load())
	}
	if len(ref.calls) != 0 {
		t.Errorf("expected no refresh after rejection, got %v", ref.calls)
	}
}

func TestStop(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		wantCommand bool
	}{
		{"running", http.StatusOK, false},
		{"not running", http.StatusConflict, false},
		{"backend error", http.StatusInternalServerError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := newBackend(t, http.StatusOK, tt.status)
			c, ref, _ := newController(srv)

			err := c.Stop(context.Background())

			var ce *backend.CommandError
			if got := errors.As(err, &ce); got != tt.wantCommand {
				t.Fatalf("CommandError = %v, want %v (err: %v)", got, tt.wantCommand, err)
			}
			if !tt.wantCommand && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if hits.Load() != 1 {
				t.Errorf("expected exactly one attempt, got %d", hits.Load())
			}
			if wantRefresh := !tt.wantCommand; wantRefresh != (len(ref.calls) == 1) {
				t.Errorf("refresh calls = %v", ref.calls)
			}
		})
	}
}

func TestStopUnreachableBackend(t *testing.T) {
	srv, _ := newBackend(t, http.StatusOK, http.StatusOK)
	srv.Close()
	c, _, _ := newController(srv)

	err := c.Stop(context.Background())
	if !backend.IsFetchKind(err, backend.KindNetwork) {
		t.Errorf("expected network FetchError, got %v", err)
	}
}
