package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dokzlo13/huesyncd/internal/bridge"
	"github.com/dokzlo13/huesyncd/internal/flatten"
	"github.com/dokzlo13/huesyncd/internal/store"
)

func testPollService(t *testing.T, handler http.Handler) (*PollService, *store.Memory) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)

	st := store.NewMemory()
	fl := flatten.New(st, flatten.NewRegistry(), flatten.Config{Naming: flatten.NamingAppend})
	client := bridge.NewClient(host, port, "testuser", false, 2*time.Second)
	t.Cleanup(func() { client.Close() })

	p := NewPollService(client, fl, time.Minute)
	p.retryDelay = 5 * time.Millisecond
	return p, st
}

func TestSyncWithRetry_SurvivesTransientFailures(t *testing.T) {
	var stateCalls int64
	p, st := testPollService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/testuser/groups/0" {
			w.Write([]byte(`{"name": "All Lights", "lights": [], "action": {}}`))
			return
		}
		if atomic.AddInt64(&stateCalls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"lights": {"1": {"name": "Lamp", "state": {"on": true}}}}`))
	}))

	if err := p.SyncWithRetry(context.Background()); err != nil {
		t.Fatalf("SyncWithRetry: %v", err)
	}
	if got := atomic.LoadInt64(&stateCalls); got != 3 {
		t.Errorf("state polled %d times, want 3", got)
	}
	if v, _ := st.Get("lights.lamp-1.action.on"); v != true {
		t.Errorf("state not mirrored after recovery, on = %v", v)
	}
}

func TestSyncWithRetry_RejectionIsImmediatelyFatal(t *testing.T) {
	var stateCalls int64
	p, _ := testPollService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&stateCalls, 1)
		w.Write([]byte(`[{"error": {"type": 1, "address": "/", "description": "unauthorized user"}}]`))
	}))

	err := p.SyncWithRetry(context.Background())
	if !errors.Is(err, bridge.ErrRejected) {
		t.Fatalf("unauthorized user should not be retried, got %v", err)
	}
	if got := atomic.LoadInt64(&stateCalls); got != 1 {
		t.Errorf("state polled %d times, want 1", got)
	}
}

func TestSyncWithRetry_GivesUpAfterBudget(t *testing.T) {
	var stateCalls int64
	p, _ := testPollService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&stateCalls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	err := p.SyncWithRetry(context.Background())
	if !errors.Is(err, bridge.ErrTransport) {
		t.Fatalf("exhausted budget should surface the transport error, got %v", err)
	}
	if got := atomic.LoadInt64(&stateCalls); got != pollMaxFailures {
		t.Errorf("state polled %d times, want %d", got, pollMaxFailures)
	}
}
