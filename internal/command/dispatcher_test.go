package command

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/huesyncd/internal/bridge"
	"github.com/dokzlo13/huesyncd/internal/store"
)

type fakeSender struct {
	mu      sync.Mutex
	calls   []map[string]any
	results []bridge.Result
	err     error
}

func (f *fakeSender) Send(_ context.Context, _, _ string, body map[string]any) ([]bridge.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := make(map[string]any, len(body))
	for k, v := range body {
		copied[k] = v
	}
	f.calls = append(f.calls, copied)
	return f.results, f.err
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeRecorder struct {
	mu      sync.Mutex
	applied []string
}

func (f *fakeRecorder) Apply(baseKey string, _ map[string]any, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.applied = append(f.applied, baseKey)
}

func (f *fakeRecorder) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...)
}

func lightCommand(body map[string]any) Command {
	return Command{
		Trigger: "lights/1/state",
		Method:  "PUT",
		Path:    "lights.lamp-1",
		Kind:    "lights",
		Name:    "Lamp",
		Body:    body,
	}
}

func newTestDispatcher(sender *fakeSender, rec *fakeRecorder) (*Dispatcher, *Queue, *store.Memory) {
	st := store.NewMemory()
	q := NewQueue()
	d := NewDispatcher(st, q, sender, rec, DispatcherConfig{
		FlushInterval: time.Second,
		MaxAttempts:   3,
		RetryDelay:    10 * time.Millisecond,
		RateLimitRPS:  1000,
	})
	return d, q, st
}

func TestDispatcher_AcksSuccessfulFields(t *testing.T) {
	sender := &fakeSender{results: []bridge.Result{
		{Success: map[string]any{"/lights/1/state/bri": float64(127)}},
		{Success: map[string]any{"/lights/1/state/on": true}},
	}}
	rec := &fakeRecorder{}
	d, q, st := newTestDispatcher(sender, rec)

	q.Enqueue(lightCommand(map[string]any{"bri": 127, "on": true}))
	d.Flush(context.Background())

	require.Equal(t, 1, sender.callCount())

	// acks land under the standardized store names
	v, ok := st.Get("lights.lamp-1.action.brightness")
	require.True(t, ok)
	assert.EqualValues(t, 127, v)
	v, _ = st.Get("lights.lamp-1.action.on")
	assert.Equal(t, true, v)

	// lastAction recorded on the device and globally
	assert.Contains(t, rec.keys(), "lights.lamp-1.action")
	assert.Contains(t, rec.keys(), "info")
}

func TestDispatcher_SkipsNoopFields(t *testing.T) {
	sender := &fakeSender{}
	d, q, st := newTestDispatcher(sender, &fakeRecorder{})

	st.Set("lights.lamp-1.action.on", true, nil)
	st.Set("lights.lamp-1.action.brightness", float64(127), nil)

	q.Enqueue(lightCommand(map[string]any{"on": true, "bri": float64(127)}))
	d.Flush(context.Background())

	assert.Equal(t, 0, sender.callCount(), "a body matching current state is not sent")
}

func TestDispatcher_PendingWriteStillDispatched(t *testing.T) {
	sender := &fakeSender{results: []bridge.Result{}}
	d, q, st := newTestDispatcher(sender, &fakeRecorder{})

	// the lamp is lit, then an external write turns it off; the pending
	// value lands under the same key before the flush runs
	st.Set("lights.lamp-1.action.on", true, nil)
	st.ExternalWrite("lights.lamp-1.action.on", false)

	q.Enqueue(lightCommand(map[string]any{"on": false}))
	d.Flush(context.Background())

	require.Equal(t, 1, sender.callCount(), "a write away from confirmed state must be sent")
	assert.Equal(t, false, sender.calls[0]["on"])
}

func TestDispatcher_NoopCompareConvertsUnits(t *testing.T) {
	sender := &fakeSender{}
	d, q, st := newTestDispatcher(sender, &fakeRecorder{})

	// the store carries degrees, the body wire units
	st.Set("lights.lamp-1.action.hue", float64(55), nil)
	q.Enqueue(lightCommand(map[string]any{"hue": 10012}))
	d.Flush(context.Background())

	assert.Equal(t, 0, sender.callCount())
}

func TestDispatcher_TransitiontimeAlwaysSent(t *testing.T) {
	sender := &fakeSender{results: []bridge.Result{}}
	d, q, st := newTestDispatcher(sender, &fakeRecorder{})

	st.Set("lights.lamp-1.action.transitiontime", float64(4), nil)
	q.Enqueue(lightCommand(map[string]any{"transitiontime": float64(4), "on": false}))
	d.Flush(context.Background())

	require.Equal(t, 1, sender.callCount())
	assert.Contains(t, sender.calls[0], "transitiontime")
}

func TestDispatcher_RetriesTransportFailures(t *testing.T) {
	sender := &fakeSender{err: fmt.Errorf("%w: connection refused", bridge.ErrTransport)}
	rec := &fakeRecorder{}
	d, q, _ := newTestDispatcher(sender, rec)

	q.Enqueue(lightCommand(map[string]any{"on": true}))
	d.Flush(context.Background())

	// retries are scheduled asynchronously on a fixed delay
	deadline := time.After(2 * time.Second)
	for sender.callCount() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected 3 attempts, got %d", sender.callCount())
		case <-time.After(5 * time.Millisecond):
		}
	}
	d.Stop()

	assert.Equal(t, 3, sender.callCount(), "exactly MaxAttempts sends")
	assert.Contains(t, rec.keys(), "lights.lamp-1.action")
}

func TestDispatcher_RejectionDoesNotRetry(t *testing.T) {
	sender := &fakeSender{err: fmt.Errorf("%w: parameter not available", bridge.ErrRejected)}
	d, q, _ := newTestDispatcher(sender, &fakeRecorder{})

	q.Enqueue(lightCommand(map[string]any{"on": true}))
	d.Flush(context.Background())
	time.Sleep(50 * time.Millisecond)
	d.Stop()

	assert.Equal(t, 1, sender.callCount(), "rejections are final")
}

func TestDispatcher_NormalizesXY(t *testing.T) {
	sender := &fakeSender{results: []bridge.Result{}}
	d, q, _ := newTestDispatcher(sender, &fakeRecorder{})

	q.Enqueue(lightCommand(map[string]any{"xy": "0.4051,0.3921"}))
	d.Flush(context.Background())

	require.Equal(t, 1, sender.callCount())
	xy, ok := sender.calls[0]["xy"].([]float64)
	require.True(t, ok, "xy string must be sent as a numeric pair")
	assert.Equal(t, []float64{0.4051, 0.3921}, xy)
}

func TestDispatcher_DropsInvalidXY(t *testing.T) {
	sender := &fakeSender{results: []bridge.Result{}}
	d, q, _ := newTestDispatcher(sender, &fakeRecorder{})

	q.Enqueue(lightCommand(map[string]any{"xy": "garbage", "on": true}))
	d.Flush(context.Background())

	require.Equal(t, 1, sender.callCount())
	assert.NotContains(t, sender.calls[0], "xy")
	assert.Contains(t, sender.calls[0], "on")
}

func TestDispatcher_FieldErrorRecorded(t *testing.T) {
	sender := &fakeSender{results: []bridge.Result{
		{Error: &bridge.APIError{Type: 201, Address: "/lights/1/state/bri", Description: "parameter, bri, is not modifiable"}},
	}}
	rec := &fakeRecorder{}
	d, q, st := newTestDispatcher(sender, rec)

	q.Enqueue(lightCommand(map[string]any{"bri": 127}))
	d.Flush(context.Background())

	// nothing acked, but the failure is recorded
	_, ok := st.Get("lights.lamp-1.action.brightness")
	assert.False(t, ok)
	assert.Contains(t, rec.keys(), "lights.lamp-1.action")
}
