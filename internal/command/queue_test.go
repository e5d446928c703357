package command

import "testing"

func TestQueue_CoalescesPerTrigger(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Command{Trigger: "lights/1/state", Body: map[string]any{"on": true}})
	q.Enqueue(Command{Trigger: "lights/1/state", Body: map[string]any{"bri": 127}})

	if q.Len() != 1 {
		t.Fatalf("Len = %d, want 1", q.Len())
	}

	drained := q.Drain()
	if len(drained) != 1 {
		t.Fatalf("Drain returned %d entries", len(drained))
	}
	body := drained[0].Body
	if body["on"] != true || body["bri"] != 127 {
		t.Errorf("merged body = %v", body)
	}
}

func TestQueue_LastWriteWins(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Command{Trigger: "lights/1/state", Body: map[string]any{"bri": 100}})
	q.Enqueue(Command{Trigger: "lights/1/state", Body: map[string]any{"bri": 200}})

	drained := q.Drain()
	if drained[0].Body["bri"] != 200 {
		t.Errorf("bri = %v, want 200", drained[0].Body["bri"])
	}
}

func TestQueue_SeparateTriggers(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Command{Trigger: "lights/1/state", Body: map[string]any{"on": true}})
	q.Enqueue(Command{Trigger: "lights/2/state", Body: map[string]any{"on": true}})

	if q.Len() != 2 {
		t.Errorf("Len = %d, want 2", q.Len())
	}
}

func TestQueue_DrainEmpties(t *testing.T) {
	q := NewQueue()
	q.Enqueue(Command{Trigger: "lights/1/state", Body: map[string]any{"on": true}})

	if got := len(q.Drain()); got != 1 {
		t.Fatalf("first drain = %d", got)
	}
	if got := len(q.Drain()); got != 0 {
		t.Errorf("second drain = %d, want 0", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len after drain = %d", q.Len())
	}
}

func TestQueue_EnqueueCopiesBody(t *testing.T) {
	q := NewQueue()
	body := map[string]any{"on": true}
	q.Enqueue(Command{Trigger: "lights/1/state", Body: body})
	body["on"] = false

	drained := q.Drain()
	if drained[0].Body["on"] != true {
		t.Error("queued body must not alias the caller's map")
	}
}
