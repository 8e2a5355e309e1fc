package queue

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestPostRunsInOrder(t *testing.T) {
	q := NewSerial()
	defer q.Stop()

	var got []int
	for i := 0; i < 100; i++ {
		n := i
		if !q.Post(func() { got = append(got, n) }) {
			t.Fatalf("Post %d rejected", n)
		}
	}
	q.Flush()

	if len(got) != 100 {
		t.Fatalf("Expected 100 tasks run, got %d", len(got))
	}
	for i, n := range got {
		if n != i {
			t.Fatalf("Task order violated at %d: got %d", i, n)
		}
	}
}

func TestPostFromWithinTask(t *testing.T) {
	q := NewSerial()
	defer q.Stop()

	done := make(chan struct{})
	q.Post(func() {
		// Reentrant posting must not deadlock.
		q.Post(func() { close(done) })
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Reentrant post did not run")
	}
}

func TestPostAfterStopRejected(t *testing.T) {
	q := NewSerial()
	q.Stop()

	if q.Post(func() {}) {
		t.Error("Expected Post on stopped queue to return false")
	}
}

func TestStopIdempotent(t *testing.T) {
	q := NewSerial()
	q.Stop()
	q.Stop()
}

func TestStopDrainsQueuedTasks(t *testing.T) {
	q := NewSerial()

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		q.Post(func() { ran.Add(1) })
	}
	q.Stop()

	if ran.Load() != 10 {
		t.Errorf("Expected 10 tasks drained before stop, got %d", ran.Load())
	}
}

func TestPostDelayedFires(t *testing.T) {
	q := NewSerial()
	defer q.Stop()

	done := make(chan struct{})
	q.PostDelayed("k", 10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Delayed task did not fire")
	}
	if q.HasPending("k") {
		t.Error("Expected key cleared after firing")
	}
}

func TestPostDelayedSupersedesByKey(t *testing.T) {
	q := NewSerial()
	defer q.Stop()

	var ran atomic.Int32
	fired := make(chan struct{})
	q.PostDelayed("k", 20*time.Millisecond, func() { ran.Add(1) })
	q.PostDelayed("k", 20*time.Millisecond, func() {
		ran.Add(1)
		close(fired)
	})

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Superseding task did not fire")
	}
	// Give a superseded task a chance to misfire.
	time.Sleep(50 * time.Millisecond)
	q.Flush()
	if ran.Load() != 1 {
		t.Errorf("Expected exactly one firing, got %d", ran.Load())
	}
}

func TestPostDelayedRescheduleWhileFiring(t *testing.T) {
	q := NewSerial()
	defer q.Stop()

	// Hammer one key with near-immediate schedules so stale timer callbacks
	// race the reschedules, then verify the final schedule still runs.
	for i := 0; i < 200; i++ {
		q.PostDelayed("k", time.Microsecond, func() {})
	}
	done := make(chan struct{})
	q.PostDelayed("k", 5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Rescheduled task never ran")
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	q := NewSerial()
	defer q.Stop()

	var ran atomic.Int32
	q.PostDelayed("k", 20*time.Millisecond, func() { ran.Add(1) })
	if !q.HasPending("k") {
		t.Fatal("Expected pending delayed task")
	}
	q.Cancel("k")
	if q.HasPending("k") {
		t.Error("Expected key cleared by cancel")
	}

	time.Sleep(60 * time.Millisecond)
	q.Flush()
	if ran.Load() != 0 {
		t.Errorf("Expected cancelled task not to run, ran %d times", ran.Load())
	}
}

func TestStopCancelsDelayedTasks(t *testing.T) {
	q := NewSerial()

	var ran atomic.Int32
	q.PostDelayed("k", 10*time.Millisecond, func() { ran.Add(1) })
	q.Stop()

	time.Sleep(50 * time.Millisecond)
	if ran.Load() != 0 {
		t.Errorf("Expected delayed task cancelled by stop, ran %d times", ran.Load())
	}
}
