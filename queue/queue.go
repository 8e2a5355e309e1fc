// Package queue provides the single-consumer serialized executor that the
// call tracker runs on. Every public operation, session event, and timer
// callback that mutates call state is posted here, so no two mutations ever
// race and events are handled strictly in arrival order.
//
// Delayed tasks are keyed by identity: scheduling a key again supersedes the
// previous schedule, and Cancel removes a pending task before it fires.
package queue

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Serial is a single-goroutine task executor. Tasks run one at a time in
// posting order. The task list is unbounded, so posting from within a task
// never blocks.
type Serial struct {
	mu      sync.Mutex
	cond    *sync.Cond
	tasks   []func()
	timers  map[string]*time.Timer
	stopped bool

	done chan struct{}
}

// NewSerial creates and starts a serialized executor.
func NewSerial() *Serial {
	s := &Serial{
		timers: make(map[string]*time.Timer),
		done:   make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.loop()
	return s
}

func (s *Serial) loop() {
	defer close(s.done)
	s.mu.Lock()
	for {
		for len(s.tasks) == 0 && !s.stopped {
			s.cond.Wait()
		}
		if len(s.tasks) == 0 && s.stopped {
			s.mu.Unlock()
			return
		}
		fn := s.tasks[0]
		s.tasks = s.tasks[1:]
		s.mu.Unlock()
		fn()
		s.mu.Lock()
	}
}

// Post enqueues a task and reports whether it was accepted. Posting to a
// stopped queue is a logged no-op returning false.
func (s *Serial) Post(fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		logrus.WithFields(logrus.Fields{
			"function": "Post",
		}).Debug("Dropping task posted to stopped queue")
		return false
	}
	s.tasks = append(s.tasks, fn)
	s.cond.Signal()
	return true
}

// PostDelayed schedules a task to be posted after the delay. The key
// identifies the schedule: a second PostDelayed with the same key before the
// first fires replaces it.
func (s *Serial) PostDelayed(key string, d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	var tm *time.Timer
	tm = time.AfterFunc(d, func() {
		s.mu.Lock()
		// A concurrent Cancel or a superseding PostDelayed may have run
		// between the timer firing and this callback taking the lock; only
		// the timer still registered for the key may enqueue.
		if s.timers[key] != tm || s.stopped {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.tasks = append(s.tasks, fn)
		s.cond.Signal()
		s.mu.Unlock()
	})
	s.timers[key] = tm
}

// Cancel removes a pending delayed task by key. Cancelling an unknown key is
// a no-op.
func (s *Serial) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[key]; ok {
		t.Stop()
		delete(s.timers, key)
	}
}

// HasPending reports whether a delayed task with the key is scheduled.
func (s *Serial) HasPending(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[key]
	return ok
}

// Flush blocks until every task posted before it has run. Flushing a stopped
// queue returns immediately.
func (s *Serial) Flush() {
	fence := make(chan struct{})

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.tasks = append(s.tasks, func() { close(fence) })
	s.cond.Signal()
	s.mu.Unlock()

	<-fence
}

// Stop cancels all pending delayed tasks, lets already-queued tasks finish,
// and stops the worker. Stop is idempotent and blocks until the worker
// exits.
func (s *Serial) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		for key, t := range s.timers {
			t.Stop()
			delete(s.timers, key)
		}
		s.cond.Signal()
	}
	s.mu.Unlock()
	<-s.done
}
