package tracker

import (
	"sync"
	"time"

	"github.com/opd-ai/imscall/call"
	"github.com/opd-ai/imscall/cause"
	"github.com/opd-ai/imscall/notify"
	"github.com/opd-ai/imscall/session"
)

// sessionCall records one request issued to the mock session client.
type sessionCall struct {
	op    string
	id    call.Handle
	peer  call.Handle
	req   session.DialRequest
	video call.VideoState
	code  cause.ReasonCode
	digit byte
}

// mockSession records every request and returns scripted errors. It never
// emits events on its own; tests deliver events explicitly.
type mockSession struct {
	mu    sync.Mutex
	calls []sessionCall
	fail  map[string]error
}

func newMockSession() *mockSession {
	return &mockSession{fail: make(map[string]error)}
}

func (m *mockSession) failNext(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = err
}

func (m *mockSession) record(c sessionCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.fail[c.op]; ok {
		delete(m.fail, c.op)
		return err
	}
	m.calls = append(m.calls, c)
	return nil
}

// history returns the operation names in issue order.
func (m *mockSession) history() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]string, len(m.calls))
	for i, c := range m.calls {
		ops[i] = c.op
	}
	return ops
}

// last returns the most recent recorded call with the given op.
func (m *mockSession) last(op string) (sessionCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].op == op {
			return m.calls[i], true
		}
	}
	return sessionCall{}, false
}

func (m *mockSession) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.op == op {
			n++
		}
	}
	return n
}

func (m *mockSession) Dial(id call.Handle, req session.DialRequest) error {
	return m.record(sessionCall{op: "dial", id: id, req: req})
}

func (m *mockSession) Accept(id call.Handle, video call.VideoState) error {
	return m.record(sessionCall{op: "accept", id: id, video: video})
}

func (m *mockSession) Reject(id call.Handle) error {
	return m.record(sessionCall{op: "reject", id: id})
}

func (m *mockSession) Terminate(id call.Handle, code cause.ReasonCode) error {
	return m.record(sessionCall{op: "terminate", id: id, code: code})
}

func (m *mockSession) Hold(id call.Handle) error {
	return m.record(sessionCall{op: "hold", id: id})
}

func (m *mockSession) Resume(id call.Handle) error {
	return m.record(sessionCall{op: "resume", id: id})
}

func (m *mockSession) Merge(host, peer call.Handle) error {
	return m.record(sessionCall{op: "merge", id: host, peer: peer})
}

func (m *mockSession) ConsultativeTransfer(active, held call.Handle) error {
	return m.record(sessionCall{op: "transfer", id: active, peer: held})
}

func (m *mockSession) ModifyVideo(id call.Handle, video call.VideoState) error {
	return m.record(sessionCall{op: "modify_video", id: id, video: video})
}

func (m *mockSession) SendDTMF(id call.Handle, digit byte) error {
	return m.record(sessionCall{op: "dtmf", id: id, digit: digit})
}

// phoneTransition is one recorded phone state notification.
type phoneTransition struct {
	from, to call.PhoneState
}

// mockSink records notifications emitted by the tracker.
type mockSink struct {
	mu             sync.Mutex
	preciseChanges int
	ringing        []call.Handle
	phoneStates    []phoneTransition
	suppFailures   []string
	disconnects    map[call.Handle]cause.Disconnect
}

func newMockSink() *mockSink {
	return &mockSink{disconnects: make(map[call.Handle]cause.Disconnect)}
}

func (s *mockSink) PreciseCallStateChanged() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preciseChanges++
}

func (s *mockSink) NewRingingConnection(h call.Handle, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ringing = append(s.ringing, h)
}

func (s *mockSink) PhoneStateChanged(old, new call.PhoneState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phoneStates = append(s.phoneStates, phoneTransition{from: old, to: new})
}

func (s *mockSink) SuppServiceFailed(kind notify.SuppServiceKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.suppFailures = append(s.suppFailures, kind.String())
}

func (s *mockSink) Disconnected(h call.Handle, d cause.Disconnect, p cause.Precise) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnects[h] = d
}

func (s *mockSink) lastPhoneState() (call.PhoneState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.phoneStates) == 0 {
		return 0, false
	}
	return s.phoneStates[len(s.phoneStates)-1].to, true
}

// countPhoneTransitions returns how often the exact from/to pair was
// notified.
func (s *mockSink) countPhoneTransitions(from, to call.PhoneState) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, tr := range s.phoneStates {
		if tr.from == from && tr.to == to {
			n++
		}
	}
	return n
}

func (s *mockSink) disconnectCause(h call.Handle) (cause.Disconnect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.disconnects[h]
	return d, ok
}

// fixedClock is a TimeProvider pinned to one instant.
type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time {
	return c.at
}
