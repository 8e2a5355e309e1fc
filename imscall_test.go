package imscall

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/opd-ai/imscall/call"
	"github.com/opd-ai/imscall/cause"
	"github.com/opd-ai/imscall/session"
	"github.com/opd-ai/imscall/tracker"
)

// loopbackSession acknowledges every request with the matching success
// event, so facade tests can drive full call flows without a network.
type loopbackSession struct {
	mu    sync.Mutex
	phone *Phone
}

func (l *loopbackSession) attach(p *Phone) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phone = p
}

func (l *loopbackSession) emit(ev session.Event) {
	l.mu.Lock()
	p := l.phone
	l.mu.Unlock()
	if p != nil {
		p.HandleSessionEvent(ev)
	}
}

func (l *loopbackSession) Dial(id call.Handle, req session.DialRequest) error {
	l.emit(session.Event{Kind: session.EventStarted, Session: id, AccessTech: call.AccessLTE})
	return nil
}

func (l *loopbackSession) Accept(id call.Handle, video call.VideoState) error {
	l.emit(session.Event{Kind: session.EventStarted, Session: id, VideoState: video})
	return nil
}

func (l *loopbackSession) Reject(id call.Handle) error {
	l.emit(session.Event{
		Kind:    session.EventTerminated,
		Session: id,
		Reason:  session.Reason{Code: cause.CodeUserDeclined},
	})
	return nil
}

func (l *loopbackSession) Terminate(id call.Handle, code cause.ReasonCode) error {
	l.emit(session.Event{
		Kind:    session.EventTerminated,
		Session: id,
		Reason:  session.Reason{Code: code},
	})
	return nil
}

func (l *loopbackSession) Hold(id call.Handle) error {
	l.emit(session.Event{Kind: session.EventHeld, Session: id})
	return nil
}

func (l *loopbackSession) Resume(id call.Handle) error {
	l.emit(session.Event{Kind: session.EventResumed, Session: id})
	return nil
}

func (l *loopbackSession) Merge(host, peer call.Handle) error {
	l.emit(session.Event{Kind: session.EventMerged, Session: host, Peer: peer})
	return nil
}

func (l *loopbackSession) ConsultativeTransfer(active, held call.Handle) error {
	return nil
}

func (l *loopbackSession) ModifyVideo(id call.Handle, video call.VideoState) error {
	return nil
}

func (l *loopbackSession) SendDTMF(id call.Handle, digit byte) error {
	return nil
}


// settle drains the queue twice: requests acknowledged by the loopback
// session post follow-up events from inside the first drain.
func settle(p *Phone) {
	p.Flush()
	p.Flush()
}

func newTestPhone(t *testing.T) (*Phone, *loopbackSession) {
	t.Helper()
	sess := &loopbackSession{}
	phone, err := New(NewOptions(sess))
	if err != nil {
		t.Fatalf("Failed to create phone: %v", err)
	}
	sess.attach(phone)
	t.Cleanup(phone.Kill)
	return phone, sess
}

func TestPhoneDialAndHangup(t *testing.T) {
	phone, _ := newTestPhone(t)

	handle, err := phone.Dial("+15550100")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	settle(phone)

	if phone.CallState(call.LegForeground) != call.StateActive {
		t.Errorf("Expected ACTIVE, got %s", phone.CallState(call.LegForeground))
	}
	if phone.PhoneState() != call.PhoneOffhook {
		t.Errorf("Expected OFFHOOK, got %s", phone.PhoneState())
	}
	if phone.Connection(handle) == nil {
		t.Fatal("Expected connection accessible")
	}

	if err := phone.Hangup(); err != nil {
		t.Fatalf("Hangup failed: %v", err)
	}
	settle(phone)
	if phone.PhoneState() != call.PhoneIdle {
		t.Errorf("Expected IDLE, got %s", phone.PhoneState())
	}
}

func TestPhoneCallWaitingFlow(t *testing.T) {
	phone, sess := newTestPhone(t)

	first, err := phone.Dial("+15550100")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	settle(phone)

	second := call.NewHandle()
	sess.emit(session.Event{Kind: session.EventIncoming, Session: second, Address: "+15550101"})
	settle(phone)
	if phone.PhoneState() != call.PhoneRinging {
		t.Fatalf("Expected RINGING, got %s", phone.PhoneState())
	}

	if err := phone.Answer(); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	settle(phone)

	if phone.CallState(call.LegForeground) != call.StateActive {
		t.Errorf("Expected foreground ACTIVE, got %s", phone.CallState(call.LegForeground))
	}
	if phone.CallState(call.LegBackground) != call.StateHolding {
		t.Errorf("Expected background HOLDING, got %s", phone.CallState(call.LegBackground))
	}
	if fg := phone.Connection(second); fg == nil || fg.Owner() != call.LegForeground {
		t.Error("Expected waiting call in the foreground")
	}
	if bg := phone.Connection(first); bg == nil || bg.Owner() != call.LegBackground {
		t.Error("Expected first call held in the background")
	}

	// Swap back and forth.
	if err := phone.Hold(); err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	settle(phone)
	if fg := phone.Connection(first); fg == nil || fg.Owner() != call.LegForeground {
		t.Error("Expected first call back in the foreground after swap")
	}
}

func TestPhoneConference(t *testing.T) {
	phone, _ := newTestPhone(t)

	first, err := phone.Dial("+15550100")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	settle(phone)
	if err := phone.Hold(); err != nil {
		t.Fatalf("Hold failed: %v", err)
	}
	settle(phone)

	if _, err := phone.Dial("+15550101"); err != nil {
		t.Fatalf("Second dial failed: %v", err)
	}
	settle(phone)

	if err := phone.Conference(); err != nil {
		t.Fatalf("Conference failed: %v", err)
	}
	settle(phone)

	if conn := phone.Connection(first); conn == nil || conn.DisconnectCause() != cause.DisconnectMergedSuccessfully {
		t.Error("Expected held call folded into the conference")
	}
	if phone.CallState(call.LegForeground) != call.StateActive {
		t.Errorf("Expected foreground ACTIVE, got %s", phone.CallState(call.LegForeground))
	}
}

func TestPhoneLoadsCarrierConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carrier.yaml")
	if err := os.WriteFile(path, []byte("allow_holding_video_calls: false\n"), 0o600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	sess := &loopbackSession{}
	opts := NewOptions(sess)
	opts.ConfigPath = path
	phone, err := New(opts)
	if err != nil {
		t.Fatalf("Failed to create phone: %v", err)
	}
	sess.attach(phone)
	defer phone.Kill()

	if _, err := phone.DialVideo("+15550100"); err != nil {
		t.Fatalf("DialVideo failed: %v", err)
	}
	settle(phone)

	if err := phone.Hold(); !errors.Is(err, tracker.ErrHoldNotAllowed) {
		t.Errorf("Expected ErrHoldNotAllowed from carrier policy, got %v", err)
	}
}

func TestPhoneRequiresSession(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, tracker.ErrSessionRequired) {
		t.Errorf("Expected ErrSessionRequired, got %v", err)
	}
}
