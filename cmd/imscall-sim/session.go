package main

import (
	"sync"

	"github.com/opd-ai/imscall"
	"github.com/opd-ai/imscall/call"
	"github.com/opd-ai/imscall/cause"
	"github.com/opd-ai/imscall/session"
)

// simSession is a loopback session client: every request is acknowledged
// with the matching success event, simulating a perfectly cooperative
// network.
type simSession struct {
	mu    sync.Mutex
	phone *imscall.Phone
}

func newSimSession() *simSession {
	return &simSession{}
}

func (s *simSession) attach(p *imscall.Phone) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phone = p
}

func (s *simSession) emit(ev session.Event) {
	s.mu.Lock()
	p := s.phone
	s.mu.Unlock()
	if p != nil {
		p.HandleSessionEvent(ev)
	}
}

// injectIncoming simulates the network announcing an inbound call.
func (s *simSession) injectIncoming(address string) call.Handle {
	h := call.NewHandle()
	s.emit(session.Event{
		Kind:       session.EventIncoming,
		Session:    h,
		Address:    address,
		AccessTech: call.AccessLTE,
	})
	return h
}

func (s *simSession) Dial(id call.Handle, req session.DialRequest) error {
	s.emit(session.Event{Kind: session.EventProgressing, Session: id})
	s.emit(session.Event{
		Kind:       session.EventStarted,
		Session:    id,
		VideoState: req.VideoState,
		AccessTech: call.AccessLTE,
	})
	return nil
}

func (s *simSession) Accept(id call.Handle, video call.VideoState) error {
	s.emit(session.Event{Kind: session.EventStarted, Session: id, VideoState: video})
	return nil
}

func (s *simSession) Reject(id call.Handle) error {
	s.emit(session.Event{
		Kind:    session.EventTerminated,
		Session: id,
		Reason:  session.Reason{Code: cause.CodeUserDeclined},
	})
	return nil
}

func (s *simSession) Terminate(id call.Handle, code cause.ReasonCode) error {
	s.emit(session.Event{
		Kind:    session.EventTerminated,
		Session: id,
		Reason:  session.Reason{Code: code},
	})
	return nil
}

func (s *simSession) Hold(id call.Handle) error {
	s.emit(session.Event{Kind: session.EventHeld, Session: id})
	return nil
}

func (s *simSession) Resume(id call.Handle) error {
	s.emit(session.Event{Kind: session.EventResumed, Session: id})
	return nil
}

func (s *simSession) Merge(host, peer call.Handle) error {
	s.emit(session.Event{Kind: session.EventMerged, Session: host, Peer: peer})
	return nil
}

func (s *simSession) ConsultativeTransfer(active, held call.Handle) error {
	s.emit(session.Event{
		Kind:    session.EventTerminated,
		Session: active,
		Reason:  session.Reason{Code: cause.CodeUserTerminated},
	})
	s.emit(session.Event{
		Kind:    session.EventTerminated,
		Session: held,
		Reason:  session.Reason{Code: cause.CodeUserTerminated},
	})
	return nil
}

func (s *simSession) ModifyVideo(id call.Handle, video call.VideoState) error {
	s.emit(session.Event{Kind: session.EventUpdated, Session: id, VideoState: video})
	return nil
}

func (s *simSession) SendDTMF(id call.Handle, digit byte) error {
	return nil
}
