// Package session defines the contract consumed from the network/IMS
// transport layer. The tracker issues requests through Client and receives
// the asynchronous session lifecycle as a stream of sum-typed Events; the
// transport's internals (SIP signalling, RTP media) are not modeled here.
package session

import (
	"github.com/opd-ai/imscall/call"
	"github.com/opd-ai/imscall/cause"
)

// DialRequest carries the parameters of one outgoing call attempt. The
// tracker keeps the last request so that network-directed retries (CS
// fallback, RTT-less redial, alternate emergency number) can re-issue it.
type DialRequest struct {
	Address      string
	VideoState   call.VideoState
	Emergency    bool
	RTTEnabled   bool
	CLIRMode     int
	ExtraHeaders map[string]string
}

// Client is the narrow interface to the IMS session layer. Every method is
// asynchronous: it queues the request with the radio and returns; completion
// arrives later as an Event on the tracker's queue. The radio processes at
// most one outstanding hold or resume request per session at a time.
type Client interface {
	// Dial starts an outgoing session identified by the caller-allocated
	// handle.
	Dial(id call.Handle, req DialRequest) error

	// Accept answers a ringing inbound session with the given video state.
	Accept(id call.Handle, video call.VideoState) error

	// Reject declines a ringing inbound session.
	Reject(id call.Handle) error

	// Terminate tears down a session.
	Terminate(id call.Handle, code cause.ReasonCode) error

	// Hold suspends the session's media path.
	Hold(id call.Handle) error

	// Resume reactivates a held session's media path.
	Resume(id call.Handle) error

	// Merge folds the peer session into the host session's conference.
	Merge(host, peer call.Handle) error

	// ConsultativeTransfer connects the active and held sessions to each
	// other and drops out of both.
	ConsultativeTransfer(active, held call.Handle) error

	// ModifyVideo requests a media renegotiation to the given video state,
	// used for downgrade-to-audio and video pause signalling.
	ModifyVideo(id call.Handle, video call.VideoState) error

	// SendDTMF transmits one DTMF digit on the session.
	SendDTMF(id call.Handle, digit byte) error
}
