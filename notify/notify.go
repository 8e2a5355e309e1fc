// Package notify defines the notification sink through which the call
// tracker reports state changes to the telecom/UI layer. Notifications are
// fire-and-forget: the tracker never consults a return value.
//
// The package ships two implementations: Nop, and MQTTSink which publishes
// phone events as JSON messages for external consumers.
package notify

import (
	"github.com/opd-ai/imscall/call"
	"github.com/opd-ai/imscall/cause"
)

// SuppServiceKind names the supplementary service operation that failed.
type SuppServiceKind uint8

const (
	// SuppServiceHold is a failed hold request.
	SuppServiceHold SuppServiceKind = iota
	// SuppServiceResume is a failed resume request.
	SuppServiceResume
	// SuppServiceConference is a failed conference merge.
	SuppServiceConference
	// SuppServiceTransfer is a failed explicit call transfer.
	SuppServiceTransfer
)

// String returns the supplementary service name.
func (k SuppServiceKind) String() string {
	switch k {
	case SuppServiceHold:
		return "hold"
	case SuppServiceResume:
		return "resume"
	case SuppServiceConference:
		return "conference"
	case SuppServiceTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// Sink receives call tracker notifications. Implementations must not call
// back into the tracker synchronously.
type Sink interface {
	// PreciseCallStateChanged signals that some leg or connection state
	// changed. Emitted at most once per handled session event.
	PreciseCallStateChanged()

	// NewRingingConnection announces an unanswered inbound call.
	NewRingingConnection(h call.Handle, address string)

	// PhoneStateChanged reports an aggregate phone state transition.
	PhoneStateChanged(old, new call.PhoneState)

	// SuppServiceFailed reports a failed supplementary service operation.
	SuppServiceFailed(kind SuppServiceKind)

	// Disconnected reports a finalized disconnect for a connection.
	Disconnected(h call.Handle, d cause.Disconnect, p cause.Precise)
}

// Nop is a Sink that discards every notification.
type Nop struct{}

// PreciseCallStateChanged implements Sink.
func (Nop) PreciseCallStateChanged() {}

// NewRingingConnection implements Sink.
func (Nop) NewRingingConnection(call.Handle, string) {}

// PhoneStateChanged implements Sink.
func (Nop) PhoneStateChanged(call.PhoneState, call.PhoneState) {}

// SuppServiceFailed implements Sink.
func (Nop) SuppServiceFailed(SuppServiceKind) {}

// Disconnected implements Sink.
func (Nop) Disconnected(call.Handle, cause.Disconnect, cause.Precise) {}
