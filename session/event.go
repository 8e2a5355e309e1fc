package session

import (
	"github.com/opd-ai/imscall/call"
	"github.com/opd-ai/imscall/cause"
)

// EventKind discriminates the session lifecycle events delivered by the
// transport layer. One tagged Event value replaces a wide listener interface:
// the router dispatches on the kind in a single switch.
type EventKind uint8

const (
	// EventIncoming announces a new inbound session.
	EventIncoming EventKind = iota
	// EventInitiating reports an outgoing session accepted by the radio.
	EventInitiating
	// EventProgressing reports remote ringing for an outgoing session.
	EventProgressing
	// EventStarted reports media established.
	EventStarted
	// EventStartFailed reports an outgoing session that failed before media.
	EventStartFailed
	// EventUpdated reports a capability or extras refresh only; it never
	// carries a state transition.
	EventUpdated
	// EventHeld confirms a hold request.
	EventHeld
	// EventHoldFailed reports a failed hold request.
	EventHoldFailed
	// EventHeldRemotely reports the remote party holding the call.
	EventHeldRemotely
	// EventResumed confirms a resume request.
	EventResumed
	// EventResumeFailed reports a failed resume request.
	EventResumeFailed
	// EventResumedRemotely reports the remote party resuming the call.
	EventResumedRemotely
	// EventTerminated reports session teardown with a reason code.
	EventTerminated
	// EventMerged confirms a conference merge.
	EventMerged
	// EventMergeFailed reports a failed conference merge.
	EventMergeFailed
	// EventHandoverStarted reports an access-technology handover beginning.
	EventHandoverStarted
	// EventHandoverDone reports a completed access-technology handover.
	EventHandoverDone
	// EventHandoverFailed reports a failed access-technology handover.
	EventHandoverFailed
	// EventDTMFReceived reports an inbound DTMF digit.
	EventDTMFReceived
	// EventQuality reports an RTP quality measurement.
	EventQuality
)

// String returns the event kind name.
func (k EventKind) String() string {
	names := [...]string{
		"incoming", "initiating", "progressing", "started", "start_failed",
		"updated", "held", "hold_failed", "held_remotely", "resumed",
		"resume_failed", "resumed_remotely", "terminated", "merged",
		"merge_failed", "handover_started", "handover_done", "handover_failed",
		"dtmf_received", "quality",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Reason carries a network failure or termination code plus the free-form
// extra message some networks attach to it.
type Reason struct {
	Code    cause.ReasonCode
	Message string
}

// Quality is one RTP media quality measurement.
type Quality struct {
	PacketLossPercent int
	JitterMillis      int
	RTTMillis         int
}

// Event is one asynchronous session callback, tagged by Kind. Only the
// fields relevant to the kind are populated.
type Event struct {
	Kind    EventKind
	Session call.Handle

	// Incoming session announcement.
	Address string
	Waiting bool

	// Media and transport description.
	VideoState call.VideoState
	AccessTech call.AccessTech

	// Failure and termination detail.
	Reason Reason

	// Merge peer for EventMerged/EventMergeFailed.
	Peer call.Handle

	// Handover source and target for EventHandoverDone/EventHandoverFailed.
	FromTech call.AccessTech
	ToTech   call.AccessTech

	// Inbound DTMF digit for EventDTMFReceived.
	Digit byte

	// Measurement for EventQuality.
	Quality Quality
}
