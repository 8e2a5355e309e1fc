package call

import "github.com/google/uuid"

// Handle uniquely identifies a Connection for its whole lifetime. The same
// value identifies the underlying network session, so events arriving from
// the session layer can be routed without a separate correlation table.
type Handle uuid.UUID

// NilHandle is the zero Handle, used where no connection is referenced.
var NilHandle = Handle(uuid.Nil)

// NewHandle allocates a fresh connection handle.
func NewHandle() Handle {
	return Handle(uuid.New())
}

// String returns the canonical UUID form of the handle.
func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// IsNil reports whether the handle references no connection.
func (h Handle) IsNil() bool {
	return h == NilHandle
}

// State represents the state of a single Connection, and by aggregation the
// state of a Leg.
type State uint8

const (
	// StateIdle indicates no activity.
	StateIdle State = iota
	// StateActive indicates a connected call with live media.
	StateActive
	// StateHolding indicates a call placed on hold.
	StateHolding
	// StateDialing indicates an outgoing call before any network progress.
	StateDialing
	// StateAlerting indicates an outgoing call that is ringing remotely.
	StateAlerting
	// StateIncoming indicates a new inbound call ringing locally.
	StateIncoming
	// StateWaiting indicates an inbound call ringing while another call is up.
	StateWaiting
	// StateDisconnected indicates a terminal, finished connection.
	StateDisconnected
	// StateDisconnecting indicates a teardown in progress.
	StateDisconnecting
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateActive:
		return "ACTIVE"
	case StateHolding:
		return "HOLDING"
	case StateDialing:
		return "DIALING"
	case StateAlerting:
		return "ALERTING"
	case StateIncoming:
		return "INCOMING"
	case StateWaiting:
		return "WAITING"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateDisconnecting:
		return "DISCONNECTING"
	default:
		return "UNKNOWN"
	}
}

// IsAlive reports whether the state represents a call that still occupies a
// slot (anything but idle and terminal disconnect).
func (s State) IsAlive() bool {
	switch s {
	case StateIdle, StateDisconnected:
		return false
	default:
		return true
	}
}

// IsRinging reports whether the state represents an unanswered inbound call.
func (s State) IsRinging() bool {
	return s == StateIncoming || s == StateWaiting
}

// VideoState describes the media directionality of a call.
type VideoState uint8

const (
	// VideoStateAudioOnly indicates no video in either direction.
	VideoStateAudioOnly VideoState = 0x0
	// VideoStateTxEnabled indicates outgoing video only.
	VideoStateTxEnabled VideoState = 0x1
	// VideoStateRxEnabled indicates incoming video only.
	VideoStateRxEnabled VideoState = 0x2
	// VideoStateBidirectional indicates video in both directions.
	VideoStateBidirectional VideoState = VideoStateTxEnabled | VideoStateRxEnabled
	// VideoStatePaused is a modifier bit indicating video is paused.
	VideoStatePaused VideoState = 0x4
)

// HasVideo reports whether any video direction is enabled.
func (v VideoState) HasVideo() bool {
	return v&VideoStateBidirectional != 0
}

// IsPaused reports whether the paused modifier bit is set.
func (v VideoState) IsPaused() bool {
	return v&VideoStatePaused != 0
}

// LegID names one of the four fixed call slots.
type LegID uint8

const (
	// LegNone indicates a connection not attached to any leg.
	LegNone LegID = iota
	// LegRinging holds unanswered inbound calls.
	LegRinging
	// LegForeground holds the active call.
	LegForeground
	// LegBackground holds held calls.
	LegBackground
	// LegHandover holds calls mid handover between access technologies.
	LegHandover
)

// String returns the slot name.
func (id LegID) String() string {
	switch id {
	case LegNone:
		return "none"
	case LegRinging:
		return "ringing"
	case LegForeground:
		return "foreground"
	case LegBackground:
		return "background"
	case LegHandover:
		return "handover"
	default:
		return "unknown"
	}
}

// PhoneState is the aggregate state of the whole phone, derived from the
// four legs and the pending dial request.
type PhoneState uint8

const (
	// PhoneIdle indicates no call activity at all.
	PhoneIdle PhoneState = iota
	// PhoneRinging indicates an unanswered inbound call.
	PhoneRinging
	// PhoneOffhook indicates any other call activity.
	PhoneOffhook
)

// String returns the aggregate state name.
func (p PhoneState) String() string {
	switch p {
	case PhoneIdle:
		return "IDLE"
	case PhoneRinging:
		return "RINGING"
	case PhoneOffhook:
		return "OFFHOOK"
	default:
		return "UNKNOWN"
	}
}

// AccessTech identifies the radio access technology a call is carried over.
type AccessTech uint8

const (
	// AccessUnknown indicates the transport has not been reported yet.
	AccessUnknown AccessTech = iota
	// AccessLTE indicates cellular VoLTE transport.
	AccessLTE
	// AccessWIFI indicates VoWiFi transport.
	AccessWIFI
	// AccessNR indicates 5G NR transport.
	AccessNR
)

// IsMetered reports whether the access technology counts against mobile data.
func (a AccessTech) IsMetered() bool {
	return a == AccessLTE || a == AccessNR
}

// String returns the access technology name.
func (a AccessTech) String() string {
	switch a {
	case AccessLTE:
		return "LTE"
	case AccessWIFI:
		return "WIFI"
	case AccessNR:
		return "NR"
	default:
		return "UNKNOWN"
	}
}

// ComputePhoneState derives the aggregate phone state from the four legs and
// the pending dial request. It is a pure function of its inputs: the ringing
// leg ringing wins, any other live leg or a pending dial yields off-hook,
// otherwise the phone is idle.
func ComputePhoneState(ringing, foreground, background, handover State, pendingDial bool) PhoneState {
	if ringing.IsRinging() {
		return PhoneRinging
	}
	if foreground.IsAlive() || background.IsAlive() || handover.IsAlive() || ringing.IsAlive() || pendingDial {
		return PhoneOffhook
	}
	return PhoneIdle
}
