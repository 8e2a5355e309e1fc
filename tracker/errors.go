package tracker

import "errors"

// Call-state errors returned synchronously from public operations. These
// indicate an invalid operation for the current call state; they are never
// retried internally and always propagate to the caller.
var (
	// ErrTooManyCalls indicates both the foreground and background legs are
	// already occupied.
	ErrTooManyCalls = errors.New("dialing would exceed concurrent call limit")

	// ErrAlreadyDialing indicates another outgoing dial is still pending.
	ErrAlreadyDialing = errors.New("a dial request is already pending")

	// ErrDialDuringRinging indicates a dial attempt while an inbound call is
	// ringing.
	ErrDialDuringRinging = errors.New("cannot dial while a call is ringing")

	// ErrNotRinging indicates accept or reject without a ringing call.
	ErrNotRinging = errors.New("no ringing call")

	// ErrNoConnections indicates an operation on an empty leg.
	ErrNoConnections = errors.New("no connections on leg")

	// ErrNoActiveCall indicates an operation requiring an active foreground
	// call.
	ErrNoActiveCall = errors.New("no active call")

	// ErrTransferPreconditions indicates explicit call transfer without an
	// active plus a held call.
	ErrTransferPreconditions = errors.New("transfer requires an active and a held call")

	// ErrEmptyAddress indicates a dial request without a destination.
	ErrEmptyAddress = errors.New("dial address is empty")

	// ErrHoldSwapBusy indicates an operation needing the hold/swap
	// coordinator while another hold or resume is still in flight.
	ErrHoldSwapBusy = errors.New("a hold or swap operation is in progress")

	// ErrHoldNotAllowed indicates the carrier forbids holding this call.
	ErrHoldNotAllowed = errors.New("carrier does not allow holding this call")
)

// Lifecycle errors.
var (
	// ErrTrackerStopped indicates the tracker has been shut down.
	ErrTrackerStopped = errors.New("tracker is stopped")

	// ErrSessionRequired indicates construction without a session client.
	ErrSessionRequired = errors.New("session client is required")
)
