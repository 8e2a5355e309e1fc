package cause

// ReasonCode is a network-supplied session termination or failure code.
// The values form the fixed enumeration carried by every failure callback
// from the session layer.
type ReasonCode int

const (
	// CodeUnspecified indicates no reason was supplied.
	CodeUnspecified ReasonCode = 0

	// CodeAnyMessage is the wildcard reason code used only in carrier remap
	// rules: it matches any code as long as the extra message matches.
	CodeAnyMessage ReasonCode = -1
)

// Local (device-side) codes.
const (
	CodeLocalIllegalArgument        ReasonCode = 101
	CodeLocalCallDeclined           ReasonCode = 102
	CodeLocalPowerOff               ReasonCode = 103
	CodeLocalNetworkNoService       ReasonCode = 104
	CodeLocalServiceUnavailable     ReasonCode = 105
	CodeLocalCallCSRetryRequired    ReasonCode = 106
	CodeLocalEndedByConferenceMerge ReasonCode = 107
)

// Timeout codes.
const (
	CodeTimeoutNoAnswer           ReasonCode = 201
	CodeTimeoutNoAnswerCallUpdate ReasonCode = 202
)

// Call-barring and restriction codes.
const (
	CodeCallBarred ReasonCode = 240
	CodeFDNBlocked ReasonCode = 241
)

// SIP result codes surfaced by the session layer.
const (
	CodeSIPBadRequest             ReasonCode = 331
	CodeSIPForbidden              ReasonCode = 332
	CodeSIPNotFound               ReasonCode = 333
	CodeSIPRequestTimeout         ReasonCode = 334
	CodeSIPTemporarilyUnavailable ReasonCode = 335
	CodeSIPAddressIncomplete      ReasonCode = 337
	CodeSIPBusy                   ReasonCode = 338
	CodeSIPRequestCancelled       ReasonCode = 341
	CodeSIPNotAcceptable          ReasonCode = 342
	CodeSIPServerInternalError    ReasonCode = 351
	CodeSIPServiceUnavailable     ReasonCode = 353
	CodeSIPUserRejected           ReasonCode = 361
	CodeSIPGlobalError            ReasonCode = 362
)

// Media codes.
const (
	CodeMediaUnavailable ReasonCode = 401
)

// User action codes.
const (
	CodeUserTerminated         ReasonCode = 501
	CodeUserNoAnswer           ReasonCode = 502
	CodeUserIgnore             ReasonCode = 503
	CodeUserDeclined           ReasonCode = 504
	CodeUserTerminatedByRemote ReasonCode = 510
)

// Network condition codes.
const (
	CodeNetworkDetach     ReasonCode = 611
	CodeNetworkCongestion ReasonCode = 612
)

// Extended condition codes.
const (
	// CodeAnsweredElsewhere indicates the call was picked up on another
	// device registered to the same subscriber.
	CodeAnsweredElsewhere ReasonCode = 1014

	// CodeLowBattery indicates the network terminated or refused the call
	// because the device reported critically low battery.
	CodeLowBattery ReasonCode = 1300

	// CodeEmergencyTempFailure indicates a temporary emergency routing
	// failure; the dialer may retry on another domain.
	CodeEmergencyTempFailure ReasonCode = 1622

	// CodeEmergencyPermFailure indicates a permanent emergency routing
	// failure.
	CodeEmergencyPermFailure ReasonCode = 1623

	// CodeAlternateEmergencyCall requests a fresh dial attempt using the
	// network-selected alternate emergency number.
	CodeAlternateEmergencyCall ReasonCode = 1624

	// CodeRetryWithoutRTT requests a fresh dial attempt with real-time text
	// disabled.
	CodeRetryWithoutRTT ReasonCode = 3001
)

// TriggersRedial reports whether the code asks the tracker to re-dial the
// last outgoing attempt locally instead of finalizing the disconnect. Exactly
// these codes, no others, trigger automatic retry.
func (c ReasonCode) TriggersRedial() bool {
	switch c {
	case CodeRetryWithoutRTT, CodeAlternateEmergencyCall, CodeLocalCallCSRetryRequired:
		return true
	default:
		return false
	}
}
