package cause

// Disconnect is the user-facing reason a call ended.
type Disconnect int

const (
	// DisconnectNotDisconnected indicates the call is still in progress.
	DisconnectNotDisconnected Disconnect = iota
	// DisconnectIncomingMissed indicates an inbound call that rang out.
	DisconnectIncomingMissed
	// DisconnectNormal indicates the remote party ended the call.
	DisconnectNormal
	// DisconnectLocal indicates the local user ended the call.
	DisconnectLocal
	// DisconnectBusy indicates the remote party was busy.
	DisconnectBusy
	// DisconnectCongestion indicates network congestion.
	DisconnectCongestion
	// DisconnectInvalidNumber indicates an unassigned or malformed number.
	DisconnectInvalidNumber
	// DisconnectNumberUnreachable indicates the remote number is unreachable.
	DisconnectNumberUnreachable
	// DisconnectServerUnreachable indicates the IMS server is unreachable.
	DisconnectServerUnreachable
	// DisconnectServerError indicates an IMS server failure.
	DisconnectServerError
	// DisconnectTimedOut indicates the call attempt timed out.
	DisconnectTimedOut
	// DisconnectPowerOff indicates the radio was powered off.
	DisconnectPowerOff
	// DisconnectOutOfService indicates no network service.
	DisconnectOutOfService
	// DisconnectIncomingRejected indicates the user declined an inbound call.
	DisconnectIncomingRejected
	// DisconnectIncomingAutoRejected indicates policy declined an inbound call
	// without user interaction.
	DisconnectIncomingAutoRejected
	// DisconnectCallBarred indicates the call was blocked by call barring.
	DisconnectCallBarred
	// DisconnectFDNBlocked indicates the call was blocked by fixed dialing
	// number restrictions.
	DisconnectFDNBlocked
	// DisconnectAnsweredElsewhere indicates another device took the call.
	DisconnectAnsweredElsewhere
	// DisconnectMergedSuccessfully indicates the connection ended because it
	// was folded into a conference.
	DisconnectMergedSuccessfully
	// DisconnectLowBattery indicates an established call dropped on low
	// battery.
	DisconnectLowBattery
	// DisconnectDialLowBattery indicates a dial attempt refused on low
	// battery.
	DisconnectDialLowBattery
	// DisconnectEmergencyTemp indicates a temporary emergency routing failure.
	DisconnectEmergencyTemp
	// DisconnectEmergencyPerm indicates a permanent emergency routing failure.
	DisconnectEmergencyPerm
	// DisconnectMediaTimeout indicates the media path was lost.
	DisconnectMediaTimeout
	// DisconnectErrorUnspecified is the fallback for unmapped codes.
	DisconnectErrorUnspecified
)

// String returns the disconnect-cause name.
func (d Disconnect) String() string {
	names := map[Disconnect]string{
		DisconnectNotDisconnected:      "NOT_DISCONNECTED",
		DisconnectIncomingMissed:       "INCOMING_MISSED",
		DisconnectNormal:               "NORMAL",
		DisconnectLocal:                "LOCAL",
		DisconnectBusy:                 "BUSY",
		DisconnectCongestion:           "CONGESTION",
		DisconnectInvalidNumber:        "INVALID_NUMBER",
		DisconnectNumberUnreachable:    "NUMBER_UNREACHABLE",
		DisconnectServerUnreachable:    "SERVER_UNREACHABLE",
		DisconnectServerError:          "SERVER_ERROR",
		DisconnectTimedOut:             "TIMED_OUT",
		DisconnectPowerOff:             "POWER_OFF",
		DisconnectOutOfService:         "OUT_OF_SERVICE",
		DisconnectIncomingRejected:     "INCOMING_REJECTED",
		DisconnectIncomingAutoRejected: "INCOMING_AUTO_REJECTED",
		DisconnectCallBarred:           "CALL_BARRED",
		DisconnectFDNBlocked:           "FDN_BLOCKED",
		DisconnectAnsweredElsewhere:    "ANSWERED_ELSEWHERE",
		DisconnectMergedSuccessfully:   "IMS_MERGED_SUCCESSFULLY",
		DisconnectLowBattery:           "LOW_BATTERY",
		DisconnectDialLowBattery:       "DIAL_LOW_BATTERY",
		DisconnectEmergencyTemp:        "EMERGENCY_TEMP_FAILURE",
		DisconnectEmergencyPerm:        "EMERGENCY_PERM_FAILURE",
		DisconnectMediaTimeout:         "MEDIA_TIMEOUT",
		DisconnectErrorUnspecified:     "ERROR_UNSPECIFIED",
	}
	if name, ok := names[d]; ok {
		return name
	}
	return "UNKNOWN"
}

// Precise is a finer-grained diagnostic code paralleling Disconnect, used
// purely for telemetry and carrier diagnostics.
type Precise int

const (
	// PreciseUnspecified is the default when no precise mapping exists.
	PreciseUnspecified Precise = 0
	// PreciseNormal corresponds to a normal call clearing.
	PreciseNormal Precise = 16
	// PreciseBusy corresponds to user busy.
	PreciseBusy Precise = 17
	// PreciseNumberChanged corresponds to a reassigned number.
	PreciseNumberChanged Precise = 22
	// PreciseCallRejected corresponds to call rejected.
	PreciseCallRejected Precise = 21
	// PreciseNormalUnspecified corresponds to normal, unspecified clearing.
	PreciseNormalUnspecified Precise = 31
	// PreciseCongestion corresponds to network congestion.
	PreciseCongestion Precise = 34
	// PreciseTemporaryFailure corresponds to a temporary network failure.
	PreciseTemporaryFailure Precise = 41
	// PreciseSIPBadRequest corresponds to SIP 400.
	PreciseSIPBadRequest Precise = 400
	// PreciseSIPForbidden corresponds to SIP 403.
	PreciseSIPForbidden Precise = 403
	// PreciseSIPNotFound corresponds to SIP 404.
	PreciseSIPNotFound Precise = 404
	// PreciseSIPRequestTimeout corresponds to SIP 408.
	PreciseSIPRequestTimeout Precise = 408
	// PreciseSIPTemporarilyUnavailable corresponds to SIP 480.
	PreciseSIPTemporarilyUnavailable Precise = 480
	// PreciseSIPBusyHere corresponds to SIP 486.
	PreciseSIPBusyHere Precise = 486
	// PreciseSIPRequestCancelled corresponds to SIP 487.
	PreciseSIPRequestCancelled Precise = 487
	// PreciseSIPNotAcceptableHere corresponds to SIP 488.
	PreciseSIPNotAcceptableHere Precise = 488
	// PreciseSIPServerError corresponds to SIP 5xx.
	PreciseSIPServerError Precise = 500
	// PreciseSIPServiceUnavailable corresponds to SIP 503.
	PreciseSIPServiceUnavailable Precise = 503
	// PreciseSIPGlobalError corresponds to SIP 6xx.
	PreciseSIPGlobalError Precise = 600
)
