package cause

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// RemapRule is one carrier-configured reason-code substitution. A rule with
// From == CodeAnyMessage matches any reason code whose extra message equals
// Message; otherwise both the code and the message must match. Message
// comparison is case-insensitive.
type RemapRule struct {
	From    ReasonCode
	Message string
	To      ReasonCode
}

type remapKey struct {
	code    ReasonCode
	message string
}

// Translator maps network reason codes to disconnect and precise causes,
// applying the carrier remap table first. The remap table is read-mostly:
// lookups never mutate it and reloads replace it wholesale.
type Translator struct {
	mu    sync.RWMutex
	remap map[remapKey]ReasonCode
}

// NewTranslator creates a translator with an empty carrier remap table.
func NewTranslator() *Translator {
	return &Translator{
		remap: make(map[remapKey]ReasonCode),
	}
}

// LoadRemap replaces the whole carrier remap table with the given rules.
// Passing nil or an empty slice clears the table.
func (t *Translator) LoadRemap(rules []RemapRule) {
	remap := make(map[remapKey]ReasonCode, len(rules))
	for _, r := range rules {
		remap[remapKey{code: r.From, message: strings.ToLower(r.Message)}] = r.To
	}

	t.mu.Lock()
	t.remap = remap
	t.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "LoadRemap",
		"rule_count": len(rules),
	}).Debug("Carrier reason-code remap table replaced")
}

// resolve applies the carrier remap table: first the exact (code, message)
// pair, then a rule for the code alone, then the wildcard keyed on the
// message alone when the message is non-empty, otherwise the code passes
// through unchanged.
func (t *Translator) resolve(code ReasonCode, message string) ReasonCode {
	msg := strings.ToLower(message)

	t.mu.RLock()
	defer t.mu.RUnlock()

	if to, ok := t.remap[remapKey{code: code, message: msg}]; ok {
		return to
	}
	if msg != "" {
		if to, ok := t.remap[remapKey{code: code}]; ok {
			return to
		}
		if to, ok := t.remap[remapKey{code: CodeAnyMessage, message: msg}]; ok {
			return to
		}
	}
	return code
}

// Translate maps a reason code plus its extra message to the user-facing
// disconnect cause and the diagnostic precise cause. The dialing flag is the
// prior call state: some codes distinguish a failed dial attempt from a
// dropped established call.
func (t *Translator) Translate(code ReasonCode, message string, dialing bool) (Disconnect, Precise) {
	resolved := t.resolve(code, message)
	d := disconnectFor(resolved, dialing)
	p := preciseFor(resolved)

	if resolved != code {
		logrus.WithFields(logrus.Fields{
			"function": "Translate",
			"from":     int(code),
			"to":       int(resolved),
			"cause":    d.String(),
		}).Debug("Reason code remapped by carrier config")
	}
	return d, p
}

// disconnectFor is the fixed, total mapping from resolved reason codes to
// disconnect causes. Unknown codes fall back to ErrorUnspecified.
func disconnectFor(code ReasonCode, dialing bool) Disconnect {
	switch code {
	case CodeUserTerminated, CodeUserTerminatedByRemote, CodeUserNoAnswer:
		return DisconnectNormal
	case CodeLocalCallDeclined:
		return DisconnectLocal
	case CodeLocalEndedByConferenceMerge:
		return DisconnectMergedSuccessfully
	case CodeUserDeclined, CodeSIPUserRejected:
		return DisconnectIncomingRejected
	case CodeUserIgnore:
		return DisconnectIncomingMissed
	case CodeSIPBusy:
		return DisconnectBusy
	case CodeNetworkCongestion:
		return DisconnectCongestion
	case CodeSIPNotFound, CodeSIPAddressIncomplete:
		return DisconnectInvalidNumber
	case CodeSIPTemporarilyUnavailable:
		return DisconnectNumberUnreachable
	case CodeSIPServerInternalError, CodeSIPGlobalError:
		return DisconnectServerError
	case CodeSIPServiceUnavailable:
		return DisconnectServerUnreachable
	case CodeSIPRequestTimeout, CodeTimeoutNoAnswer, CodeTimeoutNoAnswerCallUpdate:
		return DisconnectTimedOut
	case CodeLocalPowerOff:
		return DisconnectPowerOff
	case CodeLocalNetworkNoService, CodeNetworkDetach:
		return DisconnectOutOfService
	case CodeCallBarred:
		return DisconnectCallBarred
	case CodeFDNBlocked:
		return DisconnectFDNBlocked
	case CodeAnsweredElsewhere:
		return DisconnectAnsweredElsewhere
	case CodeMediaUnavailable:
		return DisconnectMediaTimeout
	case CodeEmergencyTempFailure:
		return DisconnectEmergencyTemp
	case CodeEmergencyPermFailure:
		return DisconnectEmergencyPerm
	case CodeLowBattery:
		// A dial attempt refused on low battery is reported differently from
		// an established call that dropped.
		if dialing {
			return DisconnectDialLowBattery
		}
		return DisconnectLowBattery
	default:
		return DisconnectErrorUnspecified
	}
}

// preciseCauses is the fixed diagnostics lookup, independent of the
// disconnect-cause mapping. Codes absent from the table report
// PreciseUnspecified.
var preciseCauses = map[ReasonCode]Precise{
	CodeUserTerminated:            PreciseNormal,
	CodeUserTerminatedByRemote:    PreciseNormal,
	CodeUserNoAnswer:              PreciseNormalUnspecified,
	CodeUserDeclined:              PreciseCallRejected,
	CodeSIPUserRejected:           PreciseCallRejected,
	CodeSIPBusy:                   PreciseSIPBusyHere,
	CodeNetworkCongestion:         PreciseCongestion,
	CodeSIPBadRequest:             PreciseSIPBadRequest,
	CodeSIPForbidden:              PreciseSIPForbidden,
	CodeSIPNotFound:               PreciseSIPNotFound,
	CodeSIPRequestTimeout:         PreciseSIPRequestTimeout,
	CodeSIPTemporarilyUnavailable: PreciseSIPTemporarilyUnavailable,
	CodeSIPRequestCancelled:       PreciseSIPRequestCancelled,
	CodeSIPNotAcceptable:          PreciseSIPNotAcceptableHere,
	CodeSIPServerInternalError:    PreciseSIPServerError,
	CodeSIPServiceUnavailable:     PreciseSIPServiceUnavailable,
	CodeSIPGlobalError:            PreciseSIPGlobalError,
	CodeNetworkDetach:             PreciseTemporaryFailure,
}

func preciseFor(code ReasonCode) Precise {
	if p, ok := preciseCauses[code]; ok {
		return p
	}
	return PreciseUnspecified
}

// AdjustUnconnectedIncoming corrects the final cause for an inbound call that
// terminated before it was ever connected: a normal or auto-rejected clearing
// means the call rang out and is reported as missed, answered-elsewhere
// passes through unchanged, and everything else is reported as rejected.
func AdjustUnconnectedIncoming(d Disconnect) Disconnect {
	switch d {
	case DisconnectNormal, DisconnectIncomingAutoRejected, DisconnectIncomingMissed:
		return DisconnectIncomingMissed
	case DisconnectAnsweredElsewhere:
		return d
	default:
		return DisconnectIncomingRejected
	}
}
