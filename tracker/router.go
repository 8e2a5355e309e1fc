package tracker

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/imscall/call"
	"github.com/opd-ai/imscall/cause"
	"github.com/opd-ai/imscall/notify"
	"github.com/opd-ai/imscall/session"
)

// route dispatches one session event to its handler. Handlers report whether
// the call model changed; a changed model emits exactly one precise state
// notification and a phone state recomputation, no matter how many internal
// transitions the event caused.
func (t *Tracker) route(ev session.Event) {
	log := logrus.WithFields(logrus.Fields{
		"function": "route",
		"event":    ev.Kind.String(),
		"session":  ev.Session.String(),
	})
	log.Debug("Session event")

	var changed bool
	switch ev.Kind {
	case session.EventIncoming:
		changed = t.onIncoming(ev)
	case session.EventInitiating:
		changed = t.onInitiating(ev)
	case session.EventProgressing:
		changed = t.onProgressing(ev)
	case session.EventStarted:
		changed = t.onStarted(ev)
	case session.EventStartFailed:
		changed = t.onStartFailed(ev)
	case session.EventUpdated:
		changed = t.onUpdated(ev)
	case session.EventHeld:
		changed = t.onHeld(ev)
	case session.EventHoldFailed:
		changed = t.onHoldFailed(ev)
	case session.EventHeldRemotely, session.EventResumedRemotely:
		changed = t.onRemoteHoldChange(ev)
	case session.EventResumed:
		changed = t.onResumed(ev)
	case session.EventResumeFailed:
		changed = t.onResumeFailed(ev)
	case session.EventTerminated:
		changed = t.onTerminated(ev)
	case session.EventMerged:
		changed = t.onMerged(ev)
	case session.EventMergeFailed:
		changed = t.onMergeFailed(ev)
	case session.EventHandoverStarted:
		changed = t.onHandoverStarted(ev)
	case session.EventHandoverDone:
		changed = t.onHandoverDone(ev)
	case session.EventHandoverFailed:
		changed = t.onHandoverFailed(ev)
	case session.EventDTMFReceived:
		t.onDTMF(ev)
	case session.EventQuality:
		t.onQuality(ev)
	default:
		log.Warn("Unknown session event kind")
	}

	if changed {
		t.finishMutation()
		t.sink.PreciseCallStateChanged()
	}
}

// connFor resolves the event's connection, logging events for sessions the
// tracker does not know. Late events for already-pruned connections are
// normal during teardown.
func (t *Tracker) connFor(ev session.Event) *call.Connection {
	c := t.reg.Get(ev.Session)
	if c == nil {
		logrus.WithFields(logrus.Fields{
			"function": "connFor",
			"event":    ev.Kind.String(),
			"session":  ev.Session.String(),
		}).Debug("Event for unknown session ignored")
	}
	return c
}

// applyMedia folds the event's media description into the connection.
func applyMedia(c *call.Connection, ev session.Event) {
	if ev.AccessTech != call.AccessUnknown {
		c.SetAccessTech(ev.AccessTech)
	}
	if ev.VideoState != c.VideoState() && (ev.VideoState != call.VideoStateAudioOnly || c.VideoState().HasVideo()) {
		c.SetVideoState(ev.VideoState)
	}
}

func (t *Tracker) onIncoming(ev session.Event) bool {
	if t.reg.Get(ev.Session) != nil {
		logrus.WithFields(logrus.Fields{
			"function": "onIncoming",
			"session":  ev.Session.String(),
		}).Warn("Duplicate incoming announcement ignored")
		return false
	}

	waiting := ev.Waiting || t.foreground.State().IsAlive() || t.background.State().IsAlive() || t.pendingMO != nil
	conn := call.NewIncoming(ev.Session, ev.Address, ev.VideoState, waiting, t.clock.Now())
	if ev.AccessTech != call.AccessUnknown {
		conn.SetAccessTech(ev.AccessTech)
	}

	if err := t.reg.Add(conn); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "onIncoming",
			"session":  ev.Session.String(),
			"error":    err.Error(),
		}).Warn("Rejecting inbound call, system capacity reached")
		t.sess.Reject(ev.Session)
		return false
	}
	if err := t.ringing.Attach(conn); err != nil {
		t.reg.Remove(ev.Session)
		t.sess.Reject(ev.Session)
		return false
	}

	logrus.WithFields(logrus.Fields{
		"function": "onIncoming",
		"session":  ev.Session.String(),
		"address":  ev.Address,
		"waiting":  waiting,
	}).Info("Inbound call ringing")
	t.metrics.incoming()
	t.sink.NewRingingConnection(ev.Session, ev.Address)
	return true
}

func (t *Tracker) onInitiating(ev session.Event) bool {
	conn := t.connFor(ev)
	if conn == nil {
		return false
	}
	// The radio acknowledged the dial; the attempt is no longer pending.
	if t.pendingMO != nil && t.pendingMO.Handle() == ev.Session {
		t.pendingMO = nil
		t.pendingPhase = dialIssued
	}
	applyMedia(conn, ev)
	return true
}

func (t *Tracker) onProgressing(ev session.Event) bool {
	conn := t.connFor(ev)
	if conn == nil {
		return false
	}
	if t.pendingMO != nil && t.pendingMO.Handle() == ev.Session {
		t.pendingMO = nil
		t.pendingPhase = dialIssued
	}
	conn.SetState(call.StateAlerting)
	applyMedia(conn, ev)
	t.recomputeOwner(conn)
	return true
}

func (t *Tracker) onStarted(ev session.Event) bool {
	conn := t.connFor(ev)
	if conn == nil {
		return false
	}
	if t.pendingMO != nil && t.pendingMO.Handle() == ev.Session {
		t.pendingMO = nil
		t.pendingPhase = dialIssued
	}

	// An answered inbound call leaves the ringing slot for the foreground.
	if conn.Owner() == call.LegRinging {
		t.ringing.Detach(conn)
		if err := t.foreground.Attach(conn); err != nil {
			// The foreground is full; tear the call back down.
			logrus.WithFields(logrus.Fields{
				"function": "onStarted",
				"session":  ev.Session.String(),
				"error":    err.Error(),
			}).Error("Cannot place answered call, terminating")
			t.sess.Terminate(ev.Session, cause.CodeUserTerminated)
			conn.SetState(call.StateDisconnecting)
			t.ringing.Recompute()
			return true
		}
	}

	conn.SetState(call.StateActive)
	conn.MarkConnected(t.clock.Now())
	applyMedia(conn, ev)
	t.recomputeOwner(conn)
	t.holdSwap.onStarted(ev.Session)

	logrus.WithFields(logrus.Fields{
		"function": "onStarted",
		"session":  ev.Session.String(),
		"tech":     conn.AccessTech().String(),
	}).Info("Call established")
	return true
}

func (t *Tracker) onStartFailed(ev session.Event) bool {
	conn := t.connFor(ev)
	if conn == nil {
		return false
	}
	if t.pendingMO != nil && t.pendingMO.Handle() == ev.Session {
		t.pendingMO = nil
		t.pendingPhase = dialIssued
	}

	if !conn.IsIncoming() && ev.Reason.Code.TriggersRedial() {
		t.discardForRedial(conn)
		t.redial(ev.Reason.Code)
		return true
	}

	d, p := t.translator.Translate(ev.Reason.Code, ev.Reason.Message, true)
	t.finalize(conn, d, p)
	return true
}

func (t *Tracker) onUpdated(ev session.Event) bool {
	conn := t.connFor(ev)
	if conn == nil {
		return false
	}
	// Updated refreshes capabilities only; it never moves the call state.
	applyMedia(conn, ev)
	return true
}

func (t *Tracker) onHeld(ev session.Event) bool {
	conn := t.connFor(ev)
	if conn == nil {
		return false
	}
	conn.SetState(call.StateHolding)
	t.recomputeOwner(conn)
	t.holdSwap.onHeld(ev.Session)
	return true
}

func (t *Tracker) onHoldFailed(ev session.Event) bool {
	conn := t.connFor(ev)
	if conn == nil {
		return false
	}
	t.holdSwap.onHoldFailed(ev.Session)
	return true
}

func (t *Tracker) onRemoteHoldChange(ev session.Event) bool {
	conn := t.connFor(ev)
	if conn == nil {
		return false
	}
	// Remote hold suspends media without changing the local call state; the
	// UI learns of it through the precise state notification.
	logrus.WithFields(logrus.Fields{
		"function": "onRemoteHoldChange",
		"session":  ev.Session.String(),
		"event":    ev.Kind.String(),
	}).Info("Remote hold state changed")
	return true
}

func (t *Tracker) onResumed(ev session.Event) bool {
	conn := t.connFor(ev)
	if conn == nil {
		return false
	}
	conn.SetState(call.StateActive)
	t.recomputeOwner(conn)
	t.holdSwap.onResumed(ev.Session)
	return true
}

func (t *Tracker) onResumeFailed(ev session.Event) bool {
	conn := t.connFor(ev)
	if conn == nil {
		return false
	}
	conn.SetState(call.StateHolding)
	t.recomputeOwner(conn)
	t.holdSwap.onResumeFailed(ev.Session)
	return true
}

func (t *Tracker) onTerminated(ev session.Event) bool {
	conn := t.connFor(ev)
	if conn == nil {
		return false
	}
	if t.pendingMO != nil && t.pendingMO.Handle() == ev.Session {
		t.pendingMO = nil
		t.pendingPhase = dialIssued
	}

	t.q.Cancel(handoverKey(ev.Session))
	delete(t.handoverOrigin, ev.Session)

	dialing := !conn.IsIncoming() && conn.ConnectTime().IsZero()
	if dialing && ev.Reason.Code.TriggersRedial() {
		t.discardForRedial(conn)
		t.holdSwap.onPeerTerminated(ev.Session)
		t.redial(ev.Reason.Code)
		return true
	}

	d, p := t.translator.Translate(ev.Reason.Code, ev.Reason.Message, dialing)
	if conn.IsIncoming() && conn.ConnectTime().IsZero() {
		d = cause.AdjustUnconnectedIncoming(d)
	}

	t.finalize(conn, d, p)
	t.holdSwap.onPeerTerminated(ev.Session)

	if t.dropThenAnswer == ev.Session {
		t.dropThenAnswer = call.NilHandle
		target := t.dropAnswerTarget
		t.dropAnswerTarget = call.NilHandle
		if t.ringing.Contains(target) {
			if err := t.sess.Accept(target, t.dropAnswerVideo); err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "onTerminated",
					"session":  target.String(),
					"error":    err.Error(),
				}).Error("Deferred answer failed")
			}
		}
	}

	return true
}

func (t *Tracker) onMerged(ev session.Event) bool {
	host := t.connFor(ev)
	if host == nil {
		return false
	}
	peer := t.reg.Get(ev.Peer)
	if peer == nil {
		return true
	}

	// The peer session folds into the host conference; the peer connection
	// ends with a local cause so the UI shows a merge, not a drop.
	d, p := t.translator.Translate(cause.CodeLocalEndedByConferenceMerge, "", false)
	t.finalize(peer, d, p)

	logrus.WithFields(logrus.Fields{
		"function": "onMerged",
		"host":     ev.Session.String(),
		"peer":     ev.Peer.String(),
	}).Info("Conference merge completed")
	return true
}

func (t *Tracker) onMergeFailed(ev session.Event) bool {
	logrus.WithFields(logrus.Fields{
		"function": "onMergeFailed",
		"host":     ev.Session.String(),
		"peer":     ev.Peer.String(),
	}).Warn("Conference merge failed")
	t.sink.SuppServiceFailed(notify.SuppServiceConference)
	return false
}

// handoverKey names the delayed handover verification task for a session.
func handoverKey(h call.Handle) string {
	return "handover:" + h.String()
}

func (t *Tracker) onHandoverStarted(ev session.Event) bool {
	conn := t.connFor(ev)
	if conn == nil {
		return false
	}
	origin := conn.Owner()
	if origin == call.LegHandover || origin == call.LegNone {
		return false
	}

	t.handoverOrigin[ev.Session] = origin
	t.leg(origin).Detach(conn)
	if err := t.handover.Attach(conn); err != nil {
		// The handover slot is full; leave the call where it was.
		delete(t.handoverOrigin, ev.Session)
		t.leg(origin).Attach(conn)
		return true
	}

	logrus.WithFields(logrus.Fields{
		"function": "onHandoverStarted",
		"session":  ev.Session.String(),
		"from":     ev.FromTech.String(),
		"to":       ev.ToTech.String(),
	}).Info("Access handover started")

	// A handover toward WIFI that stalls is verified after a carrier-set
	// delay; a still-pending handover at that point is treated as failed.
	// Carriers without VoWiFi skip the verification.
	if ev.ToTech == call.AccessWIFI && t.carrier.VoWiFiEnabled {
		t.q.PostDelayed(handoverKey(ev.Session), t.carrier.WifiHandoverCheckDelay, func() {
			t.checkStalledHandover(ev.Session)
		})
	}
	return true
}

// checkStalledHandover runs on the queue after the carrier delay and returns
// a call still stuck in the handover slot to its origin leg.
func (t *Tracker) checkStalledHandover(h call.Handle) {
	conn := t.reg.Get(h)
	if conn == nil || conn.Owner() != call.LegHandover {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function": "checkStalledHandover",
		"session":  h.String(),
	}).Warn("Handover did not complete within carrier delay, returning call")
	t.returnFromHandover(conn)
	t.finishMutation()
	t.sink.PreciseCallStateChanged()
}

// returnFromHandover moves a call out of the handover slot back to the leg
// it came from.
func (t *Tracker) returnFromHandover(conn *call.Connection) {
	h := conn.Handle()
	origin, ok := t.handoverOrigin[h]
	if !ok {
		origin = call.LegForeground
	}
	delete(t.handoverOrigin, h)
	if conn.Owner() == call.LegHandover {
		t.handover.Detach(conn)
		if err := t.leg(origin).Attach(conn); err != nil {
			t.foreground.Attach(conn)
		}
	}
}

func (t *Tracker) onHandoverDone(ev session.Event) bool {
	conn := t.connFor(ev)
	if conn == nil {
		return false
	}
	t.q.Cancel(handoverKey(ev.Session))
	if ev.ToTech != call.AccessUnknown {
		conn.SetAccessTech(ev.ToTech)
	}
	t.returnFromHandover(conn)

	logrus.WithFields(logrus.Fields{
		"function": "onHandoverDone",
		"session":  ev.Session.String(),
		"from":     ev.FromTech.String(),
		"to":       ev.ToTech.String(),
	}).Info("Access handover completed")

	// Leaving WIFI while mobile data is disabled puts a video call on a
	// transport it is not allowed to use; the downgrade policy decides
	// whether it continues as audio, pauses, or ends.
	if !t.dataEnabled && ev.FromTech == call.AccessWIFI &&
		conn.State().IsAlive() && conn.VideoState().HasVideo() && conn.AccessTech().IsMetered() {
		t.applyDowngradePolicy(conn)
	}
	return true
}

func (t *Tracker) onHandoverFailed(ev session.Event) bool {
	conn := t.connFor(ev)
	if conn == nil {
		return false
	}
	t.q.Cancel(handoverKey(ev.Session))
	t.returnFromHandover(conn)

	logrus.WithFields(logrus.Fields{
		"function": "onHandoverFailed",
		"session":  ev.Session.String(),
		"from":     ev.FromTech.String(),
		"to":       ev.ToTech.String(),
	}).Warn("Access handover failed")
	return true
}

func (t *Tracker) onDTMF(ev session.Event) {
	if t.dtmfReceived != nil {
		t.dtmfReceived(ev.Session, ev.Digit)
	}
}

func (t *Tracker) onQuality(ev session.Event) {
	logrus.WithFields(logrus.Fields{
		"function":    "onQuality",
		"session":     ev.Session.String(),
		"packet_loss": ev.Quality.PacketLossPercent,
		"jitter_ms":   ev.Quality.JitterMillis,
		"rtt_ms":      ev.Quality.RTTMillis,
	}).Debug("Media quality report")
}

// finalize records a connection's terminal state and cause and surfaces the
// disconnect. The connection stays on its leg until ClearDisconnected prunes
// it, so the UI can show the ended call.
func (t *Tracker) finalize(conn *call.Connection, d cause.Disconnect, p cause.Precise) {
	conn.SetState(call.StateDisconnected)
	conn.SetDisconnectCause(d, p)
	t.recomputeOwner(conn)

	logrus.WithFields(logrus.Fields{
		"function": "finalize",
		"session":  conn.Handle().String(),
		"cause":    d.String(),
	}).Info("Call disconnected")
	t.metrics.disconnect(d.String())
	t.sink.Disconnected(conn.Handle(), d, p)
}

// recomputeOwner refreshes the aggregate state of the leg holding conn.
func (t *Tracker) recomputeOwner(conn *call.Connection) {
	if id := conn.Owner(); id != call.LegNone {
		t.leg(id).Recompute()
	}
}

// redial re-issues the last dial request after a network-directed retry
// code, with the request adjusted as the code demands.
// discardForRedial drops a failed outgoing attempt locally, with no
// disconnect notification and no disconnect metric, so the network-directed
// retry replaces it transparently.
func (t *Tracker) discardForRedial(conn *call.Connection) {
	logrus.WithFields(logrus.Fields{
		"function": "discardForRedial",
		"session":  conn.Handle().String(),
	}).Info("Discarding attempt ahead of network-directed retry")
	if leg := conn.Owner(); leg != call.LegNone {
		t.leg(leg).Detach(conn)
	}
	conn.SetState(call.StateDisconnected)
	t.reg.Remove(conn.Handle())
}

func (t *Tracker) redial(code cause.ReasonCode) {
	req := t.lastDial
	if req.Address == "" {
		return
	}
	if code == cause.CodeRetryWithoutRTT {
		req.RTTEnabled = false
	}

	logrus.WithFields(logrus.Fields{
		"function": "redial",
		"address":  req.Address,
		"code":     int(code),
	}).Info("Network requested dial retry")
	t.metrics.redial()

	if _, err := t.dial(req); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "redial",
			"error":    err.Error(),
		}).Error("Dial retry failed")
	}
}
