// Package tracker implements the IMS call-tracking core: the orchestrator
// owning the four call legs and the connection registry, the hold/swap
// coordinator, and the session event router.
//
// All state mutation is serialized onto a single-consumer queue. Public
// operations post onto the queue and wait for their result, so callers see
// synchronous validation errors while the model never observes concurrent
// access. Session events are posted onto the same queue and handled strictly
// in arrival order.
package tracker

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/imscall/call"
	"github.com/opd-ai/imscall/cause"
	"github.com/opd-ai/imscall/config"
	"github.com/opd-ai/imscall/notify"
	"github.com/opd-ai/imscall/queue"
	"github.com/opd-ai/imscall/session"
)

// ECBController is queried before dialing. While the device is in emergency
// callback mode, non-emergency dials are deferred until the controller
// reports exit via Tracker.EcbExited.
type ECBController interface {
	// InEcbMode reports whether emergency callback mode is active.
	InEcbMode() bool

	// Exit requests leaving emergency callback mode. Completion is signalled
	// asynchronously through Tracker.EcbExited.
	Exit()
}

// pendingDialPhase tracks why an accepted dial has not reached the network
// yet.
type pendingDialPhase uint8

const (
	// dialIssued means the session request went out and no event returned.
	dialIssued pendingDialPhase = iota
	// dialAwaitingHold means the dial waits for the active call's hold to
	// confirm.
	dialAwaitingHold
	// dialAwaitingEcbExit means the dial waits for emergency callback mode
	// to end.
	dialAwaitingEcbExit
)

// Tracker is the top-level call orchestrator. It owns the connection
// registry and the four fixed legs, exposes the public call operations, and
// reacts to session events delivered through Deliver.
type Tracker struct {
	q    *queue.Serial
	sess session.Client
	sink notify.Sink
	ecb  ECBController

	clock   TimeProvider
	metrics *Metrics

	reg        *call.Registry
	ringing    *call.Leg
	foreground *call.Leg
	background *call.Leg
	handover   *call.Leg

	translator *cause.Translator
	provider   config.Provider
	carrier    config.Carrier

	holdSwap *holdSwap

	// pendingMO is the single outstanding outgoing dial attempt. It is
	// cleared once the network acknowledges the session or the attempt
	// fails.
	pendingMO    *call.Connection
	pendingPhase pendingDialPhase
	lastDial     session.DialRequest

	// dropThenAnswer is the active call being terminated so a waiting call
	// can be answered; the answer is issued once its termination arrives.
	dropThenAnswer   call.Handle
	dropAnswerTarget call.Handle
	dropAnswerVideo  call.VideoState

	// handoverOrigin remembers which leg a connection left when it entered
	// the handover slot, so completion or failure returns it there.
	handoverOrigin map[call.Handle]call.LegID

	dataEnabled bool
	phoneState  call.PhoneState

	// dtmfReceived, when set, observes inbound DTMF digits.
	dtmfReceived func(h call.Handle, digit byte)

	stopped bool
}

// Options configures a Tracker. Session is required; every other field has
// a working default.
type Options struct {
	// Session is the network/IMS session layer. Required.
	Session session.Client

	// Sink receives notifications. Defaults to notify.Nop.
	Sink notify.Sink

	// Config supplies carrier snapshots. Defaults to built-in defaults.
	Config config.Provider

	// ECB is the emergency-callback-mode controller. Optional.
	ECB ECBController

	// Time is the time source. Defaults to the system clock.
	Time TimeProvider

	// Metrics, when non-nil, records call lifecycle metrics.
	Metrics *Metrics
}

// New creates a Tracker and starts its event queue.
func New(opts Options) (*Tracker, error) {
	if opts.Session == nil {
		return nil, ErrSessionRequired
	}
	if opts.Sink == nil {
		opts.Sink = notify.Nop{}
	}
	if opts.Config == nil {
		opts.Config = config.NewStaticProvider(config.Default())
	}
	if opts.Time == nil {
		opts.Time = DefaultTimeProvider{}
	}

	t := &Tracker{
		q:              queue.NewSerial(),
		sess:           opts.Session,
		sink:           opts.Sink,
		ecb:            opts.ECB,
		clock:          opts.Time,
		metrics:        opts.Metrics,
		reg:            call.NewRegistry(),
		translator:     cause.NewTranslator(),
		handoverOrigin: make(map[call.Handle]call.LegID),
		provider:       opts.Config,
		dataEnabled:    true,
		phoneState:     call.PhoneIdle,
	}
	t.ringing = call.NewLeg(call.LegRinging, t.reg)
	t.foreground = call.NewLeg(call.LegForeground, t.reg)
	t.background = call.NewLeg(call.LegBackground, t.reg)
	t.handover = call.NewLeg(call.LegHandover, t.reg)
	t.holdSwap = newHoldSwap(t)

	t.carrier = t.provider.Snapshot()
	t.translator.LoadRemap(t.carrier.CauseRules())
	t.provider.OnChange(func() {
		t.q.Post(t.reloadCarrier)
	})

	logrus.WithFields(logrus.Fields{
		"function": "New",
	}).Info("Call tracker started")
	return t, nil
}

// Stop shuts down the tracker's queue. Pending operations complete; later
// operations fail with ErrTrackerStopped.
func (t *Tracker) Stop() {
	t.q.Post(func() { t.stopped = true })
	t.q.Stop()
	logrus.WithFields(logrus.Fields{
		"function": "Stop",
	}).Info("Call tracker stopped")
}

// run executes fn on the serialized queue and returns its result to the
// caller.
func (t *Tracker) run(fn func() error) error {
	errCh := make(chan error, 1)
	posted := t.q.Post(func() { errCh <- fn() })
	if !posted {
		return ErrTrackerStopped
	}
	return <-errCh
}

// Deliver routes one asynchronous session event onto the tracker queue. The
// call returns immediately; the event is handled in arrival order.
func (t *Tracker) Deliver(ev session.Event) {
	t.q.Post(func() { t.route(ev) })
}

// Flush blocks until every event and operation already posted has been
// handled. Intended for tests and orderly shutdown.
func (t *Tracker) Flush() {
	t.q.Flush()
}

// Leg returns the aggregate state of one call slot.
func (t *Tracker) Leg(id call.LegID) call.State {
	var s call.State
	t.run(func() error {
		s = t.leg(id).State()
		return nil
	})
	return s
}

// PhoneState returns the current aggregate phone state.
func (t *Tracker) PhoneState() call.PhoneState {
	var p call.PhoneState
	t.run(func() error {
		p = t.phoneState
		return nil
	})
	return p
}

// Connection returns the connection for a handle, or nil.
func (t *Tracker) Connection(h call.Handle) *call.Connection {
	var c *call.Connection
	t.run(func() error {
		c = t.reg.Get(h)
		return nil
	})
	return c
}

// HoldSwapState returns the coordinator state name, for diagnostics.
func (t *Tracker) HoldSwapState() string {
	var s string
	t.run(func() error {
		s = t.holdSwap.state()
		return nil
	})
	return s
}

// OnDTMFReceived registers an observer for inbound DTMF digits. Passing nil
// unregisters it.
func (t *Tracker) OnDTMFReceived(fn func(h call.Handle, digit byte)) {
	t.run(func() error {
		t.dtmfReceived = fn
		return nil
	})
}

func (t *Tracker) leg(id call.LegID) *call.Leg {
	switch id {
	case call.LegRinging:
		return t.ringing
	case call.LegForeground:
		return t.foreground
	case call.LegBackground:
		return t.background
	default:
		return t.handover
	}
}

// Dial starts an outgoing call and returns its handle immediately; progress
// arrives as session events. With an active foreground call the dial is
// deferred behind a hold; in emergency callback mode a non-emergency dial is
// deferred behind the mode exit.
func (t *Tracker) Dial(req session.DialRequest) (call.Handle, error) {
	var h call.Handle
	err := t.run(func() error {
		var err error
		h, err = t.dial(req)
		return err
	})
	return h, err
}

func (t *Tracker) dial(req session.DialRequest) (call.Handle, error) {
	if t.stopped {
		return call.NilHandle, ErrTrackerStopped
	}
	if req.Address == "" {
		return call.NilHandle, ErrEmptyAddress
	}
	if t.pendingMO != nil {
		return call.NilHandle, ErrAlreadyDialing
	}
	if t.ringing.State().IsRinging() {
		return call.NilHandle, ErrDialDuringRinging
	}
	fgAlive := t.foreground.State().IsAlive()
	if fgAlive && t.background.State().IsAlive() {
		return call.NilHandle, ErrTooManyCalls
	}

	holdFirst := t.foreground.State() == call.StateActive
	awaitEcb := t.ecb != nil && t.ecb.InEcbMode() && !req.Emergency
	if holdFirst && t.holdSwap.busy() {
		return call.NilHandle, ErrHoldSwapBusy
	}

	h := call.NewHandle()
	conn := call.NewOutgoing(h, req.Address, req.VideoState, req.Emergency, t.clock.Now())
	if err := t.reg.Add(conn); err != nil {
		return call.NilHandle, err
	}

	t.pendingMO = conn
	t.lastDial = req

	logrus.WithFields(logrus.Fields{
		"function":   "dial",
		"session":    h.String(),
		"address":    req.Address,
		"video":      req.VideoState.HasVideo(),
		"emergency":  req.Emergency,
		"hold_first": holdFirst,
		"await_ecb":  awaitEcb,
	}).Info("Outgoing dial accepted")
	t.metrics.dial()

	switch {
	case awaitEcb:
		t.pendingPhase = dialAwaitingEcbExit
		t.ecb.Exit()

	case holdFirst:
		t.pendingPhase = dialAwaitingHold
		if err := t.holdSwap.requestHoldToDial(); err != nil {
			t.discardPendingDial(cause.DisconnectErrorUnspecified)
			return call.NilHandle, err
		}
		// The active call moved to the background slot; the new dial
		// occupies the foreground.
		if err := t.foreground.Attach(conn); err != nil {
			t.discardPendingDial(cause.DisconnectErrorUnspecified)
			return call.NilHandle, err
		}

	default:
		t.pendingPhase = dialIssued
		if err := t.foreground.Attach(conn); err != nil {
			t.discardPendingDial(cause.DisconnectErrorUnspecified)
			return call.NilHandle, err
		}
		if err := t.sess.Dial(h, req); err != nil {
			t.discardPendingDial(cause.DisconnectErrorUnspecified)
			return call.NilHandle, err
		}
	}

	t.finishMutation()
	return h, nil
}

// sendPendingDial issues the deferred dial after its hold confirmed.
func (t *Tracker) sendPendingDial() {
	if t.pendingMO == nil || t.pendingPhase != dialAwaitingHold {
		return
	}
	t.pendingPhase = dialIssued
	if err := t.sess.Dial(t.pendingMO.Handle(), t.lastDial); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "sendPendingDial",
			"session":  t.pendingMO.Handle().String(),
			"error":    err.Error(),
		}).Error("Deferred dial failed")
		t.discardPendingDial(cause.DisconnectErrorUnspecified)
		t.finishMutation()
	}
}

// failPendingDial finalizes a deferred dial whose hold failed.
func (t *Tracker) failPendingDial() {
	if t.pendingMO == nil {
		return
	}
	t.discardPendingDial(cause.DisconnectErrorUnspecified)
	t.finishMutation()
}

// discardPendingDial removes the pending dial locally, without a network
// round-trip, finalizing it with the given cause.
func (t *Tracker) discardPendingDial(d cause.Disconnect) {
	conn := t.pendingMO
	if conn == nil {
		return
	}
	t.pendingMO = nil
	t.pendingPhase = dialIssued

	if leg := conn.Owner(); leg != call.LegNone {
		t.leg(leg).Detach(conn)
	}
	conn.SetState(call.StateDisconnected)
	conn.SetDisconnectCause(d, cause.PreciseUnspecified)
	t.reg.Remove(conn.Handle())
	t.sink.Disconnected(conn.Handle(), d, cause.PreciseUnspecified)
	t.metrics.disconnect(d.String())
}

// EcbExited signals that emergency callback mode ended; a dial deferred on
// the mode exit proceeds now.
func (t *Tracker) EcbExited() {
	t.q.Post(func() {
		if t.pendingMO == nil || t.pendingPhase != dialAwaitingEcbExit {
			return
		}
		conn := t.pendingMO
		if t.foreground.State() == call.StateActive {
			if t.holdSwap.busy() {
				t.discardPendingDial(cause.DisconnectErrorUnspecified)
				t.finishMutation()
				return
			}
			t.pendingPhase = dialAwaitingHold
			if err := t.holdSwap.requestHoldToDial(); err != nil {
				t.discardPendingDial(cause.DisconnectErrorUnspecified)
				t.finishMutation()
				return
			}
			if err := t.foreground.Attach(conn); err != nil {
				t.discardPendingDial(cause.DisconnectErrorUnspecified)
				t.finishMutation()
				return
			}
			t.finishMutation()
			return
		}

		t.pendingPhase = dialIssued
		if err := t.foreground.Attach(conn); err != nil {
			t.discardPendingDial(cause.DisconnectErrorUnspecified)
			t.finishMutation()
			return
		}
		if err := t.sess.Dial(conn.Handle(), t.lastDial); err != nil {
			t.discardPendingDial(cause.DisconnectErrorUnspecified)
		}
		t.finishMutation()
	})
}

// AcceptCall answers the ringing call with the given video state. With an
// active call up, the active call is either held first or, under the
// carrier's drop policy for unholdable video-over-WIFI calls, terminated.
func (t *Tracker) AcceptCall(video call.VideoState) error {
	return t.run(func() error { return t.acceptCall(video) })
}

func (t *Tracker) acceptCall(video call.VideoState) error {
	if t.stopped {
		return ErrTrackerStopped
	}
	if !t.ringing.State().IsRinging() {
		return ErrNotRinging
	}
	inbound := t.ringing.First()
	if inbound == nil {
		return ErrNotRinging
	}

	active := t.foreground.First()
	if t.foreground.State() == call.StateActive && active != nil {
		if t.holdSwap.busy() {
			return ErrHoldSwapBusy
		}
		if t.shouldDropActiveOnAnswer(active, inbound) {
			logrus.WithFields(logrus.Fields{
				"function": "acceptCall",
				"dropping": active.Handle().String(),
				"answering": inbound.Handle().String(),
			}).Info("Terminating unholdable video call to answer audio call")
			t.dropThenAnswer = active.Handle()
			t.dropAnswerTarget = inbound.Handle()
			t.dropAnswerVideo = video
			active.SetState(call.StateDisconnecting)
			t.foreground.Recompute()
			if err := t.sess.Terminate(active.Handle(), cause.CodeUserTerminated); err != nil {
				t.dropThenAnswer = call.NilHandle
				return err
			}
			t.finishMutation()
			return nil
		}
		if err := t.holdSwap.requestHoldToAnswer(inbound.Handle(), video); err != nil {
			return err
		}
		t.finishMutation()
		return nil
	}

	if err := t.sess.Accept(inbound.Handle(), video); err != nil {
		return err
	}
	t.finishMutation()
	return nil
}

// shouldDropActiveOnAnswer implements the carrier drop policy: answering an
// audio-only waiting call terminates the active call only when the active
// call is video over WIFI that cannot be held concurrently and carrier
// policy requires the drop.
func (t *Tracker) shouldDropActiveOnAnswer(active, inbound *call.Connection) bool {
	if !t.carrier.DropVideoCallWhenAnsweringAudioCall {
		return false
	}
	if !active.VideoState().HasVideo() || active.AccessTech() != call.AccessWIFI {
		return false
	}
	return !inbound.VideoState().HasVideo()
}

// RejectCall declines the ringing call.
func (t *Tracker) RejectCall() error {
	return t.run(func() error {
		if t.stopped {
			return ErrTrackerStopped
		}
		if !t.ringing.State().IsRinging() {
			return ErrNotRinging
		}
		inbound := t.ringing.First()
		if inbound == nil {
			return ErrNotRinging
		}
		if err := t.sess.Reject(inbound.Handle()); err != nil {
			return err
		}
		inbound.SetState(call.StateDisconnecting)
		t.ringing.Recompute()
		t.finishMutation()
		return nil
	})
}

// Hangup ends the calls on one leg. Hanging up the ringing leg rejects the
// inbound call; hanging up a dial the network never acknowledged discards it
// locally without a network round-trip.
func (t *Tracker) Hangup(id call.LegID) error {
	return t.run(func() error { return t.hangup(id) })
}

func (t *Tracker) hangup(id call.LegID) error {
	if t.stopped {
		return ErrTrackerStopped
	}
	if id == call.LegRinging {
		if !t.ringing.State().IsRinging() {
			return ErrNotRinging
		}
		inbound := t.ringing.First()
		if err := t.sess.Reject(inbound.Handle()); err != nil {
			return err
		}
		inbound.SetState(call.StateDisconnecting)
		t.ringing.Recompute()
		t.finishMutation()
		return nil
	}

	leg := t.leg(id)

	if id == call.LegForeground && t.pendingMO != nil {
		// The network has not acknowledged this dial, so a terminate has no
		// session to address. Discard it locally.
		t.discardPendingDial(cause.DisconnectLocal)
		t.finishMutation()
		return nil
	}

	if leg.Len() == 0 {
		return ErrNoConnections
	}
	for _, h := range leg.Handles() {
		conn := t.reg.Get(h)
		if conn == nil || conn.State() == call.StateDisconnected {
			continue
		}
		if err := t.sess.Terminate(h, cause.CodeUserTerminated); err != nil {
			return err
		}
		conn.SetState(call.StateDisconnecting)
	}
	leg.Recompute()
	t.finishMutation()
	return nil
}

// Conference merges the active foreground call with the held background
// call. When the preconditions do not hold the operation is a logged no-op.
func (t *Tracker) Conference() error {
	return t.run(func() error {
		if t.stopped {
			return ErrTrackerStopped
		}
		if t.foreground.State() != call.StateActive || t.background.State() != call.StateHolding {
			logrus.WithFields(logrus.Fields{
				"function":   "Conference",
				"foreground": t.foreground.State().String(),
				"background": t.background.State().String(),
			}).Info("Conference preconditions not met, ignoring")
			return nil
		}
		if t.foreground.Len()+t.background.Len() > call.MaxConnectionsPerCall {
			logrus.WithFields(logrus.Fields{
				"function": "Conference",
				"members":  t.foreground.Len() + t.background.Len(),
			}).Info("Conference would exceed participant cap, ignoring")
			return nil
		}

		host := t.foreground.First()
		peer := t.background.First()

		// The conference inherits the earliest connect time of its members.
		hostTime := host.ConnectTime()
		if pt := peer.ConnectTime(); !pt.IsZero() && (hostTime.IsZero() || pt.Before(hostTime)) {
			hostTime = pt
		}
		if !hostTime.IsZero() {
			host.MarkConnected(hostTime)
		}

		return t.sess.Merge(host.Handle(), peer.Handle())
	})
}

// ExplicitCallTransfer connects the active and held calls to each other via
// the network's consultative transfer primitive.
func (t *Tracker) ExplicitCallTransfer() error {
	return t.run(func() error {
		if t.stopped {
			return ErrTrackerStopped
		}
		if t.foreground.State() != call.StateActive || t.background.State() != call.StateHolding {
			return ErrTransferPreconditions
		}
		if err := t.sess.ConsultativeTransfer(t.foreground.First().Handle(), t.background.First().Handle()); err != nil {
			t.sink.SuppServiceFailed(notify.SuppServiceTransfer)
			return err
		}
		return nil
	})
}

// HoldActiveCall suspends the active foreground call, swapping with the
// background leg when it holds a call.
func (t *Tracker) HoldActiveCall() error {
	return t.run(func() error {
		if t.stopped {
			return ErrTrackerStopped
		}
		if t.foreground.State() != call.StateActive {
			return ErrNoActiveCall
		}
		if active := t.foreground.First(); active != nil &&
			active.VideoState().HasVideo() && !t.carrier.AllowHoldingVideoCalls {
			return ErrHoldNotAllowed
		}
		if err := t.holdSwap.requestHoldActive(); err != nil {
			return err
		}
		t.finishMutation()
		return nil
	})
}

// UnholdHeldCall reactivates the held background call.
func (t *Tracker) UnholdHeldCall() error {
	return t.run(func() error {
		if t.stopped {
			return ErrTrackerStopped
		}
		if t.background.State() != call.StateHolding {
			return ErrNoConnections
		}
		if err := t.holdSwap.requestUnhold(); err != nil {
			return err
		}
		t.finishMutation()
		return nil
	})
}

// SendDTMF transmits one DTMF digit on the active call.
func (t *Tracker) SendDTMF(digit byte) error {
	return t.run(func() error {
		if t.stopped {
			return ErrTrackerStopped
		}
		if t.foreground.State() != call.StateActive {
			return ErrNoActiveCall
		}
		return t.sess.SendDTMF(t.foreground.First().Handle(), digit)
	})
}

// ClearDisconnected prunes terminal connections from all four legs and
// recomputes the phone state.
func (t *Tracker) ClearDisconnected() {
	t.run(func() error {
		t.clearDisconnected()
		t.finishMutation()
		return nil
	})
}

func (t *Tracker) clearDisconnected() {
	for _, leg := range []*call.Leg{t.ringing, t.foreground, t.background, t.handover} {
		for _, conn := range leg.ClearDisconnected() {
			t.reg.Remove(conn.Handle())
		}
	}
}

// HandleDataEnabledChange applies the video downgrade policy when mobile
// data is disabled while a video call runs over a metered transport: the
// strict precedence is downgrade to audio, then pause video, then terminate.
func (t *Tracker) HandleDataEnabledChange(enabled bool) {
	t.run(func() error {
		t.dataEnabled = enabled
		if enabled {
			return nil
		}
		active := t.foreground.First()
		if active == nil || t.foreground.State() != call.StateActive {
			return nil
		}
		if active.VideoState().HasVideo() && active.AccessTech().IsMetered() {
			t.applyDowngradePolicy(active)
			t.finishMutation()
		}
		return nil
	})
}

// applyDowngradePolicy enforces the downgrade precedence on one video call.
func (t *Tracker) applyDowngradePolicy(conn *call.Connection) {
	log := logrus.WithFields(logrus.Fields{
		"function": "applyDowngradePolicy",
		"session":  conn.Handle().String(),
	})
	switch {
	case t.carrier.SupportsDowngradeToAudio:
		log.Info("Requesting downgrade to audio")
		if err := t.sess.ModifyVideo(conn.Handle(), call.VideoStateAudioOnly); err != nil {
			log.WithField("error", err.Error()).Warn("Downgrade request failed")
		}
	case t.carrier.SupportsVideoPause:
		log.Info("Requesting video pause")
		if err := t.sess.ModifyVideo(conn.Handle(), conn.VideoState()|call.VideoStatePaused); err != nil {
			log.WithField("error", err.Error()).Warn("Video pause request failed")
		}
	default:
		log.Info("Carrier supports neither downgrade nor pause, terminating call")
		if err := t.sess.Terminate(conn.Handle(), cause.CodeMediaUnavailable); err != nil {
			log.WithField("error", err.Error()).Warn("Terminate request failed")
		}
		conn.SetState(call.StateDisconnecting)
		t.foreground.Recompute()
	}
}

// reloadCarrier replaces the carrier snapshot and the reason-code remap
// table wholesale.
func (t *Tracker) reloadCarrier() {
	t.carrier = t.provider.Snapshot()
	t.translator.LoadRemap(t.carrier.CauseRules())
	logrus.WithFields(logrus.Fields{
		"function": "reloadCarrier",
	}).Info("Carrier configuration reloaded")
}

// ReloadCarrierConfig forces a synchronous reload of the carrier snapshot.
func (t *Tracker) ReloadCarrierConfig() {
	t.run(func() error {
		t.reloadCarrier()
		return nil
	})
}

// finishMutation recomputes the aggregate phone state after any model
// mutation and emits the phone-state notification when it changed.
func (t *Tracker) finishMutation() {
	t.metrics.setActive(t.reg.Len())
	next := call.ComputePhoneState(
		t.ringing.State(), t.foreground.State(), t.background.State(), t.handover.State(),
		t.pendingMO != nil,
	)
	if next == t.phoneState {
		return
	}
	old := t.phoneState
	t.phoneState = next
	logrus.WithFields(logrus.Fields{
		"function": "finishMutation",
		"old":      old.String(),
		"new":      next.String(),
	}).Info("Phone state changed")
	t.sink.PhoneStateChanged(old, next)
}
