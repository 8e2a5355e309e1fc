package tracker

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/imscall/call"
	"github.com/opd-ai/imscall/notify"
)

// Hold/swap machine states. There is exactly one machine per tracker, not
// per call: the radio processes one hold or resume operation at a time, so a
// single process-wide state suffices and invalid flag combinations cannot be
// expressed.
const (
	holdStateInactive        = "inactive"
	holdStatePendingHold     = "pending_hold"
	holdStatePendingUnhold   = "pending_unhold"
	holdStateSwapping        = "swapping"
	holdStateToAnswer        = "holding_to_answer"
	holdStateToDial          = "holding_to_dial"
	holdStateResumeOnFailure = "pending_resume_on_failure"
)

var holdPendingStates = []string{
	holdStatePendingHold, holdStatePendingUnhold, holdStateSwapping,
	holdStateToAnswer, holdStateToDial, holdStateResumeOnFailure,
}

// holdSwap coordinates in-flight hold/resume/swap operations between the
// foreground and background legs. Every method runs on the tracker's
// serialized queue.
//
// Each transition that switches legs records how to invert the switch; the
// rollback runs at most once, guarded by the machine state, so duplicate
// failure notifications are harmless.
type holdSwap struct {
	t       *Tracker
	machine *fsm.FSM

	// expectedResume is the call the machine is waiting to see resumed (or
	// started, for holding_to_answer).
	expectedResume call.Handle

	// answerVideo is the video state to answer with once the hold confirms.
	answerVideo call.VideoState

	rollback func()
}

func newHoldSwap(t *Tracker) *holdSwap {
	hs := &holdSwap{t: t, expectedResume: call.NilHandle}
	hs.machine = fsm.NewFSM(
		holdStateInactive,
		fsm.Events{
			{Name: "hold", Src: []string{holdStateInactive}, Dst: holdStatePendingHold},
			{Name: "swap", Src: []string{holdStateInactive}, Dst: holdStateSwapping},
			{Name: "unhold", Src: []string{holdStateInactive}, Dst: holdStatePendingUnhold},
			{Name: "hold_for_answer", Src: []string{holdStateInactive}, Dst: holdStateToAnswer},
			{Name: "hold_for_dial", Src: []string{holdStateInactive}, Dst: holdStateToDial},
			{Name: "force_resume", Src: []string{holdStateSwapping, holdStateToAnswer}, Dst: holdStateResumeOnFailure},
			{Name: "settle", Src: holdPendingStates, Dst: holdStateInactive},
		},
		nil,
	)
	return hs
}

// busy reports whether a hold/swap operation is already in flight.
func (hs *holdSwap) busy() bool {
	return !hs.machine.Is(holdStateInactive)
}

func (hs *holdSwap) state() string {
	return hs.machine.Current()
}

func (hs *holdSwap) fire(event string) {
	if err := hs.machine.Event(context.Background(), event); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "fire",
			"event":    event,
			"state":    hs.machine.Current(),
			"error":    err.Error(),
		}).Error("Invalid hold/swap transition")
	}
}

func (hs *holdSwap) settle() {
	if hs.busy() {
		hs.fire("settle")
	}
}

// recordSwitch exchanges the two legs and remembers how to invert the
// exchange exactly once.
func (hs *holdSwap) recordSwitch(a, b *call.Leg) {
	a.SwitchWith(b)
	hs.rollback = func() { a.SwitchWith(b) }
}

func (hs *holdSwap) runRollback() {
	if hs.rollback != nil {
		hs.rollback()
		hs.rollback = nil
	}
}

func (hs *holdSwap) clear() {
	hs.rollback = nil
	hs.expectedResume = call.NilHandle
	hs.answerVideo = call.VideoStateAudioOnly
}

// logIgnored records a hold/swap request dropped because one is in flight.
// The radio handles one such operation at a time, so the request is a
// designed no-op, not a failure surfaced to the caller.
func (hs *holdSwap) logIgnored(op string) {
	logrus.WithFields(logrus.Fields{
		"function": "holdSwap",
		"op":       op,
		"state":    hs.state(),
	}).Info("Ignoring hold/swap request while another is in flight")
}

// requestHoldActive suspends the active foreground call. With members on the
// background leg this is a full swap: the held call is expected to resume
// once the hold confirms.
func (hs *holdSwap) requestHoldActive() error {
	if hs.busy() {
		hs.logIgnored("hold_active")
		return nil
	}
	held := hs.t.foreground.First()
	if held == nil {
		return ErrNoConnections
	}

	if hs.t.background.Len() > 0 {
		resume := hs.t.background.First()
		hs.expectedResume = resume.Handle()
		hs.recordSwitch(hs.t.foreground, hs.t.background)
		hs.fire("swap")
	} else {
		hs.recordSwitch(hs.t.foreground, hs.t.background)
		hs.fire("hold")
	}

	if err := hs.t.sess.Hold(held.Handle()); err != nil {
		hs.runRollback()
		hs.clear()
		hs.settle()
		return err
	}
	return nil
}

// requestUnhold reactivates the held background call.
func (hs *holdSwap) requestUnhold() error {
	if hs.busy() {
		hs.logIgnored("unhold")
		return nil
	}
	resume := hs.t.background.First()
	if resume == nil {
		return ErrNoConnections
	}

	hs.expectedResume = resume.Handle()
	hs.recordSwitch(hs.t.foreground, hs.t.background)
	hs.fire("unhold")

	if err := hs.t.sess.Resume(resume.Handle()); err != nil {
		hs.runRollback()
		hs.clear()
		hs.settle()
		return err
	}
	return nil
}

// requestHoldToAnswer suspends the active call so a waiting inbound call can
// be answered once the hold confirms.
func (hs *holdSwap) requestHoldToAnswer(ringing call.Handle, video call.VideoState) error {
	if hs.busy() {
		hs.logIgnored("hold_to_answer")
		return nil
	}
	held := hs.t.foreground.First()
	if held == nil {
		return ErrNoConnections
	}

	hs.expectedResume = ringing
	hs.answerVideo = video
	hs.recordSwitch(hs.t.foreground, hs.t.background)
	hs.fire("hold_for_answer")

	if err := hs.t.sess.Hold(held.Handle()); err != nil {
		hs.runRollback()
		hs.clear()
		hs.settle()
		return err
	}
	return nil
}

// requestHoldToDial suspends the active call so a new outgoing dial can be
// issued once the hold confirms.
func (hs *holdSwap) requestHoldToDial() error {
	if hs.busy() {
		hs.logIgnored("hold_to_dial")
		return nil
	}
	held := hs.t.foreground.First()
	if held == nil {
		return ErrNoConnections
	}

	hs.recordSwitch(hs.t.foreground, hs.t.background)
	hs.fire("hold_for_dial")

	if err := hs.t.sess.Hold(held.Handle()); err != nil {
		hs.runRollback()
		hs.clear()
		hs.settle()
		return err
	}
	return nil
}

// onHeld handles a confirmed hold.
func (hs *holdSwap) onHeld(h call.Handle) {
	switch hs.state() {
	case holdStatePendingHold:
		hs.clear()
		hs.settle()

	case holdStateSwapping:
		// Hold confirmed; now bring the formerly held call up.
		if err := hs.t.sess.Resume(hs.expectedResume); err != nil {
			hs.failOperation(notify.SuppServiceResume)
		}

	case holdStateToAnswer:
		if err := hs.t.sess.Accept(hs.expectedResume, hs.answerVideo); err != nil {
			hs.failOperation(notify.SuppServiceHold)
		}
		// Stays in holding_to_answer until the answered call starts.

	case holdStateToDial:
		hs.clear()
		hs.settle()
		hs.t.sendPendingDial()

	default:
		logrus.WithFields(logrus.Fields{
			"function": "onHeld",
			"session":  h.String(),
			"state":    hs.state(),
		}).Debug("Hold confirmation with no operation in flight")
	}
}

// onHoldFailed handles a failed hold: the leg switch is inverted, the
// failure is surfaced, and a dial that was waiting on the hold is finalized
// as failed. Duplicate failure notifications are no-ops because the machine
// is already inactive.
func (hs *holdSwap) onHoldFailed(h call.Handle) {
	if !hs.busy() {
		logrus.WithFields(logrus.Fields{
			"function": "onHoldFailed",
			"session":  h.String(),
		}).Debug("Duplicate hold failure ignored")
		return
	}
	wasDial := hs.state() == holdStateToDial
	hs.failOperation(notify.SuppServiceHold)
	if wasDial {
		hs.t.failPendingDial()
	}
}

// onResumed handles a confirmed resume. A resume confirmation for a call
// other than the one expected means the network restored the wrong leg; the
// switch is inverted to match.
func (hs *holdSwap) onResumed(h call.Handle) {
	switch hs.state() {
	case holdStateSwapping, holdStatePendingUnhold:
		if h == hs.expectedResume {
			hs.clear()
			hs.settle()
			return
		}
		hs.runRollback()
		hs.clear()
		hs.settle()

	case holdStateResumeOnFailure:
		hs.clear()
		hs.settle()

	default:
	}
}

// onResumeFailed handles a failed resume.
func (hs *holdSwap) onResumeFailed(h call.Handle) {
	if !hs.busy() {
		return
	}
	hs.failOperation(notify.SuppServiceResume)
}

// onStarted clears the machine when the call it was answering establishes.
func (hs *holdSwap) onStarted(h call.Handle) {
	if hs.state() == holdStateToAnswer && h == hs.expectedResume {
		hs.clear()
		hs.settle()
	}
}

// onPeerTerminated handles the call expected to resume terminating while a
// swap or answer is mid-flight: the leg switch is inverted and the call that
// was being held is forced back to active.
func (hs *holdSwap) onPeerTerminated(h call.Handle) {
	st := hs.state()
	if (st != holdStateSwapping && st != holdStateToAnswer) || h != hs.expectedResume {
		return
	}

	hs.runRollback()
	hs.expectedResume = call.NilHandle

	fg := hs.t.foreground.First()
	if fg == nil {
		hs.clear()
		hs.settle()
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "onPeerTerminated",
		"session":  h.String(),
		"resuming": fg.Handle().String(),
	}).Info("Swap peer terminated mid-operation, force-resuming foreground")

	hs.expectedResume = fg.Handle()
	hs.fire("force_resume")
	if err := hs.t.sess.Resume(fg.Handle()); err != nil {
		hs.clear()
		hs.settle()
	}
}

// failOperation is the single rollback path: invert the leg switch, count
// and surface the failure, and return to inactive.
func (hs *holdSwap) failOperation(kind notify.SuppServiceKind) {
	hs.t.metrics.holdSwapFailure()
	hs.runRollback()
	hs.clear()
	hs.settle()
	hs.t.sink.SuppServiceFailed(kind)
}
