// Package imscall implements IMS/VoLTE call tracking: a serialized state
// machine that mirrors the network's view of every call across four fixed
// call slots, coordinates hold, swap, answer, and conference operations, and
// translates network reason codes into user-facing disconnect causes.
//
// Example:
//
//	options := imscall.NewOptions(mySessionClient)
//	options.ConfigPath = "/etc/imscall/carrier.yaml"
//
//	phone, err := imscall.New(options)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer phone.Kill()
//
//	// Feed session layer events into the tracker.
//	mySessionClient.OnEvent(phone.HandleSessionEvent)
//
//	handle, err := phone.Dial("+15550100")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("dialing", handle)
package imscall

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/imscall/call"
	"github.com/opd-ai/imscall/config"
	"github.com/opd-ai/imscall/notify"
	"github.com/opd-ai/imscall/session"
	"github.com/opd-ai/imscall/tracker"
)

// Options contains configuration for creating a Phone instance.
type Options struct {
	// Session is the IMS session layer the phone drives. Required.
	Session session.Client

	// Sink receives phone notifications. Optional.
	Sink notify.Sink

	// ConfigPath points at a carrier YAML file. Empty means built-in
	// defaults.
	ConfigPath string

	// Config overrides ConfigPath with an explicit provider.
	Config config.Provider

	// ECB is the emergency-callback-mode controller. Optional.
	ECB tracker.ECBController

	// Metrics, when non-nil, exports call lifecycle metrics.
	Metrics *tracker.Metrics
}

// NewOptions returns Options with the given session client and defaults for
// everything else.
func NewOptions(sess session.Client) *Options {
	return &Options{Session: sess}
}

// Phone is the top-level call tracking instance. All methods are safe for
// concurrent use; mutations are serialized internally.
type Phone struct {
	tracker *tracker.Tracker
}

// New creates a Phone from the options.
func New(options *Options) (*Phone, error) {
	if options == nil {
		options = &Options{}
	}

	provider := options.Config
	if provider == nil && options.ConfigPath != "" {
		carrier, err := config.Load(options.ConfigPath)
		if err != nil {
			// A broken carrier file falls back to defaults rather than
			// refusing to start.
			logrus.WithFields(logrus.Fields{
				"function": "New",
				"path":     options.ConfigPath,
				"error":    err.Error(),
			}).Warn("Carrier config unreadable, using defaults")
		}
		provider = config.NewStaticProvider(carrier)
	}

	tr, err := tracker.New(tracker.Options{
		Session: options.Session,
		Sink:    options.Sink,
		Config:  provider,
		ECB:     options.ECB,
		Metrics: options.Metrics,
	})
	if err != nil {
		return nil, err
	}
	return &Phone{tracker: tr}, nil
}

// Kill shuts the phone down. Pending operations complete first.
func (p *Phone) Kill() {
	p.tracker.Stop()
}

// HandleSessionEvent ingests one session layer event. Events are handled
// asynchronously in arrival order.
func (p *Phone) HandleSessionEvent(ev session.Event) {
	p.tracker.Deliver(ev)
}

// Dial starts an audio call to the address.
func (p *Phone) Dial(address string) (call.Handle, error) {
	return p.tracker.Dial(session.DialRequest{Address: address})
}

// DialVideo starts a bidirectional video call to the address.
func (p *Phone) DialVideo(address string) (call.Handle, error) {
	return p.tracker.Dial(session.DialRequest{
		Address:    address,
		VideoState: call.VideoStateBidirectional,
	})
}

// DialEmergency starts an emergency call, bypassing emergency callback mode.
func (p *Phone) DialEmergency(address string) (call.Handle, error) {
	return p.tracker.Dial(session.DialRequest{Address: address, Emergency: true})
}

// DialWithRequest starts a call with full control over the request.
func (p *Phone) DialWithRequest(req session.DialRequest) (call.Handle, error) {
	return p.tracker.Dial(req)
}

// Answer accepts the ringing call as audio-only.
func (p *Phone) Answer() error {
	return p.tracker.AcceptCall(call.VideoStateAudioOnly)
}

// AnswerVideo accepts the ringing call with the given video state.
func (p *Phone) AnswerVideo(video call.VideoState) error {
	return p.tracker.AcceptCall(video)
}

// Reject declines the ringing call.
func (p *Phone) Reject() error {
	return p.tracker.RejectCall()
}

// Hangup ends the active call.
func (p *Phone) Hangup() error {
	return p.tracker.Hangup(call.LegForeground)
}

// HangupLeg ends every call on the given slot.
func (p *Phone) HangupLeg(id call.LegID) error {
	return p.tracker.Hangup(id)
}

// Hold suspends the active call, swapping with a held call when one exists.
func (p *Phone) Hold() error {
	return p.tracker.HoldActiveCall()
}

// Unhold reactivates the held call.
func (p *Phone) Unhold() error {
	return p.tracker.UnholdHeldCall()
}

// Conference merges the active and held calls.
func (p *Phone) Conference() error {
	return p.tracker.Conference()
}

// Transfer connects the active and held calls to each other and drops out.
func (p *Phone) Transfer() error {
	return p.tracker.ExplicitCallTransfer()
}

// SendDTMF transmits one DTMF digit on the active call.
func (p *Phone) SendDTMF(digit byte) error {
	return p.tracker.SendDTMF(digit)
}

// OnDTMFReceived registers an observer for inbound DTMF digits.
func (p *Phone) OnDTMFReceived(fn func(h call.Handle, digit byte)) {
	p.tracker.OnDTMFReceived(fn)
}

// ClearDisconnected prunes ended calls from every slot.
func (p *Phone) ClearDisconnected() {
	p.tracker.ClearDisconnected()
}

// SetDataEnabled applies the mobile data toggle, enforcing the carrier's
// video downgrade policy on metered video calls.
func (p *Phone) SetDataEnabled(enabled bool) {
	p.tracker.HandleDataEnabledChange(enabled)
}

// EcbExited signals that emergency callback mode ended.
func (p *Phone) EcbExited() {
	p.tracker.EcbExited()
}

// ReloadCarrierConfig re-reads the carrier snapshot.
func (p *Phone) ReloadCarrierConfig() {
	p.tracker.ReloadCarrierConfig()
}

// PhoneState returns the aggregate phone state.
func (p *Phone) PhoneState() call.PhoneState {
	return p.tracker.PhoneState()
}

// CallState returns the aggregate state of one call slot.
func (p *Phone) CallState(id call.LegID) call.State {
	return p.tracker.Leg(id)
}

// Connection returns the connection for a handle, or nil.
func (p *Phone) Connection(h call.Handle) *call.Connection {
	return p.tracker.Connection(h)
}

// Flush blocks until every queued event and operation has been handled.
func (p *Phone) Flush() {
	p.tracker.Flush()
}
