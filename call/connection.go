package call

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/imscall/cause"
)

// Connection represents one call party's session data: address, video state,
// disconnect cause, and timing. A connection belongs to at most one leg at a
// time; leg assignment only changes on the tracker's serialized queue, so
// reassignment is atomic from the caller's perspective.
//
// Getters are thread-safe following the established accessor pattern, since
// notification callbacks may snapshot connection data off-queue.
type Connection struct {
	handle   Handle
	address  string
	incoming bool

	mu           sync.RWMutex
	state        State
	videoState   VideoState
	accessTech   AccessTech
	disconnect   cause.Disconnect
	precise      cause.Precise
	emergency    bool
	pulled       bool
	createTime   time.Time
	connectTime  time.Time
	owner        LegID
}

// NewOutgoing creates a connection for an outgoing dial attempt. The
// connection starts in StateDialing and is not yet attached to a leg.
func NewOutgoing(handle Handle, address string, video VideoState, emergency bool, now time.Time) *Connection {
	return &Connection{
		handle:     handle,
		address:    address,
		incoming:   false,
		state:      StateDialing,
		videoState: video,
		emergency:  emergency,
		createTime: now,
		owner:      LegNone,
	}
}

// NewIncoming creates a connection for an inbound session notification. The
// initial state is StateIncoming or StateWaiting depending on whether another
// call is already up.
func NewIncoming(handle Handle, address string, video VideoState, waiting bool, now time.Time) *Connection {
	state := StateIncoming
	if waiting {
		state = StateWaiting
	}
	return &Connection{
		handle:     handle,
		address:    address,
		incoming:   true,
		state:      state,
		videoState: video,
		createTime: now,
		owner:      LegNone,
	}
}

// Handle returns the connection's stable identifier.
func (c *Connection) Handle() Handle {
	return c.handle
}

// Address returns the remote party address (phone number or conference
// participant list).
func (c *Connection) Address() string {
	return c.address
}

// IsIncoming reports the call direction.
func (c *Connection) IsIncoming() bool {
	return c.incoming
}

// State returns the current connection state.
func (c *Connection) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// SetState updates the connection state. Transitions out of the terminal
// StateDisconnected are rejected and logged, not applied.
func (c *Connection) SetState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateDisconnected && s != StateDisconnected {
		logrus.WithFields(logrus.Fields{
			"function": "SetState",
			"handle":   c.handle.String(),
			"from":     c.state.String(),
			"to":       s.String(),
		}).Warn("Ignoring state transition out of terminal disconnect")
		return
	}
	c.state = s
}

// VideoState returns the current media directionality.
func (c *Connection) VideoState() VideoState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.videoState
}

// SetVideoState updates the media directionality.
func (c *Connection) SetVideoState(v VideoState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.videoState = v
}

// AccessTech returns the radio access technology carrying the call.
func (c *Connection) AccessTech() AccessTech {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessTech
}

// SetAccessTech records the radio access technology carrying the call.
func (c *Connection) SetAccessTech(a AccessTech) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessTech = a
}

// DisconnectCause returns the finalized disconnect cause, or
// DisconnectNotDisconnected while the call is live.
func (c *Connection) DisconnectCause() cause.Disconnect {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.disconnect
}

// PreciseCause returns the diagnostic precise cause.
func (c *Connection) PreciseCause() cause.Precise {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.precise
}

// SetDisconnectCause records the final disconnect and precise causes.
func (c *Connection) SetDisconnectCause(d cause.Disconnect, p cause.Precise) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnect = d
	c.precise = p
}

// IsEmergency reports whether this is an emergency call.
func (c *Connection) IsEmergency() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.emergency
}

// IsPulled reports whether the call was pulled from another device.
func (c *Connection) IsPulled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pulled
}

// MarkPulled flags the call as pulled from another device.
func (c *Connection) MarkPulled() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pulled = true
}

// CreateTime returns when the connection object was created.
func (c *Connection) CreateTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.createTime
}

// ConnectTime returns when media was established, or the zero time for a
// call that never connected.
func (c *Connection) ConnectTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connectTime
}

// MarkConnected records the media establishment time. Only the first call
// takes effect; the connect time of a call that was held and resumed does
// not move.
func (c *Connection) MarkConnected(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connectTime.IsZero() {
		c.connectTime = now
	}
}

// Owner returns the leg currently holding this connection, or LegNone.
func (c *Connection) Owner() LegID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

// setOwner is called by Leg during attach/detach/switch. Attaching a
// connection that already belongs to a leg is a logic bug in the tracker,
// not a recoverable runtime condition, and panics.
func (c *Connection) setOwner(id LegID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id != LegNone && c.owner != LegNone {
		panic(fmt.Sprintf("connection %s already attached to %s leg, cannot attach to %s",
			c.handle.String(), c.owner.String(), id.String()))
	}
	c.owner = id
}

// relabelOwner updates the owner during a leg switch without the
// double-attach check: the connection stays attached throughout, only the
// slot label changes.
func (c *Connection) relabelOwner(id LegID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owner = id
}
