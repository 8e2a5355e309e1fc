package call

import (
	"github.com/sirupsen/logrus"
)

// Leg is one of the four fixed call slots. It holds an ordered set of
// connection handles (insertion order is answer/merge order) and an aggregate
// state that is always a deterministic function of the member connections.
//
// Legs are owned by the tracker and mutated only on its serialized queue.
type Leg struct {
	id    LegID
	reg   *Registry
	conns []Handle
	state State
}

// NewLeg creates an empty leg for the given slot.
func NewLeg(id LegID, reg *Registry) *Leg {
	return &Leg{
		id:    id,
		reg:   reg,
		state: StateIdle,
	}
}

// ID returns the slot this leg occupies.
func (l *Leg) ID() LegID {
	return l.id
}

// State returns the aggregate leg state.
func (l *Leg) State() State {
	return l.state
}

// Len returns the number of member connections.
func (l *Leg) Len() int {
	return len(l.conns)
}

// Handles returns the member handles in insertion order. The returned slice
// is a fresh copy.
func (l *Leg) Handles() []Handle {
	out := make([]Handle, len(l.conns))
	copy(out, l.conns)
	return out
}

// Contains reports whether the handle is a member of this leg.
func (l *Leg) Contains(h Handle) bool {
	for _, m := range l.conns {
		if m == h {
			return true
		}
	}
	return false
}

// First returns the oldest member connection, or nil for an empty leg.
func (l *Leg) First() *Connection {
	if len(l.conns) == 0 {
		return nil
	}
	return l.reg.Get(l.conns[0])
}

// Attach adds a connection to this leg, enforcing the conference cap, and
// recomputes the aggregate state.
func (l *Leg) Attach(c *Connection) error {
	if err := ValidateLegCapacity(len(l.conns)); err != nil {
		return err
	}
	c.setOwner(l.id)
	l.conns = append(l.conns, c.Handle())
	l.Recompute()
	return nil
}

// Detach removes a connection from this leg and recomputes the aggregate
// state. Detaching a non-member is a no-op.
func (l *Leg) Detach(c *Connection) {
	for i, h := range l.conns {
		if h == c.Handle() {
			l.conns = append(l.conns[:i], l.conns[i+1:]...)
			c.setOwner(LegNone)
			l.Recompute()
			return
		}
	}
}

// SwitchWith exchanges the entire connection sets and derived state between
// two legs. This is a logical relabeling used for the foreground/background
// hold swap, not a data copy: member connections keep their own states and
// only their owner labels change.
func (l *Leg) SwitchWith(other *Leg) {
	l.conns, other.conns = other.conns, l.conns
	for _, h := range l.conns {
		if c := l.reg.Get(h); c != nil {
			c.relabelOwner(l.id)
		}
	}
	for _, h := range other.conns {
		if c := other.reg.Get(h); c != nil {
			c.relabelOwner(other.id)
		}
	}
	l.Recompute()
	other.Recompute()

	logrus.WithFields(logrus.Fields{
		"function":    "SwitchWith",
		"leg":         l.id.String(),
		"other":       other.id.String(),
		"leg_state":   l.state.String(),
		"other_state": other.state.String(),
	}).Debug("Leg connection sets exchanged")
}

// ClearDisconnected prunes terminal members and recomputes the aggregate
// state. It returns the pruned connections so the owner can finalize them.
func (l *Leg) ClearDisconnected() []*Connection {
	var pruned []*Connection
	kept := l.conns[:0]
	for _, h := range l.conns {
		c := l.reg.Get(h)
		if c == nil {
			continue
		}
		if c.State() == StateDisconnected {
			c.setOwner(LegNone)
			pruned = append(pruned, c)
			continue
		}
		kept = append(kept, h)
	}
	l.conns = kept
	l.Recompute()
	return pruned
}

// Recompute derives the aggregate state from the member connections.
// Disconnected members are ignored unless every member is disconnected.
// Priority among live members: active, dialing, alerting, incoming, waiting,
// disconnecting, then holding when every live member holds.
func (l *Leg) Recompute() {
	if len(l.conns) == 0 {
		l.state = StateIdle
		return
	}

	var live []State
	for _, h := range l.conns {
		c := l.reg.Get(h)
		if c == nil {
			continue
		}
		if s := c.State(); s != StateDisconnected {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		l.state = StateDisconnected
		return
	}

	priority := []State{StateActive, StateDialing, StateAlerting, StateIncoming, StateWaiting, StateDisconnecting}
	for _, want := range priority {
		for _, s := range live {
			if s == want {
				l.state = want
				return
			}
		}
	}

	allHolding := true
	for _, s := range live {
		if s != StateHolding {
			allHolding = false
			break
		}
	}
	if allHolding {
		l.state = StateHolding
		return
	}
	l.state = StateIdle
}
