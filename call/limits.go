package call

import (
	"errors"
	"fmt"
)

// Capacity limits for the call model. These are enforced at the tracker
// boundary before any leg mutation so that a rejected operation leaves the
// model untouched.
const (
	// MaxConnectionsPerCall is the conference cap: the largest number of
	// parties a single leg may aggregate.
	MaxConnectionsPerCall = 5

	// MaxConnections is the system-wide cap across all four legs plus the
	// pending dial request.
	MaxConnections = 7
)

// Limit violation errors.
var (
	// ErrTooManyParticipants is returned when a leg would exceed the
	// conference cap.
	ErrTooManyParticipants = errors.New("too many participants on call")

	// ErrTooManyConnections is returned when the system-wide connection cap
	// would be exceeded.
	ErrTooManyConnections = errors.New("too many connections")
)

// ValidateLegCapacity checks that a leg with n members can accept one more.
func ValidateLegCapacity(n int) error {
	if n >= MaxConnectionsPerCall {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyParticipants, n, MaxConnectionsPerCall)
	}
	return nil
}

// ValidateSystemCapacity checks that the registry with n live connections can
// accept one more.
func ValidateSystemCapacity(n int) error {
	if n >= MaxConnections {
		return fmt.Errorf("%w: %d (max %d)", ErrTooManyConnections, n, MaxConnections)
	}
	return nil
}
