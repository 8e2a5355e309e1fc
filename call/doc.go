// Package call provides the data model for IMS call tracking: individual
// call party sessions (Connection), the four fixed call slots (Leg), and
// the arena of live connections (Registry).
//
// The package contains no network I/O. All Leg and Registry mutation is
// owned by the tracker's serialized event queue; Connection exposes
// thread-safe accessors so that snapshots can be read from notification
// callbacks without touching the queue.
//
// # Ownership model
//
// Connections are stored in a Registry keyed by a stable Handle. Legs hold
// handles, never direct references, so there are no reference cycles between
// a connection and its owning leg: the back-reference is a LegID resolved
// through the registry on demand.
package call
