// internal/swarm/doc.go

// Package swarm holds the membership state of a fixed-size swarm: the slot
// table binding device identifiers to logical slots, the state machine that
// applies decoded packets and timeouts, master election with its derived
// blink interval, and the reset coordinator.
//
// All mutation goes through Engine under a single lock. Readers get copies.
package swarm
