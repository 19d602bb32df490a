// internal/swarm/types.go
package swarm

import (
	"errors"
	"time"
)

var (
	// ErrResetInProgress is returned for work dropped during the reset cooldown.
	ErrResetInProgress = errors.New("swarm: reset in progress")

	// ErrBadSlot is returned for slot indices outside the table.
	ErrBadSlot = errors.New("swarm: slot index out of range")
)

// Presence is the liveness of a slot.
type Presence uint8

const (
	NotPresent Presence = iota
	Present
	TimedOut
)

func (p Presence) String() string {
	switch p {
	case Present:
		return "PRESENT"
	case TimedOut:
		return "TIMED_OUT"
	default:
		return "NOT_PRESENT"
	}
}

// Role is the election role a member reports.
type Role uint8

const (
	RoleUnknown Role = iota
	Master
	Slave
)

func (r Role) String() string {
	switch r {
	case Master:
		return "MASTER"
	case Slave:
		return "SLAVE"
	default:
		return "UNKNOWN"
	}
}

// Slot is one logical swarm position. DeviceID 0 means unassigned.
type Slot struct {
	DeviceID  byte
	Presence  Presence
	Role      Role
	LastSeen  time.Time
	Telemetry int

	// Calibration test state, carried but not interpreted.
	TestItem      uint8
	TestDirection uint8
}

// Assigned reports whether a device is bound to the slot.
func (s Slot) Assigned() bool {
	return s.DeviceID != 0
}

// SlotView is the read-only copy handed to display collaborators.
type SlotView struct {
	Index int
	Slot
}

// Snapshot is a consistent copy of the whole swarm state.
type Snapshot struct {
	Slots         []SlotView
	Master        int // -1 when there is no master
	BlinkInterval time.Duration
	ResetInFlight bool
}

// HasMaster reports whether a master is currently elected.
func (s Snapshot) HasMaster() bool {
	return s.Master >= 0
}

// IndicatorSink receives per-slot output changes (LEDs in the field).
// Calls happen outside the engine lock.
type IndicatorSink interface {
	Drive(slot int, on bool)
}

// DefaultBlinkInterval is the interval reported when no master is elected.
const DefaultBlinkInterval = 2 * time.Second
