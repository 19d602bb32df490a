// internal/mirror/layout.go
package mirror

// Swarm mirror block layout constants.
// These values define the register protocol and MUST NOT be configurable.

// ---- HEADER ----

// HeaderRegs is the number of registers ahead of the first slot block.
const HeaderRegs = 4

// RegMasterSlot holds the elected master slot + 1 (0 = no master).
const RegMasterSlot = 0

// RegBlinkMillis holds the current blink interval in milliseconds.
const RegBlinkMillis = 1

// RegResetFlag is 1 while the reset cooldown is active.
const RegResetFlag = 2

// RegSwarmSize holds the number of slot blocks that follow.
const RegSwarmSize = 3

// ---- SLOT BLOCK ----

// RegsPerSlot is the fixed number of registers per slot.
const RegsPerSlot = 8

const (
	SlotPresence         = 0
	SlotRole             = 1
	SlotDeviceID         = 2
	SlotTelemetry        = 3
	SlotSecondsSinceSeen = 4
)

// Slot registers 5..7 are reserved and always zero.
const SlotReservedStart = 5
const SlotReservedEnd = 7

// ---- CODES ----

const (
	PresenceNotPresent uint16 = 0
	PresencePresent    uint16 = 1
	PresenceTimedOut   uint16 = 2
)

const (
	RoleUnknown uint16 = 0
	RoleMaster  uint16 = 1
	RoleSlave   uint16 = 2
)

// ---- LIMITS ----

// MaxWriteRegisters is the Modbus limit for one Write Multiple Registers request.
const MaxWriteRegisters = 123

// BlockLen is the full block length for a swarm of the given size.
func BlockLen(size int) int {
	return HeaderRegs + size*RegsPerSlot
}
