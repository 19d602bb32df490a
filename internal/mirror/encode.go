// internal/mirror/encode.go
package mirror

import (
	"time"

	"github.com/tamzrod/swarm-monitor/internal/swarm"
)

// Encode converts a swarm snapshot into the full mirror block.
// Layout is protocol-locked.
// No IO. No side effects.
func Encode(s swarm.Snapshot, now time.Time) []uint16 {
	regs := make([]uint16, BlockLen(len(s.Slots)))

	if s.HasMaster() {
		regs[RegMasterSlot] = clamp(int64(s.Master) + 1)
	}
	regs[RegBlinkMillis] = clamp(s.BlinkInterval.Milliseconds())
	if s.ResetInFlight {
		regs[RegResetFlag] = 1
	}
	regs[RegSwarmSize] = clamp(int64(len(s.Slots)))

	for i, v := range s.Slots {
		base := HeaderRegs + i*RegsPerSlot

		regs[base+SlotPresence] = presenceCode(v.Presence)
		regs[base+SlotRole] = roleCode(v.Role)
		regs[base+SlotDeviceID] = uint16(v.DeviceID)
		regs[base+SlotTelemetry] = clamp(int64(v.Telemetry))

		// seconds since seen MUST NOT wrap
		if !v.LastSeen.IsZero() {
			regs[base+SlotSecondsSinceSeen] = clamp(int64(now.Sub(v.LastSeen) / time.Second))
		}
	}

	return regs
}

func presenceCode(p swarm.Presence) uint16 {
	switch p {
	case swarm.Present:
		return PresencePresent
	case swarm.TimedOut:
		return PresenceTimedOut
	default:
		return PresenceNotPresent
	}
}

func roleCode(r swarm.Role) uint16 {
	switch r {
	case swarm.Master:
		return RoleMaster
	case swarm.Slave:
		return RoleSlave
	default:
		return RoleUnknown
	}
}

func clamp(v int64) uint16 {
	if v < 0 {
		return 0
	}
	if v > 65535 {
		return 65535
	}
	return uint16(v)
}
