// internal/display/render.go
package display

import (
	"fmt"
	"strconv"

	"github.com/tamzrod/swarm-monitor/internal/swarm"
)

// Status labels shown per slot.
const (
	LabelNotPresent = "Not Present"
	LabelTimedOut   = "Time Out"
	LabelMaster     = "Master"
	LabelSlave      = "Slave"
)

// ResetBanner replaces the master line while the cooldown runs.
const ResetBanner = "*** SWARM RESET ***"

// Label is the status text of one slot.
func Label(v swarm.SlotView) string {
	switch v.Presence {
	case swarm.Present:
		if v.Role == swarm.Master {
			return LabelMaster
		}
		return LabelSlave
	case swarm.TimedOut:
		return LabelTimedOut
	default:
		return LabelNotPresent
	}
}

// Address is prefix followed by the device id, or "-" for an empty slot.
func Address(v swarm.SlotView, prefix string) string {
	if !v.Assigned() {
		return "-"
	}
	return prefix + strconv.Itoa(int(v.DeviceID))
}

// Render formats one panel frame: a master line followed by one line per slot.
func Render(s swarm.Snapshot, prefix string) []string {
	lines := make([]string, 0, len(s.Slots)+1)

	switch {
	case s.ResetInFlight:
		lines = append(lines, ResetBanner)
	case s.HasMaster():
		lines = append(lines, fmt.Sprintf("Master %d  blink %.3fs", s.Master+1, s.BlinkInterval.Seconds()))
	default:
		lines = append(lines, "Master -")
	}

	for _, v := range s.Slots {
		lines = append(lines, fmt.Sprintf("%d %-11s %-16s %4d", v.Index+1, Label(v), Address(v, prefix), v.Telemetry))
	}
	return lines
}
