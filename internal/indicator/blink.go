// internal/indicator/blink.go
package indicator

import (
	"context"
	"errors"
	"time"

	"github.com/tamzrod/swarm-monitor/internal/swarm"
)

// Source is the read side of the swarm engine the blinker needs.
type Source interface {
	Snapshot() swarm.Snapshot
}

// Driver sets a slot output.
type Driver interface {
	Drive(slot int, on bool)
}

// Blinker toggles the master's LED at the master blink interval:
// high for half the interval, low for the other half.
type Blinker struct {
	src     Source
	out     Driver
	idle    time.Duration
	minHalf time.Duration
}

// MinHalfPeriod bounds the toggle rate when telemetry is at full scale and
// the interval collapses to zero.
const MinHalfPeriod = 10 * time.Millisecond

// NewBlinker builds a blinker. idle is the poll period while no master is elected.
func NewBlinker(src Source, out Driver, idle time.Duration) (*Blinker, error) {
	if src == nil || out == nil {
		return nil, errors.New("indicator: blinker needs a source and a driver")
	}
	if idle <= 0 {
		return nil, errors.New("indicator: blinker idle period must be > 0")
	}
	return &Blinker{src: src, out: out, idle: idle, minHalf: MinHalfPeriod}, nil
}

// Run blinks until ctx is cancelled. The LED it last drove is left low.
func (b *Blinker) Run(ctx context.Context) error {
	for {
		snap := b.src.Snapshot()
		if !snap.HasMaster() {
			if err := sleep(ctx, b.idle); err != nil {
				return err
			}
			continue
		}

		slot := snap.Master
		half := snap.BlinkInterval / 2
		if half < b.minHalf {
			half = b.minHalf
		}

		b.out.Drive(slot, true)
		if !b.stillMaster(slot) {
			// a reset or handover landed between the snapshot and the drive
			b.out.Drive(slot, false)
			continue
		}
		err := sleep(ctx, half)
		b.out.Drive(slot, false)
		if err != nil {
			return err
		}
		if err := sleep(ctx, half); err != nil {
			return err
		}
	}
}

func (b *Blinker) stillMaster(slot int) bool {
	snap := b.src.Snapshot()
	return !snap.ResetInFlight && snap.Master == slot
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
