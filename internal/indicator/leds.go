// internal/indicator/leds.go
package indicator

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// Bank owns the per-slot LEDs and the reset status LED.
// Slot i drives leds[i]. It implements swarm.IndicatorSink and
// swarm.StatusIndicator.
type Bank struct {
	mu     sync.Mutex
	leds   []gpio.PinOut
	status gpio.PinOut // may be nil
}

// NewBank wraps already-resolved pins. status may be nil.
func NewBank(leds []gpio.PinOut, status gpio.PinOut) (*Bank, error) {
	if len(leds) == 0 {
		return nil, errors.New("indicator: at least one slot LED required")
	}
	for i, p := range leds {
		if p == nil {
			return nil, fmt.Errorf("indicator: slot LED %d is nil", i)
		}
	}
	return &Bank{leds: leds, status: status}, nil
}

// OpenBank resolves pins by name through the periph registry.
// host.Init (or driverreg.Init) must have run first.
func OpenBank(names []string, statusName string) (*Bank, error) {
	leds := make([]gpio.PinOut, 0, len(names))
	for _, n := range names {
		p := gpioreg.ByName(n)
		if p == nil {
			return nil, fmt.Errorf("indicator: unknown pin %q", n)
		}
		leds = append(leds, p)
	}

	var status gpio.PinOut
	if statusName != "" {
		p := gpioreg.ByName(statusName)
		if p == nil {
			return nil, fmt.Errorf("indicator: unknown status pin %q", statusName)
		}
		status = p
	}

	b, err := NewBank(leds, status)
	if err != nil {
		return nil, err
	}
	b.Off()
	return b, nil
}

// Len is the number of slot LEDs.
func (b *Bank) Len() int {
	return len(b.leds)
}

// Drive sets one slot LED. Out of range slots are ignored.
func (b *Bank) Drive(slot int, on bool) {
	if slot < 0 || slot >= len(b.leds) {
		return
	}

	b.mu.Lock()
	err := b.leds[slot].Out(gpio.Level(on))
	b.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Int("slot", slot).Bool("on", on).Msg("slot LED write failed")
	}
}

// SetResetting lights the status LED for the reset cooldown.
func (b *Bank) SetResetting(on bool) {
	if b.status == nil {
		return
	}

	b.mu.Lock()
	err := b.status.Out(gpio.Level(on))
	b.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Bool("on", on).Msg("status LED write failed")
	}
}

// Off drives every LED low.
func (b *Bank) Off() {
	for i := range b.leds {
		b.Drive(i, false)
	}
	b.SetResetting(false)
}
