// internal/indicator/button.go
package indicator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"

	"github.com/tamzrod/swarm-monitor/internal/swarm"
)

// edgeWait bounds WaitForEdge so cancellation is noticed.
const edgeWait = 250 * time.Millisecond

// Button turns debounced rising edges on a pulled-down input into reset
// requests. Each press runs on its own goroutine so a press during the
// cooldown is rejected by the coordinator instead of queued.
type Button struct {
	pin      gpio.PinIn
	debounce time.Duration
	onPress  func(ctx context.Context) error
	now      func() time.Time
}

// ButtonOption configures a Button.
type ButtonOption func(*Button)

// WithButtonClock replaces time.Now for debounce decisions.
func WithButtonClock(now func() time.Time) ButtonOption {
	return func(b *Button) {
		if now != nil {
			b.now = now
		}
	}
}

// NewButton builds a button. onPress is typically Coordinator.Reset.
func NewButton(pin gpio.PinIn, debounce time.Duration, onPress func(ctx context.Context) error, opts ...ButtonOption) (*Button, error) {
	if pin == nil {
		return nil, errors.New("indicator: button pin required")
	}
	if onPress == nil {
		return nil, errors.New("indicator: button handler required")
	}
	if debounce < 0 {
		return nil, errors.New("indicator: debounce must be >= 0")
	}

	b := &Button{pin: pin, debounce: debounce, onPress: onPress, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Run arms the edge detector and serves presses until ctx is cancelled.
// It waits for in-flight handlers before returning.
func (b *Button) Run(ctx context.Context) error {
	if err := b.pin.In(gpio.PullDown, gpio.RisingEdge); err != nil {
		return fmt.Errorf("indicator: arm button %s: %w", b.pin, err)
	}

	var (
		wg   sync.WaitGroup
		last time.Time
	)
	defer wg.Wait()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !b.pin.WaitForEdge(edgeWait) {
			continue
		}
		if b.pin.Read() != gpio.High {
			continue
		}

		now := b.now()
		if !last.IsZero() && now.Sub(last) < b.debounce {
			continue
		}
		last = now

		log.Info().Stringer("pin", b.pin).Msg("reset button pressed")
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := b.onPress(ctx)
			switch {
			case err == nil:
			case errors.Is(err, swarm.ErrResetInProgress):
				log.Info().Msg("reset already running, press ignored")
			case errors.Is(err, context.Canceled):
			default:
				log.Error().Err(err).Msg("reset failed")
			}
		}()
	}
}
