// internal/swarm/reset.go
package swarm

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tamzrod/swarm-monitor/internal/protocol"
)

// Broadcaster sends an encoded control packet to the whole swarm.
// Delivery is best effort.
type Broadcaster interface {
	Broadcast(pkt []byte) error
}

// StatusIndicator shows that a reset is running (the white LED in the field).
type StatusIndicator interface {
	SetResetting(on bool)
}

// CoordinatorConfig is the runtime config of the reset coordinator.
type CoordinatorConfig struct {
	Cooldown time.Duration
	Repeat   int // RESET_SWARM broadcasts per reset, at least 1
	Version  byte
}

// Coordinator runs the reset sequence against an Engine.
type Coordinator struct {
	engine *Engine
	tx     Broadcaster
	cfg    CoordinatorConfig
	status StatusIndicator

	// wait blocks for the cooldown; replaced in tests.
	wait func(ctx context.Context, d time.Duration) error
}

// NewCoordinator validates cfg and builds a coordinator. status may be nil.
func NewCoordinator(engine *Engine, tx Broadcaster, cfg CoordinatorConfig, status StatusIndicator) (*Coordinator, error) {
	if engine == nil {
		return nil, errors.New("swarm: coordinator needs an engine")
	}
	if tx == nil {
		return nil, errors.New("swarm: coordinator needs a broadcaster")
	}
	if cfg.Cooldown <= 0 {
		return nil, errors.New("swarm: reset cooldown must be > 0")
	}
	if cfg.Repeat <= 0 {
		cfg.Repeat = 1
	}

	return &Coordinator{
		engine: engine,
		tx:     tx,
		cfg:    cfg,
		status: status,
		wait:   sleepCtx,
	}, nil
}

// Reset clears the swarm and holds the cooldown window.
//
// The state is cleared and the cooldown flag raised in one critical section,
// so no reader sees a half-reset table. RESET_SWARM is then broadcast and the
// call blocks for the cooldown; packets and periodic work are dropped until
// it returns. A reset requested while one is running returns ErrResetInProgress.
// Cancelling ctx shortens the cooldown but the flag is always cleared.
func (c *Coordinator) Reset(ctx context.Context) error {
	if err := c.engine.beginReset(); err != nil {
		return err
	}
	defer c.engine.endReset()

	log.Warn().Dur("cooldown", c.cfg.Cooldown).Msg("swarm reset started")

	if c.status != nil {
		c.status.SetResetting(true)
		defer c.status.SetResetting(false)
	}

	pkt := protocol.NewResetSwarm(c.cfg.Version).Encode()
	for i := 0; i < c.cfg.Repeat; i++ {
		if err := c.tx.Broadcast(pkt); err != nil {
			log.Error().Err(err).Int("attempt", i+1).Msg("RESET_SWARM broadcast failed")
		}
	}

	err := c.wait(ctx, c.cfg.Cooldown)

	log.Info().Msg("swarm reset complete")
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
