// internal/display/panel.go
package display

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"

	"github.com/tamzrod/swarm-monitor/internal/swarm"
)

// clearScreen starts every frame; serial text panels treat form feed as clear.
const clearScreen = "\f"

// Source yields consistent swarm snapshots.
type Source interface {
	Snapshot() swarm.Snapshot
}

// Config describes the serial panel.
type Config struct {
	Port          string
	Baud          int
	AddressPrefix string
	Refresh       time.Duration
}

// Panel renders the swarm to a text device at a fixed refresh rate.
type Panel struct {
	out     io.WriteCloser
	src     Source
	prefix  string
	refresh time.Duration

	last string
}

// Open opens the serial port and builds a panel on it.
func Open(cfg Config, src Source) (*Panel, error) {
	port, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("display: open %s: %w", cfg.Port, err)
	}

	p, err := NewPanel(port, src, cfg.AddressPrefix, cfg.Refresh)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return p, nil
}

// NewPanel builds a panel on an already open writer.
func NewPanel(out io.WriteCloser, src Source, prefix string, refresh time.Duration) (*Panel, error) {
	if out == nil || src == nil {
		return nil, errors.New("display: panel needs an output and a source")
	}
	if refresh <= 0 {
		return nil, errors.New("display: refresh must be > 0")
	}
	return &Panel{out: out, src: src, prefix: prefix, refresh: refresh}, nil
}

// Refresh renders one frame. Identical frames are not re-sent.
func (p *Panel) Refresh() error {
	frame := clearScreen + strings.Join(Render(p.src.Snapshot(), p.prefix), "\r\n") + "\r\n"
	if frame == p.last {
		return nil
	}

	if _, err := io.WriteString(p.out, frame); err != nil {
		p.last = ""
		return fmt.Errorf("display: write: %w", err)
	}
	p.last = frame
	return nil
}

// Run refreshes until ctx is done, then closes the output.
func (p *Panel) Run(ctx context.Context) error {
	defer p.out.Close()

	ticker := time.NewTicker(p.refresh)
	defer ticker.Stop()

	for {
		if err := p.Refresh(); err != nil {
			var portErr *serial.PortError
			if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
				return err
			}
			log.Warn().Err(err).Msg("display refresh failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
