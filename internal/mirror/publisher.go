// internal/mirror/publisher.go
package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tamzrod/swarm-monitor/internal/swarm"
)

// Source yields consistent swarm snapshots.
type Source interface {
	Snapshot() swarm.Snapshot
}

// Publisher periodically encodes the swarm and hands it to a Writer.
type Publisher struct {
	src      Source
	w        *Writer
	interval time.Duration
	now      func() time.Time
}

// NewPublisher builds a publisher. now may be nil.
func NewPublisher(src Source, w *Writer, interval time.Duration, now func() time.Time) (*Publisher, error) {
	if src == nil || w == nil {
		return nil, errors.New("mirror: publisher needs a source and a writer")
	}
	if interval <= 0 {
		return nil, errors.New("mirror: interval must be > 0")
	}
	if now == nil {
		now = time.Now
	}
	return &Publisher{src: src, w: w, interval: interval, now: now}, nil
}

// Publish writes the current snapshot once.
func (p *Publisher) Publish() error {
	return p.w.Write(Encode(p.src.Snapshot(), p.now()))
}

// Run publishes immediately and then every interval until ctx is done.
// Write failures are logged; the next tick retries with a full block.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.Publish(); err != nil {
			log.Warn().Err(err).Msg("mirror publish failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
