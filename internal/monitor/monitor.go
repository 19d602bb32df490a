// internal/monitor/monitor.go
package monitor

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tamzrod/swarm-monitor/internal/protocol"
	"github.com/tamzrod/swarm-monitor/internal/scheduler"
	"github.com/tamzrod/swarm-monitor/internal/swarm"
	"github.com/tamzrod/swarm-monitor/internal/transport"
)

// Conn is the transport contract the monitor depends on.
type Conn interface {
	Read(deadline time.Time) (transport.Datagram, error)
	Broadcast(pkt []byte) error
}

// Config is the minimal runtime config the monitor needs.
type Config struct {
	IdlePoll           time.Duration
	MemberTimeout      time.Duration
	HousekeepingPeriod time.Duration
	AnnouncePeriod     time.Duration
	StartupReannounce  time.Duration // 0 disables the second startup announce
	ServerAddr         net.IP
	SwarmID            byte // announce id; 0 keeps protocol.ServerSwarmID
	Version            byte
}

// Monitor drives the engine from the transport: decode, apply, then poll
// timeouts and periodic work once per cycle.
type Monitor struct {
	cfg      Config
	engine   *swarm.Engine
	conn     Conn
	sched    *scheduler.Scheduler
	announce []byte

	now          func() time.Time
	rnd          *rand.Rand
	housekeeping func(slot int)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithHousekeeping installs the short-period hook. It receives a random slot
// index and must not block.
func WithHousekeeping(fn func(slot int)) Option {
	return func(m *Monitor) {
		m.housekeeping = fn
	}
}

// New validates cfg, builds the announce packet and arms the periodic tasks.
func New(cfg Config, engine *swarm.Engine, conn Conn, opts ...Option) (*Monitor, error) {
	if engine == nil {
		return nil, errors.New("monitor: engine required")
	}
	if conn == nil {
		return nil, errors.New("monitor: conn required")
	}
	if cfg.IdlePoll <= 0 {
		return nil, errors.New("monitor: idle poll must be > 0")
	}
	if cfg.MemberTimeout <= 0 {
		return nil, errors.New("monitor: member timeout must be > 0")
	}

	pkt, err := protocol.NewDefineServerLogger(cfg.Version, cfg.ServerAddr)
	if err != nil {
		return nil, err
	}
	if cfg.SwarmID != 0 {
		pkt.SwarmID = cfg.SwarmID
	}

	m := &Monitor{
		cfg:      cfg,
		engine:   engine,
		conn:     conn,
		sched:    scheduler.New(),
		announce: pkt.Encode(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.rnd = rand.New(rand.NewSource(m.now().UnixNano()))

	start := m.now()
	if err := m.sched.Every("housekeeping", cfg.HousekeepingPeriod, start, m.runHousekeeping); err != nil {
		return nil, err
	}
	if err := m.sched.Every("announce", cfg.AnnouncePeriod, start, m.runAnnounce); err != nil {
		return nil, err
	}
	if cfg.StartupReannounce > 0 {
		if err := m.sched.After("startup-announce", cfg.StartupReannounce, start, m.runAnnounce); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Run announces the monitor and serves until ctx is cancelled or the
// transport fails for good.
func (m *Monitor) Run(ctx context.Context) error {
	if err := m.Announce(); err != nil {
		log.Error().Err(err).Msg("initial announce failed")
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		d, err := m.conn.Read(m.readDeadline())
		switch {
		case err == nil:
			_ = m.OnPacketReceived(d.Data, d.Src)
		case transport.IsTimeout(err):
		case errors.Is(err, net.ErrClosed):
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		default:
			log.Error().Err(err).Msg("receive failed")
		}

		m.Cycle(m.now())
	}
}

// OnPacketReceived decodes and applies one datagram. Bad input is logged and
// dropped; the returned error is informational only.
func (m *Monitor) OnPacketReceived(data []byte, src net.Addr) error {
	if m.engine.ResetInFlight() {
		log.Debug().Stringer("src", addrStringer{src}).Msg("packet dropped during reset")
		return swarm.ErrResetInProgress
	}

	pkt, err := protocol.Decode(data)
	if err != nil {
		log.Warn().Err(err).Stringer("src", addrStringer{src}).Int("len", len(data)).Msg("packet dropped")
		return err
	}

	err = m.engine.Apply(pkt)
	switch {
	case err == nil:
		log.Debug().Stringer("type", pkt.Type()).Stringer("src", addrStringer{src}).Msg("packet applied")
	case errors.Is(err, swarm.ErrResetInProgress):
		log.Debug().Stringer("src", addrStringer{src}).Msg("packet dropped during reset")
	default:
		log.Warn().Err(err).Stringer("type", pkt.Type()).Stringer("src", addrStringer{src}).Msg("packet rejected")
	}
	return err
}

// Cycle runs timeout detection and due periodic tasks. Nothing runs while a
// reset is in flight.
func (m *Monitor) Cycle(now time.Time) {
	if m.engine.ResetInFlight() {
		return
	}
	m.engine.TickTimeouts(now, m.cfg.MemberTimeout)
	m.sched.Poll(now)
}

// Announce broadcasts DEFINE_SERVER_LOGGER so members know where to log.
func (m *Monitor) Announce() error {
	if err := m.conn.Broadcast(m.announce); err != nil {
		return err
	}
	log.Info().Stringer("server", m.cfg.ServerAddr).Msg("DEFINE_SERVER_LOGGER sent")
	return nil
}

func (m *Monitor) runAnnounce(time.Time) {
	if err := m.Announce(); err != nil {
		log.Error().Err(err).Msg("announce failed")
	}
}

func (m *Monitor) runHousekeeping(time.Time) {
	slot := m.rnd.Intn(m.engine.Size())
	log.Debug().Int("slot", slot).Msg("housekeeping round")
	if m.housekeeping != nil {
		m.housekeeping(slot)
	}
}

// readDeadline bounds a read by the idle poll and the next scheduled task.
func (m *Monitor) readDeadline() time.Time {
	now := m.now()
	deadline := now.Add(m.cfg.IdlePoll)
	if m.engine.ResetInFlight() {
		return deadline
	}
	if next, ok := m.sched.NextDue(); ok && next.Before(deadline) {
		if next.Before(now) {
			return now
		}
		return next
	}
	return deadline
}

type addrStringer struct {
	a net.Addr
}

func (s addrStringer) String() string {
	if s.a == nil {
		return "-"
	}
	return s.a.String()
}
