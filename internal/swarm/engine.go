// internal/swarm/engine.go
package swarm

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tamzrod/swarm-monitor/internal/protocol"
)

// Engine owns the swarm state. Every mutation takes the write lock and
// runs to completion; side effects (indicators, logs) are flushed after
// the lock is released.
type Engine struct {
	mu sync.RWMutex

	table         *SlotTable
	master        int
	blink         time.Duration
	resetInFlight bool

	now  func() time.Time
	sink IndicatorSink
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIndicators routes per-slot output changes to sink.
func WithIndicators(sink IndicatorSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// NewEngine creates the state for a swarm of size slots.
func NewEngine(size int, opts ...Option) (*Engine, error) {
	if size <= 0 {
		return nil, errors.New("swarm: size must be > 0")
	}
	if size > 0xFF {
		return nil, fmt.Errorf("swarm: size %d exceeds device id space", size)
	}

	e := &Engine{
		table:  NewSlotTable(size),
		master: -1,
		blink:  DefaultBlinkInterval,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Size returns the configured swarm size.
func (e *Engine) Size() int {
	return e.table.Len()
}

// Apply dispatches a decoded packet.
func (e *Engine) Apply(p protocol.Packet) error {
	switch {
	case p.Log != nil:
		return e.ApplyLog(*p.Log)
	case p.Control != nil:
		return e.ApplyControl(*p.Control)
	default:
		return fmt.Errorf("%w: empty packet", protocol.ErrMalformedPacket)
	}
}

// ApplyControl handles a control packet. Only LIGHT_UPDATE changes state;
// the sender's swarm id is bound to a slot and marked present.
func (e *Engine) ApplyControl(p protocol.ControlPacket) error {
	if p.Type != protocol.LightUpdate {
		if e.ResetInFlight() {
			return ErrResetInProgress
		}
		log.Info().Stringer("type", p.Type).Uint8("swarm_id", p.SwarmID).Msg("control packet received")
		return nil
	}

	var fx effects

	e.mu.Lock()
	if e.resetInFlight {
		e.mu.Unlock()
		return ErrResetInProgress
	}

	now := e.now()
	idx, ok := e.bindLocked(p.SwarmID, &fx)
	if ok {
		s := e.table.At(idx)
		s.Presence = Present
		s.LastSeen = now
		e.electLocked(&fx)
	}
	e.mu.Unlock()

	fx.flush(e.sink)

	if !ok {
		return fmt.Errorf("%w: light update from unassigned id 0", protocol.ErrProtocolViolation)
	}
	return nil
}

// ApplyLog applies a LOG_TO_SERVER table. The payload must carry exactly one
// record per slot; otherwise nothing is changed. After the batch the master
// is re-elected and every updated slot that is not the master is driven low.
func (e *Engine) ApplyLog(p protocol.LogPacket) error {
	if e.ResetInFlight() {
		return ErrResetInProgress
	}

	records, err := protocol.ParseRecords(p.Payload, e.table.Len())
	if err != nil {
		return err
	}

	var fx effects

	e.mu.Lock()
	if e.resetInFlight {
		e.mu.Unlock()
		return ErrResetInProgress
	}

	now := e.now()
	updated := make([]int, 0, len(records))

	for _, r := range records {
		if r.DeviceID == 0 {
			continue
		}
		idx, ok := e.bindLocked(r.DeviceID, &fx)
		if !ok {
			continue
		}

		s := e.table.At(idx)
		s.Presence = presenceOf(r.Status)
		s.LastSeen = now
		s.Telemetry = r.Telemetry
		if r.Master {
			// a stale claim from an absent member never displaces a live master
			if s.Presence == Present {
				e.demoteOthersLocked(idx)
			}
			s.Role = Master
		} else {
			s.Role = Slave
		}
		updated = append(updated, idx)
	}

	e.electLocked(&fx)
	for _, idx := range updated {
		if idx != e.master {
			fx.drive(idx, false)
		}
	}
	e.mu.Unlock()

	fx.flush(e.sink)
	return nil
}

// TickTimeouts moves present slots that have been silent for longer than
// threshold to TimedOut. Bindings are kept. Returns the affected slots.
func (e *Engine) TickTimeouts(now time.Time, threshold time.Duration) []int {
	var fx effects
	var expired []int

	e.mu.Lock()
	if e.resetInFlight {
		e.mu.Unlock()
		return nil
	}

	for i := 0; i < e.table.Len(); i++ {
		s := e.table.At(i)
		if s.Presence == Present && now.Sub(s.LastSeen) > threshold {
			s.Presence = TimedOut
			expired = append(expired, i)

			id, idx := s.DeviceID, i
			fx.log(func() {
				log.Warn().Int("slot", idx).Uint8("device", id).Msg("swarm member timed out")
			})
		}
	}
	if len(expired) > 0 {
		e.electLocked(&fx)
	}
	e.mu.Unlock()

	fx.flush(e.sink)
	return expired
}

// SlotView returns a copy of slot i.
func (e *Engine) SlotView(i int) (SlotView, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if i < 0 || i >= e.table.Len() {
		return SlotView{}, fmt.Errorf("%w: %d", ErrBadSlot, i)
	}
	return SlotView{Index: i, Slot: *e.table.At(i)}, nil
}

// MasterBlinkInterval returns the blink interval derived from the master's
// telemetry. ok is false when no master is elected.
func (e *Engine) MasterBlinkInterval() (time.Duration, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.master < 0 {
		return 0, false
	}
	return e.blink, true
}

// Master returns the elected slot index, or -1.
func (e *Engine) Master() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.master
}

// ResetInFlight reports whether the reset cooldown is active.
func (e *Engine) ResetInFlight() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.resetInFlight
}

// Snapshot returns a consistent copy of the whole state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Snapshot{
		Slots:         e.table.Views(),
		Master:        e.master,
		BlinkInterval: e.blink,
		ResetInFlight: e.resetInFlight,
	}
}

// beginReset clears all state and raises the cooldown flag.
func (e *Engine) beginReset() error {
	var fx effects

	e.mu.Lock()
	if e.resetInFlight {
		e.mu.Unlock()
		return ErrResetInProgress
	}

	e.resetInFlight = true
	e.table.Clear()
	e.master = -1
	e.blink = DefaultBlinkInterval
	for i := 0; i < e.table.Len(); i++ {
		fx.drive(i, false)
	}
	e.mu.Unlock()

	fx.flush(e.sink)
	return nil
}

// endReset drops the cooldown flag.
func (e *Engine) endReset() {
	e.mu.Lock()
	e.resetInFlight = false
	e.mu.Unlock()
}

// bindLocked resolves id to a slot and records the logs for new bindings.
func (e *Engine) bindLocked(id byte, fx *effects) (int, bool) {
	b, ok := e.table.Resolve(id)
	if !ok {
		return -1, false
	}
	if !b.New {
		return b.Index, true
	}

	if b.Index == e.master {
		// the evicted device was the master
		e.master = -1
		e.blink = DefaultBlinkInterval
		fx.drive(b.Index, false)
	}

	fx.log(func() {
		ev := log.Info().Uint8("device", id).Int("slot", b.Index)
		if b.Evicted != 0 {
			ev = ev.Uint8("evicted", b.Evicted)
		}
		ev.Msg("swarm member assigned")
	})
	return b.Index, true
}

// demoteOthersLocked keeps at most one present slot in the Master role.
func (e *Engine) demoteOthersLocked(keep int) {
	for i := 0; i < e.table.Len(); i++ {
		if i == keep {
			continue
		}
		if s := e.table.At(i); s.Role == Master {
			s.Role = Slave
		}
	}
}

// electLocked recomputes the master and the blink interval.
// A master that stops qualifying has its indicator driven low.
func (e *Engine) electLocked(fx *effects) {
	elected := -1
	for i := 0; i < e.table.Len(); i++ {
		s := e.table.At(i)
		if s.Presence == Present && s.Role == Master {
			elected = i
			break
		}
	}

	prev := e.master
	e.master = elected
	if elected >= 0 {
		e.blink = BlinkInterval(e.table.At(elected).Telemetry)
	} else {
		e.blink = DefaultBlinkInterval
	}

	if prev != elected {
		if prev >= 0 {
			fx.drive(prev, false)
		}
		fx.log(func() {
			if elected < 0 {
				log.Info().Int("previous", prev).Msg("no master")
				return
			}
			log.Info().Int("slot", elected).Int("previous", prev).Msg("master changed")
		})
	}
}

// BlinkInterval maps master telemetry onto the blink period:
// (1 - t/1023) seconds with t clamped to 0..1023.
func BlinkInterval(telemetry int) time.Duration {
	t := telemetry
	if t < 0 {
		t = 0
	}
	if t > protocol.TelemetryMax {
		t = protocol.TelemetryMax
	}
	frac := 1.0 - float64(t)/float64(protocol.TelemetryMax)
	return time.Duration(frac * float64(time.Second))
}

func presenceOf(tag protocol.StatusTag) Presence {
	switch tag {
	case protocol.TagPresent:
		return Present
	case protocol.TagTimedOut:
		return TimedOut
	default:
		return NotPresent
	}
}

type drive struct {
	slot int
	on   bool
}

// effects are collected under the lock and flushed after it is released.
type effects struct {
	drives []drive
	logs   []func()
}

func (fx *effects) drive(slot int, on bool) {
	fx.drives = append(fx.drives, drive{slot: slot, on: on})
}

func (fx *effects) log(fn func()) {
	fx.logs = append(fx.logs, fn)
}

func (fx *effects) flush(sink IndicatorSink) {
	for _, fn := range fx.logs {
		fn()
	}
	if sink == nil {
		return
	}
	for _, d := range fx.drives {
		sink.Drive(d.slot, d.on)
	}
}
