// internal/swarm/engine_test.go
package swarm

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/swarm-monitor/internal/protocol"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeSink struct {
	mu     sync.Mutex
	drives []drive
}

func (f *fakeSink) Drive(slot int, on bool) {
	f.mu.Lock()
	f.drives = append(f.drives, drive{slot: slot, on: on})
	f.mu.Unlock()
}

func (f *fakeSink) drivenLow(slot int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.drives {
		if d.slot == slot && !d.on {
			return true
		}
	}
	return false
}

func (f *fakeSink) reset() {
	f.mu.Lock()
	f.drives = nil
	f.mu.Unlock()
}

func newTestEngine(t *testing.T, size int) (*Engine, *fakeClock, *fakeSink) {
	t.Helper()
	clk := newFakeClock()
	sink := &fakeSink{}
	e, err := NewEngine(size, WithClock(clk.Now), WithIndicators(sink))
	require.NoError(t, err)
	return e, clk, sink
}

func lightUpdate(id byte) protocol.ControlPacket {
	return protocol.ControlPacket{Type: protocol.LightUpdate, SwarmID: id, Version: protocol.DefaultVersion}
}

func logPacket(payload string) protocol.LogPacket {
	return protocol.LogPacket{SwarmID: 5, Payload: payload}
}

func TestNewEngine_RejectsBadSize(t *testing.T) {
	_, err := NewEngine(0)
	require.Error(t, err)
	_, err = NewEngine(300)
	require.Error(t, err)
}

func TestEngine_LightUpdateAssignsUniqueSlots(t *testing.T) {
	e, clk, _ := newTestEngine(t, 3)

	for _, id := range []byte{21, 22, 23} {
		clk.Advance(time.Second)
		require.NoError(t, e.ApplyControl(lightUpdate(id)))
	}
	// repeated updates never move a device
	for round := 0; round < 3; round++ {
		for i, id := range []byte{21, 22, 23} {
			require.NoError(t, e.ApplyControl(lightUpdate(id)))
			v, err := e.SlotView(i)
			require.NoError(t, err)
			assert.Equal(t, id, v.DeviceID)
			assert.Equal(t, Present, v.Presence)
		}
	}
}

func TestEngine_EvictsOldestOnOverflow(t *testing.T) {
	e, clk, _ := newTestEngine(t, 3)

	for _, id := range []byte{1, 2, 3} {
		clk.Advance(time.Second)
		require.NoError(t, e.ApplyControl(lightUpdate(id)))
	}
	clk.Advance(time.Second)
	require.NoError(t, e.ApplyControl(lightUpdate(4)))

	snap := e.Snapshot()
	ids := []byte{snap.Slots[0].DeviceID, snap.Slots[1].DeviceID, snap.Slots[2].DeviceID}
	assert.Equal(t, []byte{4, 2, 3}, ids, "exactly the oldest slot is replaced")
}

func TestEngine_LogPacketExample(t *testing.T) {
	e, _, sink := newTestEngine(t, 3)

	err := e.ApplyLog(logPacket("1,1,0,512,P,5|0,0,0,0,P,7|0,0,0,0,NP,0"))
	require.NoError(t, err)

	s0, _ := e.SlotView(0)
	assert.Equal(t, byte(5), s0.DeviceID)
	assert.Equal(t, Master, s0.Role)
	assert.Equal(t, Present, s0.Presence)
	assert.Equal(t, 512, s0.Telemetry)

	s1, _ := e.SlotView(1)
	assert.Equal(t, byte(7), s1.DeviceID)
	assert.Equal(t, Slave, s1.Role)
	assert.Equal(t, Present, s1.Presence)
	assert.Equal(t, 0, s1.Telemetry)

	s2, _ := e.SlotView(2)
	assert.False(t, s2.Assigned())
	assert.Equal(t, NotPresent, s2.Presence)

	assert.Equal(t, 0, e.Master())
	interval, ok := e.MasterBlinkInterval()
	require.True(t, ok)
	assert.InDelta(t, 0.4995, interval.Seconds(), 0.0001)

	assert.True(t, sink.drivenLow(1), "slave slot is driven low")
	assert.False(t, sink.drivenLow(0), "master slot is left to the blink driver")
}

func TestEngine_SlavesDrivenLowOnEveryLogPacket(t *testing.T) {
	e, _, sink := newTestEngine(t, 2)
	payload := "0,1,0,100,P,1|0,0,0,0,P,2"

	require.NoError(t, e.ApplyLog(logPacket(payload)))
	sink.reset()
	require.NoError(t, e.ApplyLog(logPacket(payload)))

	assert.True(t, sink.drivenLow(1), "re-driven even without a role change")
}

func TestEngine_ProtocolViolationLeavesStateUnchanged(t *testing.T) {
	e, _, _ := newTestEngine(t, 3)
	require.NoError(t, e.ApplyLog(logPacket("1,1,0,512,P,5|0,0,0,0,P,7|0,0,0,0,NP,0")))
	before := e.Snapshot()

	err := e.ApplyLog(logPacket("0,0,0,0,P,9|0,1,0,1000,P,10"))
	require.ErrorIs(t, err, protocol.ErrProtocolViolation)

	assert.Equal(t, before, e.Snapshot())
}

func TestEngine_NoMasterGivesNoBlink(t *testing.T) {
	e, _, _ := newTestEngine(t, 2)
	require.NoError(t, e.ApplyLog(logPacket("0,0,0,10,P,1|0,0,0,20,P,2")))

	_, ok := e.MasterBlinkInterval()
	assert.False(t, ok)
	assert.False(t, e.Snapshot().HasMaster())
}

func TestEngine_LastMasterClaimWins(t *testing.T) {
	e, _, sink := newTestEngine(t, 2)
	require.NoError(t, e.ApplyLog(logPacket("0,1,0,100,P,1|0,0,0,0,P,2")))
	require.Equal(t, 0, e.Master())

	require.NoError(t, e.ApplyLog(logPacket("0,1,0,100,P,1|0,1,0,900,P,2")))
	assert.Equal(t, 1, e.Master())

	masters := 0
	for _, s := range e.Snapshot().Slots {
		if s.Role == Master {
			masters++
		}
	}
	assert.Equal(t, 1, masters)
	assert.True(t, sink.drivenLow(0))

	interval, ok := e.MasterBlinkInterval()
	require.True(t, ok)
	assert.Equal(t, BlinkInterval(900), interval)
}

func TestEngine_AbsentMasterClaimKeepsPresentMaster(t *testing.T) {
	e, _, sink := newTestEngine(t, 2)
	require.NoError(t, e.ApplyLog(logPacket("0,1,0,100,P,1|0,1,0,900,TO,2")))

	assert.Equal(t, 0, e.Master())
	assert.Equal(t, Master, e.Snapshot().Slots[0].Role)
	assert.Equal(t, TimedOut, e.Snapshot().Slots[1].Presence)
	assert.True(t, sink.drivenLow(1))

	interval, ok := e.MasterBlinkInterval()
	require.True(t, ok)
	assert.Equal(t, BlinkInterval(100), interval)

	// a present claim still takes over
	require.NoError(t, e.ApplyLog(logPacket("0,1,0,100,P,1|0,1,0,900,P,2")))
	assert.Equal(t, 1, e.Master())
	assert.Equal(t, Slave, e.Snapshot().Slots[0].Role)
}

func TestEngine_TimeoutExcludesFromElection(t *testing.T) {
	e, clk, sink := newTestEngine(t, 2)
	require.NoError(t, e.ApplyLog(logPacket("0,1,0,300,P,1|0,0,0,0,P,2")))
	require.Equal(t, 0, e.Master())
	sink.reset()

	clk.Advance(5 * time.Second)
	assert.Empty(t, e.TickTimeouts(clk.Now(), 10*time.Second))

	clk.Advance(6 * time.Second)
	expired := e.TickTimeouts(clk.Now(), 10*time.Second)
	assert.ElementsMatch(t, []int{0, 1}, expired)

	s0, _ := e.SlotView(0)
	assert.Equal(t, TimedOut, s0.Presence)
	assert.Equal(t, byte(1), s0.DeviceID, "binding survives the timeout")
	assert.Equal(t, -1, e.Master())
	assert.True(t, sink.drivenLow(0), "lost master is driven low")

	_, ok := e.MasterBlinkInterval()
	assert.False(t, ok)

	// an update brings the member back and it is elected again
	require.NoError(t, e.ApplyControl(lightUpdate(1)))
	s0, _ = e.SlotView(0)
	assert.Equal(t, Present, s0.Presence)
	assert.Equal(t, 0, e.Master())
}

func TestEngine_EvictedMasterIsCleared(t *testing.T) {
	e, clk, _ := newTestEngine(t, 1)
	require.NoError(t, e.ApplyLog(logPacket("0,1,0,300,P,1")))
	require.Equal(t, 0, e.Master())

	clk.Advance(time.Second)
	require.NoError(t, e.ApplyControl(lightUpdate(2)))

	s0, _ := e.SlotView(0)
	assert.Equal(t, byte(2), s0.DeviceID)
	assert.Equal(t, RoleUnknown, s0.Role)
	assert.Equal(t, -1, e.Master())
}

func TestEngine_NonLightControlIgnored(t *testing.T) {
	e, _, _ := newTestEngine(t, 2)
	require.NoError(t, e.ApplyControl(protocol.ControlPacket{Type: protocol.DefineServerLogger, SwarmID: 9}))
	require.NoError(t, e.ApplyControl(protocol.ControlPacket{Type: protocol.ResetSwarm, SwarmID: 9}))

	for _, s := range e.Snapshot().Slots {
		assert.False(t, s.Assigned())
	}
}

func TestEngine_SlotViewBounds(t *testing.T) {
	e, _, _ := newTestEngine(t, 2)
	_, err := e.SlotView(2)
	require.ErrorIs(t, err, ErrBadSlot)
	_, err = e.SlotView(-1)
	require.ErrorIs(t, err, ErrBadSlot)
}

func TestBlinkInterval_Clamped(t *testing.T) {
	assert.Equal(t, time.Second, BlinkInterval(-50))
	assert.Equal(t, time.Second, BlinkInterval(0))
	assert.Equal(t, time.Duration(0), BlinkInterval(1023))
	assert.Equal(t, time.Duration(0), BlinkInterval(5000))
}

func TestEngine_ConcurrentReadersSeeConsistentState(t *testing.T) {
	e, _, _ := newTestEngine(t, 3)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		payloads := []string{
			"0,1,0,100,P,1|0,0,0,0,P,2|0,0,0,0,P,3",
			"0,0,0,0,P,1|0,1,0,200,P,2|0,0,0,0,P,3",
			"0,0,0,0,P,1|0,0,0,0,P,2|0,1,0,300,P,3",
		}
		for i := 0; i < 500; i++ {
			_ = e.ApplyLog(logPacket(payloads[i%len(payloads)]))
		}
		close(stop)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := e.Snapshot()
			masters := 0
			for _, s := range snap.Slots {
				if s.Role == Master {
					masters++
				}
			}
			if !assert.LessOrEqual(t, masters, 1) {
				return
			}
			if snap.HasMaster() {
				m := snap.Slots[snap.Master]
				if !assert.Equal(t, BlinkInterval(m.Telemetry), snap.BlinkInterval) {
					return
				}
			}
		}
	}()

	wg.Wait()
}
