// internal/swarm/slots.go
package swarm

// SlotTable maps device identifiers onto a fixed number of slots.
// It is not safe for concurrent use; Engine serializes access.
type SlotTable struct {
	slots []Slot
}

// Binding describes what Resolve did to the table.
type Binding struct {
	Index   int
	New     bool // device was not bound before this call
	Evicted byte // device displaced to make room, 0 if none
}

// NewSlotTable returns a table of n unassigned slots.
func NewSlotTable(n int) *SlotTable {
	return &SlotTable{slots: make([]Slot, n)}
}

// Len returns the number of slots.
func (t *SlotTable) Len() int {
	return len(t.slots)
}

// At returns a pointer to slot i. The caller must hold the engine lock.
func (t *SlotTable) At(i int) *Slot {
	return &t.slots[i]
}

// Lookup returns the slot bound to id, or -1.
func (t *SlotTable) Lookup(id byte) int {
	if id == 0 {
		return -1
	}
	for i := range t.slots {
		if t.slots[i].DeviceID == id {
			return i
		}
	}
	return -1
}

// Resolve returns the slot for id, binding it if needed:
// an existing binding wins, then the lowest empty slot, then the slot with the
// oldest LastSeen (lowest index on ties) is evicted and rebound.
// id 0 is the unassigned marker and never resolves.
func (t *SlotTable) Resolve(id byte) (Binding, bool) {
	if id == 0 || len(t.slots) == 0 {
		return Binding{Index: -1}, false
	}

	if i := t.Lookup(id); i >= 0 {
		return Binding{Index: i}, true
	}

	for i := range t.slots {
		if !t.slots[i].Assigned() {
			t.slots[i] = Slot{DeviceID: id}
			return Binding{Index: i, New: true}, true
		}
	}

	oldest := 0
	for i := 1; i < len(t.slots); i++ {
		if t.slots[i].LastSeen.Before(t.slots[oldest].LastSeen) {
			oldest = i
		}
	}

	evicted := t.slots[oldest].DeviceID
	t.slots[oldest] = Slot{DeviceID: id}
	return Binding{Index: oldest, New: true, Evicted: evicted}, true
}

// Clear returns every slot to the unassigned state.
func (t *SlotTable) Clear() {
	for i := range t.slots {
		t.slots[i] = Slot{}
	}
}

// Views copies the table.
func (t *SlotTable) Views() []SlotView {
	out := make([]SlotView, len(t.slots))
	for i, s := range t.slots {
		out[i] = SlotView{Index: i, Slot: s}
	}
	return out
}
