package selection

import "hdr-snip/src/geometry"

// Machine holds the current state and the redraw flag consumed by paint.
type Machine struct {
	state State
	dirty bool
}

// NewMachine starts in Idle.
func NewMachine() *Machine {
	return &Machine{state: Idle{}}
}

// State returns the current state.
func (m *Machine) State() State { return m.state }

// Handle applies e and returns the transition result.
func (m *Machine) Handle(e Event) Result {
	r := Transition(m.state, e)
	m.state = r.Next
	if r.Actions.Has(Redraw) {
		m.dirty = true
	}
	return r
}

// Clear drops any selection, committed or not.
func (m *Machine) Clear() {
	m.state = Idle{}
}

// MarkDirty requests a redraw on the next paint.
func (m *Machine) MarkDirty() { m.dirty = true }

// Dirty reports whether a redraw is pending without consuming it.
func (m *Machine) Dirty() bool { return m.dirty }

// TakeDirty consumes the redraw flag.
func (m *Machine) TakeDirty() bool {
	d := m.dirty
	m.dirty = false
	return d
}

// Selection returns the live selection rectangle while a drag is active.
func (m *Machine) Selection() (geometry.Dimensions, bool) {
	a, ok := m.state.(Active)
	if !ok {
		return geometry.Dimensions{}, false
	}
	return a.Dimensions(), true
}
