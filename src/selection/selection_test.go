package selection

import (
	"testing"

	"hdr-snip/src/geometry"
)

func pt(x, y int32) geometry.Point { return geometry.Point{X: x, Y: y} }

func TestDragCommitsExpandedRect(t *testing.T) {
	m := NewMachine()
	m.Handle(Press{At: pt(100, 100)})
	m.Handle(Move{At: pt(300, 50)})
	dims, ok := m.Selection()
	if !ok || dims != (geometry.Dimensions{X: 100, Y: 50, Width: 200, Height: 50}) {
		t.Fatalf("live selection = %v (%v)", dims, ok)
	}
	r := m.Handle(Release{At: pt(300, 50)})
	if !r.Actions.Has(Export | HideOverlay | ResetPresent) {
		t.Fatalf("release actions = %v", r.Actions)
	}
	c, ok := r.Next.(Committed)
	if !ok {
		t.Fatalf("next state = %v, want Committed", r.Next)
	}
	if c.Rect != r.Export {
		t.Errorf("committed %v differs from export %v", c.Rect, r.Export)
	}
	if r.Export.Left != 100 || r.Export.Top != 50 || r.Export.Width() != 201 || r.Export.Height() != 51 {
		t.Errorf("export rect = %v, want 201x51 at (100,50)", r.Export)
	}
	m.Clear()
	if _, ok := m.State().(Idle); !ok {
		t.Errorf("state after Clear = %v", m.State())
	}
}

func TestEscapeDuringDrag(t *testing.T) {
	m := NewMachine()
	m.Handle(Press{At: pt(50, 50)})
	m.TakeDirty()
	r := m.Handle(Escape{})
	if _, ok := r.Next.(Idle); !ok {
		t.Fatalf("next = %v, want Idle", r.Next)
	}
	if r.Actions.Has(Export) {
		t.Errorf("escape requested an export")
	}
	if !r.Actions.Has(Redraw|ResetPresent) || !m.TakeDirty() {
		t.Errorf("escape actions = %v, want redraw and present reset", r.Actions)
	}
	// a second escape with nothing selected hides the overlay
	r = m.Handle(Escape{})
	if !r.Actions.Has(HideOverlay) || r.Actions.Has(Export) {
		t.Errorf("idle escape actions = %v", r.Actions)
	}
}

func TestMoveIsIdempotent(t *testing.T) {
	m := NewMachine()
	m.Handle(Press{At: pt(10, 10)})
	m.Handle(Move{At: pt(40, 25)})
	first := m.State()
	m.TakeDirty()
	r := m.Handle(Move{At: pt(40, 25)})
	if m.State() != first {
		t.Errorf("state changed on repeated move: %v -> %v", first, m.State())
	}
	if r.Actions != 0 || m.Dirty() {
		t.Errorf("repeated move requested %v", r.Actions)
	}
}

func TestClickWithoutDragDoesNotExport(t *testing.T) {
	m := NewMachine()
	m.Handle(Press{At: pt(5, 5)})
	r := m.Handle(Release{At: pt(5, 5)})
	if r.Actions.Has(Export) {
		t.Errorf("zero-area release exported %v", r.Export)
	}
	if !r.Actions.Has(HideOverlay) {
		t.Errorf("zero-area release kept the overlay: %v", r.Actions)
	}
	if _, ok := r.Next.(Idle); !ok {
		t.Errorf("next = %v", r.Next)
	}
}

func TestUnmatchedEventsAreNoOps(t *testing.T) {
	active := Active{Corner1: pt(1, 2), Corner2: pt(3, 4), HasCorner2: true}
	tests := []struct {
		name  string
		state State
		event Event
	}{
		{"move while idle", Idle{}, Move{At: pt(3, 3)}},
		{"release while idle", Idle{}, Release{At: pt(3, 3)}},
		{"press while active", active, Press{At: pt(9, 9)}},
		{"move while committed", Committed{}, Move{At: pt(1, 1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Transition(tt.state, tt.event)
			if r.Next != tt.state || r.Actions != 0 {
				t.Errorf("Transition = %v %v, want no-op", r.Next, r.Actions)
			}
		})
	}
}

func TestPressStartsDegenerateSelection(t *testing.T) {
	m := NewMachine()
	m.Handle(Press{At: pt(7, 8)})
	dims, ok := m.Selection()
	if !ok || dims.HasArea() || dims.X != 7 || dims.Y != 8 {
		t.Errorf("selection after press = %v (%v)", dims, ok)
	}
	if !m.TakeDirty() {
		t.Errorf("press did not mark dirty")
	}
	if m.TakeDirty() {
		t.Errorf("dirty flag not consumed")
	}
}

func TestActionString(t *testing.T) {
	if s := (HideOverlay | Export).String(); s != "hide|export" {
		t.Errorf("String = %q", s)
	}
}
