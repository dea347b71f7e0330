// Package selection turns pointer and keyboard events into a selection
// rectangle. States and events are closed sum types and Transition is the
// only place that moves between them.
package selection

import (
	"fmt"

	"hdr-snip/src/geometry"
)

// State is one of Idle, Active or Committed.
type State interface {
	isState()
	fmt.Stringer
}

// Idle means no selection is in progress.
type Idle struct{}

// Active is a drag in progress. Corner2 is meaningful only when HasCorner2.
type Active struct {
	Corner1    geometry.Point
	Corner2    geometry.Point
	HasCorner2 bool
}

// Committed holds the export request produced by a release. It is left by
// calling Machine.Clear once the export has run, whatever its outcome.
type Committed struct {
	Rect geometry.Rect
}

func (Idle) isState()      {}
func (Active) isState()    {}
func (Committed) isState() {}

func (Idle) String() string        { return "Idle" }
func (a Active) String() string    { return fmt.Sprintf("Active(%v)", a.Dimensions()) }
func (c Committed) String() string { return fmt.Sprintf("Committed(%v)", c.Rect) }

// Dimensions re-derives the rectangle from the corners.
func (a Active) Dimensions() geometry.Dimensions {
	if !a.HasCorner2 {
		return geometry.FromCorner(a.Corner1, nil)
	}
	return geometry.FromCorners(a.Corner1, a.Corner2)
}

// Event is one of Press, Move, Release or Escape.
type Event interface {
	isEvent()
}

// Press is the primary button going down.
type Press struct{ At geometry.Point }

// Move is pointer motion.
type Move struct{ At geometry.Point }

// Release is the primary button going up.
type Release struct{ At geometry.Point }

// Escape is the escape key being released.
type Escape struct{}

func (Press) isEvent()   {}
func (Move) isEvent()    {}
func (Release) isEvent() {}
func (Escape) isEvent()  {}

// Action is a set of side effects requested by a transition.
type Action uint8

const (
	// Redraw marks the preview dirty.
	Redraw Action = 1 << iota
	// HideOverlay hides the overlay window.
	HideOverlay
	// Export runs the export pipeline on Result.Export.
	Export
	// ResetPresent forces the next present to cover the whole surface.
	ResetPresent
)

// Has reports whether all bits of b are set.
func (a Action) Has(b Action) bool { return a&b == b }

func (a Action) String() string {
	if a == 0 {
		return "none"
	}
	s := ""
	for _, f := range []struct {
		bit  Action
		name string
	}{{Redraw, "redraw"}, {HideOverlay, "hide"}, {Export, "export"}, {ResetPresent, "reset-present"}} {
		if a.Has(f.bit) {
			if s != "" {
				s += "|"
			}
			s += f.name
		}
	}
	return s
}

// Result is the outcome of a transition.
type Result struct {
	Next    State
	Actions Action
	// Export is the request rectangle, expanded by one pixel on the right
	// and bottom edges, when Actions has Export.
	Export geometry.Rect
}

// ExportPadding is added to the right and bottom edge of a committed
// selection so the exclusive copy box covers the pixel under the pointer.
const ExportPadding = 1

// Transition computes the next state. Unmatched pairs are no-ops.
// Committed behaves like Idle until it is cleared.
func Transition(s State, e Event) Result {
	switch st := s.(type) {
	case Idle, Committed:
		switch ev := e.(type) {
		case Press:
			return Result{Next: Active{Corner1: ev.At}, Actions: Redraw}
		case Escape:
			return Result{Next: Idle{}, Actions: HideOverlay | ResetPresent}
		}
		return Result{Next: s}

	case Active:
		switch ev := e.(type) {
		case Move:
			next := Active{Corner1: st.Corner1, Corner2: ev.At, HasCorner2: true}
			if next == st {
				return Result{Next: st}
			}
			return Result{Next: next, Actions: Redraw}
		case Release:
			final := Active{Corner1: st.Corner1, Corner2: ev.At, HasCorner2: true}
			dims := final.Dimensions()
			if !dims.HasArea() {
				return Result{Next: Idle{}, Actions: HideOverlay | ResetPresent}
			}
			rect := dims.Rect().ExpandTrailing(ExportPadding)
			return Result{Next: Committed{Rect: rect}, Actions: HideOverlay | Export | ResetPresent, Export: rect}
		case Escape:
			return Result{Next: Idle{}, Actions: Redraw | ResetPresent}
		}
		return Result{Next: st}
	}
	return Result{Next: s}
}
