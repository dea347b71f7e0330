// Package hotkey watches global keyboard events for the capture trigger.
package hotkey

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	gohook "github.com/robotn/gohook"
)

// DefaultBinding triggers a capture.
const DefaultBinding = "F11"

var ErrUnknownKey = errors.New("hotkey: unknown key")

// Key is one element of a binding with all rawcodes that satisfy it.
type Key struct {
	Name     string
	Rawcodes []uint16
}

// Binding is a parsed combination such as "Ctrl+Shift+F11".
type Binding struct {
	Spec string
	Keys []Key
}

// Parse resolves every element of spec to Windows virtual key codes.
func Parse(spec string) (Binding, error) {
	names := parseHotkey(spec)
	b := Binding{Spec: spec}
	for _, name := range names {
		if name == "" {
			return Binding{}, fmt.Errorf("%w: empty element in %q", ErrUnknownKey, spec)
		}
		codes := keyNameToRawcodes(name)
		if len(codes) == 0 {
			return Binding{}, fmt.Errorf("%w: %q in %q", ErrUnknownKey, name, spec)
		}
		b.Keys = append(b.Keys, Key{Name: name, Rawcodes: codes})
	}
	if len(b.Keys) == 0 {
		return Binding{}, fmt.Errorf("%w: empty binding", ErrUnknownKey)
	}
	return b, nil
}

// Matcher tracks which keys of a binding are held.
type Matcher struct {
	mu      sync.Mutex
	binding Binding
	pressed []bool
}

func NewMatcher(b Binding) *Matcher {
	return &Matcher{binding: b, pressed: make([]bool, len(b.Keys))}
}

// Key records a key transition and reports whether it completed the
// combination. Completion clears the held state so auto-repeat of the last
// key fires again only after it is pressed anew with the others.
func (m *Matcher) Key(down bool, rawcode uint16) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, k := range m.binding.Keys {
		for _, rc := range k.Rawcodes {
			if rc == rawcode {
				m.pressed[i] = down
				break
			}
		}
	}
	if !down {
		return false
	}
	for _, p := range m.pressed {
		if !p {
			return false
		}
	}
	clear(m.pressed)
	return true
}

// Binding returns the combination the matcher tracks.
func (m *Matcher) Binding() Binding {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.binding
}

// Listener routes global key events to a replaceable binding.
type Listener struct {
	m atomic.Pointer[Matcher]
}

func NewListener(b Binding) *Listener {
	l := &Listener{}
	l.m.Store(NewMatcher(b))
	return l
}

// SetBinding swaps the combination. Keys held at the time are forgotten.
func (l *Listener) SetBinding(b Binding) {
	l.m.Store(NewMatcher(b))
	log.Printf("HOTKEY: now listening for %s", b.Spec)
}

// Binding returns the current combination.
func (l *Listener) Binding() Binding { return l.m.Load().Binding() }

// Listen feeds global key events to a Matcher for binding and invokes fire
// for every completed combination until ctx is done.
func Listen(ctx context.Context, binding Binding, fire func()) error {
	return NewListener(binding).Run(ctx, fire)
}

// Run hooks the keyboard until ctx is done.
func (l *Listener) Run(ctx context.Context, fire func()) error {
	evChan := gohook.Start()
	if evChan == nil {
		return errors.New("hotkey: gohook.Start returned nil channel")
	}
	log.Printf("HOTKEY: listening for %s", l.Binding().Spec)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("HOTKEY: PANIC in hook goroutine: %v", r)
			}
		}()
		<-ctx.Done()
		gohook.End()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-evChan:
			if !ok {
				log.Printf("HOTKEY: event channel closed")
				return nil
			}
			if ev.Kind != gohook.KeyDown && ev.Kind != gohook.KeyUp {
				continue
			}
			if l.feed(ev.Kind == gohook.KeyDown, ev.Rawcode) && fire != nil {
				fire()
			}
		}
	}
}

func (l *Listener) feed(down bool, rawcode uint16) bool {
	m := l.m.Load()
	if !m.Key(down, rawcode) {
		return false
	}
	log.Printf("HOTKEY: %s pressed", m.Binding().Spec)
	return true
}

func parseHotkey(hotkeyConfig string) []string {
	parts := strings.Split(strings.ToLower(hotkeyConfig), "+")
	keys := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		switch part {
		case "control":
			part = "ctrl"
		case "win", "super":
			part = "cmd"
		}
		keys = append(keys, part)
	}
	return keys
}

var specialKeys = map[string][]uint16{
	"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
	"alt":   {164, 165}, // VK_LMENU, VK_RMENU
	"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
	"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

	"space":     {32},
	"enter":     {13},
	"return":    {13},
	"esc":       {27},
	"escape":    {27},
	"tab":       {9},
	"backspace": {8},
	"delete":    {46},
	"del":       {46},
	"insert":    {45},
	"ins":       {45},
	"home":      {36},
	"end":       {35},
	"pageup":    {33},
	"pgup":      {33},
	"pagedown":  {34},
	"pgdn":      {34},
	"left":      {37},
	"up":        {38},
	"right":     {39},
	"down":      {40},

	"printscreen": {44}, // VK_SNAPSHOT
	"prtsc":       {44},
}

// keyNameToRawcodes maps a key name to Windows virtual key codes; modifiers
// yield both the left and right variants.
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	if codes, ok := specialKeys[keyName]; ok {
		return codes
	}
	if len(keyName) == 1 {
		switch c := keyName[0]; {
		case c >= 'a' && c <= 'z':
			return []uint16{uint16(c-'a') + 0x41}
		case c >= '0' && c <= '9':
			return []uint16{uint16(c-'0') + 0x30}
		}
	}
	var n int
	if _, err := fmt.Sscanf(keyName, "f%d", &n); err == nil && n >= 1 && n <= 24 && keyName == fmt.Sprintf("f%d", n) {
		return []uint16{uint16(0x70 + n - 1)} // VK_F1..VK_F24
	}
	return nil
}
