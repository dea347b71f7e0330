package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"hdr-snip/src/export"
	"hdr-snip/src/geometry"
	"hdr-snip/src/singleinstance"
)

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	if err := cmd.ParseFlags([]string{"--trigger", "--backend", "software", "--hotkey", "Ctrl+F9", "--config", "/tmp/hdr-snip.yaml"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if !opts.trigger {
		t.Fatal("Expected trigger=true")
	}
	lo := opts.loadOptions()
	if lo.BackendOverride != "software" || lo.HotkeyOverride != "Ctrl+F9" || lo.ConfigFile != "/tmp/hdr-snip.yaml" {
		t.Fatalf("Unexpected load options: %+v", lo)
	}
}

type fakeClient struct {
	delegated bool
	err       error
	called    bool
}

func (f *fakeClient) Trigger(ctx context.Context) (bool, string, error) {
	f.called = true
	return f.delegated, "queued", f.err
}

func TestHandleTrigger_Delegated(t *testing.T) {
	client := &fakeClient{delegated: true}
	fallbackCalled := false

	err := handleTrigger(client, func() error {
		fallbackCalled = true
		return nil
	})

	if err != nil {
		t.Fatalf("handleTrigger: %v", err)
	}
	if !client.called {
		t.Fatal("Expected client.Trigger to be called")
	}
	if fallbackCalled {
		t.Fatal("Did not expect fallback when delegation succeeds")
	}
}

func TestHandleTrigger_NoResidentFallback(t *testing.T) {
	client := &fakeClient{delegated: false}
	want := errors.New("resident failed")

	err := handleTrigger(client, func() error { return want })

	if !errors.Is(err, want) {
		t.Fatalf("Expected fallback error, got %v", err)
	}
}

func TestHandleTrigger_DelegationErrorFallback(t *testing.T) {
	client := &fakeClient{err: errors.New("busy")}
	fallbackCalled := false

	_ = handleTrigger(client, func() error {
		fallbackCalled = true
		return nil
	})

	if !fallbackCalled {
		t.Fatal("Expected fallback when delegation returns an error")
	}
}

type fakeConn struct {
	cmd      string
	success  string
	errorMsg string
	closed   bool
}

func (c *fakeConn) Request() singleinstance.Request  { return singleinstance.Request{Command: c.cmd} }
func (c *fakeConn) RespondSuccess(text string) error { c.success = text; return nil }
func (c *fakeConn) RespondError(msg string) error    { c.errorMsg = msg; return nil }
func (c *fakeConn) Close() error                     { c.closed = true; return nil }

func TestHandleDelegatedCapture(t *testing.T) {
	conn := &fakeConn{cmd: singleinstance.CommandCapture}
	captures := 0

	handleDelegated(conn, func() { captures++ })

	if captures != 1 {
		t.Fatalf("Expected one capture, got %d", captures)
	}
	if conn.success != "queued" || !conn.closed {
		t.Fatalf("Unexpected reply: %+v", conn)
	}
}

func TestHandleDelegatedUnknownCommand(t *testing.T) {
	conn := &fakeConn{cmd: "SHUTDOWN"}
	captures := 0

	handleDelegated(conn, func() { captures++ })

	if captures != 0 {
		t.Fatal("Unknown command triggered a capture")
	}
	if !strings.Contains(conn.errorMsg, "SHUTDOWN") {
		t.Fatalf("Expected error naming the command, got %q", conn.errorMsg)
	}
}

func TestExportTooltip(t *testing.T) {
	res := &export.Result{Rect: geometry.Rect{Left: 10, Top: 10, Right: 330, Bottom: 250}}
	if got := exportTooltip("F11", res, nil); !strings.Contains(got, "320x240") {
		t.Errorf("success tooltip = %q", got)
	}
	if got := exportTooltip("F11", nil, errors.New("map failed")); !strings.Contains(got, "map failed") {
		t.Errorf("failure tooltip = %q", got)
	}
	if got := exportTooltip("F11", nil, export.ErrEmptySelection); got != idleTooltip("F11") {
		t.Errorf("empty selection tooltip = %q", got)
	}
}

func TestConfigCommandPrintsYAML(t *testing.T) {
	t.Chdir(t.TempDir())
	opts := &mainOptions{}
	cmd := newRootCmd(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"config", "--backend", "software", "--hotkey", "Ctrl+F9"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("config command: %v", err)
	}
	for _, want := range []string{"backend: software", "hotkey: Ctrl+F9", "capture_timeout: 3s"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}
