package singleinstance

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"
	"time"
)

// freePort points the configured range at one port nobody listens on.
func freePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	port := lis.Addr().(*net.TCPAddr).Port
	_ = lis.Close()
	t.Setenv(portStartVar, strconv.Itoa(port))
	t.Setenv(portEndVar, strconv.Itoa(port))
	return port
}

func TestServerClientTrigger(t *testing.T) {
	freePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	srv := NewServer()
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	defer srv.Close()

	client := NewClient()
	delegatedCh := make(chan struct{})
	go func() {
		defer close(delegatedCh)
		delegated, reply, err := client.Trigger(ctx)
		if err != nil {
			t.Errorf("client: %v", err)
		}
		if !delegated {
			t.Errorf("expected delegation")
		}
		if reply != "queued" {
			t.Errorf("reply = %q", reply)
		}
	}()

	conn, err := srv.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if conn.Request().Command != CommandCapture {
		t.Errorf("command = %q", conn.Request().Command)
	}
	if err := conn.RespondSuccess("queued"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	_ = conn.Close()
	<-delegatedCh
}

func TestTriggerWithoutResident(t *testing.T) {
	freePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	delegated, _, err := NewClient().Trigger(ctx)
	if err != nil || delegated {
		t.Errorf("Trigger = %v, %v; want not delegated", delegated, err)
	}
}

func TestSecondResidentCannotStart(t *testing.T) {
	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	first := NewServer()
	if err := first.Start(ctx); err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	defer first.Close()
	if err := NewServer().Start(ctx); err == nil {
		t.Error("second server bound the same port")
	}
	r, ok := DetectResident(ctx)
	if !ok {
		t.Fatal("resident not detected")
	}
	if r.Port != port {
		t.Errorf("resident port = %d, want %d", r.Port, port)
	}
	if r.Owner.PID != 0 && r.Owner.PID != int32(os.Getpid()) {
		t.Errorf("resident owner = %v, want this process", r.Owner)
	}
}

func TestUnknownCommandRejected(t *testing.T) {
	port := freePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := NewServer()
	if err := srv.Start(ctx); err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	defer srv.Close()

	status, body, err := exchange(net.JoinHostPort(residentHost, strconv.Itoa(port)), "SHUTDOWN\n", 2*time.Second)
	if err != nil || status != "ERROR\n" {
		t.Errorf("status = %q, %v", status, err)
	}
	if body != "unknown command" {
		t.Errorf("body = %q", body)
	}
}

func TestPortOwnerFindsThisProcess(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	defer lis.Close()
	port := lis.Addr().(*net.TCPAddr).Port

	owner, ok := PortOwner(context.Background(), port)
	if !ok {
		t.Skip("connection table not readable here")
	}
	if owner.PID != int32(os.Getpid()) {
		t.Errorf("owner = %v, want pid %d", owner, os.Getpid())
	}
}

func TestOwnerString(t *testing.T) {
	if got := (Owner{PID: 42, Name: "hdr-snip.exe"}).String(); got != "hdr-snip.exe (pid 42)" {
		t.Errorf("String = %q", got)
	}
	if got := (Owner{PID: 7}).String(); got != "pid 7" {
		t.Errorf("String = %q", got)
	}
}
