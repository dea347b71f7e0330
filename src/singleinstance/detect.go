package singleinstance

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"time"
)

// Resident is a running instance found on the loopback range.
type Resident struct {
	Port int
	// Owner is zero when the connection table could not be read.
	Owner Owner
}

// DetectResident returns the first port in the range whose listener answers
// PING, together with the process behind it.
func DetectResident(ctx context.Context) (Resident, bool) {
	addr, ok := findResident(ctx, 300*time.Millisecond)
	if !ok {
		return Resident{}, false
	}
	_, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)
	r := Resident{Port: port}
	r.Owner, _ = PortOwner(ctx, port)
	return r, true
}

// findResident scans the range with PING. timeout applies per port unless
// ctx carries a deadline.
func findResident(ctx context.Context, timeout time.Duration) (string, bool) {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			timeout = d
		}
	}
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		if ctx.Err() != nil {
			return "", false
		}
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if status, _, err := exchange(addr, pingRequest, timeout); err == nil && status == pongResponse {
			return addr, true
		}
	}
	return "", false
}

// exchange sends one request line and returns the status line and the rest
// of the reply.
func exchange(addr, request string, timeout time.Duration) (status, body string, err error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return "", "", err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(request); err != nil {
		return "", "", err
	}
	if err := w.Flush(); err != nil {
		return "", "", err
	}
	br := bufio.NewReader(conn)
	if status, err = br.ReadString('\n'); err != nil {
		return "", "", err
	}
	if status == pongResponse {
		return status, "", nil
	}
	rest, _ := io.ReadAll(br)
	return status, string(rest), nil
}
