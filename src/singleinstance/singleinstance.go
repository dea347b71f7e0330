package singleinstance

// This file defines the API for resident ownership and capture delegation.

import (
	"context"
)

// Commands a client can send to the resident.
const (
	CommandCapture = "CAPTURE"
)

// Server owns the TCP endpoint and answers delegated requests.
type Server interface {
	// Start binds the first port of the configured range. Failure means
	// another resident owns it.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	// Close releases ownership and stops accepting clients.
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	// Request returns the parsed client request.
	Request() Request
	// RespondSuccess sends success followed by an optional message.
	RespondSuccess(text string) error
	// RespondError sends an error with human-readable message.
	RespondError(msg string) error
	// Close closes the underlying connection.
	Close() error
}

// Request is a single delegated command.
type Request struct {
	Command string
}

// Client delegates commands to a resident server.
type Client interface {
	// Trigger asks a resident to start an interactive capture. If no
	// resident is found, returns delegated=false, err=nil.
	Trigger(ctx context.Context) (delegated bool, reply string, err error)
}

// NewServer returns TCP implementation.
func NewServer() Server { return newTcpServer() }

// NewClient returns TCP implementation.
func NewClient() Client { return newTcpClient() }
