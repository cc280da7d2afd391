// Package transport defines the boundary between the game loop and the network.
//
// A Transport delivers connect, receive and disconnect events to a single
// consumer and accepts outbound frames addressed by connection handle.
// Frames sent to one connection are delivered in the order Send was called.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ConnID identifies one live connection. Handles are never reused within a
// process lifetime.
type ConnID uint64

// String renders the handle for logs.
func (c ConnID) String() string {
	return fmt.Sprintf("conn-%d", uint64(c))
}

// EventKind enumerates transport events.
type EventKind int

const (
	// EventConnect reports a newly accepted connection.
	EventConnect EventKind = iota + 1
	// EventDisconnect reports a closed connection. No further events follow for its ConnID.
	EventDisconnect
	// EventReceive carries one inbound frame.
	EventReceive
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventConnect:
		return "connect"
	case EventDisconnect:
		return "disconnect"
	case EventReceive:
		return "receive"
	default:
		return "unknown"
	}
}

// Event is one item pulled from a Transport.
type Event struct {
	Kind EventKind
	Conn ConnID
	// Data is the frame payload for EventReceive; nil otherwise.
	Data []byte
}

// ErrUnknownConn is returned when a handle does not name a live connection.
var ErrUnknownConn = errors.New("unknown connection")

// Transport is the network collaborator used by the game loop.
type Transport interface {
	// Poll waits at most timeout for the next event.
	//
	// Postcondition: Returns (event, true) when one arrived, (Event{}, false) on
	// timeout or context cancellation.
	Poll(ctx context.Context, timeout time.Duration) (Event, bool)
	// Send queues data for ordered delivery to conn.
	Send(conn ConnID, data []byte) error
	// Disconnect closes conn after every frame already passed to Send is written.
	// A disconnect event for conn follows.
	Disconnect(conn ConnID)
}
