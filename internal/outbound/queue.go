// Package outbound buffers encoded messages produced during a tick and hands
// them to the transport in enqueue order.
package outbound

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/brainduel/internal/protocol"
	"github.com/cory-johannsen/brainduel/internal/transport"
)

// Sink delivers encoded frames.
type Sink interface {
	Send(conn transport.ConnID, data []byte) error
}

// Entry is one queued frame.
type Entry struct {
	Conn   transport.ConnID
	Packet protocol.PacketID
	Data   []byte
}

// Queue is the FIFO of frames awaiting the end-of-tick flush.
//
// The queue is owned by the server loop and is not safe for concurrent use.
type Queue struct {
	logger  *zap.Logger
	entries []Entry
}

// NewQueue creates an empty Queue.
//
// Precondition: logger must be non-nil.
func NewQueue(logger *zap.Logger) *Queue {
	return &Queue{logger: logger}
}

// Send encodes msg and appends it for conn.
//
// A message that fails to encode is logged and dropped.
func (q *Queue) Send(conn transport.ConnID, msg protocol.Message) {
	data, err := protocol.Encode(msg)
	if err != nil {
		q.logger.Error("dropping unencodable message",
			zap.Stringer("conn", conn),
			zap.Stringer("packet", msg.Packet()),
			zap.Error(err),
		)
		return
	}
	q.entries = append(q.entries, Entry{Conn: conn, Packet: msg.Packet(), Data: data})
}

// Len returns the number of queued frames.
func (q *Queue) Len() int {
	return len(q.entries)
}

// Flush hands every queued frame to sink in enqueue order and empties the queue.
//
// Postcondition: Len() == 0. Returns the number of frames the sink accepted.
func (q *Queue) Flush(sink Sink) int {
	delivered := 0
	for _, e := range q.entries {
		if err := sink.Send(e.Conn, e.Data); err != nil {
			q.logger.Debug("frame not delivered",
				zap.Stringer("conn", e.Conn),
				zap.Stringer("packet", e.Packet),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	clear(q.entries)
	q.entries = q.entries[:0]
	return delivered
}
