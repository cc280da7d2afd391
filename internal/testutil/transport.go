package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/cory-johannsen/brainduel/internal/transport"
)

// ScriptedTransport is an in-memory transport.Transport. Tests push events
// with Connect, Receive and Close; Poll returns them in order without waiting.
type ScriptedTransport struct {
	mu           sync.Mutex
	events       []transport.Event
	frames       map[transport.ConnID][]bson.Raw
	disconnected map[transport.ConnID]bool
}

var _ transport.Transport = (*ScriptedTransport)(nil)

// NewScriptedTransport returns an empty ScriptedTransport.
func NewScriptedTransport() *ScriptedTransport {
	return &ScriptedTransport{
		frames:       make(map[transport.ConnID][]bson.Raw),
		disconnected: make(map[transport.ConnID]bool),
	}
}

func (s *ScriptedTransport) push(ev transport.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

// Connect queues a connect event for conn.
func (s *ScriptedTransport) Connect(conn transport.ConnID) {
	s.push(transport.Event{Kind: transport.EventConnect, Conn: conn})
}

// Receive queues a document from conn.
func (s *ScriptedTransport) Receive(conn transport.ConnID, data []byte) {
	s.push(transport.Event{Kind: transport.EventReceive, Conn: conn, Data: data})
}

// ReceiveDoc marshals doc and queues it from conn.
func (s *ScriptedTransport) ReceiveDoc(t testing.TB, conn transport.ConnID, doc bson.D) {
	t.Helper()
	data, err := bson.Marshal(doc)
	if err != nil {
		t.Fatalf("marshalling inbound document: %v", err)
	}
	s.Receive(conn, data)
}

// Close queues a disconnect event for conn, as if the peer went away.
func (s *ScriptedTransport) Close(conn transport.ConnID) {
	s.push(transport.Event{Kind: transport.EventDisconnect, Conn: conn})
}

// Pending returns the number of queued events.
func (s *ScriptedTransport) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Poll pops the next queued event.
func (s *ScriptedTransport) Poll(_ context.Context, _ time.Duration) (transport.Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return transport.Event{}, false
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, true
}

// Send records data for conn unless conn was disconnected.
func (s *ScriptedTransport) Send(conn transport.ConnID, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnected[conn] {
		return transport.ErrUnknownConn
	}
	s.frames[conn] = append(s.frames[conn], bson.Raw(data))
	return nil
}

// Disconnect marks conn closed and queues its disconnect event.
func (s *ScriptedTransport) Disconnect(conn transport.ConnID) {
	s.mu.Lock()
	if s.disconnected[conn] {
		s.mu.Unlock()
		return
	}
	s.disconnected[conn] = true
	s.mu.Unlock()
	s.Close(conn)
}

// Disconnected reports whether the server disconnected conn.
func (s *ScriptedTransport) Disconnected(conn transport.ConnID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disconnected[conn]
}

// Frames returns every document delivered to conn so far.
func (s *ScriptedTransport) Frames(conn transport.ConnID) []bson.Raw {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bson.Raw, len(s.frames[conn]))
	copy(out, s.frames[conn])
	return out
}

// Take returns and forgets the documents delivered to conn.
func (s *ScriptedTransport) Take(conn transport.ConnID) []bson.Raw {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.frames[conn]
	delete(s.frames, conn)
	return out
}

// PacketIDs extracts the PacketID of each document.
func PacketIDs(docs []bson.Raw) []int32 {
	ids := make([]int32, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.Lookup("PacketID").Int32())
	}
	return ids
}
