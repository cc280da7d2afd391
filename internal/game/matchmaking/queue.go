// Package matchmaking holds the per-mode waiting slots that pair players FIFO.
package matchmaking

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/brainduel/internal/game/session"
	"github.com/cory-johannsen/brainduel/internal/transport"
)

var (
	// ErrAlreadyQueued is returned when a waiting session asks to queue again.
	ErrAlreadyQueued = errors.New("session already queued")
	// ErrOpponentGone is returned when the waiting session disconnected.
	ErrOpponentGone = errors.New("waiting session no longer connected")
	// ErrInMatch is returned when a session in a match asks to queue.
	ErrInMatch = errors.New("session already in a match")
	// ErrNotAuthenticated is returned for sessions without a player id.
	ErrNotAuthenticated = errors.New("session not authenticated")
)

// Resolver looks up live sessions by connection handle.
type Resolver interface {
	Get(conn transport.ConnID) (*session.Session, bool)
}

type slot struct {
	conn     transport.ConnID
	occupied bool
}

// Queue holds at most one waiting session per mode.
//
// Invariant: a session occupies at most one slot and never holds a match while slotted.
// The queue is owned by the server loop and is not safe for concurrent use.
type Queue struct {
	resolve Resolver
	slots   [2]slot
}

// NewQueue creates an empty Queue resolving sessions through r.
func NewQueue(r Resolver) *Queue {
	return &Queue{resolve: r}
}

func index(competitive bool) int {
	if competitive {
		return 1
	}
	return 0
}

// Enqueue places sess in the slot for the given mode or pairs it with the
// session already waiting there.
//
// Precondition: sess must be registered with the queue's Resolver.
// Postcondition: On (opponent, true, nil) the slot is empty and the caller
// must create the match. On (nil, false, nil) sess is waiting. On error the
// caller must drop the connection; any slot held by sess is cleared.
func (q *Queue) Enqueue(sess *session.Session, competitive bool) (*session.Session, bool, error) {
	if !sess.Authenticated() {
		return nil, false, fmt.Errorf("enqueue %s: %w", sess.Conn, ErrNotAuthenticated)
	}
	if sess.InMatch() {
		return nil, false, fmt.Errorf("enqueue %s: %w", sess.Conn, ErrInMatch)
	}
	for i := range q.slots {
		if q.slots[i].occupied && q.slots[i].conn == sess.Conn {
			q.slots[i] = slot{}
			return nil, false, fmt.Errorf("enqueue %s: %w", sess.Conn, ErrAlreadyQueued)
		}
	}

	s := &q.slots[index(competitive)]
	if !s.occupied {
		*s = slot{conn: sess.Conn, occupied: true}
		return nil, false, nil
	}

	waiting := s.conn
	*s = slot{}
	opponent, ok := q.resolve.Get(waiting)
	if !ok {
		return nil, false, fmt.Errorf("enqueue %s against %s: %w", sess.Conn, waiting, ErrOpponentGone)
	}
	return opponent, true, nil
}

// Evict clears any slot held by conn.
//
// Postcondition: conn occupies no slot. Returns true if a slot was cleared.
func (q *Queue) Evict(conn transport.ConnID) bool {
	evicted := false
	for i := range q.slots {
		if q.slots[i].occupied && q.slots[i].conn == conn {
			q.slots[i] = slot{}
			evicted = true
		}
	}
	return evicted
}

// Waiting returns the connection waiting in the given mode's slot.
func (q *Queue) Waiting(competitive bool) (transport.ConnID, bool) {
	s := q.slots[index(competitive)]
	return s.conn, s.occupied
}
