// Package session tracks the player session attached to each live connection.
package session

import (
	"errors"
	"fmt"
	"sort"

	"github.com/cory-johannsen/brainduel/internal/game/player"
	"github.com/cory-johannsen/brainduel/internal/transport"
)

// ErrDuplicateConn is returned by Add when the connection already has a session.
var ErrDuplicateConn = errors.New("connection already has a session")

// Session is the server-side state of one connected player.
type Session struct {
	// Conn is the transport handle the session is bound to.
	Conn transport.ConnID
	// PlayerID is the stored player id; zero until authenticated.
	PlayerID int32
	// RID is the external identity the player authenticated with.
	RID string
	// Name is the display name.
	Name string
	// Rating, Wins and Losses mirror the stored record.
	Rating int32
	Wins   int32
	Losses int32
	// Avatar is the profile picture.
	Avatar player.Avatar

	// Points is the running score in the current match.
	Points int32
	// Answered is set once the player answered the current round.
	Answered bool
	// MatchID references the live match; empty when not in one.
	MatchID string
}

// Authenticated reports whether the session is bound to a stored player.
func (s *Session) Authenticated() bool {
	return s.PlayerID != 0
}

// InMatch reports whether the session holds a match reference.
func (s *Session) InMatch() bool {
	return s.MatchID != ""
}

// Load copies a stored record into the session.
//
// Postcondition: Identity, standing and avatar match rec; match state is untouched.
func (s *Session) Load(rec player.Record) {
	s.PlayerID = rec.ID
	s.RID = rec.RID
	s.Name = rec.Name
	s.Rating = rec.Rating
	s.Wins = rec.Wins
	s.Losses = rec.Losses
	s.Avatar = rec.Avatar
}

// Standing returns the persisted match statistics of the session.
func (s *Session) Standing() player.Standing {
	return player.Standing{Rating: s.Rating, Wins: s.Wins, Losses: s.Losses}
}

// LeaveMatch returns the session to the unmatched baseline.
//
// Postcondition: Points == 0, Answered == false, MatchID == "".
func (s *Session) LeaveMatch() {
	s.Points = 0
	s.Answered = false
	s.MatchID = ""
}

// Registry maps connection handles to sessions.
//
// The registry is owned by the server loop and is not safe for concurrent use.
type Registry struct {
	sessions map[transport.ConnID]*Session
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[transport.ConnID]*Session)}
}

// Add creates an unauthenticated session for conn.
//
// Postcondition: Returns the new session, or ErrDuplicateConn if conn is already registered.
func (r *Registry) Add(conn transport.ConnID) (*Session, error) {
	if _, exists := r.sessions[conn]; exists {
		return nil, fmt.Errorf("adding %s: %w", conn, ErrDuplicateConn)
	}
	sess := &Session{Conn: conn}
	r.sessions[conn] = sess
	return sess, nil
}

// Get returns the session for conn.
func (r *Registry) Get(conn transport.ConnID) (*Session, bool) {
	sess, ok := r.sessions[conn]
	return sess, ok
}

// Remove deletes the session for conn and returns it.
//
// Queue slots and matches referencing conn are cleaned up by the caller.
func (r *Registry) Remove(conn transport.ConnID) (*Session, bool) {
	sess, ok := r.sessions[conn]
	if ok {
		delete(r.sessions, conn)
	}
	return sess, ok
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	return len(r.sessions)
}

// FindByPlayerID returns the authenticated session of player id, if online.
func (r *Registry) FindByPlayerID(id int32) (*Session, bool) {
	if id == 0 {
		return nil, false
	}
	for _, sess := range r.sessions {
		if sess.PlayerID == id {
			return sess, true
		}
	}
	return nil, false
}

// All returns every session ordered by connection handle.
func (r *Registry) All() []*Session {
	out := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Conn < out[j].Conn })
	return out
}
