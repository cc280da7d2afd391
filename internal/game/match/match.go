// Package match runs the per-pairing round state machine: question selection,
// round timers, scoring and settlement.
package match

import (
	"time"

	"github.com/cory-johannsen/brainduel/internal/game/question"
	"github.com/cory-johannsen/brainduel/internal/transport"
)

// Phase is the observable state of a match.
type Phase int

const (
	// Pending is the countdown before the first question.
	Pending Phase = iota
	// Round1 is the first answered round.
	Round1
	// Round2 is the second answered round.
	Round2
	// Round3Settling is reached by the third advance, which settles the match.
	Round3Settling
)

func (p Phase) String() string {
	switch p {
	case Pending:
		return "pending"
	case Round1:
		return "round1"
	case Round2:
		return "round2"
	case Round3Settling:
		return "settling"
	default:
		return "unknown"
	}
}

// Match is the live state of one two-player game.
//
// Invariant: First != Second; Round only increases.
type Match struct {
	// ID identifies the match in session references.
	ID string
	// First and Second are the paired connections. First is the player that
	// waited in the queue.
	First  transport.ConnID
	Second transport.ConnID
	// Competitive matches award rating.
	Competitive bool
	// Round counts advances: 0 pending, 1 and 2 answered rounds, 3 settling.
	Round int
	// Started is set on entering Round1.
	Started bool
	// Question is the question currently asked.
	Question question.Question
	// StartedAt is when the pairing was made.
	StartedAt time.Time
	// RoundStartedAt is when the current question was sent.
	RoundStartedAt time.Time

	used map[int]struct{}
}

// Phase returns the current phase.
func (m *Match) Phase() Phase {
	if m.Round >= int(Round3Settling) {
		return Round3Settling
	}
	return Phase(m.Round)
}

// Has reports whether conn is one of the two players.
func (m *Match) Has(conn transport.ConnID) bool {
	return m.First == conn || m.Second == conn
}

// Opponent returns the other player's connection.
//
// Precondition: m.Has(conn).
func (m *Match) Opponent(conn transport.ConnID) transport.ConnID {
	if m.First == conn {
		return m.Second
	}
	return m.First
}

// Used returns the number of questions already drawn.
func (m *Match) Used() int {
	return len(m.used)
}
