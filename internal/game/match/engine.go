package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/cory-johannsen/brainduel/internal/game/player"
	"github.com/cory-johannsen/brainduel/internal/game/question"
	"github.com/cory-johannsen/brainduel/internal/game/session"
	"github.com/cory-johannsen/brainduel/internal/observability"
	"github.com/cory-johannsen/brainduel/internal/protocol"
	"github.com/cory-johannsen/brainduel/internal/transport"
)

var (
	// ErrNotInMatch is returned when the session has no resolvable match.
	ErrNotInMatch = errors.New("session not in a match")
	// ErrAlreadyAnswered is returned on a second answer in one round.
	ErrAlreadyAnswered = errors.New("already answered this round")
	// ErrMatchNotStarted is returned for answers before the first question.
	ErrMatchNotStarted = errors.New("match has not started")
)

// Resolver looks up live sessions by connection handle.
type Resolver interface {
	Get(conn transport.ConnID) (*session.Session, bool)
}

// Sender queues an outbound message for a connection.
type Sender interface {
	Send(conn transport.ConnID, msg protocol.Message)
}

// Recorder persists settled standings.
type Recorder interface {
	SaveStanding(ctx context.Context, playerID int32, st player.Standing) error
}

// Timing holds the match clock parameters.
type Timing struct {
	// StartDelay is the wait between pairing and the first question.
	StartDelay time.Duration
	// RoundDuration is the length of a round and the score of an instant answer in seconds.
	RoundDuration time.Duration
	// EarlyAdvanceFloor is the elapsed time a round is moved to once both players answered.
	EarlyAdvanceFloor time.Duration
}

// Deps bundles the collaborators of an Engine.
type Deps struct {
	Bank           *question.Bank
	Source         question.Source
	Clock          clockwork.Clock
	Sessions       Resolver
	Out            Sender
	Recorder       Recorder
	Timing         Timing
	RatingDelta    int32
	StorageTimeout time.Duration
	Logger         *zap.Logger
	Metrics        *observability.Metrics
}

// Engine owns every live match.
//
// The engine is owned by the server loop and is not safe for concurrent use.
type Engine struct {
	deps    Deps
	matches map[string]*Match
	order   []*Match
}

// NewEngine creates an Engine with no live matches.
//
// Precondition: Bank, Source, Clock, Sessions, Out, Recorder and Logger must be non-nil.
func NewEngine(deps Deps) *Engine {
	return &Engine{deps: deps, matches: make(map[string]*Match)}
}

// Create pairs first and second into a new match and tells each who the other is.
//
// Precondition: both sessions are authenticated, distinct and not in a match.
// Postcondition: both sessions reference the returned match; the match is Pending.
func (e *Engine) Create(first, second *session.Session, competitive bool) *Match {
	now := e.deps.Clock.Now()
	m := &Match{
		ID:             uuid.NewString(),
		First:          first.Conn,
		Second:         second.Conn,
		Competitive:    competitive,
		StartedAt:      now,
		RoundStartedAt: now,
		used:           make(map[int]struct{}),
	}
	e.matches[m.ID] = m
	e.order = append(e.order, m)

	first.MatchID = m.ID
	second.MatchID = m.ID
	e.deps.Out.Send(first.Conn, protocol.NewMatchFound(second.Name, second.Avatar.Picture, second.Avatar.Extension))
	e.deps.Out.Send(second.Conn, protocol.NewMatchFound(first.Name, first.Avatar.Picture, first.Avatar.Extension))

	e.deps.Metrics.MatchStarted(competitive)
	e.deps.Logger.Info("match created",
		zap.String("match", m.ID),
		zap.Stringer("first", first.Conn),
		zap.Stringer("second", second.Conn),
		zap.String("mode", observability.Mode(competitive)),
	)
	return m
}

// Get returns the live match with the given id.
func (e *Engine) Get(id string) (*Match, bool) {
	m, ok := e.matches[id]
	return m, ok
}

// Count returns the number of live matches.
func (e *Engine) Count() int {
	return len(e.matches)
}

// DiscardFor drops, without settlement, every match containing conn.
//
// The opponent keeps its match reference and stops receiving advances.
// Postcondition: no live match contains conn.
func (e *Engine) DiscardFor(conn transport.ConnID) int {
	var doomed []*Match
	for _, m := range e.order {
		if m.Has(conn) {
			doomed = append(doomed, m)
		}
	}
	for _, m := range doomed {
		e.remove(m)
		e.deps.Logger.Info("match abandoned",
			zap.String("match", m.ID),
			zap.Stringer("conn", conn),
			zap.Stringer("phase", m.Phase()),
		)
	}
	return len(doomed)
}

func (e *Engine) remove(m *Match) {
	delete(e.matches, m.ID)
	kept := e.order[:0]
	for _, other := range e.order {
		if other != m {
			kept = append(kept, other)
		}
	}
	e.order = kept
}

// SubmitAnswer scores an answer to the current question of the session's match.
//
// Postcondition: on success sess.Answered is set and the correct index is echoed
// to sess only. Any error means the connection must be dropped.
func (e *Engine) SubmitAnswer(sess *session.Session, answer int32) error {
	if sess.Answered {
		return fmt.Errorf("answer from %s: %w", sess.Conn, ErrAlreadyAnswered)
	}
	if !sess.InMatch() {
		return fmt.Errorf("answer from %s: %w", sess.Conn, ErrNotInMatch)
	}
	m, ok := e.matches[sess.MatchID]
	if !ok || !m.Has(sess.Conn) {
		return fmt.Errorf("answer from %s in %s: %w", sess.Conn, sess.MatchID, ErrNotInMatch)
	}
	if !m.Started {
		return fmt.Errorf("answer from %s in %s: %w", sess.Conn, m.ID, ErrMatchNotStarted)
	}

	elapsed := e.deps.Clock.Since(m.RoundStartedAt)
	if answer == m.Question.Answer {
		sess.Points += int32(e.deps.Timing.RoundDuration/time.Second) - int32(elapsed/time.Second)
	}
	sess.Answered = true
	e.deps.Out.Send(sess.Conn, protocol.NewAnswerAck(m.Question.Answer))

	if other, ok := e.deps.Sessions.Get(m.Opponent(sess.Conn)); ok && other.Answered && elapsed < e.deps.Timing.EarlyAdvanceFloor {
		m.RoundStartedAt = e.deps.Clock.Now().Add(-e.deps.Timing.EarlyAdvanceFloor)
	}
	return nil
}

// Tick advances every match whose timer has expired.
//
// Postcondition: settled matches are removed and their sessions are back at baseline.
func (e *Engine) Tick(ctx context.Context) {
	now := e.deps.Clock.Now()
	due := make([]*Match, 0, len(e.order))
	for _, m := range e.order {
		if e.isDue(m, now) {
			due = append(due, m)
		}
	}
	for _, m := range due {
		e.advance(ctx, m)
	}
}

func (e *Engine) isDue(m *Match, now time.Time) bool {
	if !m.Started {
		return now.Sub(m.StartedAt) >= e.deps.Timing.StartDelay
	}
	return now.Sub(m.RoundStartedAt) >= e.deps.Timing.RoundDuration
}

func (e *Engine) advance(ctx context.Context, m *Match) {
	first, ok1 := e.deps.Sessions.Get(m.First)
	second, ok2 := e.deps.Sessions.Get(m.Second)
	if !ok1 || !ok2 {
		e.remove(m)
		e.deps.Logger.Warn("match lost a player, discarding", zap.String("match", m.ID))
		return
	}

	idx, picked := e.deps.Bank.Pick(e.deps.Source, m.used)
	if picked {
		m.used[idx] = struct{}{}
		m.Question = e.deps.Bank.At(idx)
	}
	m.Round++
	m.RoundStartedAt = e.deps.Clock.Now()

	if !picked {
		e.deps.Logger.Warn("question bank exhausted, settling early",
			zap.String("match", m.ID),
			zap.Int("bank", e.deps.Bank.Len()),
			zap.Int("round", m.Round),
		)
		e.settle(ctx, m, first, second, false)
		return
	}
	if m.Round >= int(Round3Settling) {
		e.settle(ctx, m, first, second, true)
		return
	}

	if !m.Started {
		m.Started = true
	} else {
		first.Answered = false
		second.Answered = false
	}
	e.broadcastQuestion(m, first, second)
}

func (e *Engine) broadcastQuestion(m *Match, first, second *session.Session) {
	q := m.Question
	e.deps.Out.Send(first.Conn, protocol.NewQuestionUpdate(first.Points, second.Points, q.Prompt, q.Options))
	e.deps.Out.Send(second.Conn, protocol.NewQuestionUpdate(second.Points, first.Points, q.Prompt, q.Options))
}

// settle ends the match. The question drawn by the settling advance is still
// broadcast after match-ended; clients rely on that frame.
func (e *Engine) settle(ctx context.Context, m *Match, first, second *session.Session, withQuestion bool) {
	winner := protocol.NoWinner
	switch {
	case first.Points > second.Points:
		winner = first.Name
	case second.Points > first.Points:
		winner = second.Name
	}

	e.deps.Out.Send(first.Conn, protocol.NewMatchEnded(winner))
	e.deps.Out.Send(second.Conn, protocol.NewMatchEnded(winner))
	if withQuestion {
		e.broadcastQuestion(m, first, second)
	}

	// A tie credits the second slot.
	if first.Points > second.Points {
		first.Wins++
		second.Losses++
	} else {
		second.Wins++
		first.Losses++
	}
	if m.Competitive && first.Points != second.Points {
		if first.Points > second.Points {
			first.Rating += e.deps.RatingDelta
		} else {
			second.Rating += e.deps.RatingDelta
		}
	}

	e.deps.Logger.Info("match settled",
		zap.String("match", m.ID),
		zap.String("winner", winner),
		zap.Int32("first_points", first.Points),
		zap.Int32("second_points", second.Points),
		zap.String("mode", observability.Mode(m.Competitive)),
	)

	for _, sess := range []*session.Session{first, second} {
		e.persist(ctx, sess)
		sess.LeaveMatch()
	}
	e.remove(m)
	e.deps.Metrics.MatchSettled(m.Competitive)
}

func (e *Engine) persist(ctx context.Context, sess *session.Session) {
	if e.deps.StorageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.deps.StorageTimeout)
		defer cancel()
	}
	if err := e.deps.Recorder.SaveStanding(ctx, sess.PlayerID, sess.Standing()); err != nil {
		e.deps.Metrics.StorageFailed("save_standing")
		e.deps.Logger.Error("saving standing",
			zap.Int32("player", sess.PlayerID),
			zap.Stringer("conn", sess.Conn),
			zap.Error(err),
		)
	}
}
