// Package gameserver runs the single-threaded game loop: it owns the session
// registry, the matchmaking queue, every live match and the outbound queue.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/cory-johannsen/brainduel/internal/config"
	"github.com/cory-johannsen/brainduel/internal/game/match"
	"github.com/cory-johannsen/brainduel/internal/game/matchmaking"
	"github.com/cory-johannsen/brainduel/internal/game/player"
	"github.com/cory-johannsen/brainduel/internal/game/question"
	"github.com/cory-johannsen/brainduel/internal/game/session"
	"github.com/cory-johannsen/brainduel/internal/observability"
	"github.com/cory-johannsen/brainduel/internal/outbound"
	"github.com/cory-johannsen/brainduel/internal/protocol"
	"github.com/cory-johannsen/brainduel/internal/transport"
)

var (
	// ErrProtocol marks a request that breaks the protocol rules.
	ErrProtocol = errors.New("protocol violation")
	// ErrStorage marks a storage failure that ends the connection.
	ErrStorage = errors.New("storage failure")
	// ErrNotAuthenticated is returned for commands sent before Authenticate.
	ErrNotAuthenticated = errors.New("not authenticated")
)

// Stats is a snapshot of live game state.
type Stats struct {
	Sessions           int
	Matches            int
	CasualWaiting      bool
	CompetitiveWaiting bool
}

// Deps bundles the collaborators of a Server.
type Deps struct {
	Config        config.GameServerConfig
	Transport     transport.Transport
	Store         Store
	Bank          *question.Bank
	Source        question.Source
	Clock         clockwork.Clock
	DefaultAvatar player.Avatar
	Logger        *zap.Logger
	Metrics       *observability.Metrics
}

// Server is the game loop and all state it owns.
//
// Only Run (or Tick) may touch the state; Snapshot is safe from any goroutine.
type Server struct {
	cfg           config.GameServerConfig
	transport     transport.Transport
	store         Store
	clock         clockwork.Clock
	defaultAvatar player.Avatar
	logger        *zap.Logger
	metrics       *observability.Metrics

	sessions *session.Registry
	queue    *matchmaking.Queue
	matches  *match.Engine
	out      *outbound.Queue

	// pendingDrops are disconnected after the current tick's flush.
	pendingDrops []transport.ConnID
	// dropping holds connections that were told to disconnect and whose
	// disconnect event has not arrived yet.
	dropping map[transport.ConnID]struct{}

	stats atomic.Pointer[Stats]
}

// NewServer wires a Server from deps.
//
// Precondition: Transport, Store, Bank, Source, Clock and Logger must be non-nil.
// Postcondition: Returns a Server with no sessions, waiting players or matches.
func NewServer(deps Deps) *Server {
	s := &Server{
		cfg:           deps.Config,
		transport:     deps.Transport,
		store:         deps.Store,
		clock:         deps.Clock,
		defaultAvatar: deps.DefaultAvatar,
		logger:        deps.Logger,
		metrics:       deps.Metrics,
		sessions:      session.NewRegistry(),
		out:           outbound.NewQueue(deps.Logger),
		dropping:      make(map[transport.ConnID]struct{}),
	}
	s.queue = matchmaking.NewQueue(s.sessions)
	s.matches = match.NewEngine(match.Deps{
		Bank:     deps.Bank,
		Source:   deps.Source,
		Clock:    deps.Clock,
		Sessions: s.sessions,
		Out:      s.out,
		Recorder: deps.Store,
		Timing: match.Timing{
			StartDelay:        deps.Config.StartDelay,
			RoundDuration:     deps.Config.RoundDuration,
			EarlyAdvanceFloor: deps.Config.EarlyAdvanceFloor,
		},
		RatingDelta:    deps.Config.RatingDelta,
		StorageTimeout: deps.Config.StorageTimeout,
		Logger:         deps.Logger.Named("match"),
		Metrics:        deps.Metrics,
	})
	s.stats.Store(&Stats{})
	return s
}

// Run ticks until ctx is cancelled.
//
// Postcondition: Returns nil after ctx is done; no tick is in progress.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("game loop started",
		zap.Duration("poll_timeout", s.cfg.PollTimeout),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("game loop stopped", zap.Int("sessions", s.sessions.Count()))
			return nil
		default:
		}
		s.Tick(ctx)
	}
}

// Tick runs one iteration: poll one transport event and dispatch it, flush the
// outbound queue, disconnect dropped connections, then advance every match.
func (s *Server) Tick(ctx context.Context) {
	start := s.clock.Now()

	if ev, ok := s.transport.Poll(ctx, s.cfg.PollTimeout); ok {
		s.handleEvent(ctx, ev)
	}
	s.out.Flush(s.transport)
	s.flushDrops()
	s.matches.Tick(ctx)

	s.publish()
	s.metrics.ObserveTick(s.clock.Since(start))
}

// Snapshot returns the state published by the last tick.
func (s *Server) Snapshot() Stats {
	return *s.stats.Load()
}

func (s *Server) publish() {
	_, casual := s.queue.Waiting(false)
	_, competitive := s.queue.Waiting(true)
	st := &Stats{
		Sessions:           s.sessions.Count(),
		Matches:            s.matches.Count(),
		CasualWaiting:      casual,
		CompetitiveWaiting: competitive,
	}
	s.stats.Store(st)
	s.metrics.SetLiveState(st.Sessions, st.Matches, st.CasualWaiting, st.CompetitiveWaiting)
}

func (s *Server) handleEvent(ctx context.Context, ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnect:
		if _, err := s.sessions.Add(ev.Conn); err != nil {
			s.drop(ev.Conn, err)
			return
		}
		s.logger.Debug("session created", zap.Stringer("conn", ev.Conn))
	case transport.EventDisconnect:
		s.RemovePlayer(ev.Conn)
	case transport.EventReceive:
		s.receive(ctx, ev.Conn, ev.Data)
	default:
		s.logger.Warn("unknown transport event", zap.Stringer("kind", ev.Kind), zap.Stringer("conn", ev.Conn))
	}
}

func (s *Server) receive(ctx context.Context, conn transport.ConnID, data []byte) {
	if _, dropping := s.dropping[conn]; dropping {
		return
	}
	sess, ok := s.sessions.Get(conn)
	if !ok {
		s.drop(conn, fmt.Errorf("%w: data from unknown connection", ErrProtocol))
		return
	}

	cmd, err := protocol.Decode(data)
	if err != nil {
		s.drop(conn, err)
		return
	}
	s.metrics.PacketReceived(cmd.Packet().String())

	if err := s.dispatch(ctx, sess, cmd); err != nil {
		s.drop(conn, fmt.Errorf("%s: %w", cmd.Packet(), err))
	}
}

// RemovePlayer destroys the session of conn, clears its queue slot and
// discards any match it is part of.
//
// Postcondition: conn has no session, slot or match.
func (s *Server) RemovePlayer(conn transport.ConnID) {
	delete(s.dropping, conn)
	sess, ok := s.sessions.Remove(conn)
	if !ok {
		return
	}
	evicted := s.queue.Evict(conn)
	abandoned := s.matches.DiscardFor(conn)
	s.logger.Info("session removed",
		zap.Stringer("conn", conn),
		zap.Int32("player", sess.PlayerID),
		zap.Bool("was_queued", evicted),
		zap.Int("matches_abandoned", abandoned),
	)
}

// drop schedules conn for disconnection after this tick's flush.
func (s *Server) drop(conn transport.ConnID, err error) {
	if _, already := s.dropping[conn]; already {
		return
	}
	s.dropping[conn] = struct{}{}
	s.pendingDrops = append(s.pendingDrops, conn)

	reason := dropReason(err)
	s.metrics.ConnectionDropped(reason)
	s.logger.Warn("dropping connection",
		zap.Stringer("conn", conn),
		zap.String("reason", reason),
		zap.Error(err),
	)
}

func (s *Server) flushDrops() {
	for _, conn := range s.pendingDrops {
		s.transport.Disconnect(conn)
	}
	s.pendingDrops = s.pendingDrops[:0]
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrStorage):
		return "storage"
	default:
		return "protocol"
	}
}

// storageCtx bounds one storage call.
func (s *Server) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.StorageTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.StorageTimeout)
}

func (s *Server) storageErr(op string, err error) error {
	s.metrics.StorageFailed(op)
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
