package gameserver

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/brainduel/internal/game/player"
	"github.com/cory-johannsen/brainduel/internal/game/session"
	"github.com/cory-johannsen/brainduel/internal/observability"
	"github.com/cory-johannsen/brainduel/internal/protocol"
)

// dispatch routes a decoded command to its handler. A non-nil error means the
// connection must be dropped.
func (s *Server) dispatch(ctx context.Context, sess *session.Session, cmd protocol.Command) error {
	if c, ok := cmd.(protocol.Authenticate); ok {
		return s.handleAuthenticate(ctx, sess, c)
	}
	if !sess.Authenticated() {
		return fmt.Errorf("%w: %w", ErrProtocol, ErrNotAuthenticated)
	}

	switch c := cmd.(type) {
	case protocol.JoinQueue:
		return s.handleJoinQueue(sess, c)
	case protocol.SubmitAnswer:
		return s.handleSubmitAnswer(sess, c)
	case protocol.FetchLeaderboard:
		return s.handleLeaderboard(ctx, sess)
	case protocol.ChangeAvatar:
		return s.handleChangeAvatar(ctx, sess, c)
	case protocol.ChangeName:
		return s.handleChangeName(ctx, sess, c)
	case protocol.FetchFriends:
		return s.handleFetchFriends(ctx, sess)
	case protocol.FetchFriendRequests:
		return s.handleFetchFriendRequests(ctx, sess)
	case protocol.AcceptFriendRequest:
		return s.handleAcceptFriendRequest(ctx, sess, c)
	case protocol.DeclineFriendRequest:
		return s.handleDeclineFriendRequest(ctx, sess, c)
	case protocol.SearchByName:
		return s.handleSearchByName(ctx, sess, c)
	case protocol.SendFriendRequest:
		return s.handleSendFriendRequest(ctx, sess, c)
	default:
		return fmt.Errorf("%w: unhandled command %s", ErrProtocol, cmd.Packet())
	}
}

// handleAuthenticate binds the session to the player owning the RID, creating
// a guest player on first sight. Storage failures are reported to the client
// before the connection is dropped.
func (s *Server) handleAuthenticate(ctx context.Context, sess *session.Session, c protocol.Authenticate) error {
	if sess.Authenticated() {
		return fmt.Errorf("%w: already authenticated as %d", ErrProtocol, sess.PlayerID)
	}

	rec, err := s.loadOrCreate(ctx, c.RID)
	if err != nil {
		s.out.Send(sess.Conn, protocol.NewAuthFailure())
		return err
	}
	sess.Load(rec)
	s.out.Send(sess.Conn, protocol.NewAuthResult(rec.Name, rec.Avatar.Picture, rec.Avatar.Extension))

	s.logger.Info("player authenticated",
		zap.Stringer("conn", sess.Conn),
		zap.Int32("player", rec.ID),
		zap.String("name", rec.Name),
	)
	return nil
}

func (s *Server) loadOrCreate(ctx context.Context, rid string) (player.Record, error) {
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	exists, err := s.store.PlayerExists(sctx, rid)
	if err != nil {
		return player.Record{}, s.storageErr("player_exists", err)
	}
	if !exists {
		id, err := s.store.CreatePlayer(sctx, rid, s.defaultAvatar)
		if err != nil {
			return player.Record{}, s.storageErr("create_player", err)
		}
		s.logger.Info("guest player created", zap.Int32("player", id))
	}
	rec, err := s.store.LoadPlayer(sctx, rid)
	if err != nil {
		return player.Record{}, s.storageErr("load_player", err)
	}
	return rec, nil
}

func (s *Server) handleJoinQueue(sess *session.Session, c protocol.JoinQueue) error {
	opponent, paired, err := s.queue.Enqueue(sess, c.Competitive)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	if !paired {
		s.logger.Debug("player waiting",
			zap.Stringer("conn", sess.Conn),
			zap.String("mode", observability.Mode(c.Competitive)),
		)
		return nil
	}
	s.matches.Create(opponent, sess, c.Competitive)
	return nil
}

func (s *Server) handleSubmitAnswer(sess *session.Session, c protocol.SubmitAnswer) error {
	if err := s.matches.SubmitAnswer(sess, c.AnswerIndex); err != nil {
		return fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return nil
}

func (s *Server) handleLeaderboard(ctx context.Context, sess *session.Session) error {
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	ranked, err := s.store.Leaderboard(sctx, s.cfg.LeaderboardSize)
	if err != nil {
		return s.storageErr("leaderboard", err)
	}
	entries := make([]protocol.LeaderboardEntry, 0, len(ranked))
	for _, r := range ranked {
		entries = append(entries, protocol.LeaderboardEntry{
			Win:              r.Wins,
			Lose:             r.Losses,
			Name:             r.Name,
			Rating:           r.Rating,
			Picture:          r.Avatar.Picture,
			PictureExtension: r.Avatar.Extension,
		})
	}
	s.out.Send(sess.Conn, protocol.NewLeaderboard(entries))
	return nil
}
