package gameserver

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cory-johannsen/brainduel/internal/game/player"
	"github.com/cory-johannsen/brainduel/internal/game/session"
	"github.com/cory-johannsen/brainduel/internal/protocol"
)

func (s *Server) handleChangeAvatar(ctx context.Context, sess *session.Session, c protocol.ChangeAvatar) error {
	if len(c.Picture) > s.cfg.MaxAvatarBytes {
		return fmt.Errorf("%w: avatar of %d bytes exceeds %d", ErrProtocol, len(c.Picture), s.cfg.MaxAvatarBytes)
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	avatar := player.Avatar{Picture: c.Picture, Extension: c.Extension}
	if err := s.store.SaveAvatar(sctx, sess.PlayerID, avatar); err != nil {
		return s.storageErr("save_avatar", err)
	}
	sess.Avatar = avatar
	s.out.Send(sess.Conn, protocol.NewAvatarChanged(avatar.Picture, avatar.Extension))
	return nil
}

// handleChangeName renames the player unless the name is taken. The reply
// echoes the requested name either way.
func (s *Server) handleChangeName(ctx context.Context, sess *session.Session, c protocol.ChangeName) error {
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	taken, err := s.store.NameTaken(sctx, c.Name)
	if err != nil {
		return s.storageErr("name_taken", err)
	}
	if !taken {
		if err := s.store.SaveName(sctx, sess.PlayerID, c.Name); err != nil {
			return s.storageErr("save_name", err)
		}
		s.logger.Info("player renamed",
			zap.Int32("player", sess.PlayerID),
			zap.String("from", sess.Name),
			zap.String("to", c.Name),
		)
		sess.Name = c.Name
	}
	s.out.Send(sess.Conn, protocol.NewNameChanged(c.Name, taken))
	return nil
}

// avatarOf prefers the live session of id, falling back to storage.
func (s *Server) avatarOf(ctx context.Context, id int32) (player.Avatar, bool, error) {
	if online, ok := s.sessions.FindByPlayerID(id); ok {
		return online.Avatar, true, nil
	}
	avatar, err := s.store.AvatarByID(ctx, id)
	if err != nil {
		return player.Avatar{}, false, s.storageErr("avatar_by_id", err)
	}
	return avatar, false, nil
}

func (s *Server) handleFetchFriends(ctx context.Context, sess *session.Session) error {
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	friends, err := s.store.Friends(sctx, sess.PlayerID)
	if err != nil {
		return s.storageErr("friends", err)
	}
	entries := make([]protocol.FriendEntry, 0, len(friends))
	for _, f := range friends {
		avatar, online, err := s.avatarOf(sctx, f.ID)
		if err != nil {
			return err
		}
		entries = append(entries, protocol.FriendEntry{
			ID:               f.ID,
			Name:             f.Name,
			Online:           online,
			Picture:          avatar.Picture,
			PictureExtension: avatar.Extension,
		})
	}
	s.out.Send(sess.Conn, protocol.NewFriends(entries))
	return nil
}

func (s *Server) handleFetchFriendRequests(ctx context.Context, sess *session.Session) error {
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	requests, err := s.store.FriendRequests(sctx, sess.PlayerID)
	if err != nil {
		return s.storageErr("friend_requests", err)
	}
	entries := make([]protocol.FriendRequestEntry, 0, len(requests))
	for _, r := range requests {
		avatar, _, err := s.avatarOf(sctx, r.ID)
		if err != nil {
			return err
		}
		entries = append(entries, protocol.FriendRequestEntry{
			ID:               r.ID,
			Name:             r.Name,
			Picture:          avatar.Picture,
			PictureExtension: avatar.Extension,
		})
	}
	s.out.Send(sess.Conn, protocol.NewFriendRequests(entries))
	return nil
}

// handleAcceptFriendRequest removes the request c.ID sent to the caller and
// makes the two players friends in both directions.
func (s *Server) handleAcceptFriendRequest(ctx context.Context, sess *session.Session, c protocol.AcceptFriendRequest) error {
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	if err := s.store.RemoveFriendRequest(sctx, sess.PlayerID, c.ID); err != nil {
		return s.storageErr("remove_friend_request", err)
	}
	if err := s.store.AddFriend(sctx, sess.PlayerID, c.ID); err != nil {
		return s.storageErr("add_friend", err)
	}
	if err := s.store.AddFriend(sctx, c.ID, sess.PlayerID); err != nil {
		return s.storageErr("add_friend", err)
	}
	return nil
}

func (s *Server) handleDeclineFriendRequest(ctx context.Context, sess *session.Session, c protocol.DeclineFriendRequest) error {
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	if err := s.store.RemoveFriendRequest(sctx, sess.PlayerID, c.ID); err != nil {
		return s.storageErr("remove_friend_request", err)
	}
	return nil
}

// handleSearchByName never drops the connection: every failure is a miss.
func (s *Server) handleSearchByName(ctx context.Context, sess *session.Session, c protocol.SearchByName) error {
	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	exists, err := s.store.NameTaken(sctx, c.Name)
	if err != nil {
		s.metrics.StorageFailed("name_taken")
		s.logger.Warn("search failed", zap.String("name", c.Name), zap.Error(err))
		s.out.Send(sess.Conn, protocol.NewSearchMiss())
		return nil
	}
	if !exists || strings.EqualFold(sess.Name, c.Name) {
		s.out.Send(sess.Conn, protocol.NewSearchMiss())
		return nil
	}
	avatar, err := s.store.AvatarByName(sctx, c.Name)
	if err != nil {
		s.metrics.StorageFailed("avatar_by_name")
		s.logger.Warn("search avatar lookup failed", zap.String("name", c.Name), zap.Error(err))
		s.out.Send(sess.Conn, protocol.NewSearchMiss())
		return nil
	}
	s.out.Send(sess.Conn, protocol.NewSearchResult(c.Name, avatar.Picture, avatar.Extension))
	return nil
}

// handleSendFriendRequest is best effort: a failed insert is logged only.
func (s *Server) handleSendFriendRequest(ctx context.Context, sess *session.Session, c protocol.SendFriendRequest) error {
	if c.ID == sess.PlayerID {
		return fmt.Errorf("%w: friend request to self", ErrProtocol)
	}

	sctx, cancel := s.storageCtx(ctx)
	defer cancel()

	if err := s.store.AddFriendRequest(sctx, c.ID, sess.PlayerID); err != nil {
		s.metrics.StorageFailed("add_friend_request")
		s.logger.Warn("friend request not recorded",
			zap.Int32("from", sess.PlayerID),
			zap.Int32("to", c.ID),
			zap.Error(err),
		)
	}
	return nil
}
