package postgres

import (
	"context"

	"github.com/cory-johannsen/brainduel/internal/game/player"
)

// Store combines the repositories into the persistence surface of the game server.
type Store struct {
	PlayerRepo   *PlayerRepository
	FriendRepo   *FriendRepository
	QuestionRepo *QuestionRepository
}

// NewStore builds a Store on p.
//
// Precondition: p must be connected.
func NewStore(p *Pool) *Store {
	return &Store{
		PlayerRepo:   NewPlayerRepository(p.DB()),
		FriendRepo:   NewFriendRepository(p.DB()),
		QuestionRepo: NewQuestionRepository(p.DB()),
	}
}

func (s *Store) PlayerExists(ctx context.Context, rid string) (bool, error) {
	return s.PlayerRepo.Exists(ctx, rid)
}

func (s *Store) CreatePlayer(ctx context.Context, rid string, avatar player.Avatar) (int32, error) {
	return s.PlayerRepo.Create(ctx, rid, avatar)
}

func (s *Store) LoadPlayer(ctx context.Context, rid string) (player.Record, error) {
	return s.PlayerRepo.LoadByRID(ctx, rid)
}

func (s *Store) NameTaken(ctx context.Context, name string) (bool, error) {
	return s.PlayerRepo.NameTaken(ctx, name)
}

func (s *Store) SaveName(ctx context.Context, id int32, name string) error {
	return s.PlayerRepo.SaveName(ctx, id, name)
}

func (s *Store) SaveStanding(ctx context.Context, id int32, st player.Standing) error {
	return s.PlayerRepo.SaveStanding(ctx, id, st)
}

func (s *Store) Leaderboard(ctx context.Context, limit int) ([]player.Ranked, error) {
	return s.PlayerRepo.Leaderboard(ctx, limit)
}

func (s *Store) AvatarByID(ctx context.Context, id int32) (player.Avatar, error) {
	return s.PlayerRepo.AvatarByID(ctx, id)
}

func (s *Store) AvatarByName(ctx context.Context, name string) (player.Avatar, error) {
	return s.PlayerRepo.AvatarByName(ctx, name)
}

func (s *Store) SaveAvatar(ctx context.Context, id int32, avatar player.Avatar) error {
	return s.PlayerRepo.SaveAvatar(ctx, id, avatar)
}

func (s *Store) Friends(ctx context.Context, id int32) ([]player.Contact, error) {
	return s.FriendRepo.Friends(ctx, id)
}

func (s *Store) FriendRequests(ctx context.Context, id int32) ([]player.Contact, error) {
	return s.FriendRepo.Requests(ctx, id)
}

func (s *Store) AddFriend(ctx context.Context, id, friendID int32) error {
	return s.FriendRepo.Add(ctx, id, friendID)
}

func (s *Store) AddFriendRequest(ctx context.Context, target, requester int32) error {
	return s.FriendRepo.AddRequest(ctx, target, requester)
}

func (s *Store) RemoveFriendRequest(ctx context.Context, target, requester int32) error {
	return s.FriendRepo.RemoveRequest(ctx, target, requester)
}
