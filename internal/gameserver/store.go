package gameserver

import (
	"context"

	"github.com/cory-johannsen/brainduel/internal/game/player"
)

// Store is the persistence surface the game server consumes.
//
// Every call is made from the server loop with a per-call deadline.
type Store interface {
	// PlayerExists reports whether a player owns the external identity rid.
	PlayerExists(ctx context.Context, rid string) (bool, error)
	// CreatePlayer inserts a player for rid named GUEST_<id> and returns the id.
	CreatePlayer(ctx context.Context, rid string, avatar player.Avatar) (int32, error)
	// LoadPlayer returns the player owning rid.
	LoadPlayer(ctx context.Context, rid string) (player.Record, error)
	// NameTaken reports whether any player is named name.
	NameTaken(ctx context.Context, name string) (bool, error)
	// SaveName renames player id.
	SaveName(ctx context.Context, id int32, name string) error
	// SaveStanding stores the rating and record of player id.
	SaveStanding(ctx context.Context, id int32, st player.Standing) error
	// Leaderboard returns up to limit players by descending rating.
	Leaderboard(ctx context.Context, limit int) ([]player.Ranked, error)
	// AvatarByID returns the avatar of player id.
	AvatarByID(ctx context.Context, id int32) (player.Avatar, error)
	// AvatarByName returns the avatar of the player named name.
	AvatarByName(ctx context.Context, name string) (player.Avatar, error)
	// SaveAvatar replaces the avatar of player id.
	SaveAvatar(ctx context.Context, id int32, avatar player.Avatar) error
	// Friends lists the friends of player id.
	Friends(ctx context.Context, id int32) ([]player.Contact, error)
	// FriendRequests lists the players who asked id to be friends.
	FriendRequests(ctx context.Context, id int32) ([]player.Contact, error)
	// AddFriend adds friendID to the friend list of id.
	AddFriend(ctx context.Context, id, friendID int32) error
	// AddFriendRequest records that requester asked target to be friends.
	AddFriendRequest(ctx context.Context, target, requester int32) error
	// RemoveFriendRequest deletes the request requester sent to target.
	RemoveFriendRequest(ctx context.Context, target, requester int32) error
}
