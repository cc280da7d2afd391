package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/brainduel/internal/game/player"
)

// FriendRepository stores friend edges and pending friend requests.
//
// A request row (player_id, friend_id) means friend_id asked player_id.
type FriendRepository struct {
	db *pgxpool.Pool
}

// NewFriendRepository creates a FriendRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewFriendRepository(db *pgxpool.Pool) *FriendRepository {
	return &FriendRepository{db: db}
}

// Friends lists the friends of player id ordered by name.
func (r *FriendRepository) Friends(ctx context.Context, id int32) ([]player.Contact, error) {
	return r.contacts(ctx, "friends",
		`SELECT p.id, p.name
		 FROM friends f JOIN players p ON f.friend_id = p.id
		 WHERE f.player_id = $1
		 ORDER BY p.name, p.id`,
		id)
}

// Requests lists the players who asked id to be friends, oldest first.
func (r *FriendRepository) Requests(ctx context.Context, id int32) ([]player.Contact, error) {
	return r.contacts(ctx, "friend requests",
		`SELECT p.id, p.name
		 FROM friend_requests fr JOIN players p ON fr.friend_id = p.id
		 WHERE fr.player_id = $1
		 ORDER BY fr.requested_at, p.id`,
		id)
}

func (r *FriendRepository) contacts(ctx context.Context, what, sql string, id int32) ([]player.Contact, error) {
	rows, err := r.db.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("querying %s of %d: %w", what, id, err)
	}
	defer rows.Close()

	var out []player.Contact
	for rows.Next() {
		var c player.Contact
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", what, err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", what, err)
	}
	return out, nil
}

// Add adds friendID to the friend list of id. Existing edges are kept.
func (r *FriendRepository) Add(ctx context.Context, id, friendID int32) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO friends (player_id, friend_id) VALUES ($1, $2)
		 ON CONFLICT (player_id, friend_id) DO NOTHING`,
		id, friendID)
	if err != nil {
		return fmt.Errorf("adding friend %d to %d: %w", friendID, id, err)
	}
	return nil
}

// AddRequest records that requester asked target, dated today.
func (r *FriendRepository) AddRequest(ctx context.Context, target, requester int32) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO friend_requests (player_id, friend_id, requested_at)
		 VALUES ($1, $2, CURRENT_DATE)
		 ON CONFLICT (player_id, friend_id) DO UPDATE SET requested_at = EXCLUDED.requested_at`,
		target, requester)
	if err != nil {
		return fmt.Errorf("adding friend request %d -> %d: %w", requester, target, err)
	}
	return nil
}

// RemoveRequest deletes the request requester sent to target. Removing an
// absent request is not an error.
func (r *FriendRepository) RemoveRequest(ctx context.Context, target, requester int32) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM friend_requests WHERE player_id = $1 AND friend_id = $2`,
		target, requester)
	if err != nil {
		return fmt.Errorf("removing friend request %d -> %d: %w", requester, target, err)
	}
	return nil
}
