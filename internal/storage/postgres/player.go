package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/brainduel/internal/game/player"
)

// ErrPlayerNotFound is returned when a player lookup yields no results.
var ErrPlayerNotFound = errors.New("player not found")

// PlayerRepository provides player persistence operations.
type PlayerRepository struct {
	db *pgxpool.Pool
}

// NewPlayerRepository creates a PlayerRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewPlayerRepository(db *pgxpool.Pool) *PlayerRepository {
	return &PlayerRepository{db: db}
}

// Exists reports whether a player owns rid.
func (r *PlayerRepository) Exists(ctx context.Context, rid string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM players WHERE rid = $1)`, rid).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking player rid: %w", err)
	}
	return exists, nil
}

// Create inserts a player for rid with the given avatar and names it GUEST_<id>.
//
// Precondition: rid must be non-empty and not yet registered.
// Postcondition: Returns the new player id.
func (r *PlayerRepository) Create(ctx context.Context, rid string, avatar player.Avatar) (int32, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning player insert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id int32
	err = tx.QueryRow(ctx,
		`INSERT INTO players (rid, picture, picture_ext)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		rid, blob(avatar.Picture), extOrDefault(avatar.Extension),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting player: %w", err)
	}
	if _, err := tx.Exec(ctx, `UPDATE players SET name = $1 WHERE id = $2`, player.GuestName(id), id); err != nil {
		return 0, fmt.Errorf("naming player %d: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing player insert: %w", err)
	}
	return id, nil
}

// LoadByRID returns the player owning rid.
//
// Postcondition: Returns ErrPlayerNotFound if no player owns rid.
func (r *PlayerRepository) LoadByRID(ctx context.Context, rid string) (player.Record, error) {
	var rec player.Record
	err := r.db.QueryRow(ctx,
		`SELECT id, rid, name, rating, wins, losses, picture, picture_ext
		 FROM players WHERE rid = $1`,
		rid,
	).Scan(&rec.ID, &rec.RID, &rec.Name, &rec.Rating, &rec.Wins, &rec.Losses, &rec.Avatar.Picture, &rec.Avatar.Extension)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return player.Record{}, ErrPlayerNotFound
		}
		return player.Record{}, fmt.Errorf("loading player: %w", err)
	}
	return rec, nil
}

// NameTaken reports whether any player is named name.
func (r *PlayerRepository) NameTaken(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM players WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking player name: %w", err)
	}
	return exists, nil
}

// SaveName renames player id.
//
// Postcondition: Returns ErrPlayerNotFound if id does not exist.
func (r *PlayerRepository) SaveName(ctx context.Context, id int32, name string) error {
	return r.update(ctx, "renaming", `UPDATE players SET name = $1 WHERE id = $2`, name, id)
}

// SaveStanding stores rating, wins and losses of player id.
//
// Postcondition: Returns ErrPlayerNotFound if id does not exist.
func (r *PlayerRepository) SaveStanding(ctx context.Context, id int32, st player.Standing) error {
	return r.update(ctx, "saving standing of",
		`UPDATE players SET rating = $1, wins = $2, losses = $3 WHERE id = $4`,
		st.Rating, st.Wins, st.Losses, id)
}

// SaveAvatar replaces the avatar of player id.
//
// Postcondition: Returns ErrPlayerNotFound if id does not exist.
func (r *PlayerRepository) SaveAvatar(ctx context.Context, id int32, avatar player.Avatar) error {
	return r.update(ctx, "saving avatar of",
		`UPDATE players SET picture = $1, picture_ext = $2 WHERE id = $3`,
		blob(avatar.Picture), avatar.Extension, id)
}

func (r *PlayerRepository) update(ctx context.Context, what, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s player %v: %w", what, args[len(args)-1], err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

// Leaderboard returns up to limit players ordered by descending rating.
//
// Precondition: limit > 0.
func (r *PlayerRepository) Leaderboard(ctx context.Context, limit int) ([]player.Ranked, error) {
	rows, err := r.db.Query(ctx,
		`SELECT name, rating, wins, losses, picture, picture_ext
		 FROM players ORDER BY rating DESC, id ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer rows.Close()

	var out []player.Ranked
	for rows.Next() {
		var p player.Ranked
		if err := rows.Scan(&p.Name, &p.Rating, &p.Wins, &p.Losses, &p.Avatar.Picture, &p.Avatar.Extension); err != nil {
			return nil, fmt.Errorf("scanning leaderboard row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating leaderboard: %w", err)
	}
	return out, nil
}

// AvatarByID returns the avatar of player id.
//
// Postcondition: Returns ErrPlayerNotFound if id does not exist.
func (r *PlayerRepository) AvatarByID(ctx context.Context, id int32) (player.Avatar, error) {
	return r.avatar(ctx, `SELECT picture, picture_ext FROM players WHERE id = $1`, id)
}

// AvatarByName returns the avatar of the first player named name.
//
// Postcondition: Returns ErrPlayerNotFound if no player has that name.
func (r *PlayerRepository) AvatarByName(ctx context.Context, name string) (player.Avatar, error) {
	return r.avatar(ctx, `SELECT picture, picture_ext FROM players WHERE name = $1 ORDER BY id LIMIT 1`, name)
}

func (r *PlayerRepository) avatar(ctx context.Context, sql string, arg any) (player.Avatar, error) {
	var a player.Avatar
	err := r.db.QueryRow(ctx, sql, arg).Scan(&a.Picture, &a.Extension)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return player.Avatar{}, ErrPlayerNotFound
		}
		return player.Avatar{}, fmt.Errorf("loading avatar: %w", err)
	}
	return a, nil
}

func blob(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

func extOrDefault(ext string) string {
	if ext == "" {
		return "png"
	}
	return ext
}
