// Package player defines the persisted player entities exchanged between the
// game server and storage.
package player

import "fmt"

// Record is a stored player.
type Record struct {
	ID     int32
	RID    string
	Name   string
	Rating int32
	Wins   int32
	Losses int32
	Avatar Avatar
}

// Avatar is a profile picture and its file extension.
type Avatar struct {
	Picture   []byte
	Extension string
}

// Standing is the part of a record changed by match settlement.
type Standing struct {
	Rating int32
	Wins   int32
	Losses int32
}

// Ranked is one leaderboard row.
type Ranked struct {
	Name string
	Standing
	Avatar Avatar
}

// Contact is a friend or friend-request sender as stored.
type Contact struct {
	ID   int32
	Name string
}

// GuestName returns the display name given to a newly created player.
func GuestName(id int32) string {
	return fmt.Sprintf("GUEST_%d", id)
}
