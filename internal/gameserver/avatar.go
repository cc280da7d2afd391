package gameserver

import (
	"fmt"
	"os"

	"github.com/cory-johannsen/brainduel/internal/config"
	"github.com/cory-johannsen/brainduel/internal/game/player"
)

// LoadDefaultAvatar reads the picture given to new players.
//
// Postcondition: Returns an empty picture when cfg.DefaultAvatar is unset.
func LoadDefaultAvatar(cfg config.GameServerConfig) (player.Avatar, error) {
	avatar := player.Avatar{Picture: []byte{}, Extension: cfg.DefaultAvatarExtension}
	if cfg.DefaultAvatar == "" {
		return avatar, nil
	}
	data, err := os.ReadFile(cfg.DefaultAvatar)
	if err != nil {
		return player.Avatar{}, fmt.Errorf("reading default avatar: %w", err)
	}
	if len(data) > cfg.MaxAvatarBytes {
		return player.Avatar{}, fmt.Errorf("default avatar is %d bytes, limit %d", len(data), cfg.MaxAvatarBytes)
	}
	avatar.Picture = data
	return avatar, nil
}
