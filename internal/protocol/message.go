package protocol

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Message is an outbound document.
type Message interface {
	Packet() PacketID
}

// Encode marshals m into a BSON document.
//
// Postcondition: The returned document starts with the PacketID field.
func Encode(m Message) ([]byte, error) {
	data, err := bson.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", m.Packet(), err)
	}
	return data, nil
}

// blob keeps empty pictures encoded as zero-length binaries instead of null.
func blob(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// AuthResult answers Authenticate.
type AuthResult struct {
	PacketID         PacketID `bson:"PacketID"`
	Name             string   `bson:"Name"`
	Error            bool     `bson:"Error"`
	Picture          []byte   `bson:"ProfilePicture"`
	PictureExtension string   `bson:"ProfilePictureExtension"`
}

// NewAuthResult builds a successful authentication reply.
func NewAuthResult(name string, picture []byte, ext string) AuthResult {
	return AuthResult{PacketID: PacketAuthenticate, Name: name, Picture: blob(picture), PictureExtension: ext}
}

// NewAuthFailure builds the reply sent before an authentication failure drops the connection.
func NewAuthFailure() AuthResult {
	return AuthResult{PacketID: PacketAuthenticate, Error: true, Picture: blob(nil)}
}

// MatchFound tells a queued player who the opponent is.
type MatchFound struct {
	PacketID         PacketID `bson:"PacketID"`
	Name             string   `bson:"Name"`
	Picture          []byte   `bson:"ProfilePicture"`
	PictureExtension string   `bson:"ProfilePictureExtension"`
}

// NewMatchFound describes the opponent.
func NewMatchFound(opponent string, picture []byte, ext string) MatchFound {
	return MatchFound{PacketID: PacketJoinQueue, Name: opponent, Picture: blob(picture), PictureExtension: ext}
}

// QuestionUpdate carries a new question and the running scores.
type QuestionUpdate struct {
	PacketID    PacketID `bson:"PacketID"`
	Points      int32    `bson:"Points"`
	Question    string   `bson:"Question"`
	EnemyPoints int32    `bson:"EnemyPoints"`
	Option1     string   `bson:"AnswerOption1"`
	Option2     string   `bson:"AnswerOption2"`
	Option3     string   `bson:"AnswerOption3"`
	Option4     string   `bson:"AnswerOption4"`
}

// NewQuestionUpdate builds a question broadcast from the recipient's point of view.
func NewQuestionUpdate(points, enemyPoints int32, prompt string, options [4]string) QuestionUpdate {
	return QuestionUpdate{
		PacketID:    PacketQuestionUpdate,
		Points:      points,
		Question:    prompt,
		EnemyPoints: enemyPoints,
		Option1:     options[0],
		Option2:     options[1],
		Option3:     options[2],
		Option4:     options[3],
	}
}

// AnswerAck reveals the correct option to the player who just answered.
type AnswerAck struct {
	PacketID    PacketID `bson:"PacketID"`
	AnswerIndex int32    `bson:"AnswerIndex"`
}

// NewAnswerAck builds an answer acknowledgement.
func NewAnswerAck(correct int32) AnswerAck {
	return AnswerAck{PacketID: PacketSubmitAnswer, AnswerIndex: correct}
}

// MatchEnded announces the winner, or NoWinner on a draw.
type MatchEnded struct {
	PacketID PacketID `bson:"PacketID"`
	Winner   string   `bson:"Winner"`
}

// NewMatchEnded builds a match-end announcement.
func NewMatchEnded(winner string) MatchEnded {
	return MatchEnded{PacketID: PacketMatchEnded, Winner: winner}
}

// LeaderboardEntry is one ranked player.
type LeaderboardEntry struct {
	Win              int32  `bson:"Win"`
	Lose             int32  `bson:"Lose"`
	Name             string `bson:"Name"`
	Rating           int32  `bson:"Rating"`
	Picture          []byte `bson:"ProfilePicture"`
	PictureExtension string `bson:"ProfilePictureExtension"`
}

// Leaderboard answers FetchLeaderboard.
type Leaderboard struct {
	PacketID PacketID           `bson:"PacketID"`
	Entries  []LeaderboardEntry `bson:"Leaderboard"`
}

// NewLeaderboard builds a leaderboard reply.
func NewLeaderboard(entries []LeaderboardEntry) Leaderboard {
	if entries == nil {
		entries = []LeaderboardEntry{}
	}
	for i := range entries {
		entries[i].Picture = blob(entries[i].Picture)
	}
	return Leaderboard{PacketID: PacketFetchLeaderboard, Entries: entries}
}

// AvatarChanged echoes an accepted profile picture.
type AvatarChanged struct {
	PacketID         PacketID `bson:"PacketID"`
	Picture          []byte   `bson:"ProfilePicture"`
	PictureExtension string   `bson:"ProfilePictureExtension"`
}

// NewAvatarChanged builds the ChangeAvatar reply.
func NewAvatarChanged(picture []byte, ext string) AvatarChanged {
	return AvatarChanged{PacketID: PacketChangeAvatar, Picture: blob(picture), PictureExtension: ext}
}

// NameChanged answers ChangeName. Error is set when the name is taken.
type NameChanged struct {
	PacketID PacketID `bson:"PacketID"`
	Name     string   `bson:"Name"`
	Error    bool     `bson:"Error"`
}

// NewNameChanged builds the ChangeName reply.
func NewNameChanged(name string, taken bool) NameChanged {
	return NameChanged{PacketID: PacketChangeName, Name: name, Error: taken}
}

// FriendEntry is one friend in a FetchFriends reply.
type FriendEntry struct {
	ID               int32  `bson:"ID"`
	Name             string `bson:"Name"`
	Online           bool   `bson:"Online"`
	Picture          []byte `bson:"ProfilePicture"`
	PictureExtension string `bson:"ProfilePictureExtension"`
}

// Friends answers FetchFriends.
type Friends struct {
	PacketID PacketID      `bson:"PacketID"`
	Friends  []FriendEntry `bson:"Friends"`
}

// NewFriends builds a FetchFriends reply.
func NewFriends(entries []FriendEntry) Friends {
	if entries == nil {
		entries = []FriendEntry{}
	}
	for i := range entries {
		entries[i].Picture = blob(entries[i].Picture)
	}
	return Friends{PacketID: PacketFetchFriends, Friends: entries}
}

// FriendRequestEntry is one pending request in a FetchFriendRequests reply.
type FriendRequestEntry struct {
	ID               int32  `bson:"ID"`
	Name             string `bson:"Name"`
	Picture          []byte `bson:"ProfilePicture"`
	PictureExtension string `bson:"ProfilePictureExtension"`
}

// FriendRequests answers FetchFriendRequests.
type FriendRequests struct {
	PacketID PacketID             `bson:"PacketID"`
	Requests []FriendRequestEntry `bson:"FriendRequests"`
}

// NewFriendRequests builds a FetchFriendRequests reply.
func NewFriendRequests(entries []FriendRequestEntry) FriendRequests {
	if entries == nil {
		entries = []FriendRequestEntry{}
	}
	for i := range entries {
		entries[i].Picture = blob(entries[i].Picture)
	}
	return FriendRequests{PacketID: PacketFetchFriendRequests, Requests: entries}
}

// SearchResult answers SearchByName.
type SearchResult struct {
	PacketID         PacketID `bson:"PacketID"`
	Name             string   `bson:"Name"`
	Found            bool     `bson:"Found"`
	Picture          []byte   `bson:"ProfilePicture"`
	PictureExtension string   `bson:"ProfilePictureExtension"`
}

// NewSearchResult builds a positive search reply.
func NewSearchResult(name string, picture []byte, ext string) SearchResult {
	return SearchResult{PacketID: PacketSearchByName, Name: name, Found: true, Picture: blob(picture), PictureExtension: ext}
}

// NewSearchMiss builds a negative search reply.
func NewSearchMiss() SearchResult {
	return SearchResult{PacketID: PacketSearchByName, Picture: blob(nil)}
}

func (m AuthResult) Packet() PacketID     { return m.PacketID }
func (m MatchFound) Packet() PacketID     { return m.PacketID }
func (m QuestionUpdate) Packet() PacketID { return m.PacketID }
func (m AnswerAck) Packet() PacketID      { return m.PacketID }
func (m MatchEnded) Packet() PacketID     { return m.PacketID }
func (m Leaderboard) Packet() PacketID    { return m.PacketID }
func (m AvatarChanged) Packet() PacketID  { return m.PacketID }
func (m NameChanged) Packet() PacketID    { return m.PacketID }
func (m Friends) Packet() PacketID        { return m.PacketID }
func (m FriendRequests) Packet() PacketID { return m.PacketID }
func (m SearchResult) Packet() PacketID   { return m.PacketID }
