package protocol

// Command is a decoded inbound document.
type Command interface {
	Packet() PacketID
}

// Authenticate logs a connection in as the player owning an external identity.
type Authenticate struct {
	RID string
}

// JoinQueue places the caller in the matchmaking slot of one mode.
type JoinQueue struct {
	Competitive bool
}

// SubmitAnswer answers the current question of the caller's match.
type SubmitAnswer struct {
	AnswerIndex int32
}

// FetchLeaderboard requests the top players by rating.
type FetchLeaderboard struct{}

// ChangeAvatar replaces the caller's profile picture.
type ChangeAvatar struct {
	Picture   []byte
	Extension string
}

// ChangeName renames the caller if the name is free.
type ChangeName struct {
	Name string
}

// FetchFriends lists the caller's friends.
type FetchFriends struct{}

// FetchFriendRequests lists requests addressed to the caller.
type FetchFriendRequests struct{}

// AcceptFriendRequest accepts the request sent by player ID.
type AcceptFriendRequest struct {
	ID int32
}

// DeclineFriendRequest discards the request sent by player ID.
type DeclineFriendRequest struct {
	ID int32
}

// SearchByName looks a player up by display name.
type SearchByName struct {
	Name string
}

// SendFriendRequest asks player ID to become the caller's friend.
type SendFriendRequest struct {
	ID int32
}

func (Authenticate) Packet() PacketID         { return PacketAuthenticate }
func (JoinQueue) Packet() PacketID            { return PacketJoinQueue }
func (SubmitAnswer) Packet() PacketID         { return PacketSubmitAnswer }
func (FetchLeaderboard) Packet() PacketID     { return PacketFetchLeaderboard }
func (ChangeAvatar) Packet() PacketID         { return PacketChangeAvatar }
func (ChangeName) Packet() PacketID           { return PacketChangeName }
func (FetchFriends) Packet() PacketID         { return PacketFetchFriends }
func (FetchFriendRequests) Packet() PacketID  { return PacketFetchFriendRequests }
func (AcceptFriendRequest) Packet() PacketID  { return PacketAcceptFriendRequest }
func (DeclineFriendRequest) Packet() PacketID { return PacketDeclineFriendRequest }
func (SearchByName) Packet() PacketID         { return PacketSearchByName }
func (SendFriendRequest) Packet() PacketID    { return PacketSendFriendRequest }
