// Package protocol defines the BSON wire format exchanged with game clients.
//
// Every document carries an int32 "PacketID". Inbound documents are decoded
// at the boundary into one of a closed set of Command types; outbound
// messages are plain structs encoded in field order.
package protocol

import "fmt"

// PacketID identifies a command or message on the wire.
type PacketID int32

// Packet ids. Inbound commands and their replies share an id.
const (
	PacketAuthenticate         PacketID = 1
	PacketJoinQueue            PacketID = 2
	PacketQuestionUpdate       PacketID = 3
	PacketSubmitAnswer         PacketID = 4
	PacketMatchEnded           PacketID = 5
	PacketFetchLeaderboard     PacketID = 6
	PacketChangeAvatar         PacketID = 7
	PacketChangeName           PacketID = 8
	PacketFetchFriends         PacketID = 9
	PacketFetchFriendRequests  PacketID = 10
	PacketAcceptFriendRequest  PacketID = 11
	PacketDeclineFriendRequest PacketID = 12
	PacketSearchByName         PacketID = 13
	PacketSendFriendRequest    PacketID = 14
)

var packetNames = map[PacketID]string{
	PacketAuthenticate:         "authenticate",
	PacketJoinQueue:            "join_queue",
	PacketQuestionUpdate:       "question_update",
	PacketSubmitAnswer:         "submit_answer",
	PacketMatchEnded:           "match_ended",
	PacketFetchLeaderboard:     "fetch_leaderboard",
	PacketChangeAvatar:         "change_avatar",
	PacketChangeName:           "change_name",
	PacketFetchFriends:         "fetch_friends",
	PacketFetchFriendRequests:  "fetch_friend_requests",
	PacketAcceptFriendRequest:  "accept_friend_request",
	PacketDeclineFriendRequest: "decline_friend_request",
	PacketSearchByName:         "search_by_name",
	PacketSendFriendRequest:    "send_friend_request",
}

// String returns the snake_case packet name used in logs and metric labels.
func (p PacketID) String() string {
	if name, ok := packetNames[p]; ok {
		return name
	}
	return fmt.Sprintf("packet_%d", int32(p))
}

// NoWinner is the Winner value of a drawn match.
const NoWinner = "-"

// Field names.
const (
	fieldPacketID    = "PacketID"
	fieldRID         = "RID"
	fieldCompetitive = "Competitive"
	fieldAnswerIndex = "AnswerIndex"
	fieldPicture     = "ProfilePicture"
	fieldPictureExt  = "ProfilePictureExtension"
	fieldName        = "Name"
	fieldID          = "ID"
)
