package protocol

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ErrMalformed is wrapped by every decoding failure.
var ErrMalformed = errors.New("malformed document")

// ErrUnknownPacket is returned for a PacketID outside the known command set.
var ErrUnknownPacket = errors.New("unknown packet id")

// ErrMissingField is returned when a required field is absent or has the wrong type.
var ErrMissingField = errors.New("missing or mistyped field")

// Decode parses one inbound frame into a typed command.
//
// Postcondition: Returns a non-nil Command, or an error wrapping ErrMalformed
// (and ErrUnknownPacket or ErrMissingField where applicable).
func Decode(data []byte) (Command, error) {
	doc := bson.Raw(data)
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	d := decoder{doc: doc}
	id := PacketID(d.readInt32(fieldPacketID))
	if d.err != nil {
		return nil, d.err
	}

	var cmd Command
	switch id {
	case PacketAuthenticate:
		cmd = Authenticate{RID: d.readString(fieldRID)}
	case PacketJoinQueue:
		cmd = JoinQueue{Competitive: d.readBool(fieldCompetitive)}
	case PacketSubmitAnswer:
		cmd = SubmitAnswer{AnswerIndex: d.readInt32(fieldAnswerIndex)}
	case PacketFetchLeaderboard:
		cmd = FetchLeaderboard{}
	case PacketChangeAvatar:
		ext := d.readString(fieldPictureExt)
		cmd = ChangeAvatar{Extension: ext, Picture: d.readBinary(fieldPicture)}
	case PacketChangeName:
		cmd = ChangeName{Name: d.readString(fieldName)}
	case PacketFetchFriends:
		cmd = FetchFriends{}
	case PacketFetchFriendRequests:
		cmd = FetchFriendRequests{}
	case PacketAcceptFriendRequest:
		cmd = AcceptFriendRequest{ID: d.readInt32(fieldID)}
	case PacketDeclineFriendRequest:
		cmd = DeclineFriendRequest{ID: d.readInt32(fieldID)}
	case PacketSearchByName:
		cmd = SearchByName{Name: d.readString(fieldName)}
	case PacketSendFriendRequest:
		cmd = SendFriendRequest{ID: d.readInt32(fieldID)}
	default:
		return nil, fmt.Errorf("%w: %w %d", ErrMalformed, ErrUnknownPacket, int32(id))
	}

	if d.err != nil {
		return nil, d.err
	}
	return cmd, nil
}

// decoder reads typed fields and keeps the first failure.
type decoder struct {
	doc bson.Raw
	err error
}

func (d *decoder) lookup(key string, want bsontype.Type) (bson.RawValue, bool) {
	if d.err != nil {
		return bson.RawValue{}, false
	}
	v, err := d.doc.LookupErr(key)
	if err != nil {
		d.err = fmt.Errorf("%w: %w %q", ErrMalformed, ErrMissingField, key)
		return bson.RawValue{}, false
	}
	if v.Type != want {
		d.err = fmt.Errorf("%w: %w %q: got %s, want %s", ErrMalformed, ErrMissingField, key, v.Type, want)
		return bson.RawValue{}, false
	}
	return v, true
}

func (d *decoder) readInt32(key string) int32 {
	v, ok := d.lookup(key, bsontype.Int32)
	if !ok {
		return 0
	}
	return v.Int32()
}

func (d *decoder) readString(key string) string {
	v, ok := d.lookup(key, bsontype.String)
	if !ok {
		return ""
	}
	return v.StringValue()
}

func (d *decoder) readBool(key string) bool {
	v, ok := d.lookup(key, bsontype.Boolean)
	if !ok {
		return false
	}
	return v.Boolean()
}

func (d *decoder) readBinary(key string) []byte {
	v, ok := d.lookup(key, bsontype.Binary)
	if !ok {
		return nil
	}
	_, data := v.Binary()
	return data
}
