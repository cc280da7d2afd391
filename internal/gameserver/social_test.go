package gameserver_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/cory-johannsen/brainduel/internal/testutil"
)

func binary(t *testing.T, v bson.RawValue) []byte {
	t.Helper()
	_, data, ok := v.BinaryOK()
	require.True(t, ok, "expected binary, got %s", v.Type)
	return data
}

func array(t *testing.T, doc bson.Raw, key string) []bson.Raw {
	t.Helper()
	values, err := doc.Lookup(key).Array().Values()
	require.NoError(t, err)
	out := make([]bson.Raw, 0, len(values))
	for _, v := range values {
		out = append(out, v.Document())
	}
	return out
}

func TestLeaderboard_TopByRating(t *testing.T) {
	h := newHarness(t)
	h.store.Seed(seeded(10, "r10", "low", 5))
	h.store.Seed(seeded(11, "r11", "top", 90))
	h.store.Seed(seeded(12, "r12", "mid", 40))
	h.store.Seed(seeded(13, "r13", "high", 70))
	h.login(1, "r10")

	h.send(1, packet(6))
	frames := h.tr.Take(1)
	require.Len(t, frames, 1)

	entries := array(t, frames[0], "Leaderboard")
	require.Len(t, entries, 3)
	names := []string{}
	for _, e := range entries {
		names = append(names, e.Lookup("Name").StringValue())
	}
	assert.Equal(t, []string{"top", "high", "mid"}, names)
	assert.Equal(t, int32(90), entries[0].Lookup("Rating").Int32())
	assert.Equal(t, []byte("top"), binary(t, entries[0].Lookup("ProfilePicture")))
}

func TestLeaderboard_StorageFailureDrops(t *testing.T) {
	h := newHarness(t)
	h.login(1, "rid")
	h.store.Fail["Leaderboard"] = true
	h.send(1, packet(6))
	assert.True(t, h.tr.Disconnected(1))
	assert.Empty(t, h.tr.Frames(1))
}

func TestChangeName(t *testing.T) {
	t.Run("taken", func(t *testing.T) {
		h := newHarness(t)
		h.store.Seed(seeded(50, "other", "amy", 0))
		h.login(1, "rid")

		h.send(1, packet(8), kv("Name", "amy"))
		reply := h.tr.Take(1)
		require.Len(t, reply, 1)
		assert.Equal(t, "amy", reply[0].Lookup("Name").StringValue())
		assert.True(t, reply[0].Lookup("Error").Boolean())

		rec, _ := h.store.Player(51)
		assert.Equal(t, "GUEST_51", rec.Name)
	})
	t.Run("free", func(t *testing.T) {
		h := newHarness(t)
		h.login(1, "rid")

		h.send(1, packet(8), kv("Name", "zed"))
		reply := h.tr.Take(1)
		require.Len(t, reply, 1)
		assert.Equal(t, "zed", reply[0].Lookup("Name").StringValue())
		assert.False(t, reply[0].Lookup("Error").Boolean())

		rec, _ := h.store.Player(1)
		assert.Equal(t, "zed", rec.Name)
	})
	t.Run("new name shows in match found", func(t *testing.T) {
		h := newHarness(t)
		h.login(1, "a")
		h.login(2, "b")
		h.send(1, packet(8), kv("Name", "zed"))
		h.send(1, packet(2), kv("Competitive", false))
		h.send(2, packet(2), kv("Competitive", false))
		found := h.tr.Take(2)
		require.Len(t, found, 1)
		assert.Equal(t, "zed", found[0].Lookup("Name").StringValue())
	})
}

func TestChangeAvatar(t *testing.T) {
	t.Run("stored and echoed", func(t *testing.T) {
		h := newHarness(t)
		h.login(1, "rid")
		pic := []byte{0x89, 'P', 'N', 'G'}

		h.send(1, packet(7), kv("ProfilePicture", pic), kv("ProfilePictureExtension", "png"))
		reply := h.tr.Take(1)
		require.Len(t, reply, 1)
		assert.Equal(t, pic, binary(t, reply[0].Lookup("ProfilePicture")))
		assert.Equal(t, "png", reply[0].Lookup("ProfilePictureExtension").StringValue())

		rec, _ := h.store.Player(1)
		assert.Equal(t, pic, rec.Avatar.Picture)
	})
	t.Run("oversized drops", func(t *testing.T) {
		h := newHarness(t)
		h.login(1, "rid")
		h.send(1, packet(7), kv("ProfilePicture", bytes.Repeat([]byte{1}, 65)), kv("ProfilePictureExtension", "png"))
		assert.True(t, h.tr.Disconnected(1))
		assert.NotContains(t, h.store.Calls, "SaveAvatar")
	})
}

func TestFetchFriends_OnlineAndOffline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.Seed(seeded(1, "me", "me", 0))
	h.store.Seed(seeded(2, "on", "online", 0))
	h.store.Seed(seeded(3, "off", "offline", 0))
	require.NoError(t, h.store.AddFriend(ctx, 1, 2))
	require.NoError(t, h.store.AddFriend(ctx, 1, 3))

	h.login(1, "me")
	h.login(2, "on")
	h.send(2, packet(7), kv("ProfilePicture", []byte("fresh")), kv("ProfilePictureExtension", "gif"))
	h.tr.Take(2)

	h.send(1, packet(9))
	frames := h.tr.Take(1)
	require.Len(t, frames, 1)
	friends := array(t, frames[0], "Friends")
	require.Len(t, friends, 2)

	assert.Equal(t, int32(2), friends[0].Lookup("ID").Int32())
	assert.True(t, friends[0].Lookup("Online").Boolean())
	assert.Equal(t, []byte("fresh"), binary(t, friends[0].Lookup("ProfilePicture")), "live avatar of the friend")
	assert.Equal(t, "gif", friends[0].Lookup("ProfilePictureExtension").StringValue())

	assert.Equal(t, "offline", friends[1].Lookup("Name").StringValue())
	assert.False(t, friends[1].Lookup("Online").Boolean())
	assert.Equal(t, []byte("offline"), binary(t, friends[1].Lookup("ProfilePicture")))
}

func TestFetchFriends_Empty(t *testing.T) {
	h := newHarness(t)
	h.login(1, "rid")
	h.send(1, packet(9))
	frames := h.tr.Take(1)
	require.Len(t, frames, 1)
	assert.Empty(t, array(t, frames[0], "Friends"))
}

func TestFriendRequest_SendFetchAccept(t *testing.T) {
	h := newHarness(t)
	h.login(1, "a")
	h.login(2, "b")

	h.send(1, packet(14), kv("ID", int32(2)))
	assert.Empty(t, h.tr.Frames(1), "sending a request has no reply")
	assert.True(t, h.store.HasRequest(2, 1))

	h.send(2, packet(10))
	frames := h.tr.Take(2)
	require.Len(t, frames, 1)
	requests := array(t, frames[0], "FriendRequests")
	require.Len(t, requests, 1)
	assert.Equal(t, int32(1), requests[0].Lookup("ID").Int32())
	assert.Equal(t, "GUEST_1", requests[0].Lookup("Name").StringValue())
	assert.Equal(t, []byte("default"), binary(t, requests[0].Lookup("ProfilePicture")))

	h.send(2, packet(11), kv("ID", int32(1)))
	assert.Empty(t, h.tr.Frames(2))
	assert.False(t, h.store.HasRequest(2, 1))
	assert.True(t, h.store.AreFriends(1, 2))
	assert.True(t, h.store.AreFriends(2, 1))
	assert.False(t, h.tr.Disconnected(2))
}

func TestFriendRequest_Decline(t *testing.T) {
	h := newHarness(t)
	h.login(1, "a")
	h.login(2, "b")
	h.send(1, packet(14), kv("ID", int32(2)))

	h.send(2, packet(12), kv("ID", int32(1)))
	assert.False(t, h.store.HasRequest(2, 1))
	assert.False(t, h.store.AreFriends(2, 1))
	assert.False(t, h.tr.Disconnected(2))
}

func TestFriendRequest_ToSelfDrops(t *testing.T) {
	h := newHarness(t)
	h.login(1, "a")
	h.send(1, packet(14), kv("ID", int32(1)))
	assert.True(t, h.tr.Disconnected(1))
	assert.NotContains(t, h.store.Calls, "AddFriendRequest")
}

func TestFriendRequest_FailuresAreNotFatal(t *testing.T) {
	h := newHarness(t)
	h.login(1, "a")

	h.send(1, packet(14), kv("ID", int32(404)))
	h.store.Fail["AddFriendRequest"] = true
	h.send(1, packet(14), kv("ID", int32(2)))

	assert.False(t, h.tr.Disconnected(1))
	assert.Empty(t, h.tr.Frames(1))
}

func TestFriendRequest_AcceptStorageFailureDrops(t *testing.T) {
	h := newHarness(t)
	h.login(1, "a")
	h.store.Fail["AddFriend"] = true
	h.send(1, packet(11), kv("ID", int32(2)))
	assert.True(t, h.tr.Disconnected(1))
}

func TestSearchByName(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		h := newHarness(t)
		h.store.Seed(seeded(9, "x", "amy", 0))
		h.login(1, "rid")

		h.send(1, packet(13), kv("Name", "amy"))
		frames := h.tr.Take(1)
		require.Len(t, frames, 1)
		assert.True(t, frames[0].Lookup("Found").Boolean())
		assert.Equal(t, "amy", frames[0].Lookup("Name").StringValue())
		assert.Equal(t, []byte("amy"), binary(t, frames[0].Lookup("ProfilePicture")))
	})
	t.Run("unknown", func(t *testing.T) {
		h := newHarness(t)
		h.login(1, "rid")
		h.send(1, packet(13), kv("Name", "ghost"))
		frames := h.tr.Take(1)
		require.Len(t, frames, 1)
		assert.False(t, frames[0].Lookup("Found").Boolean())
	})
	t.Run("own name", func(t *testing.T) {
		h := newHarness(t)
		h.login(1, "rid")
		h.send(1, packet(13), kv("Name", "guest_1"))
		frames := h.tr.Take(1)
		require.Len(t, frames, 1)
		assert.False(t, frames[0].Lookup("Found").Boolean())
	})
	t.Run("storage failure is a miss", func(t *testing.T) {
		h := newHarness(t)
		h.login(1, "rid")
		h.store.Fail["NameTaken"] = true
		h.send(1, packet(13), kv("Name", "amy"))
		frames := h.tr.Take(1)
		require.Len(t, frames, 1)
		assert.False(t, frames[0].Lookup("Found").Boolean())
		assert.False(t, h.tr.Disconnected(1))
	})
}

func TestSocial_RequiresAuthentication(t *testing.T) {
	for _, id := range []int32{7, 8, 9, 10, 11, 12, 13, 14} {
		h := newHarness(t)
		h.tr.Connect(1)
		h.send(1, packet(id), kv("ID", int32(1)), kv("Name", "x"),
			kv("ProfilePicture", []byte{1}), kv("ProfilePictureExtension", "png"))
		assert.True(t, h.tr.Disconnected(1), "packet %d", id)
		assert.Empty(t, testutil.PacketIDs(h.tr.Frames(1)), "packet %d", id)
	}
}
