package gameserver_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/cory-johannsen/brainduel/internal/testutil"
)

func TestAuthenticate_CreatesGuest(t *testing.T) {
	h := newHarness(t)
	reply := h.login(1, "new-rid")

	assert.Equal(t, int32(1), reply.Lookup("PacketID").Int32())
	assert.Equal(t, "GUEST_1", reply.Lookup("Name").StringValue())
	_, pic := reply.Lookup("ProfilePicture").Binary()
	assert.Equal(t, []byte("default"), pic)

	rec, ok := h.store.Player(1)
	require.True(t, ok)
	assert.Equal(t, "new-rid", rec.RID)
	assert.Equal(t, 1, h.srv.Snapshot().Sessions)
}

func TestAuthenticate_LoadsExisting(t *testing.T) {
	h := newHarness(t)
	h.store.Seed(seeded(7, "rid-7", "zed", 120))

	reply := h.login(1, "rid-7")
	assert.Equal(t, "zed", reply.Lookup("Name").StringValue())
	assert.NotContains(t, h.store.Calls, "CreatePlayer")
}

func TestAuthenticate_StorageFailureRepliesThenDrops(t *testing.T) {
	h := newHarness(t)
	h.store.Fail["LoadPlayer"] = true

	h.tr.Connect(1)
	h.send(1, packet(1), kv("RID", "x"))

	frames := h.tr.Frames(1)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].Lookup("Error").Boolean())
	assert.Empty(t, frames[0].Lookup("Name").StringValue())
	assert.True(t, h.tr.Disconnected(1))
	assert.Zero(t, h.srv.Snapshot().Sessions)
}

func TestAuthenticate_Twice(t *testing.T) {
	h := newHarness(t)
	h.login(1, "a")
	h.send(1, packet(1), kv("RID", "b"))
	assert.True(t, h.tr.Disconnected(1))
}

func TestDispatch_RequiresAuthentication(t *testing.T) {
	h := newHarness(t)
	h.tr.Connect(1)
	h.send(1, packet(6))
	assert.True(t, h.tr.Disconnected(1))
	assert.Empty(t, h.tr.Frames(1))
}

func TestDispatch_MalformedInput(t *testing.T) {
	cases := map[string]func(h *harness){
		"garbage":        func(h *harness) { h.tr.Receive(1, []byte("nope")); h.drain() },
		"no packet id":   func(h *harness) { h.send(1, kv("RID", "x")) },
		"unknown packet": func(h *harness) { h.send(1, packet(99)) },
		"outbound only":  func(h *harness) { h.send(1, packet(5)) },
		"missing field":  func(h *harness) { h.send(1, packet(2)) },
		"mistyped field": func(h *harness) { h.send(1, packet(4), kv("AnswerIndex", "2")) },
	}
	for name, run := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			h.login(1, "rid")
			run(h)
			assert.True(t, h.tr.Disconnected(1))
			assert.Empty(t, h.tr.Frames(1), "no partial processing")
		})
	}
}

func TestDrop_RepliesQueuedBeforeViolationAreDelivered(t *testing.T) {
	h := newHarness(t)
	h.login(1, "rid")

	h.tr.ReceiveDoc(t, 1, bson.D{packet(6)})
	h.tr.ReceiveDoc(t, 1, bson.D{packet(99)})
	h.tr.ReceiveDoc(t, 1, bson.D{packet(6)})
	h.drain()

	assert.Equal(t, []int32{6}, testutil.PacketIDs(h.tr.Frames(1)),
		"the reply before the violation arrives; nothing after it is handled")
	assert.True(t, h.tr.Disconnected(1))
}

func TestOutbound_OrderPreservedPerConnection(t *testing.T) {
	h := newHarness(t)
	h.login(1, "rid")

	h.tr.ReceiveDoc(t, 1, bson.D{packet(6)})
	h.tr.ReceiveDoc(t, 1, bson.D{packet(8), kv("Name", "amy")})
	h.tr.ReceiveDoc(t, 1, bson.D{packet(13), kv("Name", "nobody")})
	h.tr.ReceiveDoc(t, 1, bson.D{packet(9)})
	h.drain()

	assert.Equal(t, []int32{6, 8, 13, 9}, testutil.PacketIDs(h.tr.Frames(1)))
}

func TestMatchmaking_FIFO(t *testing.T) {
	h := newHarness(t)
	h.pair(1, 2, false)
	h.login(3, "rid-3")
	h.send(3, packet(2), kv("Competitive", false))

	assert.Empty(t, h.tr.Frames(3), "the third player waits alone")
	snap := h.srv.Snapshot()
	assert.Equal(t, 1, snap.Matches)
	assert.True(t, snap.CasualWaiting)
	assert.False(t, snap.CompetitiveWaiting)
}

func TestMatchmaking_MatchFoundNamesOpponent(t *testing.T) {
	h := newHarness(t)
	h.login(1, "rid-1")
	h.login(2, "rid-2")
	h.send(1, packet(2), kv("Competitive", true))
	h.send(2, packet(2), kv("Competitive", true))

	assert.Equal(t, "GUEST_2", h.tr.Frames(1)[0].Lookup("Name").StringValue())
	assert.Equal(t, "GUEST_1", h.tr.Frames(2)[0].Lookup("Name").StringValue())
}

func TestMatchmaking_DuplicateJoinDrops(t *testing.T) {
	h := newHarness(t)
	h.login(1, "rid")
	h.send(1, packet(2), kv("Competitive", false))
	h.send(1, packet(2), kv("Competitive", false))

	assert.True(t, h.tr.Disconnected(1))
	assert.False(t, h.srv.Snapshot().CasualWaiting)
}

func TestMatchmaking_JoinWhileInMatchDrops(t *testing.T) {
	h := newHarness(t)
	h.pair(1, 2, false)
	h.send(1, packet(2), kv("Competitive", true))
	assert.True(t, h.tr.Disconnected(1))
}

func TestMatchmaking_WaitingPlayerDisconnects(t *testing.T) {
	h := newHarness(t)
	h.login(1, "rid-1")
	h.send(1, packet(2), kv("Competitive", false))
	h.tr.Close(1)
	h.drain()
	assert.False(t, h.srv.Snapshot().CasualWaiting)

	h.login(2, "rid-2")
	h.send(2, packet(2), kv("Competitive", false))
	assert.False(t, h.tr.Disconnected(2))
	assert.True(t, h.srv.Snapshot().CasualWaiting)
}

// Two casual players both answer correctly at 2s and 5s; the round ends 3s
// after the 12s floor instead of at 15s.
func TestScenario_CasualEarlyAdvance(t *testing.T) {
	h := newHarness(t)
	h.pair(1, 2, false)

	h.advance(3 * time.Second)
	qa := h.tr.Take(1)
	qb := h.tr.Take(2)
	require.Equal(t, []int32{3}, testutil.PacketIDs(qa))
	require.Equal(t, []int32{3}, testutil.PacketIDs(qb))
	assert.Equal(t, qa[0].Lookup("Question").StringValue(), qb[0].Lookup("Question").StringValue())
	assert.Equal(t, qa[0].Lookup("AnswerOption3").StringValue(), qb[0].Lookup("AnswerOption3").StringValue())

	h.clock.Advance(2 * time.Second)
	h.answer(1, correctAnswer)
	h.clock.Advance(3 * time.Second)
	h.answer(2, correctAnswer)

	ack := h.tr.Take(1)
	require.Equal(t, []int32{4}, testutil.PacketIDs(ack))
	assert.Equal(t, correctAnswer, ack[0].Lookup("AnswerIndex").Int32())
	h.tr.Take(2)

	h.advance(2999 * time.Millisecond)
	assert.Empty(t, h.tr.Frames(1))
	h.advance(time.Millisecond)

	next := h.tr.Take(1)
	require.Equal(t, []int32{3}, testutil.PacketIDs(next))
	assert.Equal(t, int32(13), next[0].Lookup("Points").Int32())
	assert.Equal(t, int32(10), next[0].Lookup("EnemyPoints").Int32())
	other := h.tr.Take(2)
	assert.Equal(t, int32(10), other[0].Lookup("Points").Int32())
	assert.Equal(t, int32(13), other[0].Lookup("EnemyPoints").Int32())
}

func TestScenario_CompetitiveSettlementPersists(t *testing.T) {
	h := newHarness(t)
	h.pair(1, 2, true)

	h.advance(3 * time.Second)
	h.answer(1, correctAnswer)
	h.answer(2, 0)
	h.advance(3 * time.Second)
	h.answer(1, correctAnswer)
	h.tr.Take(1)
	h.tr.Take(2)

	h.advance(15 * time.Second)
	settled := h.tr.Take(1)
	assert.Equal(t, []int32{5, 3}, testutil.PacketIDs(settled))
	assert.Equal(t, "GUEST_1", settled[0].Lookup("Winner").StringValue())
	assert.Zero(t, h.srv.Snapshot().Matches)

	winner, _ := h.store.Player(1)
	loser, _ := h.store.Player(2)
	assert.Equal(t, int32(10), winner.Rating)
	assert.Equal(t, int32(1), winner.Wins)
	assert.Equal(t, int32(1), loser.Losses)
	assert.Zero(t, loser.Rating)

	// Both are back at baseline and may queue again.
	h.send(1, packet(2), kv("Competitive", false))
	h.send(2, packet(2), kv("Competitive", false))
	assert.False(t, h.tr.Disconnected(1))
	assert.Equal(t, []int32{2}, testutil.PacketIDs(h.tr.Take(2)))
}

func TestScenario_DisconnectMidMatch(t *testing.T) {
	h := newHarness(t)
	h.pair(1, 2, false)
	h.advance(3 * time.Second)
	h.tr.Take(2)

	h.tr.Close(1)
	h.drain()
	assert.Zero(t, h.srv.Snapshot().Matches)

	h.advance(time.Minute)
	h.advance(time.Minute)
	assert.Empty(t, h.tr.Frames(2), "the abandoned player gets no further rounds")

	// The stale match reference still blocks queueing.
	h.send(2, packet(2), kv("Competitive", false))
	assert.True(t, h.tr.Disconnected(2))
}

func TestSubmitAnswer_Violations(t *testing.T) {
	t.Run("not in match", func(t *testing.T) {
		h := newHarness(t)
		h.login(1, "rid")
		h.answer(1, 0)
		assert.True(t, h.tr.Disconnected(1))
	})
	t.Run("before first question", func(t *testing.T) {
		h := newHarness(t)
		h.pair(1, 2, false)
		h.answer(1, 0)
		assert.True(t, h.tr.Disconnected(1))
	})
	t.Run("twice", func(t *testing.T) {
		h := newHarness(t)
		h.pair(1, 2, false)
		h.advance(3 * time.Second)
		h.answer(1, correctAnswer)
		assert.False(t, h.tr.Disconnected(1))
		h.answer(1, correctAnswer)
		assert.True(t, h.tr.Disconnected(1))
	})
}

func TestRun_StopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.srv.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
