package gameserver_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/brainduel/internal/config"
	"github.com/cory-johannsen/brainduel/internal/game/player"
	"github.com/cory-johannsen/brainduel/internal/game/question"
	"github.com/cory-johannsen/brainduel/internal/gameserver"
	"github.com/cory-johannsen/brainduel/internal/testutil"
	"github.com/cory-johannsen/brainduel/internal/transport"
)

// correctAnswer is the right option of every question in the test bank.
const correctAnswer int32 = 2

// lowestSource always draws the lowest unused question.
type lowestSource struct{}

func (lowestSource) Intn(int) int { return 0 }

type harness struct {
	t     *testing.T
	ctx   context.Context
	srv   *gameserver.Server
	tr    *testutil.ScriptedTransport
	store *testutil.MemStore
	clock *clockwork.FakeClock
}

func testConfig() config.GameServerConfig {
	return config.GameServerConfig{
		PollTimeout:            time.Millisecond,
		StorageTimeout:         time.Second,
		LeaderboardSize:        3,
		DefaultAvatarExtension: "png",
		MaxAvatarBytes:         64,
		RatingDelta:            10,
		StartDelay:             3 * time.Second,
		RoundDuration:          15 * time.Second,
		EarlyAdvanceFloor:      12 * time.Second,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	qs := make([]question.Question, 6)
	for i := range qs {
		qs[i] = question.Question{
			ID:      int64(i + 1),
			Prompt:  fmt.Sprintf("question %d", i),
			Options: [4]string{"w", "x", "y", "z"},
			Answer:  correctAnswer,
		}
	}
	h := &harness{
		t:     t,
		ctx:   context.Background(),
		tr:    testutil.NewScriptedTransport(),
		store: testutil.NewMemStore(),
		clock: clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	h.srv = gameserver.NewServer(gameserver.Deps{
		Config:        testConfig(),
		Transport:     h.tr,
		Store:         h.store,
		Bank:          question.NewBank(qs),
		Source:        lowestSource{},
		Clock:         h.clock,
		DefaultAvatar: player.Avatar{Picture: []byte("default"), Extension: "png"},
		Logger:        zaptest.NewLogger(t),
	})
	return h
}

// drain ticks until every queued transport event has been handled.
func (h *harness) drain() {
	h.t.Helper()
	for i := 0; i < 1000 && h.tr.Pending() > 0; i++ {
		h.srv.Tick(h.ctx)
	}
	require.Zero(h.t, h.tr.Pending(), "transport events left unprocessed")
}

// advance moves the clock and runs one tick.
func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	h.srv.Tick(h.ctx)
}

func (h *harness) send(conn transport.ConnID, fields ...bson.E) {
	h.tr.ReceiveDoc(h.t, conn, bson.D(fields))
	h.drain()
}

func kv(key string, value any) bson.E {
	return bson.E{Key: key, Value: value}
}

func packet(id int32) bson.E {
	return kv("PacketID", id)
}

// login connects conn and authenticates it with rid.
func (h *harness) login(conn transport.ConnID, rid string) bson.Raw {
	h.t.Helper()
	h.tr.Connect(conn)
	h.send(conn, packet(1), kv("RID", rid))
	frames := h.tr.Take(conn)
	require.Len(h.t, frames, 1)
	require.False(h.t, frames[0].Lookup("Error").Boolean())
	return frames[0]
}

// pair logs a and b in and matches them in the given mode.
func (h *harness) pair(a, b transport.ConnID, competitive bool) {
	h.t.Helper()
	h.login(a, fmt.Sprintf("rid-%d", a))
	h.login(b, fmt.Sprintf("rid-%d", b))
	h.send(a, packet(2), kv("Competitive", competitive))
	h.send(b, packet(2), kv("Competitive", competitive))
	require.Equal(h.t, []int32{2}, testutil.PacketIDs(h.tr.Take(a)))
	require.Equal(h.t, []int32{2}, testutil.PacketIDs(h.tr.Take(b)))
}

func (h *harness) answer(conn transport.ConnID, idx int32) {
	h.send(conn, packet(4), kv("AnswerIndex", idx))
}

func seeded(id int32, rid, name string, rating int32) player.Record {
	return player.Record{
		ID:     id,
		RID:    rid,
		Name:   name,
		Rating: rating,
		Avatar: player.Avatar{Picture: []byte(name), Extension: "jpg"},
	}
}
