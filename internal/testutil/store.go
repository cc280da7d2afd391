package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/cory-johannsen/brainduel/internal/game/player"
	"github.com/cory-johannsen/brainduel/internal/gameserver"
)

// ErrInjected is returned by MemStore operations listed in Fail.
var ErrInjected = errors.New("injected storage failure")

// MemStore is an in-memory implementation of the game server's Store.
//
// Set Fail[op] to make the named operation return ErrInjected; op names match
// the method names.
type MemStore struct {
	mu       sync.Mutex
	nextID   int32
	players  map[int32]*player.Record
	friends  map[int32]map[int32]bool
	requests map[int32][]int32
	Fail     map[string]bool
	Calls    []string
}

var _ gameserver.Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		players:  make(map[int32]*player.Record),
		friends:  make(map[int32]map[int32]bool),
		requests: make(map[int32][]int32),
		Fail:     make(map[string]bool),
	}
}

func (m *MemStore) enter(op string) error {
	m.Calls = append(m.Calls, op)
	if m.Fail[op] {
		return ErrInjected
	}
	return nil
}

// Seed stores rec as is and returns its id. A zero ID is assigned.
func (m *MemStore) Seed(rec player.Record) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec.ID == 0 {
		m.nextID++
		rec.ID = m.nextID
	} else if rec.ID > m.nextID {
		m.nextID = rec.ID
	}
	r := rec
	m.players[r.ID] = &r
	return r.ID
}

// Player returns a copy of the stored record of id.
func (m *MemStore) Player(id int32) (player.Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.players[id]
	if !ok {
		return player.Record{}, false
	}
	return *p, true
}

// AreFriends reports whether friendID is in the friend list of id.
func (m *MemStore) AreFriends(id, friendID int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.friends[id][friendID]
}

// HasRequest reports whether requester has a pending request to target.
func (m *MemStore) HasRequest(target, requester int32) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests[target] {
		if r == requester {
			return true
		}
	}
	return false
}

func (m *MemStore) byRID(rid string) *player.Record {
	for _, p := range m.players {
		if p.RID == rid {
			return p
		}
	}
	return nil
}

func (m *MemStore) byName(name string) *player.Record {
	var found *player.Record
	for _, p := range m.players {
		if p.Name == name && (found == nil || p.ID < found.ID) {
			found = p
		}
	}
	return found
}

func (m *MemStore) PlayerExists(_ context.Context, rid string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("PlayerExists"); err != nil {
		return false, err
	}
	return m.byRID(rid) != nil, nil
}

func (m *MemStore) CreatePlayer(_ context.Context, rid string, avatar player.Avatar) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("CreatePlayer"); err != nil {
		return 0, err
	}
	m.nextID++
	id := m.nextID
	m.players[id] = &player.Record{ID: id, RID: rid, Name: player.GuestName(id), Avatar: avatar}
	return id, nil
}

func (m *MemStore) LoadPlayer(_ context.Context, rid string) (player.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("LoadPlayer"); err != nil {
		return player.Record{}, err
	}
	p := m.byRID(rid)
	if p == nil {
		return player.Record{}, errors.New("player not found")
	}
	return *p, nil
}

func (m *MemStore) NameTaken(_ context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("NameTaken"); err != nil {
		return false, err
	}
	return m.byName(name) != nil, nil
}

func (m *MemStore) SaveName(_ context.Context, id int32, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SaveName"); err != nil {
		return err
	}
	p, ok := m.players[id]
	if !ok {
		return errors.New("player not found")
	}
	p.Name = name
	return nil
}

func (m *MemStore) SaveStanding(_ context.Context, id int32, st player.Standing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SaveStanding"); err != nil {
		return err
	}
	p, ok := m.players[id]
	if !ok {
		return errors.New("player not found")
	}
	p.Rating, p.Wins, p.Losses = st.Rating, st.Wins, st.Losses
	return nil
}

func (m *MemStore) Leaderboard(_ context.Context, limit int) ([]player.Ranked, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Leaderboard"); err != nil {
		return nil, err
	}
	all := make([]*player.Record, 0, len(m.players))
	for _, p := range m.players {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Rating != all[j].Rating {
			return all[i].Rating > all[j].Rating
		}
		return all[i].ID < all[j].ID
	})
	if len(all) > limit {
		all = all[:limit]
	}
	out := make([]player.Ranked, 0, len(all))
	for _, p := range all {
		out = append(out, player.Ranked{
			Name:     p.Name,
			Standing: player.Standing{Rating: p.Rating, Wins: p.Wins, Losses: p.Losses},
			Avatar:   p.Avatar,
		})
	}
	return out, nil
}

func (m *MemStore) AvatarByID(_ context.Context, id int32) (player.Avatar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AvatarByID"); err != nil {
		return player.Avatar{}, err
	}
	p, ok := m.players[id]
	if !ok {
		return player.Avatar{}, errors.New("player not found")
	}
	return p.Avatar, nil
}

func (m *MemStore) AvatarByName(_ context.Context, name string) (player.Avatar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AvatarByName"); err != nil {
		return player.Avatar{}, err
	}
	p := m.byName(name)
	if p == nil {
		return player.Avatar{}, errors.New("player not found")
	}
	return p.Avatar, nil
}

func (m *MemStore) SaveAvatar(_ context.Context, id int32, avatar player.Avatar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("SaveAvatar"); err != nil {
		return err
	}
	p, ok := m.players[id]
	if !ok {
		return errors.New("player not found")
	}
	p.Avatar = avatar
	return nil
}

func (m *MemStore) contacts(ids []int32) []player.Contact {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]player.Contact, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.players[id]; ok {
			out = append(out, player.Contact{ID: id, Name: p.Name})
		}
	}
	return out
}

func (m *MemStore) Friends(_ context.Context, id int32) ([]player.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("Friends"); err != nil {
		return nil, err
	}
	ids := make([]int32, 0, len(m.friends[id]))
	for f := range m.friends[id] {
		ids = append(ids, f)
	}
	return m.contacts(ids), nil
}

func (m *MemStore) FriendRequests(_ context.Context, id int32) ([]player.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("FriendRequests"); err != nil {
		return nil, err
	}
	return m.contacts(append([]int32(nil), m.requests[id]...)), nil
}

func (m *MemStore) AddFriend(_ context.Context, id, friendID int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AddFriend"); err != nil {
		return err
	}
	if m.friends[id] == nil {
		m.friends[id] = make(map[int32]bool)
	}
	m.friends[id][friendID] = true
	return nil
}

func (m *MemStore) AddFriendRequest(_ context.Context, target, requester int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("AddFriendRequest"); err != nil {
		return err
	}
	if _, ok := m.players[target]; !ok {
		return errors.New("target not found")
	}
	for _, r := range m.requests[target] {
		if r == requester {
			return nil
		}
	}
	m.requests[target] = append(m.requests[target], requester)
	return nil
}

func (m *MemStore) RemoveFriendRequest(_ context.Context, target, requester int32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter("RemoveFriendRequest"); err != nil {
		return err
	}
	kept := m.requests[target][:0]
	for _, r := range m.requests[target] {
		if r != requester {
			kept = append(kept, r)
		}
	}
	m.requests[target] = kept
	return nil
}
