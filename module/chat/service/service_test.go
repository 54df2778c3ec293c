package service

import (
	"context"
	"sort"
	"sync"
	"testing"

	"RProject/module/chat/model"
	usermodel "RProject/module/user/model"
	"RProject/tools/errs"
	"RProject/tools/ids"
)

func seedMessage(t *testing.T, s *memMsgStore, roomID, sender, body string, ts int64) *model.MsgModel {
	t.Helper()
	m := &model.MsgModel{
		MsgID:     ids.GenerateString(),
		RoomID:    roomID,
		Sender:    sender,
		Body:      body,
		CreatedAt: ts,
	}
	if err := s.Insert(context.Background(), m); err != nil {
		t.Fatalf("seed message: %v", err)
	}
	return m
}

// In-memory stores mirroring the uniqueness guarantees the mongo layer
// enforces with indexes.

type memDirectory struct {
	users map[string]*usermodel.UserModel // by username
}

func newMemDirectory(usernames ...string) *memDirectory {
	d := &memDirectory{users: map[string]*usermodel.UserModel{}}
	for i, u := range usernames {
		d.users[u] = &usermodel.UserModel{ID: int64(i + 1), Username: u, Email: u + "@example.com"}
	}
	return d
}

func (d *memDirectory) GetByUsername(_ context.Context, username string) (*usermodel.UserModel, error) {
	if u, ok := d.users[username]; ok {
		return u, nil
	}
	return nil, errs.ErrRecordNotFound.WrapMsg("user", "username", username)
}

func (d *memDirectory) GetByEmail(_ context.Context, email string) (*usermodel.UserModel, error) {
	for _, u := range d.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, errs.ErrRecordNotFound.WrapMsg("user", "email", email)
}

type memRoomStore struct {
	mu     sync.Mutex
	rooms  map[string]*model.RoomModel
	byPair map[string]*model.RoomModel
	parts  map[string]map[string]*model.ParticipantModel // roomID -> username
}

func newMemRoomStore() *memRoomStore {
	return &memRoomStore{
		rooms:  map[string]*model.RoomModel{},
		byPair: map[string]*model.RoomModel{},
		parts:  map[string]map[string]*model.ParticipantModel{},
	}
}

func (s *memRoomStore) InsertRoom(_ context.Context, room *model.RoomModel, parts []*model.ParticipantModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room.PairKey != "" {
		if _, dup := s.byPair[room.PairKey]; dup {
			return errs.ErrConflict.WrapMsg("duplicate direct room", "pairKey", room.PairKey)
		}
		s.byPair[room.PairKey] = room
	}
	s.rooms[room.RoomID] = room
	set := map[string]*model.ParticipantModel{}
	for _, p := range parts {
		set[p.Username] = p
	}
	s.parts[room.RoomID] = set
	return nil
}

func (s *memRoomStore) FindDirectByPairKey(_ context.Context, pairKey string) (*model.RoomModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.byPair[pairKey]; ok {
		return r, nil
	}
	return nil, errs.ErrRecordNotFound.Wrap()
}

func (s *memRoomStore) FindRoom(_ context.Context, roomID string) (*model.RoomModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rooms[roomID]; ok {
		return r, nil
	}
	return nil, errs.ErrRecordNotFound.Wrap()
}

func (s *memRoomStore) RoomsForUser(_ context.Context, username string) ([]*model.RoomModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.RoomModel
	for roomID, set := range s.parts {
		if _, ok := set[username]; ok {
			out = append(out, s.rooms[roomID])
		}
	}
	return out, nil
}

func (s *memRoomStore) Participants(_ context.Context, roomID string) ([]*model.ParticipantModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.ParticipantModel
	for _, p := range s.parts[roomID] {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *memRoomStore) FindParticipant(_ context.Context, roomID, username string) (*model.ParticipantModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.parts[roomID][username]; ok {
		return p, nil
	}
	return nil, errs.ErrRecordNotFound.Wrap()
}

func (s *memRoomStore) SetLastRead(_ context.Context, roomID, username string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.parts[roomID][username]; ok && ts > p.LastRead {
		p.LastRead = ts
	}
	return nil
}

type memMsgStore struct {
	mu   sync.Mutex
	byID map[string]*model.MsgModel
}

func newMemMsgStore() *memMsgStore {
	return &memMsgStore{byID: map[string]*model.MsgModel{}}
}

func (s *memMsgStore) Insert(_ context.Context, msg *model.MsgModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.byID[msg.MsgID] = &cp
	return nil
}

func (s *memMsgStore) Find(_ context.Context, msgID string) (*model.MsgModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.byID[msgID]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, errs.ErrRecordNotFound.Wrap()
}

func (s *memMsgStore) roomDesc(roomID string) []*model.MsgModel {
	var out []*model.MsgModel
	for _, m := range s.byID {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].MsgID > out[j].MsgID
	})
	return out
}

func (s *memMsgStore) PageDesc(_ context.Context, roomID string, beforeTS int64, beforeID string, limit int) ([]*model.MsgModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.MsgModel
	for _, m := range s.roomDesc(roomID) {
		if beforeTS > 0 {
			if m.CreatedAt > beforeTS || (m.CreatedAt == beforeTS && m.MsgID >= beforeID) {
				continue
			}
		}
		out = append(out, m)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memMsgStore) LatestForRoom(_ context.Context, roomID string) (*model.MsgModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.roomDesc(roomID)
	if len(rows) == 0 {
		return nil, errs.ErrRecordNotFound.Wrap()
	}
	return rows[0], nil
}

func (s *memMsgStore) Update(_ context.Context, msg *model.MsgModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[msg.MsgID]
	if !ok {
		return errs.ErrRecordNotFound.Wrap()
	}
	cur.Body = msg.Body
	cur.ReelID = msg.ReelID
	cur.Edited = msg.Edited
	cur.Deleted = msg.Deleted
	return nil
}

type memBus struct {
	mu     sync.Mutex
	topics []string
	events [][]byte
}

func (b *memBus) Publish(_ context.Context, biz string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = append(b.topics, biz)
	b.events = append(b.events, data)
	return nil
}

func (b *memBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}
