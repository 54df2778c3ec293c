package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"RProject/module/chat/model"
	"RProject/module/chat/store"
	userservice "RProject/module/user/service"
	"RProject/tools/errs"
	"RProject/tools/ids"
)

// RoomService is the room directory plus the participation guard. All
// collaborators are injected once at wiring time; there is no ambient
// current-user state, the requester is always an explicit argument.
type RoomService struct {
	rooms store.RoomStore
	msgs  store.MessageStore
	users userservice.Directory
}

func NewRoomService(rooms store.RoomStore, msgs store.MessageStore, users userservice.Directory) *RoomService {
	return &RoomService{rooms: rooms, msgs: msgs, users: users}
}

// GetOrCreateDirect resolves the unique direct room between the requester
// and otherUsername, creating it when absent. Concurrent callers converge
// on one row: the loser of the insert race re-reads by pair key.
func (s *RoomService) GetOrCreateDirect(ctx context.Context, requester, otherUsername string) (*RoomDTO, error) {
	if requester == otherUsername {
		return nil, errs.ErrValidation.WrapMsg("cannot create a chat with yourself")
	}
	if _, err := s.users.GetByUsername(ctx, otherUsername); err != nil {
		return nil, err
	}

	pairKey := model.DirectPairKey(requester, otherUsername)
	room, err := s.rooms.FindDirectByPairKey(ctx, pairKey)
	if err == nil {
		return s.toRoomDTO(ctx, room)
	}
	if !errors.Is(err, errs.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UnixMilli()
	room = &model.RoomModel{
		RoomID:    ids.GenerateString(),
		Kind:      model.RoomKindDirect,
		PairKey:   pairKey,
		CreatedAt: now,
	}
	parts := []*model.ParticipantModel{
		{RoomID: room.RoomID, Username: requester, Role: model.RoleMember, JoinedAt: now},
		{RoomID: room.RoomID, Username: otherUsername, Role: model.RoleMember, JoinedAt: now},
	}
	err = s.rooms.InsertRoom(ctx, room, parts)
	if errors.Is(err, errs.ErrConflict) {
		// lost the race, the unique pair index kept a single room
		room, err = s.rooms.FindDirectByPairKey(ctx, pairKey)
	}
	if err != nil {
		return nil, err
	}
	return s.toRoomDTO(ctx, room)
}

// CreateGroup creates a group room with the creator as admin. Any unknown
// member username fails the whole operation; no partial groups.
func (s *RoomService) CreateGroup(ctx context.Context, creator string, memberUsernames []string, name string) (*RoomDTO, error) {
	members := make([]string, 0, len(memberUsernames))
	seen := map[string]struct{}{creator: {}}
	for _, u := range memberUsernames {
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		members = append(members, u)
	}
	if len(members) == 0 {
		return nil, errs.ErrValidation.WrapMsg("a group needs at least one member besides the creator")
	}
	for _, u := range members {
		if _, err := s.users.GetByUsername(ctx, u); err != nil {
			return nil, err
		}
	}

	now := time.Now().UnixMilli()
	room := &model.RoomModel{
		RoomID:    ids.GenerateString(),
		Kind:      model.RoomKindGroup,
		Name:      name,
		CreatedAt: now,
	}
	parts := make([]*model.ParticipantModel, 0, len(members)+1)
	parts = append(parts, &model.ParticipantModel{
		RoomID: room.RoomID, Username: creator, Role: model.RoleAdmin, JoinedAt: now,
	})
	for _, u := range members {
		parts = append(parts, &model.ParticipantModel{
			RoomID: room.RoomID, Username: u, Role: model.RoleMember, JoinedAt: now,
		})
	}
	if err := s.rooms.InsertRoom(ctx, room, parts); err != nil {
		return nil, err
	}
	return s.toRoomDTO(ctx, room)
}

// ListRoomsForUser returns the user's rooms ordered by most recent
// activity, each with its latest message attached for previews.
func (s *RoomService) ListRoomsForUser(ctx context.Context, username string) ([]*RoomDTO, error) {
	rooms, err := s.rooms.RoomsForUser(ctx, username)
	if err != nil {
		return nil, err
	}
	out := make([]*RoomDTO, 0, len(rooms))
	for _, room := range rooms {
		dto, err := s.toRoomDTO(ctx, room)
		if err != nil {
			return nil, err
		}
		out = append(out, dto)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return activityTS(out[i]) > activityTS(out[j])
	})
	return out, nil
}

// AssertMember is the participation guard: NotFound for a missing room,
// Forbidden for a non-participant. Composed in front of every room read
// and write.
func (s *RoomService) AssertMember(ctx context.Context, roomID, username string) error {
	if _, err := s.rooms.FindRoom(ctx, roomID); err != nil {
		return err
	}
	_, err := s.rooms.FindParticipant(ctx, roomID, username)
	if errors.Is(err, errs.ErrRecordNotFound) {
		return errs.ErrForbidden.WrapMsg("not a participant", "roomID", roomID, "user", username)
	}
	return err
}

// MarkRead advances the requester's last-read marker. The store only moves
// the marker forward, so stale frames are harmless.
func (s *RoomService) MarkRead(ctx context.Context, roomID, username string, ts int64) error {
	if err := s.AssertMember(ctx, roomID, username); err != nil {
		return err
	}
	if ts <= 0 {
		ts = time.Now().UnixMilli()
	}
	return s.rooms.SetLastRead(ctx, roomID, username, ts)
}

// advanceLastRead moves the marker without re-running the membership
// guard; callers have already asserted it.
func (s *RoomService) advanceLastRead(ctx context.Context, roomID, username string, ts int64) error {
	return s.rooms.SetLastRead(ctx, roomID, username, ts)
}

// ParticipantUsernames resolves the recipient set for fan-out.
func (s *RoomService) ParticipantUsernames(ctx context.Context, roomID string) ([]string, error) {
	parts, err := s.rooms.Participants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, p.Username)
	}
	return names, nil
}

func (s *RoomService) toRoomDTO(ctx context.Context, room *model.RoomModel) (*RoomDTO, error) {
	parts, err := s.rooms.Participants(ctx, room.RoomID)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		names = append(names, p.Username)
	}
	dto := &RoomDTO{
		ID:           room.RoomID,
		Kind:         room.Kind,
		Name:         room.Name,
		Participants: names,
		CreatedAt:    room.CreatedAt,
	}
	last, err := s.msgs.LatestForRoom(ctx, room.RoomID)
	if err != nil && !errors.Is(err, errs.ErrRecordNotFound) {
		return nil, err
	}
	dto.LastMessage = ToMessageDTO(last)
	return dto, nil
}

func activityTS(r *RoomDTO) int64 {
	if r.LastMessage != nil {
		return r.LastMessage.CreatedAt
	}
	return r.CreatedAt
}
