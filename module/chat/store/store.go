package store

import (
	"context"

	"RProject/module/chat/model"
)

// RoomStore persists rooms and their participant rows. Implementations
// must report a duplicate direct-room insert as errs.ErrConflict so the
// caller can resolve the race to the surviving row.
type RoomStore interface {
	// InsertRoom writes the room and its initial participant set. The two
	// uniqueness guarantees (direct pair key, (room,user) participation)
	// are enforced by the storage layer, not by a prior read.
	InsertRoom(ctx context.Context, room *model.RoomModel, parts []*model.ParticipantModel) error
	FindDirectByPairKey(ctx context.Context, pairKey string) (*model.RoomModel, error)
	FindRoom(ctx context.Context, roomID string) (*model.RoomModel, error)
	RoomsForUser(ctx context.Context, username string) ([]*model.RoomModel, error)
	Participants(ctx context.Context, roomID string) ([]*model.ParticipantModel, error)
	FindParticipant(ctx context.Context, roomID, username string) (*model.ParticipantModel, error)
	SetLastRead(ctx context.Context, roomID, username string, ts int64) error
}

// MessageStore is the append-only ordered log per room. Update only ever
// touches body/edited/deleted; id, room, sender and created_at are frozen
// at insert.
type MessageStore interface {
	Insert(ctx context.Context, msg *model.MsgModel) error
	Find(ctx context.Context, msgID string) (*model.MsgModel, error)
	// PageDesc returns up to limit messages strictly older than the
	// (beforeTS, beforeID) position, newest first. beforeTS <= 0 starts
	// from the top.
	PageDesc(ctx context.Context, roomID string, beforeTS int64, beforeID string, limit int) ([]*model.MsgModel, error)
	LatestForRoom(ctx context.Context, roomID string) (*model.MsgModel, error)
	Update(ctx context.Context, msg *model.MsgModel) error
}
