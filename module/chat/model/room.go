package model

import "strings"

const (
	RoomTableName        = "chat_room"
	ParticipantTableName = "chat_participant"
)

// Room kinds.
const (
	RoomKindDirect = "direct"
	RoomKindGroup  = "group"
)

// Participant roles.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// RoomModel is one conversation container. Direct rooms carry a PairKey
// built from the sorted usernames of their two participants; a unique
// partial index on that field is what closes the concurrent-create race.
type RoomModel struct {
	RoomID    string `bson:"room_id"`
	Kind      string `bson:"kind"`
	Name      string `bson:"name,omitempty"`
	PairKey   string `bson:"pair_key,omitempty"` // direct rooms only
	CreatedAt int64  `bson:"created_at"`         // Unix ms
}

func (*RoomModel) TableName() string { return RoomTableName }

// ParticipantModel links a user to a room. Unique per (room_id, username).
// Never mutated after creation except for the last-read marker.
type ParticipantModel struct {
	RoomID   string `bson:"room_id"`
	Username string `bson:"username"`
	Role     string `bson:"role"`
	JoinedAt int64  `bson:"joined_at"`           // Unix ms
	LastRead int64  `bson:"last_read,omitempty"` // Unix ms of newest seen message
}

func (*ParticipantModel) TableName() string { return ParticipantTableName }

// DirectPairKey normalizes an unordered user pair into the canonical key
// stored on direct rooms. Order of arguments does not matter.
func DirectPairKey(userA, userB string) string {
	if strings.Compare(userA, userB) > 0 {
		userA, userB = userB, userA
	}
	return userA + ":" + userB
}
