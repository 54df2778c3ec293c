package model

const MsgTableName = "chat_message"

// TombstoneBody replaces the content of a soft-deleted message. The row
// itself is retained so paging cursors and ordering stay stable.
const TombstoneBody = "[message deleted]"

// MsgModel is a single chat message. Sender and room are immutable once
// written; ordering is (created_at, msg_id) with the snowflake id breaking
// same-millisecond ties.
type MsgModel struct {
	MsgID     string `bson:"msg_id"`
	RoomID    string `bson:"room_id"`
	Sender    string `bson:"sender"`
	Body      string `bson:"body"`
	ReelID    string `bson:"reel_id,omitempty"` // shared-content reference, opaque here
	CreatedAt int64  `bson:"created_at"`        // Unix ms
	Edited    bool   `bson:"edited"`
	Deleted   bool   `bson:"deleted"`
}

func (*MsgModel) TableName() string { return MsgTableName }

// IsTombstone reports whether the message was soft-deleted.
func (m *MsgModel) IsTombstone() bool { return m.Deleted }
