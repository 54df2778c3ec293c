package model

const (
	NotificationTableName = "notification"
	PushEndpointTableName = "push_endpoint"
)

// NotificationModel is one in-app notification row, owned by its
// recipient. Only the read flag ever changes after creation.
type NotificationModel struct {
	NotifyID  string `bson:"notify_id"`
	Recipient string `bson:"recipient"`
	Actor     string `bson:"actor,omitempty"`
	Title     string `bson:"title"`
	Body      string `bson:"body"`
	Link      string `bson:"link,omitempty"` // relative deep-link, e.g. /profile/<actor>
	Read      bool   `bson:"read"`
	CreatedAt int64  `bson:"created_at"` // Unix ms
}

func (*NotificationModel) TableName() string { return NotificationTableName }

// PushEndpointModel maps a device token to its owning user. Tokens are
// globally unique; one user may hold many (multi-device). Re-registration
// of the same token is an idempotent no-op.
type PushEndpointModel struct {
	Token    string `bson:"token"`
	Username string `bson:"username"`
	AddedAt  int64  `bson:"added_at"` // Unix ms
}

func (*PushEndpointModel) TableName() string { return PushEndpointTableName }
