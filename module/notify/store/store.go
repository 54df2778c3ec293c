package store

import (
	"context"

	"RProject/module/notify/model"
)

// NotificationStore persists the notification ledger. Rows are created
// once and only their read flag ever flips.
type NotificationStore interface {
	Insert(ctx context.Context, n *model.NotificationModel) error
	Find(ctx context.Context, notifyID string) (*model.NotificationModel, error)
	ListForUser(ctx context.Context, username string) ([]*model.NotificationModel, error)
	CountUnread(ctx context.Context, username string) (int64, error)
	MarkRead(ctx context.Context, notifyID string) error
	MarkAllRead(ctx context.Context, username string) error
}

// PushEndpointStore holds device tokens. Register is idempotent per token;
// tokens are never updated, only removed when provably dead.
type PushEndpointStore interface {
	Register(ctx context.Context, ep *model.PushEndpointModel) error
	TokensForUser(ctx context.Context, username string) ([]string, error)
}
