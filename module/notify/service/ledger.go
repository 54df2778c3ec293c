package service

import (
	"context"
	"encoding/json"
	"time"

	"RProject/logger"
	"RProject/module/notify/model"
	"RProject/module/notify/store"
	"RProject/service/dispatcher"
	"RProject/tools/errs"
	"RProject/tools/ids"
)

// BizNotifyEvents is the bus route notification events travel on.
const BizNotifyEvents = "notify_events"

type EventPublisher interface {
	Publish(ctx context.Context, biz string, data []byte) error
}

// AuditSink receives a copy of every created notification for downstream
// consumers (analytics). Best effort, never blocks creation.
type AuditSink interface {
	Emit(topic string, data []byte) error
}

// NotificationDTO is the client-facing notification shape.
type NotificationDTO struct {
	ID        string `json:"id"`
	Recipient string `json:"recipient"`
	Actor     string `json:"actor,omitempty"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Link      string `json:"link,omitempty"`
	Read      bool   `json:"read"`
	CreatedAt int64  `json:"createdAt"`
}

// Ledger is the durable notification record keeper. Creation commits
// before delivery is even attempted; delivery failures never reach the
// producer of the notification.
type Ledger struct {
	notes store.NotificationStore
	bus   EventPublisher

	audit      AuditSink
	auditTopic string

	devices store.PushEndpointStore
}

func NewLedger(notes store.NotificationStore, bus EventPublisher) *Ledger {
	return &Ledger{notes: notes, bus: bus}
}

// WithAudit enables the notification_created audit stream.
func (l *Ledger) WithAudit(sink AuditSink, topic string) *Ledger {
	l.audit = sink
	l.auditTopic = topic
	return l
}

// WithDevices enables device token registration.
func (l *Ledger) WithDevices(devices store.PushEndpointStore) *Ledger {
	l.devices = devices
	return l
}

// RegisterDevice stores a push token for the user. Re-registering the same
// token is a no-op.
func (l *Ledger) RegisterDevice(ctx context.Context, username, token string) error {
	if token == "" {
		return errs.ErrValidation.WrapMsg("token is required")
	}
	if l.devices == nil {
		return errs.ErrDependency.WrapMsg("device registry not configured")
	}
	return l.devices.Register(ctx, &model.PushEndpointModel{
		Token:    token,
		Username: username,
		AddedAt:  time.Now().UnixMilli(),
	})
}

// Create stores the notification, then hands it to the fan-out side.
func (l *Ledger) Create(ctx context.Context, recipient, actor, title, body, link string) (*NotificationDTO, error) {
	if recipient == "" || title == "" {
		return nil, errs.ErrValidation.WrapMsg("recipient and title are required")
	}

	n := &model.NotificationModel{
		NotifyID:  ids.GenerateString(),
		Recipient: recipient,
		Actor:     actor,
		Title:     title,
		Body:      body,
		Link:      link,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := l.notes.Insert(ctx, n); err != nil {
		return nil, err
	}
	dto := toDTO(n)

	payload, _ := json.Marshal(dto)
	ev := &dispatcher.Event{
		ID:        n.NotifyID,
		Kind:      dispatcher.KindNotification,
		Recipient: recipient,
		Payload:   payload,
		Push: &dispatcher.PushContent{
			Title: title,
			Body:  body,
			Link:  link,
		},
	}
	data, err := ev.Encode()
	if err == nil {
		err = l.bus.Publish(ctx, BizNotifyEvents, data)
	}
	if err != nil {
		// row is durable, the client sees it on the next list/count
		logger.Errorf("[ledger] publish notification event recipient=%s: %v", recipient, err)
	}

	if l.audit != nil {
		if err := l.audit.Emit(l.auditTopic, payload); err != nil {
			logger.Warnf("[ledger] audit emit recipient=%s: %v", recipient, err)
		}
	}
	return dto, nil
}

func (l *Ledger) ListForUser(ctx context.Context, username string) ([]*NotificationDTO, error) {
	rows, err := l.notes.ListForUser(ctx, username)
	if err != nil {
		return nil, err
	}
	out := make([]*NotificationDTO, 0, len(rows))
	for _, n := range rows {
		out = append(out, toDTO(n))
	}
	return out, nil
}

func (l *Ledger) UnreadCount(ctx context.Context, username string) (int64, error) {
	return l.notes.CountUnread(ctx, username)
}

// MarkRead flips one row. Only the recipient may do it; repeating the call
// is a no-op, not an error.
func (l *Ledger) MarkRead(ctx context.Context, notifyID, requester string) error {
	n, err := l.notes.Find(ctx, notifyID)
	if err != nil {
		return err
	}
	if n.Recipient != requester {
		return errs.ErrForbidden.WrapMsg("not the recipient", "notifyID", notifyID)
	}
	if n.Read {
		return nil
	}
	return l.notes.MarkRead(ctx, notifyID)
}

// MarkAllRead flips every unread row for the user in one logical update.
func (l *Ledger) MarkAllRead(ctx context.Context, username string) error {
	return l.notes.MarkAllRead(ctx, username)
}

func toDTO(n *model.NotificationModel) *NotificationDTO {
	return &NotificationDTO{
		ID:        n.NotifyID,
		Recipient: n.Recipient,
		Actor:     n.Actor,
		Title:     n.Title,
		Body:      n.Body,
		Link:      n.Link,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}
