package service

import (
	"context"
	"strings"
	"time"

	"RProject/logger"
	"RProject/module/chat/model"
	"RProject/module/chat/store"
	"RProject/service/dispatcher"
	"RProject/tools/errs"
	"RProject/tools/ids"
)

// BizChatEvents is the bus route chat mutations are published on after
// they commit.
const BizChatEvents = "chat_events"

const defaultPageSize = 50
const maxPageSize = 200

// EventPublisher hands a committed event to the fan-out side. Publish
// failures stay on this side of the boundary: the write already succeeded.
type EventPublisher interface {
	Publish(ctx context.Context, biz string, data []byte) error
}

// MessageService is the message store accessor. Every operation takes the
// requester explicitly and runs the participation guard first.
type MessageService struct {
	rooms *RoomService
	msgs  store.MessageStore
	bus   EventPublisher
}

func NewMessageService(rooms *RoomService, msgs store.MessageStore, bus EventPublisher) *MessageService {
	return &MessageService{rooms: rooms, msgs: msgs, bus: bus}
}

// Append writes one message and then enqueues its fan-out. The insert is
// the commit point; whatever happens on the bus afterwards is invisible to
// the sender.
func (s *MessageService) Append(ctx context.Context, roomID, sender, body, reelID string) (*MessageDTO, error) {
	if err := s.rooms.AssertMember(ctx, roomID, sender); err != nil {
		return nil, err
	}
	if strings.TrimSpace(body) == "" && reelID == "" {
		return nil, errs.ErrValidation.WrapMsg("empty message")
	}

	msg := &model.MsgModel{
		MsgID:     ids.GenerateString(),
		RoomID:    roomID,
		Sender:    sender,
		Body:      body,
		ReelID:    reelID,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.msgs.Insert(ctx, msg); err != nil {
		return nil, err
	}

	dto := ToMessageDTO(msg)
	s.publish(ctx, &dispatcher.Event{
		ID:      msg.MsgID,
		Kind:    dispatcher.KindNewMessage,
		RoomID:  roomID,
		Payload: mustJSON(dto),
		Push: &dispatcher.PushContent{
			Title: sender,
			Body:  pushBody(msg),
			Link:  "/chat/" + roomID,
		},
	})
	return dto, nil
}

// Page returns messages newest first from the given cursor position.
// An empty cursor starts at the top; the returned cursor is empty when the
// room is exhausted.
func (s *MessageService) Page(ctx context.Context, roomID, requester, cursor string, pageSize int) ([]*MessageDTO, string, error) {
	if err := s.rooms.AssertMember(ctx, roomID, requester); err != nil {
		return nil, "", err
	}
	c, err := DecodeCursor(cursor)
	if err != nil {
		return nil, "", err
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	rows, err := s.msgs.PageDesc(ctx, roomID, c.TS, c.ID, pageSize)
	if err != nil {
		return nil, "", err
	}
	out := make([]*MessageDTO, 0, len(rows))
	for _, m := range rows {
		out = append(out, ToMessageDTO(m))
	}

	var next string
	if len(rows) == pageSize {
		last := rows[len(rows)-1]
		next = Cursor{TS: last.CreatedAt, ID: last.MsgID}.Encode()
	}

	// first page doubles as a read receipt
	if cursor == "" && len(rows) > 0 {
		if err := s.rooms.advanceLastRead(ctx, roomID, requester, rows[0].CreatedAt); err != nil {
			logger.Warnf("[messages] advance last-read failed room=%s user=%s: %v", roomID, requester, err)
		}
	}
	return out, next, nil
}

// Edit replaces the body of the editor's own message and marks it edited.
func (s *MessageService) Edit(ctx context.Context, msgID, newBody, editor string) (*MessageDTO, error) {
	msg, err := s.msgs.Find(ctx, msgID)
	if err != nil {
		return nil, err
	}
	if msg.Sender != editor {
		return nil, errs.ErrForbidden.WrapMsg("only the sender can edit", "msgID", msgID)
	}
	if msg.Deleted {
		return nil, errs.ErrValidation.WrapMsg("message was deleted", "msgID", msgID)
	}
	if strings.TrimSpace(newBody) == "" {
		return nil, errs.ErrValidation.WrapMsg("empty message")
	}

	msg.Body = newBody
	msg.Edited = true
	if err := s.msgs.Update(ctx, msg); err != nil {
		return nil, err
	}

	dto := ToMessageDTO(msg)
	s.publish(ctx, &dispatcher.Event{
		ID:      msg.MsgID,
		Kind:    dispatcher.KindEditMessage,
		RoomID:  msg.RoomID,
		Payload: mustJSON(dto),
	})
	return dto, nil
}

// SoftDelete tombstones the requester's own message: body replaced, shared
// content cleared, the row kept for ordering continuity.
func (s *MessageService) SoftDelete(ctx context.Context, msgID, requester string) (*MessageDTO, error) {
	msg, err := s.msgs.Find(ctx, msgID)
	if err != nil {
		return nil, err
	}
	if msg.Sender != requester {
		return nil, errs.ErrForbidden.WrapMsg("only the sender can delete", "msgID", msgID)
	}

	msg.Body = model.TombstoneBody
	msg.ReelID = ""
	msg.Edited = false
	msg.Deleted = true
	if err := s.msgs.Update(ctx, msg); err != nil {
		return nil, err
	}

	dto := ToMessageDTO(msg)
	s.publish(ctx, &dispatcher.Event{
		ID:      msg.MsgID,
		Kind:    dispatcher.KindDeleteMessage,
		RoomID:  msg.RoomID,
		Payload: mustJSON(dto),
	})
	return dto, nil
}

func (s *MessageService) publish(ctx context.Context, ev *dispatcher.Event) {
	data, err := ev.Encode()
	if err != nil {
		logger.Errorf("[messages] encode event kind=%s room=%s: %v", ev.Kind, ev.RoomID, err)
		return
	}
	if err := s.bus.Publish(ctx, BizChatEvents, data); err != nil {
		// the write is already durable; clients catch up via Page
		logger.Errorf("[messages] publish event kind=%s room=%s: %v", ev.Kind, ev.RoomID, err)
	}
}

func pushBody(m *model.MsgModel) string {
	if m.Body != "" {
		return m.Body
	}
	return "Shared a reel"
}
