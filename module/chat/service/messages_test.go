package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"RProject/module/chat/model"
	"RProject/service/dispatcher"
	"RProject/tools/errs"
)

func newTestMessageService(t *testing.T, usernames ...string) (*MessageService, *RoomService, *memBus, *memMsgStore) {
	t.Helper()
	roomStore := newMemRoomStore()
	msgStore := newMemMsgStore()
	rooms := NewRoomService(roomStore, msgStore, newMemDirectory(usernames...))
	bus := &memBus{}
	return NewMessageService(rooms, msgStore, bus), rooms, bus, msgStore
}

func TestAppendPublishesAfterInsert(t *testing.T) {
	msgs, rooms, bus, _ := newTestMessageService(t, "alice", "bob")
	ctx := context.Background()
	room, err := rooms.GetOrCreateDirect(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("room: %v", err)
	}

	dto, err := msgs.Append(ctx, room.ID, "alice", "hello", "")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if dto.ID == "" || dto.CreatedAt == 0 {
		t.Fatalf("incomplete dto: %+v", dto)
	}
	if bus.count() != 1 {
		t.Fatalf("events published = %d", bus.count())
	}
	ev, err := dispatcher.DecodeEvent(bus.events[0])
	if err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.Kind != dispatcher.KindNewMessage || ev.RoomID != room.ID {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Push == nil || ev.Push.Title != "alice" || ev.Push.Body != "hello" {
		t.Fatalf("push content = %+v", ev.Push)
	}
}

func TestAppendReelOnlyUsesFallbackPushBody(t *testing.T) {
	msgs, rooms, bus, _ := newTestMessageService(t, "alice", "bob")
	ctx := context.Background()
	room, _ := rooms.GetOrCreateDirect(ctx, "alice", "bob")

	if _, err := msgs.Append(ctx, room.ID, "alice", "", "reel_42"); err != nil {
		t.Fatalf("append reel: %v", err)
	}
	ev, _ := dispatcher.DecodeEvent(bus.events[0])
	if ev.Push.Body != "Shared a reel" {
		t.Fatalf("push body = %q", ev.Push.Body)
	}
}

func TestAppendGuards(t *testing.T) {
	msgs, rooms, _, _ := newTestMessageService(t, "alice", "bob", "mallory")
	ctx := context.Background()
	room, _ := rooms.GetOrCreateDirect(ctx, "alice", "bob")

	if _, err := msgs.Append(ctx, room.ID, "mallory", "hi", ""); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if _, err := msgs.Append(ctx, room.ID, "alice", "   ", ""); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
	if _, err := msgs.Append(ctx, "no-room", "alice", "hi", ""); !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPageWalksWithoutDuplicates(t *testing.T) {
	msgs, rooms, _, msgStore := newTestMessageService(t, "alice", "bob")
	ctx := context.Background()
	room, _ := rooms.GetOrCreateDirect(ctx, "alice", "bob")

	const total = 25
	for i := 0; i < total; i++ {
		seedMessage(t, msgStore, room.ID, "alice", fmt.Sprintf("m%d", i), int64(1000+i))
	}

	seen := map[string]struct{}{}
	var prevTS int64
	cursor := ""
	pages := 0
	for {
		page, next, err := msgs.Page(ctx, room.ID, "bob", cursor, 10)
		if err != nil {
			t.Fatalf("page %d: %v", pages, err)
		}
		for _, m := range page {
			if _, dup := seen[m.ID]; dup {
				t.Fatalf("message %s returned twice", m.ID)
			}
			seen[m.ID] = struct{}{}
			if prevTS != 0 && m.CreatedAt > prevTS {
				t.Fatalf("ordering broken: %d after %d", m.CreatedAt, prevTS)
			}
			prevTS = m.CreatedAt
		}
		pages++
		if next == "" {
			break
		}
		cursor = next
	}
	if len(seen) != total {
		t.Fatalf("saw %d of %d messages in %d pages", len(seen), total, pages)
	}
}

func TestPageFirstPageAdvancesLastRead(t *testing.T) {
	msgs, rooms, _, msgStore := newTestMessageService(t, "alice", "bob")
	ctx := context.Background()
	room, _ := rooms.GetOrCreateDirect(ctx, "alice", "bob")
	seedMessage(t, msgStore, room.ID, "alice", "hello", 5000)

	if _, _, err := msgs.Page(ctx, room.ID, "bob", "", 10); err != nil {
		t.Fatalf("page: %v", err)
	}
	p, err := rooms.rooms.FindParticipant(ctx, room.ID, "bob")
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	if p.LastRead != 5000 {
		t.Fatalf("last read = %d", p.LastRead)
	}
}

func TestEditOnlyBySender(t *testing.T) {
	msgs, rooms, bus, _ := newTestMessageService(t, "alice", "bob")
	ctx := context.Background()
	room, _ := rooms.GetOrCreateDirect(ctx, "alice", "bob")
	orig, err := msgs.Append(ctx, room.ID, "alice", "first", "")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	if _, err := msgs.Edit(ctx, orig.ID, "hacked", "bob"); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	dto, err := msgs.Edit(ctx, orig.ID, "second", "alice")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if dto.Body != "second" || !dto.Edited {
		t.Fatalf("edited dto = %+v", dto)
	}
	ev, _ := dispatcher.DecodeEvent(bus.events[bus.count()-1])
	if ev.Kind != dispatcher.KindEditMessage {
		t.Fatalf("event kind = %s", ev.Kind)
	}
	if ev.Push != nil {
		t.Fatalf("edit must not carry push content")
	}
}

func TestSoftDeleteTombstones(t *testing.T) {
	msgs, rooms, bus, _ := newTestMessageService(t, "alice", "bob")
	ctx := context.Background()
	room, _ := rooms.GetOrCreateDirect(ctx, "alice", "bob")
	orig, err := msgs.Append(ctx, room.ID, "alice", "oops", "reel_7")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := msgs.Edit(ctx, orig.ID, "oops edited", "alice"); err != nil {
		t.Fatalf("edit: %v", err)
	}

	if _, err := msgs.SoftDelete(ctx, orig.ID, "bob"); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	dto, err := msgs.SoftDelete(ctx, orig.ID, "alice")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if dto.Body != model.TombstoneBody || dto.ReelID != "" || dto.Edited || !dto.Deleted {
		t.Fatalf("tombstone dto = %+v", dto)
	}
	ev, _ := dispatcher.DecodeEvent(bus.events[bus.count()-1])
	if ev.Kind != dispatcher.KindDeleteMessage {
		t.Fatalf("event kind = %s", ev.Kind)
	}

	// edits after deletion are rejected
	if _, err := msgs.Edit(ctx, orig.ID, "resurrect", "alice"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation on deleted message, got %v", err)
	}
}
