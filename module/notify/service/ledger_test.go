package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"RProject/module/notify/model"
	"RProject/service/dispatcher"
	"RProject/tools/errs"
)

type memNoteStore struct {
	mu   sync.Mutex
	byID map[string]*model.NotificationModel
	seq  []string // insertion order
}

func newMemNoteStore() *memNoteStore {
	return &memNoteStore{byID: map[string]*model.NotificationModel{}}
}

func (s *memNoteStore) Insert(_ context.Context, n *model.NotificationModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.byID[n.NotifyID] = &cp
	s.seq = append(s.seq, n.NotifyID)
	return nil
}

func (s *memNoteStore) Find(_ context.Context, notifyID string) (*model.NotificationModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byID[notifyID]; ok {
		cp := *n
		return &cp, nil
	}
	return nil, errs.ErrRecordNotFound.Wrap()
}

func (s *memNoteStore) ListForUser(_ context.Context, username string) ([]*model.NotificationModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.NotificationModel
	for i := len(s.seq) - 1; i >= 0; i-- {
		if n := s.byID[s.seq[i]]; n.Recipient == username {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memNoteStore) CountUnread(_ context.Context, username string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, row := range s.byID {
		if row.Recipient == username && !row.Read {
			n++
		}
	}
	return n, nil
}

func (s *memNoteStore) MarkRead(_ context.Context, notifyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.byID[notifyID]; ok {
		n.Read = true
	}
	return nil
}

func (s *memNoteStore) MarkAllRead(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.byID {
		if n.Recipient == username {
			n.Read = true
		}
	}
	return nil
}

type memDeviceStore struct {
	mu     sync.Mutex
	byUser map[string][]string
	owner  map[string]string // token -> username
}

func newMemDeviceStore() *memDeviceStore {
	return &memDeviceStore{byUser: map[string][]string{}, owner: map[string]string{}}
}

func (s *memDeviceStore) Register(_ context.Context, ep *model.PushEndpointModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.owner[ep.Token]; dup {
		return nil
	}
	s.owner[ep.Token] = ep.Username
	s.byUser[ep.Username] = append(s.byUser[ep.Username], ep.Token)
	return nil
}

func (s *memDeviceStore) TokensForUser(_ context.Context, username string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.byUser[username]...), nil
}

type recordingBus struct {
	mu     sync.Mutex
	events [][]byte
	fail   bool
}

func (b *recordingBus) Publish(_ context.Context, _ string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return errs.New("bus unavailable")
	}
	b.events = append(b.events, data)
	return nil
}

type recordingAudit struct {
	mu     sync.Mutex
	topics []string
}

func (a *recordingAudit) Emit(topic string, _ []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.topics = append(a.topics, topic)
	return nil
}

func TestCreatePublishesNotificationEvent(t *testing.T) {
	bus := &recordingBus{}
	audit := &recordingAudit{}
	ledger := NewLedger(newMemNoteStore(), bus).WithAudit(audit, "notification_created")
	ctx := context.Background()

	dto, err := ledger.Create(ctx, "bob", "alice", "New follower", "alice started following you", "/profile/alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if dto.ID == "" || dto.Read {
		t.Fatalf("dto = %+v", dto)
	}

	if len(bus.events) != 1 {
		t.Fatalf("events = %d", len(bus.events))
	}
	ev, err := dispatcher.DecodeEvent(bus.events[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Kind != dispatcher.KindNotification || ev.Recipient != "bob" || ev.RoomID != "" {
		t.Fatalf("event = %+v", ev)
	}
	if ev.Push == nil || ev.Push.Link != "/profile/alice" {
		t.Fatalf("push = %+v", ev.Push)
	}
	if len(audit.topics) != 1 || audit.topics[0] != "notification_created" {
		t.Fatalf("audit topics = %v", audit.topics)
	}
}

func TestCreateSurvivesBusOutage(t *testing.T) {
	bus := &recordingBus{fail: true}
	ledger := NewLedger(newMemNoteStore(), bus)
	ctx := context.Background()

	dto, err := ledger.Create(ctx, "bob", "alice", "t", "b", "")
	if err != nil {
		t.Fatalf("create must not surface bus errors: %v", err)
	}
	// the row is durable and visible on the read path
	n, err := ledger.UnreadCount(ctx, "bob")
	if err != nil || n != 1 {
		t.Fatalf("unread = %d err = %v", n, err)
	}
	rows, err := ledger.ListForUser(ctx, "bob")
	if err != nil || len(rows) != 1 || rows[0].ID != dto.ID {
		t.Fatalf("rows = %+v err = %v", rows, err)
	}
}

func TestCreateValidation(t *testing.T) {
	ledger := NewLedger(newMemNoteStore(), &recordingBus{})
	for _, tc := range []struct{ recipient, title string }{
		{"", "t"},
		{"bob", ""},
	} {
		if _, err := ledger.Create(context.Background(), tc.recipient, "a", tc.title, "b", ""); !errors.Is(err, errs.ErrValidation) {
			t.Errorf("recipient=%q title=%q: expected validation, got %v", tc.recipient, tc.title, err)
		}
	}
}

func TestMarkReadOnlyRecipient(t *testing.T) {
	ledger := NewLedger(newMemNoteStore(), &recordingBus{})
	ctx := context.Background()
	dto, _ := ledger.Create(ctx, "bob", "alice", "t", "b", "")

	if err := ledger.MarkRead(ctx, dto.ID, "mallory"); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if err := ledger.MarkRead(ctx, dto.ID, "bob"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	// repeating is a no-op
	if err := ledger.MarkRead(ctx, dto.ID, "bob"); err != nil {
		t.Fatalf("second mark read: %v", err)
	}
	if n, _ := ledger.UnreadCount(ctx, "bob"); n != 0 {
		t.Fatalf("unread = %d", n)
	}
	if err := ledger.MarkRead(ctx, "missing", "bob"); !errors.Is(err, errs.ErrRecordNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	ledger := NewLedger(newMemNoteStore(), &recordingBus{})
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := ledger.Create(ctx, "bob", "alice", "t", "b", ""); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := ledger.Create(ctx, "carol", "alice", "t", "b", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := ledger.MarkAllRead(ctx, "bob"); err != nil {
		t.Fatalf("mark all: %v", err)
	}
	if n, _ := ledger.UnreadCount(ctx, "bob"); n != 0 {
		t.Fatalf("bob unread = %d", n)
	}
	if n, _ := ledger.UnreadCount(ctx, "carol"); n != 1 {
		t.Fatalf("carol unread = %d", n)
	}
}

func TestRegisterDeviceIdempotent(t *testing.T) {
	devices := newMemDeviceStore()
	ledger := NewLedger(newMemNoteStore(), &recordingBus{}).WithDevices(devices)
	ctx := context.Background()

	if err := ledger.RegisterDevice(ctx, "bob", "tok_1"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := ledger.RegisterDevice(ctx, "bob", "tok_1"); err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if err := ledger.RegisterDevice(ctx, "bob", ""); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation, got %v", err)
	}
	tokens, _ := devices.TokensForUser(ctx, "bob")
	if len(tokens) != 1 {
		t.Fatalf("tokens = %v", tokens)
	}
}

func TestHandleFollowEvent(t *testing.T) {
	bus := &recordingBus{}
	ledger := NewLedger(newMemNoteStore(), bus)
	ctx := context.Background()

	if err := ledger.HandleFollowEvent(ctx, []byte(`{"follower":"alice","followee":"bob"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	rows, _ := ledger.ListForUser(ctx, "bob")
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	if rows[0].Actor != "alice" || rows[0].Link != "/profile/alice" {
		t.Fatalf("row = %+v", rows[0])
	}

	for _, bad := range []string{`not json`, `{}`, `{"follower":"x","followee":"x"}`} {
		if err := ledger.HandleFollowEvent(ctx, []byte(bad)); !errors.Is(err, errs.ErrValidation) {
			t.Errorf("%s: expected validation, got %v", bad, err)
		}
	}
}
