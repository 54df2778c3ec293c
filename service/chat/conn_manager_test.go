package chat

import (
	"fmt"
	"testing"
	"time"
)

func testClient(connID, username string) *Client {
	// nil *websocket.Conn is fine for registry tests, nothing is written
	return NewClient(connID, username, nil, 4)
}

func newTestManager(conf ManagerConf) *ConnManager {
	if conf.SweepEvery == 0 {
		conf.SweepEvery = time.Hour // keep the sweeper out of the way
	}
	return NewConnManager(conf, "gw_test")
}

func TestAddAndSendMultiSession(t *testing.T) {
	m := newTestManager(ManagerConf{})
	defer m.Close()

	phone := testClient("c1", "alice")
	laptop := testClient("c2", "alice")
	if !m.Add(phone) || !m.Add(laptop) {
		t.Fatal("add failed")
	}
	if n := m.SessionCount("alice"); n != 2 {
		t.Fatalf("sessions = %d", n)
	}

	if n := m.SendToUser("alice", []byte("hi")); n != 2 {
		t.Fatalf("delivered = %d", n)
	}
	for _, c := range []*Client{phone, laptop} {
		select {
		case got := <-c.Send:
			if string(got) != "hi" {
				t.Fatalf("payload = %q", got)
			}
		default:
			t.Fatalf("conn %s got nothing", c.ConnID)
		}
	}

	if n := m.SendToUser("nobody", []byte("hi")); n != 0 {
		t.Fatalf("delivered to absent user = %d", n)
	}
}

func TestAddRejectsAnonymous(t *testing.T) {
	m := newTestManager(ManagerConf{})
	defer m.Close()
	if m.Add(nil) || m.Add(testClient("", "alice")) || m.Add(testClient("c1", "")) {
		t.Fatal("incomplete client accepted")
	}
}

func TestRemoveDropsSession(t *testing.T) {
	m := newTestManager(ManagerConf{})
	defer m.Close()
	m.Add(testClient("c1", "alice"))
	m.Remove("c1")
	if n := m.SessionCount("alice"); n != 0 {
		t.Fatalf("sessions = %d", n)
	}
	m.Remove("c1") // idempotent
}

func TestMaxPerUserEvictsOldest(t *testing.T) {
	now := time.Now()
	clock := func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	m := newTestManager(ManagerConf{MaxPerUser: 2, EvictOldest: true, Clock: clock})
	defer m.Close()

	first := testClient("c1", "alice")
	m.Add(first)
	m.Add(testClient("c2", "alice"))
	if !m.Add(testClient("c3", "alice")) {
		t.Fatal("add with eviction refused")
	}
	if n := m.SessionCount("alice"); n != 2 {
		t.Fatalf("sessions = %d", n)
	}
	if n := m.SendToUser("alice", []byte("x")); n != 2 {
		t.Fatalf("delivered = %d", n)
	}
	select {
	case <-first.Send:
		t.Fatal("evicted session still receives")
	default:
	}
}

func TestMaxPerUserRefusesWithoutEviction(t *testing.T) {
	m := newTestManager(ManagerConf{MaxPerUser: 1})
	defer m.Close()
	m.Add(testClient("c1", "alice"))
	if m.Add(testClient("c2", "alice")) {
		t.Fatal("overflow session accepted")
	}
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	now := time.Now()
	m := newTestManager(ManagerConf{SessionTTL: time.Minute, Clock: func() time.Time { return now }})
	defer m.Close()

	m.Add(testClient("c1", "alice"))
	m.Add(testClient("c2", "bob"))
	m.Heartbeat("c2") // will be refreshed again below

	m.sweep(now.Add(30 * time.Second))
	if m.SessionCount("alice") != 1 || m.SessionCount("bob") != 1 {
		t.Fatal("fresh sessions swept")
	}

	now = now.Add(50 * time.Second)
	m.Heartbeat("c2")
	m.sweep(now.Add(30 * time.Second))
	if m.SessionCount("alice") != 0 {
		t.Fatal("idle session survived the sweep")
	}
	if m.SessionCount("bob") != 1 {
		t.Fatal("heartbeating session swept")
	}
}

func TestSendDropsOnFullQueue(t *testing.T) {
	m := newTestManager(ManagerConf{})
	defer m.Close()
	slow := NewClient("c1", "alice", nil, 1)
	m.Add(slow)

	if n := m.SendToUser("alice", []byte("first")); n != 1 {
		t.Fatalf("delivered = %d", n)
	}
	// queue is full now, the next frame is dropped instead of blocking
	done := make(chan int, 1)
	go func() { done <- m.SendToUser("alice", []byte("second")) }()
	select {
	case n := <-done:
		if n != 0 {
			t.Fatalf("delivered = %d", n)
		}
	case <-time.After(time.Second):
		t.Fatal("SendToUser blocked on a slow client")
	}
}

func TestConcurrentAddRemove(t *testing.T) {
	m := newTestManager(ManagerConf{})
	defer m.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			id := fmt.Sprintf("c%d", i)
			m.Add(testClient(id, "alice"))
			m.SendToUser("alice", []byte("x"))
			m.Remove(id)
		}
	}()
	for i := 0; i < 200; i++ {
		m.SessionCount("alice")
		m.SendToUser("alice", []byte("y"))
	}
	<-done
	if n := m.SessionCount("alice"); n != 0 {
		t.Fatalf("sessions left = %d", n)
	}
}
