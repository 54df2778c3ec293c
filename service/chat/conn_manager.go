package chat

import (
	"sync"
	"time"

	"RProject/logger"

	"github.com/gorilla/websocket"
)

// ===== configuration =====

type ManagerConf struct {
	SessionTTL  time.Duration    // idle sessions past this are swept
	SweepEvery  time.Duration    // sweeper period
	MaxPerUser  int              // max sessions per user (<=0 unlimited)
	EvictOldest bool             // on overflow, drop the oldest session instead of rejecting
	Clock       func() time.Time // injectable clock for tests; nil => time.Now
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 30 * time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 2 * time.Hour
	}
}

// ===== session record =====

type session struct {
	client    *Client
	createdAt time.Time
	heartbeat time.Time
	expireAt  time.Time
}

// ConnManager is the realtime session registry: it addresses open
// sessions by user identity and knows nothing about rooms. It is the
// gateway-local half of presence; the Redis side carries the cross-node
// view.
type ConnManager struct {
	mu     sync.RWMutex
	byConn map[string]*session            // connID -> session
	byUser map[string]map[string]*session // username -> (connID -> session)

	conf     ManagerConf
	stopOnce sync.Once
	stopCh   chan struct{}
	gwID     string
}

func NewConnManager(conf ManagerConf, gwID string) *ConnManager {
	conf.norm()
	m := &ConnManager{
		byConn: make(map[string]*session),
		byUser: make(map[string]map[string]*session),
		conf:   conf,
		gwID:   gwID,
		stopCh: make(chan struct{}),
	}
	go m.sweeper()
	return m
}

func (m *ConnManager) GwID() string { return m.gwID }

func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.byConn {
		closeQuiet(s.client.WS)
	}
	m.byConn = map[string]*session{}
	m.byUser = map[string]map[string]*session{}
}

// Add registers an authenticated session. With MaxPerUser set, either the
// oldest session is evicted or the add is refused.
func (m *ConnManager) Add(c *Client) bool {
	if c == nil || c.Username == "" || c.ConnID == "" {
		return false
	}
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conf.MaxPerUser > 0 {
		if mm := m.byUser[c.Username]; len(mm) >= m.conf.MaxPerUser {
			if !m.conf.EvictOldest {
				return false
			}
			m.evictOldestLocked(c.Username)
		}
	}

	s := &session{
		client:    c,
		createdAt: now,
		heartbeat: now,
		expireAt:  now.Add(m.conf.SessionTTL),
	}
	m.byConn[c.ConnID] = s
	if m.byUser[c.Username] == nil {
		m.byUser[c.Username] = make(map[string]*session)
	}
	m.byUser[c.Username][c.ConnID] = s
	return true
}

// Remove drops a single session.
func (m *ConnManager) Remove(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(connID)
}

func (m *ConnManager) removeLocked(connID string) {
	s, ok := m.byConn[connID]
	if !ok {
		return
	}
	delete(m.byConn, connID)
	if mm := m.byUser[s.client.Username]; mm != nil {
		delete(mm, connID)
		if len(mm) == 0 {
			delete(m.byUser, s.client.Username)
		}
	}
	closeQuiet(s.client.WS)
}

// Heartbeat refreshes the TTL for one session.
func (m *ConnManager) Heartbeat(connID string) {
	now := m.conf.Clock()
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.byConn[connID]; ok {
		s.heartbeat = now
		s.expireAt = now.Add(m.conf.SessionTTL)
	}
}

// SessionCount reports how many open sessions a user holds here.
func (m *ConnManager) SessionCount(username string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byUser[username])
}

// SendToUser enqueues the payload on every open session of the user.
// Fire and forget: a full queue means a slow client, the frame is dropped
// for that session and the client re-syncs on reconnect.
func (m *ConnManager) SendToUser(username string, payload []byte) int {
	m.mu.RLock()
	sessions := make([]*session, 0, 2)
	for _, s := range m.byUser[username] {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	delivered := 0
	for _, s := range sessions {
		select {
		case s.client.Send <- payload:
			delivered++
		default:
			logger.Warnf("[connmgr] send queue full, dropping frame user=%s conn=%s", username, s.client.ConnID)
		}
	}
	return delivered
}

// ===== sweeper =====

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case now := <-t.C:
			m.sweep(now)
		}
	}
}

func (m *ConnManager) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for connID, s := range m.byConn {
		if now.After(s.expireAt) {
			logger.Infof("[connmgr] sweeping expired session user=%s conn=%s", s.client.Username, connID)
			m.removeLocked(connID)
		}
	}
}

func (m *ConnManager) evictOldestLocked(username string) {
	var oldest *session
	for _, s := range m.byUser[username] {
		if oldest == nil || s.createdAt.Before(oldest.createdAt) {
			oldest = s
		}
	}
	if oldest != nil {
		m.removeLocked(oldest.client.ConnID)
	}
}

func closeQuiet(ws *websocket.Conn) {
	if ws != nil {
		_ = ws.Close()
	}
}
