package dispatcher

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"
	"time"

	"RProject/logger"
	"RProject/service/metrics"
)

// ParticipantSource resolves the recipient set for a room event. The
// sender is part of the set: its echo confirms persistence.
type ParticipantSource interface {
	ParticipantUsernames(ctx context.Context, roomID string) ([]string, error)
}

// SessionRegistry addresses open realtime sessions by user identity and
// reports how many sessions the payload was enqueued on.
type SessionRegistry interface {
	SendToUser(username string, payload []byte) int
}

// PresenceChecker is the cross-gateway live-session view and the push
// duty arbiter. Every gateway consumes every event, so before pushing to
// an absent recipient a dispatcher must win the claim for that
// event/user pair; exactly one gateway does.
type PresenceChecker interface {
	HasSessions(ctx context.Context, user string) (bool, error)
	ClaimPush(ctx context.Context, eventID, user string) (bool, error)
}

// TokenSource lists a user's registered push endpoints.
type TokenSource interface {
	TokensForUser(ctx context.Context, username string) ([]string, error)
}

// Pusher submits one best-effort push to the external provider.
type Pusher interface {
	Send(ctx context.Context, token, title, body, link string) error
}

type Conf struct {
	Workers     int
	QueueSize   int
	PushTimeout time.Duration
}

func (c *Conf) norm() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = 3 * time.Second
	}
}

// Dispatcher fans one committed event out to every recipient's open
// sessions, falling back to push endpoints for absent users. Events are
// sharded onto workers by room (or recipient), so dispatch order within a
// room equals append order; nothing is guaranteed across rooms or across
// different recipients.
//
// Every failure in here is terminal for that delivery attempt only: the
// triggering write has already committed and is never rolled back.
type Dispatcher struct {
	conf     Conf
	parts    ParticipantSource
	sessions SessionRegistry
	presence PresenceChecker
	tokens   TokenSource
	pusher   Pusher

	queues []chan *Event
	wg     sync.WaitGroup

	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

func New(conf Conf, parts ParticipantSource, sessions SessionRegistry,
	presence PresenceChecker, tokens TokenSource, pusher Pusher) *Dispatcher {
	conf.norm()
	d := &Dispatcher{
		conf:     conf,
		parts:    parts,
		sessions: sessions,
		presence: presence,
		tokens:   tokens,
		pusher:   pusher,
	}
	d.queues = make([]chan *Event, conf.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan *Event, conf.QueueSize)
		d.wg.Add(1)
		go d.worker(d.queues[i])
	}
	return d
}

// Enqueue hands an event to its order-preserving worker queue. Blocks
// when the queue is full, which backpressures the bus consumer instead of
// reordering or dropping. After Close it is a no-op: late bus callbacks
// must never hit a closed queue.
func (d *Dispatcher) Enqueue(ev *Event) {
	if ev == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	d.queues[d.shard(ev.orderKey())] <- ev
}

// Close stops intake, then drains the workers. The write lock waits out
// any Enqueue already past the closed check, so the queues only close
// once no sender can touch them.
func (d *Dispatcher) Close() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		for _, q := range d.queues {
			close(q)
		}
	})
	d.wg.Wait()
}

func (d *Dispatcher) shard(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(d.queues)))
}

func (d *Dispatcher) worker(queue <-chan *Event) {
	defer d.wg.Done()
	for ev := range queue {
		d.deliver(ev)
	}
}

func (d *Dispatcher) deliver(ev *Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	recipients, err := d.recipients(ctx, ev)
	if err != nil {
		logger.Errorf("[dispatch] resolve recipients kind=%s room=%s: %v", ev.Kind, ev.RoomID, err)
		return
	}

	payload := buildClientFrame(ev)
	for _, user := range recipients {
		n := d.sessions.SendToUser(user, payload)
		metrics.EventsDispatched.Inc()
		if n > 0 {
			continue
		}
		// no local session; another gateway may still hold one
		live, perr := d.presence.HasSessions(ctx, user)
		if perr != nil {
			logger.Warnf("[dispatch] presence check user=%s: %v", user, perr)
			live = false
		}
		if !live && ev.Push != nil && pushEligible(ev.Kind) && d.claimPush(ctx, ev, user) {
			d.pushToUser(user, ev.Push)
		}
	}
}

// claimPush elects this gateway as the one that pushes for the
// event/user pair. Losing the claim means a peer already took it; a
// failed claim skips the push rather than risk N duplicates.
func (d *Dispatcher) claimPush(ctx context.Context, ev *Event, user string) bool {
	if ev.ID == "" {
		return true
	}
	won, err := d.presence.ClaimPush(ctx, ev.ID, user)
	if err != nil {
		logger.Warnf("[dispatch] push claim event=%s user=%s: %v", ev.ID, user, err)
		return false
	}
	return won
}

func (d *Dispatcher) recipients(ctx context.Context, ev *Event) ([]string, error) {
	if ev.Recipient != "" {
		return []string{ev.Recipient}, nil
	}
	return d.parts.ParticipantUsernames(ctx, ev.RoomID)
}

// pushToUser submits to every registered token. A stale token is normal;
// one failure never skips the remaining tokens.
func (d *Dispatcher) pushToUser(user string, content *PushContent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.conf.PushTimeout)
	tokens, err := d.tokens.TokensForUser(ctx, user)
	cancel()
	if err != nil {
		logger.Warnf("[dispatch] token lookup user=%s: %v", user, err)
		return
	}
	if len(tokens) == 0 {
		logger.Infof("[dispatch] no push endpoints user=%s", user)
		return
	}
	for _, token := range tokens {
		pctx, pcancel := context.WithTimeout(context.Background(), d.conf.PushTimeout)
		err := d.pusher.Send(pctx, token, content.Title, content.Body, content.Link)
		pcancel()
		if err != nil {
			metrics.PushFailures.Inc()
			logger.Warnf("[dispatch] push failed user=%s token=%s...: %v", user, head(token), err)
			continue
		}
		metrics.PushSent.Inc()
	}
}

// Only event classes a client cannot recover from a quick re-sync get the
// offline push treatment.
func pushEligible(kind string) bool {
	return kind == KindNewMessage || kind == KindNotification
}

// buildClientFrame matches the gateway's outbound envelope.
func buildClientFrame(ev *Event) []byte {
	b, _ := json.Marshal(struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload,omitempty"`
		Ts      int64           `json:"ts"`
	}{Type: ev.Kind, Payload: ev.Payload, Ts: time.Now().UnixMilli()})
	return b
}

func head(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
