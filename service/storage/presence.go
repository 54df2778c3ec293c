package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Presence is the cross-node view of who holds open realtime sessions.
// Each session writes its own key under the user's hash slot with a TTL;
// the gateway renews it while the socket is alive, so crashed nodes age
// out without cleanup.
//
// key: im:presence:<user>:<connID>  value: gateway id
type Presence struct {
	rdb  *redis.Client
	gwID string
}

func NewPresence(rdb *redis.Client, gwID string) *Presence {
	return &Presence{rdb: rdb, gwID: gwID}
}

func sessionKey(user, connID string) string {
	return "im:presence:" + user + ":" + connID
}

func userPattern(user string) string {
	return "im:presence:" + user + ":*"
}

// SessionOnline marks one session live and (re)sets its TTL.
func (p *Presence) SessionOnline(ctx context.Context, user, connID string, ttl time.Duration) error {
	return p.rdb.Set(ctx, sessionKey(user, connID), p.gwID, ttl).Err()
}

// SessionOffline removes one session.
func (p *Presence) SessionOffline(ctx context.Context, user, connID string) error {
	return p.rdb.Del(ctx, sessionKey(user, connID)).Err()
}

// pushClaimTTL only has to outlive the slowest gateway's dispatch of one
// event; the claim key is garbage after that.
const pushClaimTTL = 10 * time.Minute

// ClaimPush wins the right to deliver one offline push. Every gateway
// consumes every bus event, so SETNX on the event/user pair elects
// exactly one of them to contact the push provider.
func (p *Presence) ClaimPush(ctx context.Context, eventID, user string) (bool, error) {
	return p.rdb.SetNX(ctx, "im:push:"+eventID+":"+user, p.gwID, pushClaimTTL).Result()
}

// HasSessions reports whether the user holds any live session on any
// gateway. Used for the push-fallback decision.
func (p *Presence) HasSessions(ctx context.Context, user string) (bool, error) {
	iter := p.rdb.Scan(ctx, 0, userPattern(user), 1).Iterator()
	if iter.Next(ctx) {
		return true, nil
	}
	if err := iter.Err(); err != nil && !errors.Is(err, redis.Nil) {
		return false, err
	}
	return false, nil
}
