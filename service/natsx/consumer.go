package natsx

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Handler processes one message. The consumer runs handlers serially per
// subscription, preserving subject order.
type Handler func(ctx context.Context, subject string, data []byte) error

// Consumer subscribes by biz route.
type Consumer struct{ c *Client }

func NewConsumer(c *Client) *Consumer { return &Consumer{c: c} }

// Subscribe attaches the handler to the biz route; with a queue group set
// on the route, exactly one member of the group gets each message.
func (cs *Consumer) Subscribe(biz string, h Handler) error {
	r, ok := cs.c.route(biz)
	if !ok {
		return fmt.Errorf("route not found: %s", biz)
	}

	cb := func(m *nats.Msg) {
		data := append([]byte(nil), m.Data...)
		_ = h(context.Background(), m.Subject, data)
	}

	var (
		sub *nats.Subscription
		err error
	)
	if r.Queue == "" {
		sub, err = cs.c.nc.Subscribe(r.Subject, cb)
	} else {
		sub, err = cs.c.nc.QueueSubscribe(r.Subject, r.Queue, cb)
	}
	if err != nil {
		return err
	}
	_ = sub.SetPendingLimits(1_000_000, 64*1024*1024)

	cs.c.mu.Lock()
	cs.c.subs[biz] = sub
	cs.c.mu.Unlock()
	return nil
}
