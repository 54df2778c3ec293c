package natsx

import (
	"context"
	"fmt"
)

// Producer publishes by biz route.
type Producer struct{ c *Client }

func NewProducer(c *Client) *Producer { return &Producer{c: c} }

// Publish sends on the subject the biz routes to. NATS preserves publish
// order per connection, which is what keeps per-room dispatch order equal
// to append order downstream.
func (p *Producer) Publish(ctx context.Context, biz string, data []byte) error {
	r, ok := p.c.route(biz)
	if !ok {
		return fmt.Errorf("route not found: %s", biz)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return p.c.nc.Publish(r.Subject, data)
}
