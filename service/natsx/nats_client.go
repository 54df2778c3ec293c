package natsx

import (
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Route maps a biz name onto a subject. Core NATS only: the bus carries
// committed events from the write path to the dispatcher, and clients
// that miss one re-sync through the paging APIs, so replay/JetStream
// buys nothing here.
type Route struct {
	Subject string
	Queue   string // queue group for consumers; empty = plain subscribe
}

type Conf struct {
	URL    string
	Name   string
	Routes map[string]Route // biz -> route
}

type Client struct {
	nc *nats.Conn

	mu     sync.Mutex
	routes map[string]Route
	subs   map[string]*nats.Subscription
}

func NewClient(conf Conf) (*Client, error) {
	nc, err := nats.Connect(conf.URL,
		nats.Name(conf.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	routes := make(map[string]Route, len(conf.Routes))
	for biz, r := range conf.Routes {
		routes[biz] = r
	}
	return &Client{
		nc:     nc,
		routes: routes,
		subs:   make(map[string]*nats.Subscription),
	}, nil
}

func (c *Client) route(biz string) (Route, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.routes[biz]
	return r, ok
}

func (c *Client) Close() {
	c.mu.Lock()
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.subs = map[string]*nats.Subscription{}
	c.mu.Unlock()
	if c.nc != nil {
		c.nc.Close()
	}
}
