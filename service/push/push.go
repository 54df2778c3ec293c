package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the external push provider over its HTTP contract:
// one token per request, best effort, per-call deadline from the caller's
// context. The provider's own retry/queueing is its business; we report
// per-token success or failure and nothing more.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

type Conf struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration // transport-level cap, callers usually pass a tighter ctx
}

func NewClient(conf Conf) *Client {
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint: conf.Endpoint,
		apiKey:   conf.APIKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type pushRequest struct {
	Token        string            `json:"token"`
	Notification pushNotification  `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type pushNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send submits one push. A non-2xx status is a failure for this token
// only; the caller logs and moves on to the next one.
func (c *Client) Send(ctx context.Context, token, title, body, link string) error {
	reqBody := pushRequest{
		Token:        token,
		Notification: pushNotification{Title: title, Body: body},
	}
	if link != "" {
		reqBody.Data = map[string]string{"url": link}
	}
	raw, err := json.Marshal(reqBody)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push provider status %d", resp.StatusCode)
	}
	return nil
}
