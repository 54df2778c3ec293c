package chat

import (
	"encoding/json"
	"time"

	"RProject/tools/decode"
	"RProject/tools/errs"
)

// Client -> server frame types.
const (
	FrameSend     = "send"
	FrameEdit     = "edit"
	FrameDelete   = "delete"
	FrameMarkRead = "mark_read"
	FramePing     = "ping"
)

// Server -> client frame types besides the dispatcher event kinds.
const (
	FramePong  = "pong"
	FrameError = "error"
)

// Frame is the JSON envelope on the WebSocket. Payload is free-form and
// decoded per frame type.
type Frame struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
	Ts      int64          `json:"ts,omitempty"`
}

type SendPayload struct {
	RoomID string `json:"roomId"`
	Body   string `json:"body"`
	ReelID string `json:"reelId"`
}

type EditPayload struct {
	MessageID string `json:"messageId"`
	Body      string `json:"body"`
}

type DeletePayload struct {
	MessageID string `json:"messageId"`
}

type MarkReadPayload struct {
	RoomID string `json:"roomId"`
	Ts     int64  `json:"ts"`
}

func ParseFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.WrapMsg(err, "unmarshal frame")
	}
	if f.Type == "" {
		return nil, errs.New("frame without type")
	}
	return &f, nil
}

func DecodePayload[T any](f *Frame) (*T, error) {
	return decode.DecodeMap[T](f.Payload)
}

// BuildServerFrame wraps an already-marshalled payload into the outbound
// envelope.
func BuildServerFrame(frameType string, payload json.RawMessage) []byte {
	b, _ := json.Marshal(struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload,omitempty"`
		Ts      int64           `json:"ts"`
	}{Type: frameType, Payload: payload, Ts: time.Now().UnixMilli()})
	return b
}

// BuildErrorFrame reports a rejected client frame back on the same socket.
func BuildErrorFrame(code int, msg string) []byte {
	payload, _ := json.Marshal(map[string]any{"code": code, "msg": msg})
	return BuildServerFrame(FrameError, payload)
}
