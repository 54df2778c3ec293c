package dispatcher

import (
	"encoding/json"

	"RProject/tools/errs"
)

// Event kinds as seen on the wire by connected clients.
const (
	KindNewMessage    = "NEW"
	KindEditMessage   = "EDIT"
	KindDeleteMessage = "DELETE"
	KindNotification  = "NOTIFICATION"
)

// PushContent is the offline-push rendering of an event. Events without it
// are WebSocket-only (edits and deletes: clients re-sync on reconnect).
type PushContent struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Link  string `json:"link,omitempty"`
}

// Event is one logical delivery: a chat mutation addressed to a room, or a
// notification addressed to a single recipient. Payload is the exact JSON
// object forwarded to clients. ID identifies the event across gateways;
// the offline-push claim is keyed on it.
type Event struct {
	ID        string          `json:"id,omitempty"`
	Kind      string          `json:"kind"`
	RoomID    string          `json:"room_id,omitempty"`
	Recipient string          `json:"recipient,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Push      *PushContent    `json:"push,omitempty"`
}

// orderKey selects the worker queue. Chat events hash by room so per-room
// dispatch order matches append order; notifications hash by recipient.
func (e *Event) orderKey() string {
	if e.RoomID != "" {
		return e.RoomID
	}
	return e.Recipient
}

func (e *Event) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	return b, errs.WrapMsg(err, "encode event")
}

func DecodeEvent(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errs.WrapMsg(err, "decode event")
	}
	return &e, nil
}
