package service

import (
	"encoding/json"

	"RProject/module/chat/model"
)

// MessageDTO is the client-facing message shape, used by both the REST
// responses and the WebSocket event payloads.
type MessageDTO struct {
	ID        string `json:"id"`
	RoomID    string `json:"roomId"`
	Sender    string `json:"sender"`
	Body      string `json:"body"`
	ReelID    string `json:"reelId,omitempty"`
	CreatedAt int64  `json:"createdAt"`
	Edited    bool   `json:"edited"`
	Deleted   bool   `json:"deleted"`
}

// RoomDTO annotates a room with its participant usernames and the latest
// message for list previews.
type RoomDTO struct {
	ID           string      `json:"id"`
	Kind         string      `json:"kind"`
	Name         string      `json:"name,omitempty"`
	Participants []string    `json:"participants"`
	CreatedAt    int64       `json:"createdAt"`
	LastMessage  *MessageDTO `json:"lastMessage,omitempty"`
}

// mustJSON marshals a DTO; these shapes cannot fail to encode.
func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func ToMessageDTO(m *model.MsgModel) *MessageDTO {
	if m == nil {
		return nil
	}
	return &MessageDTO{
		ID:        m.MsgID,
		RoomID:    m.RoomID,
		Sender:    m.Sender,
		Body:      m.Body,
		ReelID:    m.ReelID,
		CreatedAt: m.CreatedAt,
		Edited:    m.Edited,
		Deleted:   m.Deleted,
	}
}
