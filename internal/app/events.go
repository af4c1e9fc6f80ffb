package app

import (
	"encoding/json"

	"github.com/dkeye/clanchat/internal/core"
	"github.com/dkeye/clanchat/internal/domain"
)

const EventChatMessage = "chat_message"

// ChatEvent is the broadcast form of a message, sent to every subscriber of the room.
type ChatEvent struct {
	Type    string        `json:"type"`
	User    string        `json:"user"`
	Message string        `json:"message"`
	Room    domain.RoomID `json:"room"`
}

func EncodeChat(msg domain.Message) (core.Frame, error) {
	return json.Marshal(ChatEvent{
		Type:    EventChatMessage,
		User:    msg.Author,
		Message: msg.Body,
		Room:    msg.Room,
	})
}
