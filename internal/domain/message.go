package domain

import "time"

// Message is a chat line as persisted by the message store.
type Message struct {
	Room      RoomID    `json:"room"`
	AuthorID  UserID    `json:"author_id"`
	Author    string    `json:"user"`
	Body      string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
