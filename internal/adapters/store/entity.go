package store

import "time"

// Account is the read side of a user created by the signup service.
type Account struct {
	ID        string `gorm:"primarykey"`
	Username  string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
}

func (Account) TableName() string { return "accounts" }

// Server is a community. Its name prefixes every room id of its channels.
type Server struct {
	ID             string   `gorm:"primarykey;size:36"`
	Name           string   `gorm:"size:100;uniqueIndex;not null"`
	OwnerID        string   `gorm:"not null"`
	InvitationCode string   `gorm:"size:120;uniqueIndex;not null"`
	Channels       []string `gorm:"serializer:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Server) TableName() string { return "servers" }

type Membership struct {
	ServerID  string `gorm:"primarykey;size:36"`
	UserID    string `gorm:"primarykey;index"`
	CreatedAt time.Time
}

func (Membership) TableName() string { return "memberships" }

type Message struct {
	ID        string    `gorm:"primarykey;size:36"`
	ServerID  string    `gorm:"size:36;index:idx_messages_channel;not null"`
	Channel   string    `gorm:"size:100;index:idx_messages_channel;not null"`
	AuthorID  string    `gorm:"not null"`
	Author    string    `gorm:"not null"`
	Body      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"index:idx_messages_channel"`
}

func (Message) TableName() string { return "messages" }
