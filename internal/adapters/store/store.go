// Package store is the server/channel/message store the relay asks about
// membership and hands messages to.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dkeye/clanchat/internal/domain"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ErrServerNotFound = errors.New("server not found")
	ErrDuplicate      = errors.New("already exists")
)

// DefaultChannel is created with every server.
const DefaultChannel = "general"

type Store struct {
	db *gorm.DB
}

// Open connects to SQLite and migrates the schema. SQLite has a single writer,
// so the pool is capped at one connection; this also keeps ":memory:" databases shared.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	s := New(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&Account{}, &Server{}, &Membership{}, &Message{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) server(ctx context.Context, name string) (*Server, error) {
	var sv Server
	if err := s.db.WithContext(ctx).First(&sv, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("find server: %w", err)
	}
	return &sv, nil
}

// IsMember reports whether userID belongs to the named server. Unknown servers are not an error.
func (s *Store) IsMember(ctx context.Context, serverName string, userID domain.UserID) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&Membership{}).
		Joins("JOIN servers ON servers.id = memberships.server_id").
		Where("servers.name = ? AND memberships.user_id = ?", serverName, string(userID)).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return n > 0, nil
}

// PersistMessage stores msg under the server named by its room. Failures wrap domain.ErrPersist.
func (s *Store) PersistMessage(ctx context.Context, msg domain.Message) error {
	serverName, channel, ok := msg.Room.Split()
	if !ok {
		return fmt.Errorf("%w: malformed room %q", domain.ErrPersist, msg.Room)
	}
	sv, err := s.server(ctx, serverName)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersist, err)
	}
	row := Message{
		ID:        uuid.NewString(),
		ServerID:  sv.ID,
		Channel:   channel,
		AuthorID:  string(msg.AuthorID),
		Author:    msg.Author,
		Body:      msg.Body,
		CreatedAt: msg.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersist, err)
	}
	return nil
}

// History returns up to limit of the latest messages of a channel, oldest first.
func (s *Store) History(ctx context.Context, serverName, channel string, limit int) ([]domain.Message, error) {
	sv, err := s.server(ctx, serverName)
	if err != nil {
		return nil, err
	}
	q := s.db.WithContext(ctx).
		Where("server_id = ? AND channel = ?", sv.ID, channel).
		Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Message
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	slices.Reverse(rows)

	room := domain.NewRoomID(sv.Name, channel)
	out := make([]domain.Message, 0, len(rows))
	for _, m := range rows {
		out = append(out, domain.Message{
			Room:      room,
			AuthorID:  domain.UserID(m.AuthorID),
			Author:    m.Author,
			Body:      m.Body,
			CreatedAt: m.CreatedAt,
		})
	}
	return out, nil
}

// Members lists the accounts that belong to a server, by username.
func (s *Store) Members(ctx context.Context, serverName string) ([]domain.User, error) {
	sv, err := s.server(ctx, serverName)
	if err != nil {
		return nil, err
	}
	var accounts []Account
	err = s.db.WithContext(ctx).
		Joins("JOIN memberships ON memberships.user_id = accounts.id").
		Where("memberships.server_id = ?", sv.ID).
		Order("accounts.username").
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	out := make([]domain.User, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, domain.User{ID: domain.UserID(a.ID), Username: a.Username})
	}
	return out, nil
}

// Channels returns the channel names of a server.
func (s *Store) Channels(ctx context.Context, serverName string) ([]string, error) {
	sv, err := s.server(ctx, serverName)
	if err != nil {
		return nil, err
	}
	return sv.Channels, nil
}
