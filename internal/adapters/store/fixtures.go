package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/clanchat/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// The writers below stand in for the account and server services during
// development and tests.

func (s *Store) CreateAccount(ctx context.Context, id domain.UserID, username string) error {
	a := Account{ID: string(id), Username: username}
	if err := s.db.WithContext(ctx).Create(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

// CreateServer creates a server with the default channel and its owner as first member.
func (s *Store) CreateServer(ctx context.Context, name string, owner domain.UserID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sv := Server{
			ID:             uuid.NewString(),
			Name:           name,
			OwnerID:        string(owner),
			InvitationCode: "clan." + name,
			Channels:       []string{DefaultChannel},
		}
		if err := tx.Create(&sv).Error; err != nil {
			return fmt.Errorf("create server: %w", err)
		}
		if err := tx.Create(&Membership{ServerID: sv.ID, UserID: string(owner)}).Error; err != nil {
			return fmt.Errorf("add owner: %w", err)
		}
		return nil
	})
}

// AddMember is idempotent.
func (s *Store) AddMember(ctx context.Context, serverName string, userID domain.UserID) error {
	sv, err := s.server(ctx, serverName)
	if err != nil {
		return err
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Membership{ServerID: sv.ID, UserID: string(userID)}).Error
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// AddChannel is idempotent.
func (s *Store) AddChannel(ctx context.Context, serverName, channel string) error {
	sv, err := s.server(ctx, serverName)
	if err != nil {
		return err
	}
	for _, c := range sv.Channels {
		if c == channel {
			return nil
		}
	}
	sv.Channels = append(sv.Channels, channel)
	if err := s.db.WithContext(ctx).Save(sv).Error; err != nil {
		return fmt.Errorf("add channel: %w", err)
	}
	return nil
}
