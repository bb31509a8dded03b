package accounts

import (
	"context"
	"strings"

	"papertrade/internal/apperr"
	"papertrade/internal/model"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Profile edits are re-applied to a fresh load when a save loses a version
// race with another writer.
const maxSaveAttempts = 3

// Service covers the operations an account holder performs on their own
// document: profile reads, presence, password, avatar and inbox cleanup.
type Service struct {
	store Store
	log   *zap.Logger
}

func NewService(store Store, log *zap.Logger) *Service {
	return &Service{store: store, log: log}
}

func (s *Service) Get(ctx context.Context, id string) (*model.Account, error) {
	if id == "" {
		return nil, apperr.Validation("id", "user id is required")
	}
	return s.store.FindByID(ctx, id)
}

func (s *Service) SetOnline(ctx context.Context, id string, online bool) (*model.Account, error) {
	return s.mutate(ctx, id, func(acc *model.Account) error {
		acc.IsOnline = online
		return nil
	})
}

func (s *Service) UpdatePassword(ctx context.Context, id, current, next string) error {
	if current == "" {
		return apperr.Validation("current_password", "current password is required")
	}
	if next == "" {
		return apperr.Validation("new_password", "new password is required")
	}
	_, err := s.mutate(ctx, id, func(acc *model.Account) error {
		if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(current)); err != nil {
			return apperr.Validation("current_password", "current password is incorrect")
		}
		hash, err := HashPassword(next)
		if err != nil {
			return err
		}
		acc.PasswordHash = hash
		return nil
	})
	if err == nil {
		s.log.Info("password updated", zap.String("account_id", id))
	}
	return err
}

func (s *Service) UpdateAvatar(ctx context.Context, id, avatar string) (*model.Account, error) {
	avatar = strings.TrimSpace(avatar)
	if avatar == "" {
		return nil, apperr.Validation("avatar", "avatar is required")
	}
	return s.mutate(ctx, id, func(acc *model.Account) error {
		acc.Avatar = avatar
		return nil
	})
}

// DeleteMessage drops one message from the inbox. Unknown ids leave the inbox
// as it was.
func (s *Service) DeleteMessage(ctx context.Context, id, messageID string) (*model.Account, error) {
	if messageID == "" {
		return nil, apperr.Validation("message_id", "message id is required")
	}
	return s.mutate(ctx, id, func(acc *model.Account) error {
		kept := acc.Messages[:0]
		for _, m := range acc.Messages {
			if m.ID != messageID {
				kept = append(kept, m)
			}
		}
		acc.Messages = kept
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, id string, fn func(acc *model.Account) error) (*model.Account, error) {
	return Update(ctx, s.store, id, fn)
}

// Update loads an account, applies fn and saves the whole document.
func Update(ctx context.Context, store Store, id string, fn func(acc *model.Account) error) (*model.Account, error) {
	if id == "" {
		return nil, apperr.Validation("id", "user id is required")
	}
	var lastErr error
	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		acc, err := store.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(acc); err != nil {
			return nil, err
		}
		saved, err := store.Save(ctx, acc)
		if err == nil {
			return saved, nil
		}
		if !apperr.Is(err, apperr.KindConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// HashPassword bcrypt-hashes a plaintext password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Validation("password", "password cannot be hashed")
	}
	return string(hash), nil
}
