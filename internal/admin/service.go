package admin

import (
	"context"
	"strings"
	"time"

	"papertrade/internal/accounts"
	"papertrade/internal/apperr"
	"papertrade/internal/events"
	"papertrade/internal/model"
	"papertrade/internal/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Defaults struct {
	Capital decimal.Decimal
	Avatar  string
}

type Service struct {
	store    accounts.Store
	bus      *events.Bus
	defaults Defaults
	now      func() time.Time
	log      *zap.Logger
}

func NewService(store accounts.Store, bus *events.Bus, defaults Defaults, log *zap.Logger) *Service {
	return &Service{store: store, bus: bus, defaults: defaults, now: time.Now, log: log}
}

type AddUserRequest struct {
	Name     string
	Email    string
	Password string
}

// UpdateUserRequest leaves a field unchanged when it is empty.
type UpdateUserRequest struct {
	Name     string
	Email    string
	Password string
}

func (s *Service) AddUser(ctx context.Context, req AddUserRequest) (*model.Account, error) {
	name := strings.TrimSpace(req.Name)
	email := accounts.NormalizeEmail(req.Email)
	if name == "" {
		return nil, apperr.Validation("name", "name is required")
	}
	if email == "" {
		return nil, apperr.Validation("email", "email is required")
	}
	if req.Password == "" {
		return nil, apperr.Validation("password", "password is required")
	}
	if _, err := s.store.FindByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("email already exists")
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return nil, err
	}
	hash, err := accounts.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	acc, err := s.store.Create(ctx, &model.Account{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Avatar:       s.defaults.Avatar,
		CapitalPrice: s.defaults.Capital,
		ProfitPrice:  decimal.Zero,
		LossPrice:    decimal.Zero,
		Role:         types.RoleUser,
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user created", zap.String("account_id", acc.ID), zap.String("email", acc.Email))
	return acc, nil
}

func (s *Service) UpdateUser(ctx context.Context, uid string, req UpdateUserRequest) (*model.Account, error) {
	name := strings.TrimSpace(req.Name)
	email := accounts.NormalizeEmail(req.Email)
	var hash string
	if req.Password != "" {
		h, err := accounts.HashPassword(req.Password)
		if err != nil {
			return nil, err
		}
		hash = h
	}
	if email != "" {
		other, err := s.store.FindByEmail(ctx, email)
		if err == nil && other.ID != uid {
			return nil, apperr.Conflict("email already in use by another user")
		}
		if err != nil && !apperr.Is(err, apperr.KindNotFound) {
			return nil, err
		}
	}
	acc, err := accounts.Update(ctx, s.store, uid, func(acc *model.Account) error {
		if name != "" {
			acc.Name = name
		}
		if email != "" {
			acc.Email = email
		}
		if hash != "" {
			acc.PasswordHash = hash
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user updated", zap.String("account_id", acc.ID))
	return acc, nil
}

func (s *Service) BlockUser(ctx context.Context, uid string) (*model.Account, error) {
	return s.setBlocked(ctx, uid, true)
}

func (s *Service) UnblockUser(ctx context.Context, uid string) (*model.Account, error) {
	return s.setBlocked(ctx, uid, false)
}

func (s *Service) setBlocked(ctx context.Context, uid string, blocked bool) (*model.Account, error) {
	acc, err := accounts.Update(ctx, s.store, uid, func(acc *model.Account) error {
		if acc.IsAdmin() {
			return apperr.Forbidden("admins cannot be blocked or unblocked")
		}
		if acc.IsBlocked == blocked {
			if blocked {
				return apperr.Validation("uid", "user is already blocked")
			}
			return apperr.Validation("uid", "user is already unblocked")
		}
		acc.IsBlocked = blocked
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("user block state changed", zap.String("account_id", acc.ID), zap.Bool("blocked", blocked))
	return acc, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]*model.Account, error) {
	return s.store.List(ctx)
}

func (s *Service) SendMessage(ctx context.Context, uid, text string) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Message{}, apperr.Validation("text", "message text is required")
	}
	msg := model.Message{ID: uuid.NewString(), Text: text, SentAt: s.now().UTC()}
	if _, err := accounts.Update(ctx, s.store, uid, func(acc *model.Account) error {
		acc.Messages = append(acc.Messages, msg)
		return nil
	}); err != nil {
		return model.Message{}, err
	}
	if s.bus != nil {
		s.bus.Publish(uid, events.Event{Type: types.EventMessage, Data: msg})
	}
	return msg, nil
}

func (s *Service) DeleteUser(ctx context.Context, uid string) (*model.Account, error) {
	if uid == "" {
		return nil, apperr.Validation("uid", "user id is required")
	}
	acc, err := s.store.FindByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if acc.IsAdmin() {
		return nil, apperr.Forbidden("admin cannot be deleted")
	}
	if err := s.store.Delete(ctx, uid); err != nil {
		return nil, err
	}
	s.log.Info("user deleted", zap.String("account_id", uid))
	return acc, nil
}
