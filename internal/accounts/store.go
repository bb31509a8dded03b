package accounts

import (
	"context"
	"strings"
	"sync"
	"time"

	"papertrade/internal/apperr"
	"papertrade/internal/model"

	"github.com/google/uuid"
)

// Store persists account documents. Save is a whole-document write guarded
// by the document version: a save carrying a stale version fails with a
// conflict and writes nothing.
type Store interface {
	FindByID(ctx context.Context, id string) (*model.Account, error)
	FindByEmail(ctx context.Context, email string) (*model.Account, error)
	List(ctx context.Context) ([]*model.Account, error)
	Create(ctx context.Context, acc *model.Account) (*model.Account, error)
	Save(ctx context.Context, acc *model.Account) (*model.Account, error)
	Delete(ctx context.Context, id string) error
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func prepareNew(acc *model.Account, now time.Time) *model.Account {
	out := acc.Clone()
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	out.Email = NormalizeEmail(out.Email)
	if out.Messages == nil {
		out.Messages = []model.Message{}
	}
	if out.Trades == nil {
		out.Trades = []model.Trade{}
	}
	out.Version = 1
	out.CreatedAt = now
	out.UpdatedAt = now
	return out
}

type MemoryStore struct {
	mu    sync.RWMutex
	byID  map[string]*model.Account
	order []string
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*model.Account), now: time.Now}
}

func (s *MemoryStore) FindByID(ctx context.Context, id string) (*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.byID[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	return acc.Clone(), nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	email = NormalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acc := range s.byID {
		if acc.Email == email {
			return acc.Clone(), nil
		}
	}
	return nil, apperr.NotFound("user not found")
}

func (s *MemoryStore) List(ctx context.Context) ([]*model.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Account, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out, nil
}

func (s *MemoryStore) Create(ctx context.Context, acc *model.Account) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := prepareNew(acc, s.now().UTC())
	if _, ok := s.byID[out.ID]; ok {
		return nil, apperr.Conflict("user already exists")
	}
	if s.emailTakenLocked(out.Email, "") {
		return nil, apperr.Conflict("email already exists")
	}
	s.byID[out.ID] = out
	s.order = append(s.order, out.ID)
	return out.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, acc *model.Account) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.byID[acc.ID]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	if cur.Version != acc.Version {
		return nil, apperr.Conflict("account was modified concurrently")
	}
	out := acc.Clone()
	out.Email = NormalizeEmail(out.Email)
	if s.emailTakenLocked(out.Email, out.ID) {
		return nil, apperr.Conflict("email already in use by another user")
	}
	out.Version = cur.Version + 1
	out.CreatedAt = cur.CreatedAt
	out.UpdatedAt = s.now().UTC()
	s.byID[out.ID] = out
	return out.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return apperr.NotFound("user not found")
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *MemoryStore) emailTakenLocked(email, exceptID string) bool {
	for id, acc := range s.byID {
		if id != exceptID && acc.Email == email {
			return true
		}
	}
	return false
}
