package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/token-gate/internal/domain"
)

// MemoryUserRepository is an in-process UserRepository used when no
// database is configured.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byID    map[string]domain.User
	byEmail map[string]string
}

// NewMemoryUserRepository builds an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := normalizeEmail(user.Email)
	if _, exists := r.byEmail[email]; exists {
		return ErrDuplicate
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	now := time.Now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	r.byID[user.ID] = *user
	r.byEmail[email] = user.ID
	return nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.byID[user.ID]
	if !ok {
		return ErrNotFound
	}
	newEmail := normalizeEmail(user.Email)
	if owner, exists := r.byEmail[newEmail]; exists && owner != user.ID {
		return ErrDuplicate
	}
	delete(r.byEmail, normalizeEmail(current.Email))

	user.UpdatedAt = time.Now().UTC()
	r.byID[user.ID] = *user
	r.byEmail[newEmail] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &user, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[normalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}
	user := r.byID[id]
	return &user, nil
}
