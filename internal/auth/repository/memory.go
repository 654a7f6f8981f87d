package repository

import (
	"context"
	"sync"
	"time"

	autherrors "travelbook/internal/auth/errors"
	"travelbook/pkg/config"
	"travelbook/pkg/model"

	"github.com/google/uuid"
)

type memoryUserRepository struct {
	mu      sync.RWMutex
	users   map[string]model.User
	byEmail map[string]string
}

func NewMemoryUserRepository() UserRepository {
	return &memoryUserRepository{
		users:   map[string]model.User{},
		byEmail: map[string]string{},
	}
}

func (r *memoryUserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[user.Email]; exists {
		return autherrors.ErrEmailExists
	}
	user.ID = uuid.NewString()
	r.users[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

func (r *memoryUserRepository) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, autherrors.ErrUserNotFound
	}
	return &user, nil
}

func (r *memoryUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	id, ok := r.byEmail[email]
	r.mu.RUnlock()
	if !ok {
		return nil, autherrors.ErrUserNotFound
	}
	return r.FindByID(ctx, id)
}

func (r *memoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return autherrors.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = updatedAt
	r.users[id] = user
	return nil
}

type memoryResetRepository struct {
	mu     sync.Mutex
	resets map[string]model.PasswordReset
}

func NewMemoryResetRepository() ResetRepository {
	return &memoryResetRepository{resets: map[string]model.PasswordReset{}}
}

func (r *memoryResetRepository) Create(_ context.Context, reset *model.PasswordReset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reset.ID = uuid.NewString()
	r.resets[reset.ID] = *reset
	return nil
}

func (r *memoryResetRepository) FindByTokenHash(_ context.Context, tokenHash string) (*model.PasswordReset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, reset := range r.resets {
		if reset.TokenHash == tokenHash {
			return &reset, nil
		}
	}
	return nil, autherrors.ErrResetNotFound
}

func (r *memoryResetRepository) MarkUsed(_ context.Context, id string, usedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	reset, ok := r.resets[id]
	if !ok || reset.UsedAt != nil {
		return autherrors.ErrResetNotFound
	}
	reset.UsedAt = &usedAt
	r.resets[id] = reset
	return nil
}

func (r *memoryResetRepository) DeleteStale(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for id, reset := range r.resets {
		if reset.UsedAt != nil || reset.ExpiresAt.Before(now) {
			delete(r.resets, id)
			deleted++
		}
	}
	return deleted, nil
}

// Stores groups the auth persistence for the configured backend.
type Stores struct {
	Users  UserRepository
	Resets ResetRepository
}

func NewStores(cfg *config.Config) Stores {
	if cfg.StorageBackend == config.StorageMemory {
		return Stores{Users: NewMemoryUserRepository(), Resets: NewMemoryResetRepository()}
	}
	return Stores{Users: NewMongoUserRepository(cfg), Resets: NewMongoResetRepository(cfg)}
}
