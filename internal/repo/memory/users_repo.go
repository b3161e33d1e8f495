package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
	"github.com/geocoder89/profilehub/internal/identity"
)

// UsersRepo keeps the users table in a map keyed by email. The write lock
// plays the role of the email unique constraint.
type UsersRepo struct {
	mu     sync.RWMutex
	nextID int64
	items  map[string]user.User
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[string]user.User),
	}
}

func (r *UsersRepo) GetByEmail(_ context.Context, email string) (user.User, error) {
	r.mu.RLock()
	u, ok := r.items[email]
	r.mu.RUnlock()

	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (r *UsersRepo) FindOrCreate(_ context.Context, id identity.Identity, sessionToken string) (user.User, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if u, ok := r.items[id.Email]; ok {
		return u, false, nil
	}

	r.nextID++
	u := user.User{
		ID:           r.nextID,
		Email:        id.Email,
		Name:         id.Name,
		GoogleID:     id.Subject,
		SessionToken: sessionToken,
		CreatedAt:    time.Now().UTC(),
		Version:      1,
	}
	r.items[u.Email] = u

	return u, true, nil
}

func (r *UsersRepo) UpdateProfile(_ context.Context, email string, patch user.ProfilePatch) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}

	u = patch.Apply(u)
	u.Version++
	r.items[email] = u

	return u, nil
}

// Ping lets the memory store stand in for the database in readiness checks.
func (r *UsersRepo) Ping(context.Context) error { return nil }

func (r *UsersRepo) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}
