package cache

import (
	"context"
	"time"

	"github.com/geocoder89/profilehub/internal/domain/user"
)

// ProfileCache holds recently read users keyed by email. It is never the
// source of truth: callers fall back to the store on a miss or an error.
// Set never replaces an entry carrying a higher user.Version, so a slow
// read cannot roll back a committed update. Rows removed outside the API
// stay visible until their entry expires.
type ProfileCache interface {
	Get(ctx context.Context, email string) (user.User, bool, error)
	Set(ctx context.Context, u user.User) error
	Delete(ctx context.Context, email string) error
}

func profileKey(email string) string {
	return "profile:" + email
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (user.User, bool, error) { return user.User{}, false, nil }
func (Nop) Set(context.Context, user.User) error                 { return nil }
func (Nop) Delete(context.Context, string) error                 { return nil }

type MemoryProfileCache struct {
	c *TTL[user.User]
}

func NewMemoryProfileCache(ttl time.Duration) *MemoryProfileCache {
	return &MemoryProfileCache{c: NewTTL[user.User](ttl)}
}

func (m *MemoryProfileCache) Get(_ context.Context, email string) (user.User, bool, error) {
	u, ok := m.c.Get(profileKey(email))
	return u, ok, nil
}

func (m *MemoryProfileCache) Set(_ context.Context, u user.User) error {
	m.c.SetIf(profileKey(u.Email), u, func(cur user.User) bool {
		return u.Version >= cur.Version
	})
	return nil
}

func (m *MemoryProfileCache) Delete(_ context.Context, email string) error {
	m.c.Delete(profileKey(email))
	return nil
}
