package user

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("user not found")

// User is a row of the users table. Email is the lookup key; ID is only
// the storage primary key.
type User struct {
	ID                int64      `json:"id"`
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	GoogleID          string     `json:"googleId"`
	SessionToken      string     `json:"-"` // issued at creation, never used for auth
	CreatedAt         time.Time  `json:"createdAt"`
	Address           *string    `json:"address,omitempty"`
	JobType           *string    `json:"jobType,omitempty"`
	AvailabilityStart *TimeOfDay `json:"availabilityStart,omitempty"`
	AvailabilityEnd   *TimeOfDay `json:"availabilityEnd,omitempty"`
	// Version starts at 1 and grows by one on every profile update.
	Version int64 `json:"version"`
}

// ProfilePatch is a partial profile update. Fields that are absent (or
// explicitly null) leave the stored value unchanged.
type ProfilePatch struct {
	Address           Optional[string]
	JobType           Optional[string]
	AvailabilityStart Optional[TimeOfDay]
	AvailabilityEnd   Optional[TimeOfDay]
}

func (p ProfilePatch) IsEmpty() bool {
	_, a := p.Address.Get()
	_, j := p.JobType.Get()
	_, s := p.AvailabilityStart.Get()
	_, e := p.AvailabilityEnd.Get()
	return !a && !j && !s && !e
}

// Apply returns a copy of u with every present patch field written over it.
func (p ProfilePatch) Apply(u User) User {
	if v, ok := p.Address.Get(); ok {
		u.Address = &v
	}
	if v, ok := p.JobType.Get(); ok {
		u.JobType = &v
	}
	if v, ok := p.AvailabilityStart.Get(); ok {
		u.AvailabilityStart = &v
	}
	if v, ok := p.AvailabilityEnd.Get(); ok {
		u.AvailabilityEnd = &v
	}
	return u
}
