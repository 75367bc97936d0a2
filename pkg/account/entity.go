package account

import (
	"time"

	"github.com/google/uuid"
)

// User is a domain entity representing a registered account.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the public view of a User. It never carries the password hash.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Profile strips credentials from the record.
func (u User) Profile() Profile {
	return Profile{
		ID:        u.ID.String(),
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// NewUser is a validated, normalized record ready to be inserted.
// Build it with NewRecord; the store assigns ID and timestamps.
type NewUser struct {
	Name         string
	Email        string
	PasswordHash string
}

// ProfilePatch is a partial update of the mutable profile fields.
// A nil field is left untouched.
type ProfilePatch struct {
	Name  *string
	Email *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ProfilePatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil
}

// UpdateResolution is the smallest step UpdatedAt moves by. It matches the
// microsecond precision of PostgreSQL timestamps.
const UpdateResolution = time.Microsecond

// NextUpdatedAt returns the timestamp for a write applied at now to a record
// last changed at prev. The result is always strictly after prev, even when
// the clock ties with or runs behind the stored value.
func NextUpdatedAt(prev, now time.Time) time.Time {
	if floor := prev.Add(UpdateResolution); now.Before(floor) {
		return floor
	}
	return now
}
