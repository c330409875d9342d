package model

import "time"

// Roles stored in accounts.role. Plain strings rather than a dedicated
// type because they travel through JWT claims and JSON untouched.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// PendingCode is an outstanding one-time secret together with its
// expiry. A nil *PendingCode means no code is outstanding, so the
// "code and expiry are both set or both absent" rule holds by
// construction instead of being checked at runtime.
type PendingCode struct {
	Code      string    // the secret as sent to the account's email
	ExpiresAt time.Time // UTC instant after which the code is dead
}

// Expired reports whether the code is past its expiry at instant now.
func (p *PendingCode) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// Account mirrors the `accounts` table. PasswordHash and the pending
// code slots never leave the repository/service layers; handlers build
// separate response types.
//
// Verification holds the emailed activation code while the account is
// unverified. Reset holds either the 6-digit reset code (recovery
// phase 1-2) or the short continuation token that replaces it after a
// successful code check (phase 2-3); the two phases deliberately share
// one slot so the numeric code cannot be replayed once consumed.
type Account struct {
	ID           uint64       // accounts.id
	Name         string       // accounts.name
	Email        string       // accounts.email (unique, stored lower-case)
	PasswordHash string       // accounts.password_hash (bcrypt)
	Role         string       // accounts.role
	IsVerified   bool         // accounts.is_verified
	Verification *PendingCode // accounts.verification_code / verification_expires_at
	Reset        *PendingCode // accounts.reset_code / reset_expires_at
	CreatedAt    time.Time    // accounts.created_at
	UpdatedAt    time.Time    // accounts.updated_at
}
