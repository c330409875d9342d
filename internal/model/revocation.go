package model

import "time"

// Revocation reasons recorded alongside each entry. Free-form strings
// in the table; these are the values the service writes.
const (
	ReasonUserLogout         = "user_logout"
	ReasonLogoutAllSessions  = "logout_all_sessions"
	ReasonManualInvalidation = "manual_invalidation"
)

// CutoverFingerprint marks a subject-wide revocation row: every token
// issued to the subject before the row's CreatedAt is dead, regardless
// of fingerprint.
const CutoverFingerprint = "*"

// RevocationEntry models a row in `revoked_tokens`. The raw session
// token is never stored, only its SHA-256 fingerprint. ExpiresAt is
// copied from the token's own expiry so entries can be pruned once the
// token would have died naturally anyway.
type RevocationEntry struct {
	ID               uint64    // revoked_tokens.id
	SubjectID        uint64    // revoked_tokens.subject_id
	TokenFingerprint string    // revoked_tokens.token_fingerprint (or CutoverFingerprint)
	Reason           string    // revoked_tokens.reason
	CreatedAt        time.Time // revoked_tokens.created_at
	ExpiresAt        time.Time // revoked_tokens.expires_at
}

// IsCutover reports whether this entry revokes every token issued to
// the subject before CreatedAt rather than a single fingerprint.
func (e *RevocationEntry) IsCutover() bool {
	return e.TokenFingerprint == CutoverFingerprint
}
