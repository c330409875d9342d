package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/shoplite/auth-service/internal/model"
)

// RevocationRepo persists revocation entries in the `revoked_tokens`
// table. Entries whose expires_at has passed are ignored by every
// query: an expired token is rejected by signature verification
// anyway, so stale rows are harmless and can be pruned lazily.
type RevocationRepo struct{ DB *sql.DB }

func NewRevocationRepo(db *sql.DB) *RevocationRepo { return &RevocationRepo{DB: db} }

// Insert records a revocation entry.
func (r *RevocationRepo) Insert(ctx context.Context, e model.RevocationEntry) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO revoked_tokens (subject_id, token_fingerprint, reason, created_at, expires_at) VALUES (?,?,?,?,?)",
		e.SubjectID, e.TokenFingerprint, e.Reason, e.CreatedAt, e.ExpiresAt)
	return err
}

// IsFingerprintRevoked reports whether an unexpired entry exists for
// the given fingerprint. This runs on every authenticated request.
func (r *RevocationRepo) IsFingerprintRevoked(ctx context.Context, fingerprint string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM revoked_tokens WHERE token_fingerprint=? AND expires_at > UTC_TIMESTAMP()",
		fingerprint).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// CutoverFor returns the most recent unexpired subject-wide cutover
// instant, or ok=false when none is recorded.
func (r *RevocationRepo) CutoverFor(ctx context.Context, subjectID uint64) (time.Time, bool, error) {
	var at sql.NullTime
	err := r.DB.QueryRowContext(ctx,
		"SELECT MAX(created_at) FROM revoked_tokens WHERE subject_id=? AND token_fingerprint=? AND expires_at > UTC_TIMESTAMP()",
		subjectID, model.CutoverFingerprint).Scan(&at)
	if err != nil {
		return time.Time{}, false, err
	}
	if !at.Valid {
		return time.Time{}, false, nil
	}
	return at.Time, true, nil
}

// ListBySubject returns the subject's revocation entries ordered by
// creation time.
func (r *RevocationRepo) ListBySubject(ctx context.Context, subjectID uint64) ([]model.RevocationEntry, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id, subject_id, token_fingerprint, reason, created_at, expires_at FROM revoked_tokens WHERE subject_id=? ORDER BY created_at, id",
		subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RevocationEntry
	for rows.Next() {
		var e model.RevocationEntry
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.TokenFingerprint, &e.Reason, &e.CreatedAt, &e.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// PruneExpired deletes entries whose tokens have expired naturally.
// Optional cleanup; correctness never depends on it.
func (r *RevocationRepo) PruneExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM revoked_tokens WHERE expires_at <= UTC_TIMESTAMP()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
