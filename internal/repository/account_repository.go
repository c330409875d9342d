package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/shoplite/auth-service/internal/model"
)

// AccountRepo is the credential store. All lookups use exact-match
// predicates and all state transitions on the one-time code slots are
// conditional UPDATEs, so the row in the database is the single commit
// point when two requests race over the same code.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

const accountColumns = "id,name,email,password_hash,role,is_verified," +
	"verification_code,verification_expires_at,reset_code,reset_expires_at," +
	"created_at,updated_at"

// Create inserts an account and returns its ID. verification may be
// nil for accounts created already verified (admins).
func (r *AccountRepo) Create(ctx context.Context, a model.Account) (uint64, error) {
	var code, resetCode sql.NullString
	var codeExp, resetExp sql.NullTime
	if a.Verification != nil {
		code = sql.NullString{String: a.Verification.Code, Valid: true}
		codeExp = sql.NullTime{Time: a.Verification.ExpiresAt, Valid: true}
	}
	if a.Reset != nil {
		resetCode = sql.NullString{String: a.Reset.Code, Valid: true}
		resetExp = sql.NullTime{Time: a.Reset.ExpiresAt, Valid: true}
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO accounts (name, email, password_hash, role, is_verified, verification_code, verification_expires_at, reset_code, reset_expires_at) VALUES (?,?,?,?,?,?,?,?,?)",
		a.Name, normalizeEmail(a.Email), a.PasswordHash, a.Role, a.IsVerified,
		code, codeExp, resetCode, resetExp)
	if err != nil {
		// 1062 = duplicate entry on the unique email index
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	return r.getOne(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1",
		normalizeEmail(email))
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return r.getOne(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id)
}

// GetByEmailAndVerificationCode fetches the account matching both the
// email and the outstanding verification code exactly.
func (r *AccountRepo) GetByEmailAndVerificationCode(ctx context.Context, email, code string) (model.Account, error) {
	return r.getOne(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email=? AND verification_code=? LIMIT 1",
		normalizeEmail(email), code)
}

// GetByResetToken fetches the account whose reset slot holds token and
// whose expiry is still in the future. The combined predicate runs as
// one statement so expiry and match are evaluated together.
func (r *AccountRepo) GetByResetToken(ctx context.Context, token string) (model.Account, error) {
	return r.getOne(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE reset_code=? AND reset_expires_at > UTC_TIMESTAMP() LIMIT 1",
		token)
}

// List returns all accounts ordered by id.
func (r *AccountRepo) List(ctx context.Context) ([]model.Account, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+accountColumns+" FROM accounts ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Delete removes an account. ErrNotFound when no row matched.
func (r *AccountRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM accounts WHERE id=?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkVerified flips is_verified and clears the verification slot, but
// only while the slot still holds code. Returns false when a
// concurrent request already consumed the code.
func (r *AccountRepo) MarkVerified(ctx context.Context, id uint64, code string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET is_verified=1, verification_code=NULL, verification_expires_at=NULL WHERE id=? AND verification_code=? AND is_verified=0",
		id, code)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// SetVerificationCode overwrites the verification slot (resend).
func (r *AccountRepo) SetVerificationCode(ctx context.Context, id uint64, pc model.PendingCode) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET verification_code=?, verification_expires_at=? WHERE id=? AND is_verified=0",
		pc.Code, pc.ExpiresAt, id)
	return err
}

// SetResetCode overwrites the reset slot (recovery phase 1).
func (r *AccountRepo) SetResetCode(ctx context.Context, id uint64, pc model.PendingCode) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET reset_code=?, reset_expires_at=? WHERE id=?",
		pc.Code, pc.ExpiresAt, id)
	return err
}

// SwapResetCode replaces the reset slot only while it still holds
// oldCode (recovery phase 2). Returns false when the code was already
// consumed by a concurrent request.
func (r *AccountRepo) SwapResetCode(ctx context.Context, id uint64, oldCode string, pc model.PendingCode) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET reset_code=?, reset_expires_at=? WHERE id=? AND reset_code=?",
		pc.Code, pc.ExpiresAt, id, oldCode)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CompleteReset stores the new password hash and clears the reset slot
// only while the slot still holds token (recovery phase 3).
func (r *AccountRepo) CompleteReset(ctx context.Context, id uint64, token, passwordHash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET password_hash=?, reset_code=NULL, reset_expires_at=NULL WHERE id=? AND reset_code=?",
		passwordHash, id, token)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *AccountRepo) getOne(ctx context.Context, query string, args ...any) (model.Account, error) {
	a, err := scanAccount(r.DB.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return model.Account{}, ErrNotFound
	}
	return a, err
}

type rowScanner interface{ Scan(dest ...any) error }

func scanAccount(row rowScanner) (model.Account, error) {
	var (
		a                 model.Account
		code, resetCode   sql.NullString
		codeExp, resetExp sql.NullTime
	)
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &a.Role, &a.IsVerified,
		&code, &codeExp, &resetCode, &resetExp, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Account{}, err
	}
	if code.Valid && codeExp.Valid {
		a.Verification = &model.PendingCode{Code: code.String, ExpiresAt: codeExp.Time}
	}
	if resetCode.Valid && resetExp.Valid {
		a.Reset = &model.PendingCode{Code: resetCode.String, ExpiresAt: resetExp.Time}
	}
	return a, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
