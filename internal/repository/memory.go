package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shoplite/auth-service/internal/model"
)

// MemoryAccountRepo is an in-memory credential store with the same
// semantics as AccountRepo, including the conditional-update commit
// points. It backs unit tests and local runs without MySQL.
type MemoryAccountRepo struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*model.Account
}

func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{nextID: 1, byID: make(map[uint64]*model.Account)}
}

func (r *MemoryAccountRepo) Create(_ context.Context, a model.Account) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := normalizeEmail(a.Email)
	for _, ex := range r.byID {
		if ex.Email == email {
			return 0, ErrEmailExists
		}
	}
	a.ID = r.nextID
	r.nextID++
	a.Email = email
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	cp := cloneAccount(&a)
	r.byID[a.ID] = &cp
	return a.ID, nil
}

func (r *MemoryAccountRepo) GetByEmail(_ context.Context, email string) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = normalizeEmail(email)
	for _, a := range r.byID {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return model.Account{}, ErrNotFound
}

func (r *MemoryAccountRepo) GetByID(_ context.Context, id uint64) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		return cloneAccount(a), nil
	}
	return model.Account{}, ErrNotFound
}

func (r *MemoryAccountRepo) GetByEmailAndVerificationCode(_ context.Context, email, code string) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = normalizeEmail(email)
	for _, a := range r.byID {
		if a.Email == email && a.Verification != nil && a.Verification.Code == code {
			return cloneAccount(a), nil
		}
	}
	return model.Account{}, ErrNotFound
}

func (r *MemoryAccountRepo) GetByResetToken(_ context.Context, token string) (model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, a := range r.byID {
		if a.Reset != nil && a.Reset.Code == token && a.Reset.ExpiresAt.After(now) {
			return cloneAccount(a), nil
		}
	}
	return model.Account{}, ErrNotFound
}

func (r *MemoryAccountRepo) List(_ context.Context) ([]model.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Account, 0, len(r.byID))
	for _, a := range r.byID {
		out = append(out, cloneAccount(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryAccountRepo) Delete(_ context.Context, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *MemoryAccountRepo) MarkVerified(_ context.Context, id uint64, code string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.IsVerified || a.Verification == nil || a.Verification.Code != code {
		return false, nil
	}
	a.IsVerified = true
	a.Verification = nil
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryAccountRepo) SetVerificationCode(_ context.Context, id uint64, pc model.PendingCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok && !a.IsVerified {
		a.Verification = &model.PendingCode{Code: pc.Code, ExpiresAt: pc.ExpiresAt}
		a.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryAccountRepo) SetResetCode(_ context.Context, id uint64, pc model.PendingCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		a.Reset = &model.PendingCode{Code: pc.Code, ExpiresAt: pc.ExpiresAt}
		a.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryAccountRepo) SwapResetCode(_ context.Context, id uint64, oldCode string, pc model.PendingCode) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.Reset == nil || a.Reset.Code != oldCode {
		return false, nil
	}
	a.Reset = &model.PendingCode{Code: pc.Code, ExpiresAt: pc.ExpiresAt}
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *MemoryAccountRepo) CompleteReset(_ context.Context, id uint64, token, passwordHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok || a.Reset == nil || a.Reset.Code != token {
		return false, nil
	}
	a.PasswordHash = passwordHash
	a.Reset = nil
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

func cloneAccount(a *model.Account) model.Account {
	cp := *a
	if a.Verification != nil {
		v := *a.Verification
		cp.Verification = &v
	}
	if a.Reset != nil {
		v := *a.Reset
		cp.Reset = &v
	}
	return cp
}

// MemoryRevocationRepo is the in-memory counterpart of RevocationRepo.
type MemoryRevocationRepo struct {
	mu      sync.Mutex
	nextID  uint64
	entries []model.RevocationEntry
}

func NewMemoryRevocationRepo() *MemoryRevocationRepo {
	return &MemoryRevocationRepo{nextID: 1}
}

func (r *MemoryRevocationRepo) Insert(_ context.Context, e model.RevocationEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = r.nextID
	r.nextID++
	r.entries = append(r.entries, e)
	return nil
}

func (r *MemoryRevocationRepo) IsFingerprintRevoked(_ context.Context, fingerprint string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	for _, e := range r.entries {
		if e.TokenFingerprint == fingerprint && e.ExpiresAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRevocationRepo) CutoverFor(_ context.Context, subjectID uint64) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	var at time.Time
	var found bool
	for _, e := range r.entries {
		if e.SubjectID == subjectID && e.IsCutover() && e.ExpiresAt.After(now) && e.CreatedAt.After(at) {
			at = e.CreatedAt
			found = true
		}
	}
	return at, found, nil
}

func (r *MemoryRevocationRepo) ListBySubject(_ context.Context, subjectID uint64) ([]model.RevocationEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.RevocationEntry
	for _, e := range r.entries {
		if e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
