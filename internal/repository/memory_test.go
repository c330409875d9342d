package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoplite/auth-service/internal/model"
)

func seedAccount(t *testing.T, r *MemoryAccountRepo, email string, pc *model.PendingCode) uint64 {
	t.Helper()
	id, err := r.Create(context.Background(), model.Account{
		Name:         "Test",
		Email:        email,
		PasswordHash: "x",
		Role:         model.RoleUser,
		Verification: pc,
	})
	require.NoError(t, err)
	return id
}

func TestMemoryAccountRepo_CreateDuplicate(t *testing.T) {
	t.Parallel()

	r := NewMemoryAccountRepo()
	seedAccount(t, r, "a@example.com", nil)

	_, err := r.Create(context.Background(), model.Account{Email: "A@Example.com "})
	assert.ErrorIs(t, err, ErrEmailExists)
}

func TestMemoryAccountRepo_MarkVerified_SingleWinner(t *testing.T) {
	t.Parallel()

	r := NewMemoryAccountRepo()
	pc := &model.PendingCode{Code: "123456", ExpiresAt: time.Now().Add(time.Hour)}
	id := seedAccount(t, r, "race@example.com", pc)

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := r.MarkVerified(context.Background(), id, "123456")
			assert.NoError(t, err)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won, "exactly one concurrent verify may commit")

	a, err := r.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, a.IsVerified)
	assert.Nil(t, a.Verification)
}

func TestMemoryAccountRepo_SwapResetCode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewMemoryAccountRepo()
	id := seedAccount(t, r, "swap@example.com", nil)

	require.NoError(t, r.SetResetCode(ctx, id, model.PendingCode{Code: "654321", ExpiresAt: time.Now().Add(time.Hour)}))

	ok, err := r.SwapResetCode(ctx, id, "000000", model.PendingCode{Code: "TOKEN1"})
	require.NoError(t, err)
	assert.False(t, ok, "swap must not commit against a stale code")

	ok, err = r.SwapResetCode(ctx, id, "654321", model.PendingCode{Code: "TOKEN1", ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.True(t, ok)

	// The original code is gone.
	ok, err = r.SwapResetCode(ctx, id, "654321", model.PendingCode{Code: "TOKEN2"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryAccountRepo_CompleteReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewMemoryAccountRepo()
	id := seedAccount(t, r, "reset@example.com", nil)
	require.NoError(t, r.SetResetCode(ctx, id, model.PendingCode{Code: "ABC123", ExpiresAt: time.Now().Add(time.Hour)}))

	a, err := r.GetByResetToken(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, id, a.ID)

	ok, err := r.CompleteReset(ctx, id, "ABC123", "new-hash")
	require.NoError(t, err)
	require.True(t, ok)

	a, err = r.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", a.PasswordHash)
	assert.Nil(t, a.Reset)

	// Consumed: both the lookup and a second commit fail.
	_, err = r.GetByResetToken(ctx, "ABC123")
	assert.ErrorIs(t, err, ErrNotFound)
	ok, err = r.CompleteReset(ctx, id, "ABC123", "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryAccountRepo_GetByResetToken_Expired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewMemoryAccountRepo()
	id := seedAccount(t, r, "expired@example.com", nil)
	require.NoError(t, r.SetResetCode(ctx, id, model.PendingCode{Code: "OLD999", ExpiresAt: time.Now().Add(-time.Minute)}))

	_, err := r.GetByResetToken(ctx, "OLD999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryAccountRepo_CloneIsolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewMemoryAccountRepo()
	pc := &model.PendingCode{Code: "123456", ExpiresAt: time.Now().Add(time.Hour)}
	id := seedAccount(t, r, "clone@example.com", pc)

	a, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	a.Verification.Code = "mutated"
	a.Email = "mutated@example.com"

	b, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "123456", b.Verification.Code)
	assert.Equal(t, "clone@example.com", b.Email)
}

func TestMemoryRevocationRepo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	r := NewMemoryRevocationRepo()
	now := time.Now().UTC()

	require.NoError(t, r.Insert(ctx, model.RevocationEntry{
		SubjectID:        1,
		TokenFingerprint: "fp-live",
		Reason:           model.ReasonUserLogout,
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Hour),
	}))
	require.NoError(t, r.Insert(ctx, model.RevocationEntry{
		SubjectID:        1,
		TokenFingerprint: "fp-dead",
		Reason:           model.ReasonUserLogout,
		CreatedAt:        now.Add(-2 * time.Hour),
		ExpiresAt:        now.Add(-time.Hour),
	}))

	revoked, err := r.IsFingerprintRevoked(ctx, "fp-live")
	require.NoError(t, err)
	assert.True(t, revoked)

	// An entry past its expiry no longer matches.
	revoked, err = r.IsFingerprintRevoked(ctx, "fp-dead")
	require.NoError(t, err)
	assert.False(t, revoked)

	_, found, err := r.CutoverFor(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, r.Insert(ctx, model.RevocationEntry{
		SubjectID:        1,
		TokenFingerprint: model.CutoverFingerprint,
		Reason:           model.ReasonLogoutAllSessions,
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Hour),
	}))
	at, found, err := r.CutoverFor(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, now, at)

	entries, err := r.ListBySubject(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "fp-dead", entries[0].TokenFingerprint, "oldest first")

	entries, err = r.ListBySubject(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
