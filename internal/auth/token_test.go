package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_IssueVerify(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("test-secret", time.Hour)
	raw, exp, err := svc.Issue(42, "carol@example.com", "user")
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	assert.WithinDuration(t, time.Now().UTC().Add(time.Hour), exp, 5*time.Second)

	claims, err := svc.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", claims.Email)
	assert.Equal(t, "user", claims.Role)

	id, err := claims.SubjectID()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
}

func TestTokenService_Verify_WrongSecret(t *testing.T) {
	t.Parallel()

	raw, _, err := NewTokenService("secret-a", time.Hour).Issue(1, "a@example.com", "user")
	require.NoError(t, err)

	_, err = NewTokenService("secret-b", time.Hour).Verify(raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_Verify_Garbage(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("test-secret", time.Hour)
	for _, raw := range []string{"", "not.a.jwt", "aaaa.bbbb.cccc"} {
		_, err := svc.Verify(raw)
		assert.ErrorIs(t, err, ErrTokenInvalid, "input %q", raw)
	}
}

func TestTokenService_Verify_Expired(t *testing.T) {
	t.Parallel()

	svc := NewTokenService("test-secret", time.Minute)
	base := time.Now().UTC()
	svc.now = func() time.Time { return base }

	raw, _, err := svc.Issue(7, "bob@example.com", "user")
	require.NoError(t, err)

	// Still valid just before expiry, rejected just after.
	svc.now = func() time.Time { return base.Add(30 * time.Second) }
	_, err = svc.Verify(raw)
	require.NoError(t, err)

	svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = svc.Verify(raw)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	// An expired token still decodes for bookkeeping.
	claims, err := DecodeClaims(raw)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", claims.Email)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	a := Fingerprint("token-a")
	b := Fingerprint("token-b")
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, Fingerprint("token-a"))
}
