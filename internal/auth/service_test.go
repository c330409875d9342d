package auth

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shoplite/auth-service/internal/model"
	"github.com/shoplite/auth-service/internal/repository"
)

// testClock is a shared manual clock injected into the service, the
// token service and the registry so tests can move time forward
// deterministically.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Now().UTC().Truncate(time.Second)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeMailer records every dispatch so tests can assert on what was
// sent and capture the codes the service generated.
type fakeMailer struct {
	mu    sync.Mutex
	sends []mailEvent
}

type mailEvent struct {
	kind  string
	email string
	code  string
}

func (m *fakeMailer) record(kind, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends = append(m.sends, mailEvent{kind: kind, email: email, code: code})
	return nil
}

func (m *fakeMailer) SendVerificationCode(_ context.Context, email, code, _ string) error {
	return m.record("verification", email, code)
}

func (m *fakeMailer) SendWelcome(_ context.Context, email, _ string) error {
	return m.record("welcome", email, "")
}

func (m *fakeMailer) SendPasswordResetCode(_ context.Context, email, code, _ string) error {
	return m.record("reset", email, code)
}

func (m *fakeMailer) SendLoginNotice(_ context.Context, email, _ string) error {
	return m.record("login", email, "")
}

func (m *fakeMailer) SendAccountDeleted(_ context.Context, email, _ string) error {
	return m.record("deleted", email, "")
}

func (m *fakeMailer) SendPasswordChanged(_ context.Context, email, _ string) error {
	return m.record("changed", email, "")
}

func (m *fakeMailer) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.sends {
		if e.kind == kind {
			n++
		}
	}
	return n
}

func (m *fakeMailer) lastCode(kind string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sends) - 1; i >= 0; i-- {
		if m.sends[i].kind == kind {
			return m.sends[i].code
		}
	}
	return ""
}

func newTestService(t *testing.T, cfg Config) (*Service, *fakeMailer, *testClock) {
	t.Helper()
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 4
	}
	clock := newTestClock()
	tokens := NewTokenService("test-secret", time.Hour)
	tokens.now = clock.Now
	registry := NewRegistry(repository.NewMemoryRevocationRepo(), nil, time.Hour)
	registry.now = clock.Now
	mailer := &fakeMailer{}
	svc := NewService(repository.NewMemoryAccountRepo(), registry, tokens, mailer, cfg)
	svc.now = clock.Now
	return svc, mailer, clock
}

// registerVerified runs an account through register and verify-email
// and returns its session token.
func registerVerified(t *testing.T, svc *Service, mailer *fakeMailer, name, email, password string) string {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, name, email, password))
	token, err := svc.VerifyEmail(ctx, email, mailer.lastCode("verification"))
	require.NoError(t, err)
	return token
}

func TestRegister(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, _ := newTestService(t, Config{})

	require.NoError(t, svc.Register(ctx, "Alice", "Alice@Example.com", "hunter22"))

	code := mailer.lastCode("verification")
	require.Len(t, code, 6)
	_, err := strconv.Atoi(code)
	require.NoError(t, err)

	// The account exists, is unverified, and the email is normalized.
	a, err := svc.store.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", a.Email)
	assert.Equal(t, model.RoleUser, a.Role)
	assert.False(t, a.IsVerified)
	require.NotNil(t, a.Verification)
	assert.NotEqual(t, "hunter22", a.PasswordHash)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, _ := newTestService(t, Config{})

	require.NoError(t, svc.Register(ctx, "Alice", "alice@example.com", "hunter22"))
	first := mailer.lastCode("verification")

	err := svc.Register(ctx, "Mallory", "ALICE@example.com ", "different")
	assert.ErrorIs(t, err, repository.ErrEmailExists)

	// The original pending code survives the conflict.
	assert.Equal(t, 1, mailer.count("verification"))
	_, err = svc.VerifyEmail(ctx, "alice@example.com", first)
	require.NoError(t, err)
}

func TestVerifyEmail(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, _ := newTestService(t, Config{})

	require.NoError(t, svc.Register(ctx, "Bob", "bob@example.com", "hunter22"))
	code := mailer.lastCode("verification")

	token, err := svc.VerifyEmail(ctx, "bob@example.com", code)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, 1, mailer.count("welcome"))

	// Verification completes login: the token authenticates.
	claims, a, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", claims.Email)
	assert.True(t, a.IsVerified)

	// The code is single-use.
	_, err = svc.VerifyEmail(ctx, "bob@example.com", code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestVerifyEmail_WrongCode(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(t, Config{})

	require.NoError(t, svc.Register(ctx, "Bob", "bob@example.com", "hunter22"))

	_, err := svc.VerifyEmail(ctx, "bob@example.com", "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)

	// Still unverified: login refuses with the distinct error.
	_, err = svc.Login(ctx, "bob@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrNotVerified)
}

func TestVerifyEmail_Expired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, clock := newTestService(t, Config{})

	require.NoError(t, svc.Register(ctx, "Bob", "bob@example.com", "hunter22"))
	code := mailer.lastCode("verification")

	clock.Advance(25 * time.Hour)
	_, err := svc.VerifyEmail(ctx, "bob@example.com", code)
	assert.ErrorIs(t, err, ErrCodeExpired)

	_, err = svc.Login(ctx, "bob@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrNotVerified)

	// A resent code opens a fresh window.
	require.NoError(t, svc.ResendVerificationCode(ctx, "bob@example.com"))
	fresh := mailer.lastCode("verification")
	require.NotEqual(t, code, fresh)
	_, err = svc.VerifyEmail(ctx, "bob@example.com", fresh)
	require.NoError(t, err)
}

func TestResendVerificationCode_Silent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, _ := newTestService(t, Config{})

	// Unknown address: acknowledged, nothing sent.
	require.NoError(t, svc.ResendVerificationCode(ctx, "ghost@example.com"))
	assert.Equal(t, 0, mailer.count("verification"))

	// Already verified: same.
	registerVerified(t, svc, mailer, "Carol", "carol@example.com", "hunter22")
	before := mailer.count("verification")
	require.NoError(t, svc.ResendVerificationCode(ctx, "carol@example.com"))
	assert.Equal(t, before, mailer.count("verification"))
}

func TestLogin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, _ := newTestService(t, Config{})
	registerVerified(t, svc, mailer, "Carol", "carol@example.com", "hunter22")

	token, err := svc.Login(ctx, "Carol@Example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, 1, mailer.count("login"))

	_, _, err = svc.Authenticate(ctx, token)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "carol@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestPasswordRecovery_RoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, _ := newTestService(t, Config{})
	registerVerified(t, svc, mailer, "Dave", "dave@example.com", "old-password")

	require.NoError(t, svc.RequestPasswordReset(ctx, "dave@example.com"))
	code := mailer.lastCode("reset")
	require.Len(t, code, 6)

	token, err := svc.VerifyResetCode(ctx, "dave@example.com", code)
	require.NoError(t, err)
	require.Len(t, token, 6)
	assert.NotEqual(t, code, token)

	// The code was consumed by phase 2 and cannot be replayed.
	_, err = svc.VerifyResetCode(ctx, "dave@example.com", code)
	assert.ErrorIs(t, err, ErrInvalidCode)

	require.NoError(t, svc.ResetPassword(ctx, token, "new-password"))
	assert.Equal(t, 1, mailer.count("changed"))

	_, err = svc.Login(ctx, "dave@example.com", "old-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, "dave@example.com", "new-password")
	require.NoError(t, err)

	// The continuation token was consumed too.
	err = svc.ResetPassword(ctx, token, "another-password")
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestRequestPasswordReset_AntiEnumeration(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, _ := newTestService(t, Config{})

	require.NoError(t, svc.RequestPasswordReset(ctx, "ghost@example.com"))
	assert.Equal(t, 0, mailer.count("reset"))
}

func TestVerifyResetCode_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, clock := newTestService(t, Config{})
	registerVerified(t, svc, mailer, "Erin", "erin@example.com", "hunter22")

	_, err := svc.VerifyResetCode(ctx, "", "123456")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.VerifyResetCode(ctx, "erin@example.com", "  ")
	assert.ErrorIs(t, err, ErrInvalidInput)

	// No pending reset at all.
	_, err = svc.VerifyResetCode(ctx, "erin@example.com", "123456")
	assert.ErrorIs(t, err, ErrInvalidCode)

	require.NoError(t, svc.RequestPasswordReset(ctx, "erin@example.com"))
	code := mailer.lastCode("reset")

	_, err = svc.VerifyResetCode(ctx, "erin@example.com", "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)

	clock.Advance(16 * time.Minute)
	_, err = svc.VerifyResetCode(ctx, "erin@example.com", code)
	assert.ErrorIs(t, err, ErrCodeExpired)
}

func TestResetPassword_BadToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(t, Config{})

	assert.ErrorIs(t, svc.ResetPassword(ctx, "", "pw"), ErrInvalidOrExpired)
	assert.ErrorIs(t, svc.ResetPassword(ctx, "NOPE99", "pw"), ErrInvalidOrExpired)
}

func TestResetPassword_ExpiredToken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, _ := newTestService(t, Config{ResetTokenTTL: 20 * time.Millisecond})
	registerVerified(t, svc, mailer, "Frank", "frank@example.com", "hunter22")

	require.NoError(t, svc.RequestPasswordReset(ctx, "frank@example.com"))
	token, err := svc.VerifyResetCode(ctx, "frank@example.com", mailer.lastCode("reset"))
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)
	err = svc.ResetPassword(ctx, token, "new-password")
	assert.ErrorIs(t, err, ErrInvalidOrExpired)
}

func TestLogout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, clock := newTestService(t, Config{})
	registerVerified(t, svc, mailer, "Grace", "grace@example.com", "hunter22")

	tokA, err := svc.Login(ctx, "grace@example.com", "hunter22")
	require.NoError(t, err)
	clock.Advance(2 * time.Second)
	tokB, err := svc.Login(ctx, "grace@example.com", "hunter22")
	require.NoError(t, err)
	require.NotEqual(t, tokA, tokB)

	require.NoError(t, svc.Logout(ctx, tokA))

	_, _, err = svc.Authenticate(ctx, tokA)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// The other session is unaffected.
	_, _, err = svc.Authenticate(ctx, tokB)
	require.NoError(t, err)
}

func TestLogoutAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, clock := newTestService(t, Config{})
	registerVerified(t, svc, mailer, "Heidi", "heidi@example.com", "hunter22")

	clock.Advance(2 * time.Second)
	tokA, err := svc.Login(ctx, "heidi@example.com", "hunter22")
	require.NoError(t, err)
	clock.Advance(2 * time.Second)
	tokB, err := svc.Login(ctx, "heidi@example.com", "hunter22")
	require.NoError(t, err)

	a, err := svc.store.GetByEmail(ctx, "heidi@example.com")
	require.NoError(t, err)

	clock.Advance(2 * time.Second)
	count, err := svc.LogoutAll(ctx, a.ID, tokB)
	require.NoError(t, err)
	// tokB is revoked individually; the count covers the rest. The
	// verify-email session plus tokA makes two.
	assert.Equal(t, 2, count)

	_, _, err = svc.Authenticate(ctx, tokA)
	assert.ErrorIs(t, err, ErrTokenRevoked)
	_, _, err = svc.Authenticate(ctx, tokB)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	// Logging in again works: only tokens issued before the cutover die.
	clock.Advance(2 * time.Second)
	tokC, err := svc.Login(ctx, "heidi@example.com", "hunter22")
	require.NoError(t, err)
	_, _, err = svc.Authenticate(ctx, tokC)
	require.NoError(t, err)
}

func TestListRevocations(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, _ := newTestService(t, Config{})
	tok := registerVerified(t, svc, mailer, "Ivan", "ivan@example.com", "hunter22")

	a, err := svc.store.GetByEmail(ctx, "ivan@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, tok))

	entries, err := svc.ListRevocations(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ReasonUserLogout, entries[0].Reason)
	assert.Equal(t, a.ID, entries[0].SubjectID)
}

func TestAuthenticate_DeletedAccount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, _ := newTestService(t, Config{})
	tok := registerVerified(t, svc, mailer, "Judy", "judy@example.com", "hunter22")

	a, err := svc.store.GetByEmail(ctx, "judy@example.com")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteAccount(ctx, a.ID))
	assert.Equal(t, 1, mailer.count("deleted"))

	// No revocation entry is written, yet the token is dead because the
	// account lookup fails.
	_, _, err = svc.Authenticate(ctx, tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDeleteAccount_NotFound(t *testing.T) {
	t.Parallel()

	svc, _, _ := newTestService(t, Config{})
	err := svc.DeleteAccount(context.Background(), 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateAdmin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, mailer, _ := newTestService(t, Config{})

	require.NoError(t, svc.CreateAdmin(ctx, "Root", "admin@example.com", "hunter22"))
	assert.Equal(t, 1, mailer.count("welcome"))

	// Pre-verified: logs in straight away, no verification flow.
	tok, err := svc.Login(ctx, "admin@example.com", "hunter22")
	require.NoError(t, err)
	claims, a, err := svc.Authenticate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.Equal(t, model.RoleAdmin, a.Role)

	err = svc.CreateAdmin(ctx, "Root", "admin@example.com", "other")
	assert.ErrorIs(t, err, repository.ErrEmailExists)
}

func TestEnsureSuperadmin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, _, _ := newTestService(t, Config{})

	// No email configured: nothing to do.
	require.NoError(t, svc.EnsureSuperadmin(ctx, "Super", "", "pw"))
	accounts, err := svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	require.NoError(t, svc.EnsureSuperadmin(ctx, "Super", "root@example.com", "pw"))
	a, err := svc.store.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.RoleSuperadmin, a.Role)
	assert.True(t, a.IsVerified)

	// Idempotent across restarts.
	require.NoError(t, svc.EnsureSuperadmin(ctx, "Super", "root@example.com", "pw"))
	accounts, err = svc.ListAccounts(ctx)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}
