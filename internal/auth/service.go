package auth

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/shoplite/auth-service/internal/model"
	"github.com/shoplite/auth-service/internal/repository"
)

// CredentialStore is the persistence collaborator. Lookups are
// exact-match; the bool-returning mutations are conditional writes
// that report whether this caller won the commit (false means a
// concurrent request consumed the code first).
type CredentialStore interface {
	Create(ctx context.Context, a model.Account) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.Account, error)
	GetByID(ctx context.Context, id uint64) (model.Account, error)
	GetByEmailAndVerificationCode(ctx context.Context, email, code string) (model.Account, error)
	GetByResetToken(ctx context.Context, token string) (model.Account, error)
	List(ctx context.Context) ([]model.Account, error)
	Delete(ctx context.Context, id uint64) error
	MarkVerified(ctx context.Context, id uint64, code string) (bool, error)
	SetVerificationCode(ctx context.Context, id uint64, pc model.PendingCode) error
	SetResetCode(ctx context.Context, id uint64, pc model.PendingCode) error
	SwapResetCode(ctx context.Context, id uint64, oldCode string, pc model.PendingCode) (bool, error)
	CompleteReset(ctx context.Context, id uint64, token, passwordHash string) (bool, error)
}

// Mailer is the email-dispatch collaborator. Every call is
// fire-and-forget from the service's perspective: failures are logged
// at the call site and never surfaced to the caller or rolled back.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code, name string) error
	SendWelcome(ctx context.Context, email, name string) error
	SendPasswordResetCode(ctx context.Context, email, code, name string) error
	SendLoginNotice(ctx context.Context, email, name string) error
	SendAccountDeleted(ctx context.Context, email, name string) error
	SendPasswordChanged(ctx context.Context, email, name string) error
}

// Config carries the auth flow knobs. Zero values fall back to the
// stock windows: 24h verification codes, 15m reset codes, 10m
// continuation tokens.
type Config struct {
	BcryptCost          int
	VerificationCodeTTL time.Duration
	ResetCodeTTL        time.Duration
	ResetTokenTTL       time.Duration
}

func (c Config) withDefaults() Config {
	if c.BcryptCost == 0 {
		c.BcryptCost = 10
	}
	if c.VerificationCodeTTL == 0 {
		c.VerificationCodeTTL = 24 * time.Hour
	}
	if c.ResetCodeTTL == 0 {
		c.ResetCodeTTL = 15 * time.Minute
	}
	if c.ResetTokenTTL == 0 {
		c.ResetTokenTTL = 10 * time.Minute
	}
	return c
}

// Service is the composition root for the identity and session
// lifecycle: registration with email verification, login, the
// three-phase password recovery flow, session revocation and the
// administrative account operations.
type Service struct {
	store    CredentialStore
	registry *Registry
	tokens   *TokenService
	mailer   Mailer
	cfg      Config
	now      func() time.Time
}

func NewService(store CredentialStore, registry *Registry, tokens *TokenService, mailer Mailer, cfg Config) *Service {
	return &Service{
		store:    store,
		registry: registry,
		tokens:   tokens,
		mailer:   mailer,
		cfg:      cfg.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Registry exposes the revocation registry for callers that list or
// record revocations directly.
func (s *Service) Registry() *Registry { return s.registry }

// Register creates an unverified account and emails it a 6-digit
// activation code. Returns repository.ErrEmailExists when the email is
// taken. The caller gets an acknowledgment only, never the code.
func (s *Service) Register(ctx context.Context, name, email, password string) error {
	email = normalizeEmail(email)
	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return repository.ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hash, err := HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	code, err := NewVerificationCode()
	if err != nil {
		return err
	}
	_, err = s.store.Create(ctx, model.Account{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleUser,
		IsVerified:   false,
		Verification: &model.PendingCode{Code: code, ExpiresAt: s.now().Add(s.cfg.VerificationCodeTTL)},
	})
	if err != nil {
		return err
	}

	s.mail("verification code", s.mailer.SendVerificationCode(ctx, email, code, name))
	return nil
}

// VerifyEmail activates the account matching email and code exactly
// and, on success, completes login by minting a session token. The
// clear-and-persist step is the single commit point: of two concurrent
// calls with the same valid code, exactly one wins and the other sees
// ErrInvalidCode.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (string, error) {
	a, err := s.store.GetByEmailAndVerificationCode(ctx, normalizeEmail(email), code)
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCode
	}
	if err != nil {
		return "", err
	}
	if a.Verification == nil {
		return "", ErrInvalidCode
	}
	if a.Verification.Expired(s.now()) {
		return "", ErrCodeExpired
	}

	ok, err := s.store.MarkVerified(ctx, a.ID, code)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvalidCode
	}

	s.mail("welcome", s.mailer.SendWelcome(ctx, a.Email, a.Name))
	return s.issueSession(ctx, a.ID, a.Email, a.Role)
}

// ResendVerificationCode issues a fresh activation code for an
// unverified account. A missing or already-verified account returns
// nil all the same, so the endpoint cannot be used to probe for
// registered emails.
func (s *Service) ResendVerificationCode(ctx context.Context, email string) error {
	a, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) || (err == nil && a.IsVerified) {
		return nil
	}
	if err != nil {
		return err
	}

	code, err := NewVerificationCode()
	if err != nil {
		return err
	}
	pc := model.PendingCode{Code: code, ExpiresAt: s.now().Add(s.cfg.VerificationCodeTTL)}
	if err := s.store.SetVerificationCode(ctx, a.ID, pc); err != nil {
		return err
	}
	s.mail("verification code", s.mailer.SendVerificationCode(ctx, a.Email, code, a.Name))
	return nil
}

// Login verifies credentials and mints a session token. Unknown email
// and wrong password both yield ErrInvalidCredentials; an unverified
// account yields the distinct ErrNotVerified.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	a, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !a.IsVerified {
		return "", ErrNotVerified
	}
	if !VerifyPassword(a.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}

	token, err := s.issueSession(ctx, a.ID, a.Email, a.Role)
	if err != nil {
		return "", err
	}
	s.mail("login notice", s.mailer.SendLoginNotice(ctx, a.Email, a.Name))
	return token, nil
}

// RequestPasswordReset starts recovery phase 1: a 15-minute 6-digit
// code emailed to the account. Nil for unknown emails too
// (anti-enumeration).
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	a, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	code, err := NewVerificationCode()
	if err != nil {
		return err
	}
	pc := model.PendingCode{Code: code, ExpiresAt: s.now().Add(s.cfg.ResetCodeTTL)}
	if err := s.store.SetResetCode(ctx, a.ID, pc); err != nil {
		return err
	}
	s.mail("reset code", s.mailer.SendPasswordResetCode(ctx, a.Email, code, a.Name))
	return nil
}

// VerifyResetCode is recovery phase 2. On success the 6-digit code is
// overwritten with a short one-time continuation token (returned to
// the caller) and the window narrows to 10 minutes, so the code cannot
// be replayed and phase 3 cannot be reached without passing here.
func (s *Service) VerifyResetCode(ctx context.Context, email, code string) (string, error) {
	if strings.TrimSpace(email) == "" || strings.TrimSpace(code) == "" {
		return "", ErrInvalidInput
	}
	a, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return "", ErrInvalidCode
	}
	if err != nil {
		return "", err
	}
	if a.Reset == nil || a.Reset.Code != code {
		return "", ErrInvalidCode
	}
	if a.Reset.Expired(s.now()) {
		return "", ErrCodeExpired
	}

	token, err := NewResetToken()
	if err != nil {
		return "", err
	}
	pc := model.PendingCode{Code: token, ExpiresAt: s.now().Add(s.cfg.ResetTokenTTL)}
	ok, err := s.store.SwapResetCode(ctx, a.ID, code, pc)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvalidCode
	}
	return token, nil
}

// ResetPassword is recovery phase 3: the continuation token plus the
// new password. The token-and-unexpired predicate is evaluated in one
// store query; any failure is the generic ErrInvalidOrExpired.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(token) == "" || newPassword == "" {
		return ErrInvalidOrExpired
	}
	a, err := s.store.GetByResetToken(ctx, token)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidOrExpired
	}
	if err != nil {
		return err
	}

	hash, err := HashPassword(newPassword, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	ok, err := s.store.CompleteReset(ctx, a.ID, token, hash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidOrExpired
	}
	s.mail("password changed", s.mailer.SendPasswordChanged(ctx, a.Email, a.Name))
	return nil
}

// CreateAdmin creates a pre-verified admin account, bypassing the
// verification flow entirely.
func (s *Service) CreateAdmin(ctx context.Context, name, email, password string) error {
	email = normalizeEmail(email)
	if _, err := s.store.GetByEmail(ctx, email); err == nil {
		return repository.ErrEmailExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return err
	}

	hash, err := HashPassword(password, s.cfg.BcryptCost)
	if err != nil {
		return err
	}
	if _, err := s.store.Create(ctx, model.Account{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		IsVerified:   true,
	}); err != nil {
		return err
	}
	s.mail("welcome", s.mailer.SendWelcome(ctx, email, name))
	return nil
}

// ListAccounts returns every account.
func (s *Service) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return s.store.List(ctx)
}

// DeleteAccount removes an account and sends a deletion notice. No
// revocation entry is written: the authenticate hook reloads the
// account on every request, so existing sessions die immediately
// anyway.
func (s *Service) DeleteAccount(ctx context.Context, id uint64) error {
	a, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.ErrNotFound
	}
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.mail("account deleted", s.mailer.SendAccountDeleted(ctx, a.Email, a.Name))
	return nil
}

// Logout revokes the presented token.
func (s *Service) Logout(ctx context.Context, raw string) error {
	return s.registry.Invalidate(ctx, raw, model.ReasonUserLogout)
}

// LogoutAll revokes the presented token individually, then ends every
// other session of the subject via a cutover. The returned count
// covers the other observed sessions; the presented one is recorded
// separately.
func (s *Service) LogoutAll(ctx context.Context, subjectID uint64, raw string) (int, error) {
	if err := s.registry.Invalidate(ctx, raw, model.ReasonLogoutAllSessions); err != nil {
		return 0, err
	}
	return s.registry.InvalidateAllForSubject(ctx, subjectID)
}

// InvalidateToken records an arbitrary token as revoked.
func (s *Service) InvalidateToken(ctx context.Context, raw string) error {
	return s.registry.Invalidate(ctx, raw, model.ReasonManualInvalidation)
}

// ListRevocations returns the subject's revocation entries.
func (s *Service) ListRevocations(ctx context.Context, subjectID uint64) ([]model.RevocationEntry, error) {
	return s.registry.ListForSubject(ctx, subjectID)
}

// Authenticate is the authorization hook run on every authenticated
// request: revocation check first, then signature and expiry, then the
// live account. A deleted account invalidates its tokens implicitly.
func (s *Service) Authenticate(ctx context.Context, raw string) (*Claims, model.Account, error) {
	revoked, err := s.registry.IsRevoked(ctx, raw)
	if err != nil {
		return nil, model.Account{}, err
	}
	if revoked {
		return nil, model.Account{}, ErrTokenRevoked
	}
	claims, err := s.tokens.Verify(raw)
	if err != nil {
		return nil, model.Account{}, ErrTokenInvalid
	}
	id, err := claims.SubjectID()
	if err != nil {
		return nil, model.Account{}, ErrTokenInvalid
	}
	a, err := s.store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, model.Account{}, ErrTokenInvalid
	}
	if err != nil {
		return nil, model.Account{}, err
	}
	return claims, a, nil
}

func (s *Service) issueSession(ctx context.Context, id uint64, email, role string) (string, error) {
	token, _, err := s.tokens.Issue(id, email, role)
	if err != nil {
		return "", err
	}
	s.registry.ObserveIssued(ctx, id, token)
	return token, nil
}

// mail logs a dispatch failure and moves on. The state transition has
// already committed by the time any Send* runs; there is no retry.
func (s *Service) mail(what string, err error) {
	if err != nil {
		log.Printf("mailer: send %s failed: %v", what, err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
