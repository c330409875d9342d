package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the fixed claim set carried by every session token:
// subject id (sub), email, role, issued-at and expiry.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID returns the numeric account id from the sub claim.
func (c *Claims) SubjectID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// TokenService mints and verifies HS256 session tokens. Verification
// here covers signature and expiry only; revocation is checked by the
// caller against the Registry on every authenticated request.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// TTL returns the configured session lifetime.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue signs a session token for the account and returns it with its
// expiry instant.
func (s *TokenService) Issue(subjectID uint64, email, role string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature and expiry and returns the claims, or
// ErrTokenInvalid for anything it will not honor.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !tok.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// DecodeClaims parses a token's claims without verifying the
// signature. The revocation registry uses it for bookkeeping, where an
// expired or foreign-signed token may still be recorded defensively.
func DecodeClaims(raw string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Fingerprint returns the SHA-256 hex digest of a raw token. Only the
// fingerprint is ever persisted, never the token itself.
func Fingerprint(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
