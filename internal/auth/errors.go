package auth

import "errors"

// Flow-level sentinel errors. Handlers map these onto HTTP statuses;
// the distinctions matter: a bad one-time code is not a bad credential,
// and an unverified login attempt must tell the caller to verify
// rather than look like a wrong password.
var (
	// ErrInvalidInput signals a missing required argument.
	ErrInvalidInput = errors.New("email and code are required")

	// ErrInvalidCode signals a verification or reset code that matches
	// no account, including codes already consumed by a concurrent
	// request.
	ErrInvalidCode = errors.New("invalid code")

	// ErrCodeExpired signals a matching code past its expiry window.
	ErrCodeExpired = errors.New("code expired")

	// ErrInvalidOrExpired is the deliberately generic recovery phase-3
	// failure; it does not leak which part of the predicate failed.
	ErrInvalidOrExpired = errors.New("invalid or expired verification")

	// ErrInvalidCredentials signals an unknown email or wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotVerified signals a login attempt on an account that has not
	// completed email verification. Kept distinct from
	// ErrInvalidCredentials so the caller is told what to do.
	ErrNotVerified = errors.New("please verify your email before logging in; check your email for the verification code")

	// ErrTokenInvalid signals a session token that fails signature or
	// expiry checks, or whose account no longer exists.
	ErrTokenInvalid = errors.New("invalid token")

	// ErrTokenRevoked signals a session token present in the revocation
	// registry.
	ErrTokenRevoked = errors.New("token has been invalidated")
)
