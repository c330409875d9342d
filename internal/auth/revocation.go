package auth

import (
	"context"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shoplite/auth-service/internal/model"
)

// RevocationStore is the durable side of the registry.
type RevocationStore interface {
	Insert(ctx context.Context, e model.RevocationEntry) error
	IsFingerprintRevoked(ctx context.Context, fingerprint string) (bool, error)
	CutoverFor(ctx context.Context, subjectID uint64) (time.Time, bool, error)
	ListBySubject(ctx context.Context, subjectID uint64) ([]model.RevocationEntry, error)
}

const (
	revokedKeyPrefix  = "revoked:"
	cutoverKeyPrefix  = "cutover:"
	sessionsKeyPrefix = "sessions:"
)

// Registry tracks invalidated session tokens. SQL is authoritative;
// Redis serves the hot path (IsRevoked runs on every authenticated
// request) and carries the per-subject set of observed fingerprints
// that feeds the logout-all session count. Losing Redis degrades the
// count to zero, never the revocation itself.
//
// Bulk revocation uses a per-subject cutover instant: every token
// whose issued-at precedes the instant is dead, including tokens the
// registry never observed.
type Registry struct {
	store    RevocationStore
	rdb      *redis.Client
	sessions sessionIndex
	tokenTTL time.Duration
	now      func() time.Time
}

// NewRegistry builds a registry over the durable store. rdb may be
// nil; the registry then runs on SQL alone with an in-process session
// index.
func NewRegistry(store RevocationStore, rdb *redis.Client, tokenTTL time.Duration) *Registry {
	var idx sessionIndex
	if rdb != nil {
		idx = &redisSessionIndex{rdb: rdb, ttl: tokenTTL}
	} else {
		idx = newMemorySessionIndex()
	}
	return &Registry{
		store:    store,
		rdb:      rdb,
		sessions: idx,
		tokenTTL: tokenTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ObserveIssued records a freshly minted token in the subject's
// session index. Bookkeeping only: the count returned by
// InvalidateAllForSubject comes from here.
func (r *Registry) ObserveIssued(ctx context.Context, subjectID uint64, raw string) {
	r.sessions.observe(ctx, subjectID, Fingerprint(raw))
}

// Invalidate records a single token as revoked. The claims are decoded
// without signature verification: a malformed or already-expired token
// may still be recorded defensively, its entry simply has no effect.
func (r *Registry) Invalidate(ctx context.Context, raw, reason string) error {
	now := r.now()
	fp := Fingerprint(raw)
	var subjectID uint64
	expiresAt := now
	if claims, err := DecodeClaims(raw); err == nil {
		if id, err := claims.SubjectID(); err == nil {
			subjectID = id
		}
		if claims.ExpiresAt != nil {
			expiresAt = claims.ExpiresAt.Time
		}
	}
	if err := r.store.Insert(ctx, model.RevocationEntry{
		SubjectID:        subjectID,
		TokenFingerprint: fp,
		Reason:           reason,
		CreatedAt:        now,
		ExpiresAt:        expiresAt,
	}); err != nil {
		return err
	}
	if r.rdb != nil && expiresAt.After(now) {
		if err := r.rdb.Set(ctx, revokedKeyPrefix+fp, "1", expiresAt.Sub(now)).Err(); err != nil {
			log.Printf("revocation: redis set failed: %v", err)
		}
	}
	r.sessions.remove(ctx, subjectID, fp)
	return nil
}

// InvalidateAllForSubject records a subject-wide cutover and returns
// how many observed sessions it ended.
func (r *Registry) InvalidateAllForSubject(ctx context.Context, subjectID uint64) (int, error) {
	now := r.now()
	count := r.sessions.endAll(ctx, subjectID)
	if err := r.store.Insert(ctx, model.RevocationEntry{
		SubjectID:        subjectID,
		TokenFingerprint: model.CutoverFingerprint,
		Reason:           model.ReasonLogoutAllSessions,
		CreatedAt:        now,
		ExpiresAt:        now.Add(r.tokenTTL),
	}); err != nil {
		return 0, err
	}
	if r.rdb != nil {
		key := cutoverKeyPrefix + strconv.FormatUint(subjectID, 10)
		if err := r.rdb.Set(ctx, key, now.Unix(), r.tokenTTL).Err(); err != nil {
			log.Printf("revocation: redis cutover set failed: %v", err)
		}
	}
	return count, nil
}

// IsRevoked reports whether the token has been explicitly invalidated
// or was issued before the subject's cutover instant.
func (r *Registry) IsRevoked(ctx context.Context, raw string) (bool, error) {
	fp := Fingerprint(raw)
	if r.rdb != nil {
		if n, err := r.rdb.Exists(ctx, revokedKeyPrefix+fp).Result(); err == nil && n > 0 {
			return true, nil
		}
	}
	revoked, err := r.store.IsFingerprintRevoked(ctx, fp)
	if err != nil {
		return false, err
	}
	if revoked {
		return true, nil
	}

	claims, err := DecodeClaims(raw)
	if err != nil || claims.IssuedAt == nil {
		return false, nil
	}
	subjectID, err := claims.SubjectID()
	if err != nil {
		return false, nil
	}
	if r.rdb != nil {
		key := cutoverKeyPrefix + strconv.FormatUint(subjectID, 10)
		if s, err := r.rdb.Get(ctx, key).Result(); err == nil {
			if cutover, err := strconv.ParseInt(s, 10, 64); err == nil && claims.IssuedAt.Unix() < cutover {
				return true, nil
			}
		}
	}
	cutover, ok, err := r.store.CutoverFor(ctx, subjectID)
	if err != nil {
		return false, err
	}
	return ok && claims.IssuedAt.Time.Before(cutover), nil
}

// ListForSubject returns the subject's revocation entries ordered by
// creation time.
func (r *Registry) ListForSubject(ctx context.Context, subjectID uint64) ([]model.RevocationEntry, error) {
	return r.store.ListBySubject(ctx, subjectID)
}

// sessionIndex tracks which fingerprints are live per subject so that
// logout-all can report a count. It never influences IsRevoked.
type sessionIndex interface {
	observe(ctx context.Context, subjectID uint64, fingerprint string)
	remove(ctx context.Context, subjectID uint64, fingerprint string)
	endAll(ctx context.Context, subjectID uint64) int
}

type redisSessionIndex struct {
	rdb *redis.Client
	ttl time.Duration
}

func (s *redisSessionIndex) key(subjectID uint64) string {
	return sessionsKeyPrefix + strconv.FormatUint(subjectID, 10)
}

func (s *redisSessionIndex) observe(ctx context.Context, subjectID uint64, fp string) {
	key := s.key(subjectID)
	if err := s.rdb.SAdd(ctx, key, fp).Err(); err != nil {
		log.Printf("revocation: session observe failed: %v", err)
		return
	}
	s.rdb.Expire(ctx, key, s.ttl)
}

func (s *redisSessionIndex) remove(ctx context.Context, subjectID uint64, fp string) {
	s.rdb.SRem(ctx, s.key(subjectID), fp)
}

func (s *redisSessionIndex) endAll(ctx context.Context, subjectID uint64) int {
	key := s.key(subjectID)
	n, err := s.rdb.SCard(ctx, key).Result()
	if err != nil {
		log.Printf("revocation: session count failed: %v", err)
		return 0
	}
	s.rdb.Del(ctx, key)
	return int(n)
}

type memorySessionIndex struct {
	mu   sync.Mutex
	live map[uint64]map[string]struct{}
}

func newMemorySessionIndex() *memorySessionIndex {
	return &memorySessionIndex{live: make(map[uint64]map[string]struct{})}
}

func (s *memorySessionIndex) observe(_ context.Context, subjectID uint64, fp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.live[subjectID]
	if !ok {
		set = make(map[string]struct{})
		s.live[subjectID] = set
	}
	set[fp] = struct{}{}
}

func (s *memorySessionIndex) remove(_ context.Context, subjectID uint64, fp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live[subjectID], fp)
}

func (s *memorySessionIndex) endAll(_ context.Context, subjectID uint64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.live[subjectID])
	delete(s.live, subjectID)
	return n
}
