package reports

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/tallyard/tallyard/internal/ledger"
)

// Repository describes the ledger reads used by the projection.
type Repository interface {
	ListAccounts(ctx context.Context, orgID int64) ([]ledger.Account, error)
	ListPaidTransactions(ctx context.Context, orgID int64, scanCap int) ([]ledger.Transaction, error)
}

// Service serves the trial-balance projection. The projection is
// recomputed per read; a short-TTL cache plus singleflight keeps repeated
// dashboard polls from hammering the transaction log.
type Service struct {
	repo    Repository
	cache   *redis.Client
	ttl     time.Duration
	scanCap int
	group   singleflight.Group
	now     func() time.Time
}

// NewService constructs the report service. cache may be nil.
func NewService(repo Repository, cache *redis.Client, ttl time.Duration, scanCap int) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{repo: repo, cache: cache, ttl: ttl, scanCap: scanCap, now: time.Now}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func cacheKey(orgID int64) string {
	return fmt.Sprintf("reports:tb:%d", orgID)
}

// TrialBalance returns the four-bucket projection for an org.
func (s *Service) TrialBalance(ctx context.Context, orgID int64) (TrialBalance, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, cacheKey(orgID)).Bytes(); err == nil {
			var cached TrialBalance
			if err := json.Unmarshal(raw, &cached); err == nil {
				return cached, nil
			}
		}
	}
	value, err, _ := s.group.Do(cacheKey(orgID), func() (any, error) {
		return s.build(ctx, orgID)
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return value.(TrialBalance), nil
}

// Invalidate drops the cached projection for an org.
func (s *Service) Invalidate(ctx context.Context, orgID int64) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, cacheKey(orgID)).Err()
	}
}

func (s *Service) build(ctx context.Context, orgID int64) (TrialBalance, error) {
	accounts, err := s.repo.ListAccounts(ctx, orgID)
	if err != nil {
		return TrialBalance{}, err
	}
	txns, err := s.repo.ListPaidTransactions(ctx, orgID, s.scanCap)
	if err != nil {
		return TrialBalance{}, err
	}
	tb := Build(accounts, txns)
	tb.GeneratedAt = s.now()
	if s.cache != nil {
		if raw, err := json.Marshal(tb); err == nil {
			_ = s.cache.Set(ctx, cacheKey(orgID), raw, s.ttl).Err()
		}
	}
	return tb, nil
}
