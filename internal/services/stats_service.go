package services

import (
	"context"
	"log"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/williamsoaresdev/bip-core/internal/money"
	"github.com/williamsoaresdev/bip-core/internal/store"
)

const (
	activeCountKey   = "bip:stats:active_count"
	activeBalanceKey = "bip:stats:active_balance"

	statsCacheTTL = 30 * time.Second
)

// StatsService answers aggregate questions about the account pool, with a
// short-lived redis cache in front of the store. When redis is unavailable
// it reads straight from the store.
type StatsService struct {
	store *store.AccountStore
	redis *redis.Client
}

func NewStatsService(accountStore *store.AccountStore, redisClient *redis.Client) *StatsService {
	return &StatsService{
		store: accountStore,
		redis: redisClient,
	}
}

// CountActive returns the number of active accounts.
func (s *StatsService) CountActive() (int64, error) {
	ctx := context.Background()

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, activeCountKey).Result(); err == nil {
			if count, parseErr := strconv.ParseInt(cached, 10, 64); parseErr == nil {
				return count, nil
			}
		}
	}

	count, err := s.store.CountActive()
	if err != nil {
		return 0, err
	}

	s.cache(ctx, activeCountKey, strconv.FormatInt(count, 10))
	return count, nil
}

// SumActiveBalances returns the total balance held across active accounts.
func (s *StatsService) SumActiveBalances() (money.Amount, error) {
	ctx := context.Background()

	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, activeBalanceKey).Result(); err == nil {
			if total, parseErr := money.NewFromString(cached); parseErr == nil {
				return total, nil
			}
		}
	}

	total, err := s.store.SumActiveBalances()
	if err != nil {
		return money.Zero(), err
	}

	s.cache(ctx, activeBalanceKey, total.String())
	return total, nil
}

// Invalidate drops the cached aggregates. Called after any mutation that
// changes balances or account states.
func (s *StatsService) Invalidate() {
	if s.redis == nil {
		return
	}
	if err := s.redis.Del(context.Background(), activeCountKey, activeBalanceKey).Err(); err != nil {
		log.Printf("[STATS] Failed to invalidate stats cache: %v", err)
	}
}

func (s *StatsService) cache(ctx context.Context, key, value string) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, key, value, statsCacheTTL).Err(); err != nil {
		log.Printf("[STATS] Failed to cache %s, continuing without cache: %v", key, err)
	}
}
