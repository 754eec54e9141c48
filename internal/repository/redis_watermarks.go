package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"BarForge/internal/domain/models"
	domrepo "BarForge/internal/domain/repository"
)

// casScript compares the stored watermark body against the caller's
// prior snapshot and swaps in the next one atomically. An empty prior
// means "create only". Returns 1 on success, 0 on conflict.
var casScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if ARGV[1] == '' then
  if cur then return 0 end
else
  if not cur or cur ~= ARGV[1] then return 0 end
end
redis.call('SET', KEYS[1], ARGV[2])
return 1
`)

// RedisWatermarkStore keeps per-(symbol, interval) checkpoints in Redis.
// The compare-and-advance runs server side in one Lua script, so two
// racing pipeline runs can never both commit the same period range.
type RedisWatermarkStore struct {
	client *redis.Client
	prefix string
}

func NewRedisWatermarkStore(client *redis.Client, prefix string) *RedisWatermarkStore {
	if prefix == "" {
		prefix = "barforge"
	}
	return &RedisWatermarkStore{client: client, prefix: prefix}
}

func (s *RedisWatermarkStore) key(symbol string, interval int) string {
	return fmt.Sprintf("%s:wm:%s:%d", s.prefix, symbol, interval)
}

func (s *RedisWatermarkStore) Get(ctx context.Context, symbol string, interval int) (*models.Watermark, error) {
	raw, err := s.client.Get(ctx, s.key(symbol, interval)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get watermark: %w", err)
	}
	var wm models.Watermark
	if err := json.Unmarshal([]byte(raw), &wm); err != nil {
		return nil, fmt.Errorf("decode watermark: %w", err)
	}
	return &wm, nil
}

func (s *RedisWatermarkStore) CompareAndAdvance(ctx context.Context, prior, next *models.Watermark) error {
	if next == nil {
		return fmt.Errorf("next watermark is nil")
	}
	priorBody := ""
	if prior != nil {
		b, err := json.Marshal(prior)
		if err != nil {
			return fmt.Errorf("encode prior: %w", err)
		}
		priorBody = string(b)
	}
	nextBody, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode next: %w", err)
	}

	ok, err := casScript.Run(ctx, s.client,
		[]string{s.key(next.Symbol, next.Interval)},
		priorBody, string(nextBody)).Int()
	if err != nil {
		return fmt.Errorf("cas watermark: %w", err)
	}
	if ok != 1 {
		return fmt.Errorf("watermark %s/%d: %w", next.Symbol, next.Interval, models.ErrConflict)
	}
	return nil
}

func (s *RedisWatermarkStore) Reset(ctx context.Context, symbol string, interval int) error {
	if err := s.client.Del(ctx, s.key(symbol, interval)).Err(); err != nil {
		return fmt.Errorf("reset watermark: %w", err)
	}
	return nil
}

func (s *RedisWatermarkStore) Set(ctx context.Context, wm *models.Watermark) error {
	b, err := json.Marshal(wm)
	if err != nil {
		return fmt.Errorf("encode watermark: %w", err)
	}
	if err := s.client.Set(ctx, s.key(wm.Symbol, wm.Interval), b, 0).Err(); err != nil {
		return fmt.Errorf("set watermark: %w", err)
	}
	return nil
}

func (s *RedisWatermarkStore) List(ctx context.Context, symbol string, intervals []int) ([]models.Watermark, error) {
	out := make([]models.Watermark, 0, len(intervals))
	for _, interval := range intervals {
		wm, err := s.Get(ctx, symbol, interval)
		if err != nil {
			return nil, err
		}
		if wm != nil {
			out = append(out, *wm)
		}
	}
	return out, nil
}

var _ domrepo.WatermarkStore = (*RedisWatermarkStore)(nil)
