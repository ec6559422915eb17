package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/nurpe/procurement-ipc/internal/model"
)

const defaultKeyPrefix = "ipc:summary:"

var errGenerationMoved = errors.New("summary generation moved")

// RedisSummaryCache keeps contract summaries in Redis. Every ledger write
// bumps the contract's generation and drops its entry. A summary is only
// stored if the generation it was computed under is still current, so a
// hit is never older than the last mutation. Redis failures degrade to
// cache misses.
type RedisSummaryCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	log       zerolog.Logger
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisSummaryCache(cfg RedisConfig, log zerolog.Logger) (*RedisSummaryCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisSummaryCacheWithClient(client, cfg.TTL, log), nil
}

func NewRedisSummaryCacheWithClient(client *redis.Client, ttl time.Duration, log zerolog.Logger) *RedisSummaryCache {
	return &RedisSummaryCache{
		client:    client,
		keyPrefix: defaultKeyPrefix,
		ttl:       ttl,
		log:       log.With().Str("component", "summary-cache").Logger(),
	}
}

func (c *RedisSummaryCache) key(contractID uuid.UUID) string {
	return c.keyPrefix + contractID.String()
}

func (c *RedisSummaryCache) generationKey(contractID uuid.UUID) string {
	return c.key(contractID) + ":gen"
}

// Generation returns the contract's current generation. Read it before
// loading the ledger and hand it back to SetSummary.
func (c *RedisSummaryCache) Generation(ctx context.Context, contractID uuid.UUID) int64 {
	gen, err := c.client.Get(ctx, c.generationKey(contractID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.Warn().Err(err).Str("contract_id", contractID.String()).Msg("summary generation read failed")
	}
	return gen
}

func (c *RedisSummaryCache) GetSummary(ctx context.Context, contractID uuid.UUID) (*model.ContractSummary, bool) {
	raw, err := c.client.Get(ctx, c.key(contractID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("contract_id", contractID.String()).Msg("summary cache read failed")
		}
		return nil, false
	}
	var summary model.ContractSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		c.log.Warn().Err(err).Str("contract_id", contractID.String()).Msg("summary cache entry corrupt")
		return nil, false
	}
	return &summary, true
}

// SetSummary stores summary unless the contract moved past generation
// while it was being computed.
func (c *RedisSummaryCache) SetSummary(ctx context.Context, summary model.ContractSummary, generation int64) {
	raw, err := json.Marshal(summary)
	if err != nil {
		c.log.Warn().Err(err).Msg("summary cache encode failed")
		return
	}

	genKey := c.generationKey(summary.ContractID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errGenerationMoved
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, c.key(summary.ContractID), raw, c.ttl)
			return nil
		})
		return err
	}, genKey)

	switch {
	case err == nil:
	case errors.Is(err, errGenerationMoved), errors.Is(err, redis.TxFailedErr):
		c.log.Debug().Str("contract_id", summary.ContractID.String()).Msg("summary cache write skipped, ledger changed")
	default:
		c.log.Warn().Err(err).Str("contract_id", summary.ContractID.String()).Msg("summary cache write failed")
	}
}

func (c *RedisSummaryCache) Invalidate(ctx context.Context, contractID uuid.UUID) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.generationKey(contractID))
		pipe.Del(ctx, c.key(contractID))
		return nil
	})
	if err != nil {
		c.log.Warn().Err(err).Str("contract_id", contractID.String()).Msg("summary cache invalidation failed")
	}
}

func (c *RedisSummaryCache) Close() error {
	return c.client.Close()
}

// NoopSummaryCache is used when no Redis is configured.
type NoopSummaryCache struct{}

func (NoopSummaryCache) GetSummary(context.Context, uuid.UUID) (*model.ContractSummary, bool) {
	return nil, false
}

func (NoopSummaryCache) Generation(context.Context, uuid.UUID) int64 { return 0 }

func (NoopSummaryCache) SetSummary(context.Context, model.ContractSummary, int64) {}

func (NoopSummaryCache) Invalidate(context.Context, uuid.UUID) {}
