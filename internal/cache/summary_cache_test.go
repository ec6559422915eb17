package cache

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/nurpe/procurement-ipc/internal/model"
)

// unreachableCache points at a port nothing listens on so every call fails fast.
func unreachableCache() *RedisSummaryCache {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	return NewRedisSummaryCacheWithClient(client, time.Minute, zerolog.Nop())
}

func TestRedisSummaryCache_Key(t *testing.T) {
	c := unreachableCache()
	defer c.Close()
	id := uuid.MustParse("6f1f1f1f-1111-4111-8111-111111111111")
	assert.Equal(t, "ipc:summary:6f1f1f1f-1111-4111-8111-111111111111", c.key(id))
	assert.Equal(t, "ipc:summary:6f1f1f1f-1111-4111-8111-111111111111:gen", c.generationKey(id))
}

func TestRedisSummaryCache_FailuresDegradeToMiss(t *testing.T) {
	c := unreachableCache()
	defer c.Close()
	ctx := context.Background()
	id := uuid.New()

	assert.Zero(t, c.Generation(ctx, id))
	c.SetSummary(ctx, model.ContractSummary{ContractID: id}, 0)
	c.Invalidate(ctx, id)
	summary, ok := c.GetSummary(ctx, id)
	assert.False(t, ok)
	assert.Nil(t, summary)
}

func TestNoopSummaryCache(t *testing.T) {
	var c NoopSummaryCache
	ctx := context.Background()
	id := uuid.New()
	c.SetSummary(ctx, model.ContractSummary{ContractID: id}, c.Generation(ctx, id))
	_, ok := c.GetSummary(ctx, id)
	assert.False(t, ok)
}
