package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/eduguide-api/internal/dto"
)

// RosterSummaryCache stores per-teacher roster summaries in Redis. A nil client disables caching.
type RosterSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewRosterSummaryCache constructs the cache.
func NewRosterSummaryCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *RosterSummaryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RosterSummaryCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "roster_summary_cache").Logger(),
	}
}

func rosterSummaryKey(teacherID uint, generation int64) string {
	return fmt.Sprintf("summary:teacher:%d:g%d", teacherID, generation)
}

func rosterGenerationKey(teacherID uint) string {
	return fmt.Sprintf("summary:teacher:%d:generation", teacherID)
}

// generation returns the teacher's current summary generation. Summaries are stored under the
// generation read before the roster was loaded, so a concurrent Invalidate orphans them.
func (c *RosterSummaryCache) generation(ctx context.Context, teacherID uint) int64 {
	if c == nil || c.client == nil {
		return 0
	}

	value, err := c.client.Get(ctx, rosterGenerationKey(teacherID)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read roster summary generation")
		}
		return 0
	}
	return value
}

func (c *RosterSummaryCache) get(ctx context.Context, teacherID uint, generation int64) (dto.RosterSummaryResponse, bool) {
	if c == nil || c.client == nil {
		return dto.RosterSummaryResponse{}, false
	}

	cached, err := c.client.Get(ctx, rosterSummaryKey(teacherID, generation)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read roster summary cache")
		}
		return dto.RosterSummaryResponse{}, false
	}

	var summary dto.RosterSummaryResponse
	if err := json.Unmarshal([]byte(cached), &summary); err != nil {
		c.logger.Warn().Err(err).Msg("discarding malformed roster summary cache entry")
		return dto.RosterSummaryResponse{}, false
	}
	return summary, true
}

func (c *RosterSummaryCache) set(ctx context.Context, teacherID uint, generation int64, summary dto.RosterSummaryResponse) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, rosterSummaryKey(teacherID, generation), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to store roster summary cache")
	}
}

// Invalidate bumps the summary generation of the given teachers.
func (c *RosterSummaryCache) Invalidate(ctx context.Context, teacherIDs ...uint) {
	if c == nil || c.client == nil || len(teacherIDs) == 0 {
		return
	}

	pipe := c.client.TxPipeline()
	for _, id := range teacherIDs {
		pipe.Incr(ctx, rosterGenerationKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("failed to invalidate roster summary cache")
	}
}
