// Package score tracks each player's cumulative score. An absent key reads
// as zero; scores have no expiry.
package score

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/subguessr/internal/domain"
	"github.com/victornm/subguessr/internal/event"
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	return &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}
}

// Get returns the player's score, 0 when absent.
func (s *Service) Get(ctx context.Context, playerID string) (int64, error) {
	v, err := s.redis.Get(ctx, s.scoreKey(playerID)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get score: %w", err)
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.ErrorContext(ctx, "score: malformed stored score, treating as zero",
			"player", playerID,
			"error", err,
		)
		return 0, nil
	}

	return n, nil
}

// Increment adds 1 to the player's score with a single INCR and returns the
// new total. The leaderboard mirror is updated asynchronously through the
// score.updated event.
func (s *Service) Increment(ctx context.Context, playerID, displayName string) (int64, error) {
	total, err := s.redis.Incr(ctx, s.scoreKey(playerID)).Result()
	if err != nil {
		return 0, fmt.Errorf("increment score: %w", err)
	}

	s.eb.Publish(ctx, domain.EventScoreUpdated{
		Score: domain.Score{
			PlayerID:    playerID,
			DisplayName: displayName,
			Total:       total,
			UpdateTime:  time.Now(),
		},
	})

	return total, nil
}

func (s *Service) scoreKey(playerID string) string {
	return fmt.Sprintf("%s:score:%s", s.prefix, playerID)
}
