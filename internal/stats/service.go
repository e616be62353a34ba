// Package stats keeps the running guess totals per image. Statistics are
// aggregate and outlive any single guess record, so they get a longer
// retention window.
package stats

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/victornm/subguessr/internal/domain"
	"github.com/victornm/subguessr/internal/event"
)

const retention = 90 * 24 * time.Hour

const (
	fieldTotal     = "total"
	fieldCorrect   = "correct"
	fieldIncorrect = "incorrect"
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

type Service struct {
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	// The ledger publishes guess.recorded exactly once per accepted guess, so
	// subscribing here gives the one-transition-per-guess invariant for free.
	if c.EventBus != nil {
		c.EventBus.Subscribe(domain.EventNameGuessRecorded, func(ctx context.Context, e event.Event) error {
			ev := e.(domain.EventGuessRecorded)
			_, err := s.RecordOutcome(ctx, ev.ImageID, ev.Record.IsCorrect)
			return err
		})
	}

	return s
}

// RecordOutcome bumps the totals for one completed guess and returns the
// updated snapshot. Counters are HINCRBY, never read-modify-write, so
// concurrent guesses on the same image cannot lose updates.
func (s *Service) RecordOutcome(ctx context.Context, imageID string, isCorrect bool) (*domain.ImageStats, error) {
	field := fieldIncorrect
	if isCorrect {
		field = fieldCorrect
	}

	key := s.statsKey(imageID)

	pipe := s.redis.TxPipeline()
	pipe.HIncrBy(ctx, key, fieldTotal, 1)
	pipe.HIncrBy(ctx, key, field, 1)
	pipe.Expire(ctx, key, retention)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("record outcome: %w", err)
	}

	return s.Get(ctx, imageID)
}

// Get returns the stats for an image, all-zero when nothing is recorded.
func (s *Service) Get(ctx context.Context, imageID string) (*domain.ImageStats, error) {
	m, err := s.redis.HGetAll(ctx, s.statsKey(imageID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get stats: %w", err)
	}

	st := &domain.ImageStats{
		TotalGuesses:     parseCount(m[fieldTotal]),
		CorrectGuesses:   parseCount(m[fieldCorrect]),
		IncorrectGuesses: parseCount(m[fieldIncorrect]),
	}
	st.SuccessRate = successRate(st.CorrectGuesses, st.TotalGuesses)

	return st, nil
}

func (s *Service) statsKey(imageID string) string {
	return fmt.Sprintf("%s:stats:%s", s.prefix, imageID)
}

func parseCount(v string) int64 {
	if v == "" {
		return 0
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0
	}

	return n
}

// successRate is round(100 * correct / total) as a whole percentage,
// 0 when there are no guesses.
func successRate(correct, total int64) int64 {
	if total == 0 {
		return 0
	}

	return decimal.NewFromInt(100 * correct).
		DivRound(decimal.NewFromInt(total), 0).
		IntPart()
}
