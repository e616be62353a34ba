package leaderboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/subguessr/internal/domain"
	"github.com/victornm/subguessr/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond

	// DefaultTopN is how many entries a leaderboard request returns when the
	// caller doesn't say.
	DefaultTopN = 10
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
}

// Service maintains the single global ranked set of player scores.
// Members are "displayName:playerId"; ties between equal scores fall back to
// redis' lexicographic member order, which is deterministic.
type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
	}

	s.eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventScoreUpdated))
	})

	return s
}

// UpdateLeaderboard upserts the player's ranked entry to the new score.
// ZADD GT ensures a late-delivered stale score can never lower an entry.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventScoreUpdated) error {
	sc := e.Score

	if err := s.redis.ZAddGT(ctx, s.leaderboardKey(), redis.Z{
		Score:  float64(sc.Total),
		Member: member(sc.DisplayName, sc.PlayerID),
	}).Err(); err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, sc)
}

type TopNRequest struct {
	N int
}

// TopN returns at most n entries in descending score order with 1-based ranks.
func (s *Service) TopN(ctx context.Context, req TopNRequest) (*domain.Leaderboard, error) {
	n := req.N
	if n <= 0 {
		n = DefaultTopN
	}

	res, err := s.redis.ZRevRangeWithScores(ctx, s.leaderboardKey(), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(res))
	for i, z := range res {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:        i + 1,
			DisplayName: displayName(z.Member.(string)),
			Score:       int64(z.Score),
		})
	}

	return &domain.Leaderboard{Entries: entries}, nil
}

// schedulePublishLeaderboard publishes the leaderboard changes after a certain
// interval. Many scores can change in a short burst; the SETNX lock keeps it
// to one leaderboard.updated per interval across all instances.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, sc domain.Score) error {
	ok, err := s.redis.SetNX(ctx, s.publishedKey(), sc.UpdateTime.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	return s.publishLeaderboard(ctx, sc)
}

func (s *Service) publishLeaderboard(ctx context.Context, sc domain.Score) error {
	l, err := s.TopN(ctx, TopNRequest{N: DefaultTopN})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: %w", err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return s.redis.Set(ctx, s.publishedKey(), sc.UpdateTime.UnixMilli(), publishInterval).Err()
}

func (s *Service) leaderboardKey() string {
	return fmt.Sprintf("%s:leaderboard", s.prefix)
}

func (s *Service) publishedKey() string {
	return fmt.Sprintf("%s:leaderboard:published", s.prefix)
}

func member(displayName, playerID string) string {
	return displayName + ":" + playerID
}

// displayName strips the player-id suffix from a ranked-set member. The split
// is on the last colon so display names containing colons survive.
func displayName(member string) string {
	if i := strings.LastIndex(member, ":"); i >= 0 {
		return member[:i]
	}
	return member
}
