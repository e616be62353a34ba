package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/subguessr/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	LeaderboardEntry struct {
		Rank     int    `json:"rank"`
		Username string `json:"username"`
		Score    int64  `json:"score"`
	}
)

func leaderboardEntries(l *domain.Leaderboard) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(l.Entries))
	for _, e := range l.Entries {
		entries = append(entries, LeaderboardEntry{
			Rank:     e.Rank,
			Username: e.DisplayName,
			Score:    e.Score,
		})
	}
	return entries
}

// PublishLeaderboardUpdated fans a leaderboard change out over redis pubsub:
// once on the shared board channel and once per ranked player.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	entries := leaderboardEntries(&e.Leaderboard)

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	eg.Go(func() error {
		return a.publishNotification(ctx, a.boardChannel(), e.Name(), entries)
	})

	for _, entry := range entries {
		eg.Go(func() error {
			return a.publishNotification(ctx, a.userChannel(entry.Username), e.Name(), entries)
		})
	}

	return eg.Wait()
}

func (a *API) publishNotification(ctx context.Context, channel, event string, data any) error {
	n := Notification{
		Event: event,
		Data:  data,
	}

	b, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %v", event, err)
	}

	return a.redis.Publish(ctx, channel, b).Err()
}

func (a *API) boardChannel() string {
	return fmt.Sprintf("%s:leaderboard", a.prefix)
}

func (a *API) userChannel(user string) string {
	return fmt.Sprintf("%s:user:%s", a.prefix, user)
}
