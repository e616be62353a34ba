package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/subguessr/internal/domain"
	"github.com/victornm/subguessr/internal/event"
	"github.com/victornm/subguessr/internal/leaderboard"
)

func TestService_UpdateLeaderboard(t *testing.T) {
	s := makeService(t)

	err := s.UpdateLeaderboard(context.Background(), scoreUpdated("p1", "alice", 5))
	require.NoError(t, err)

	resp, err := s.TopN(context.Background(), leaderboard.TopNRequest{})
	require.NoError(t, err)

	want := &domain.Leaderboard{
		Entries: []domain.LeaderboardEntry{
			{Rank: 1, DisplayName: "alice", Score: 5},
		},
	}
	require.Equal(t, want, resp)
}

func TestService_TopN(t *testing.T) {
	s := makeService(t)

	for _, e := range []domain.EventScoreUpdated{
		scoreUpdated("p1", "alice", 3),
		scoreUpdated("p2", "bob", 7),
		scoreUpdated("p3", "carol", 1),
	} {
		require.NoError(t, s.UpdateLeaderboard(context.Background(), e))
	}

	t.Run("descending order with 1-based ranks", func(t *testing.T) {
		resp, err := s.TopN(context.Background(), leaderboard.TopNRequest{N: 10})
		require.NoError(t, err)
		require.Equal(t, []domain.LeaderboardEntry{
			{Rank: 1, DisplayName: "bob", Score: 7},
			{Rank: 2, DisplayName: "alice", Score: 3},
			{Rank: 3, DisplayName: "carol", Score: 1},
		}, resp.Entries)
	})

	t.Run("truncates to n", func(t *testing.T) {
		resp, err := s.TopN(context.Background(), leaderboard.TopNRequest{N: 2})
		require.NoError(t, err)
		require.Len(t, resp.Entries, 2)
		require.Equal(t, "bob", resp.Entries[0].DisplayName)
	})

	t.Run("empty board", func(t *testing.T) {
		resp, err := makeService(t).TopN(context.Background(), leaderboard.TopNRequest{})
		require.NoError(t, err)
		require.Empty(t, resp.Entries)
	})
}

func TestService_TopN_TieBreak(t *testing.T) {
	s := makeService(t)

	require.NoError(t, s.UpdateLeaderboard(context.Background(), scoreUpdated("p1", "alice", 2)))
	require.NoError(t, s.UpdateLeaderboard(context.Background(), scoreUpdated("p2", "bob", 2)))

	// Equal scores fall back to the ranked set's member order, which in a
	// descending view is reverse-lexicographic. Deterministic, and pinned here.
	resp, err := s.TopN(context.Background(), leaderboard.TopNRequest{})
	require.NoError(t, err)
	require.Equal(t, []domain.LeaderboardEntry{
		{Rank: 1, DisplayName: "bob", Score: 2},
		{Rank: 2, DisplayName: "alice", Score: 2},
	}, resp.Entries)
}

func TestService_UpdateLeaderboard_NeverRegresses(t *testing.T) {
	s := makeService(t)

	require.NoError(t, s.UpdateLeaderboard(context.Background(), scoreUpdated("p1", "alice", 4)))

	// A stale score delivered late must not lower the entry.
	require.NoError(t, s.UpdateLeaderboard(context.Background(), scoreUpdated("p1", "alice", 2)))

	resp, err := s.TopN(context.Background(), leaderboard.TopNRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(4), resp.Entries[0].Score)
}

func TestService_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventScoreUpdated
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish leaderboard.updated after receiving score.updated": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreUpdated{
						scoreUpdated("p1", "alice", 1),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
				require.Equal(t, domain.Leaderboard{
					Entries: []domain.LeaderboardEntry{
						{Rank: 1, DisplayName: "alice", Score: 1},
					},
				}, out.publishedEvents[0].Leaderboard)
			},
		},

		"should publish 1 event for a burst of score updates within the publish interval": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventScoreUpdated{
						scoreUpdated("p1", "alice", 1),
						scoreUpdated("p2", "bob", 1),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s := makeService(t,
				withEventBus(eb),
			)

			for _, e := range in.receivedEvents {
				err := s.UpdateLeaderboard(context.Background(), e)
				require.NoError(t, err)
			}

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func scoreUpdated(playerID, displayName string, total int64) domain.EventScoreUpdated {
	return domain.EventScoreUpdated{
		Score: domain.Score{
			PlayerID:    playerID,
			DisplayName: displayName,
			Total:       total,
			UpdateTime:  time.Now(),
		},
	}
}

func makeService(t *testing.T, opts ...options) *leaderboard.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	mr := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Redis:    rc,
		Prefix:   "local",
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c)
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}
