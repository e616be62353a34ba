package score_test

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
	"github.com/victornm/subguessr/internal/score"
)

func TestService_Get_Absent(t *testing.T) {
	s := makeService(t, event.NewBus())

	got, err := s.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, int64(0), got)
}

func TestService_Increment(t *testing.T) {
	eb := event.NewBus()
	s := makeService(t, eb)

	var (
		mu        sync.Mutex
		published []domain.EventScoreUpdated
	)
	eb.Subscribe(domain.EventNameScoreUpdated, func(ctx context.Context, e event.Event) error {
		mu.Lock()
		published = append(published, e.(domain.EventScoreUpdated))
		mu.Unlock()
		return nil
	})

	for want := int64(1); want <= 3; want++ {
		got, err := s.Increment(context.Background(), "p1", "alice")
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	got, err := s.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, int64(3), got)

	eb.Stop()

	require.Len(t, published, 3, "each increment publishes score.updated")
	totals := make([]int64, 0, len(published))
	for _, e := range published {
		require.Equal(t, "p1", e.Score.PlayerID)
		require.Equal(t, "alice", e.Score.DisplayName)
		totals = append(totals, e.Score.Total)
	}
	require.ElementsMatch(t, []int64{1, 2, 3}, totals)
}

func TestService_Increment_IsPerPlayer(t *testing.T) {
	s := makeService(t, event.NewBus())

	_, err := s.Increment(context.Background(), "p1", "alice")
	require.NoError(t, err)

	got, err := s.Get(context.Background(), "p2")
	require.NoError(t, err)
	require.Equal(t, int64(0), got)
}

func TestService_Get_MalformedScore(t *testing.T) {
	eb := event.NewBus()

	mr := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	s := score.NewService(score.Config{EventBus: eb, Redis: rc, Prefix: "local"})

	require.NoError(t, mr.Set("local:score:p1", "not-a-number"))

	got, err := s.Get(context.Background(), "p1")
	require.NoError(t, err)
	require.Equal(t, int64(0), got)
}

func makeService(t *testing.T, eb *event.Bus) *score.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	mr := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	return score.NewService(score.Config{
		EventBus: eb,
		Redis:    rc,
		Prefix:   "local",
	})
}
