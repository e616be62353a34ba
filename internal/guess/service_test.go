package guess_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/subguessr/internal/domain"
	"github.com/victornm/subguessr/internal/errors"
	"github.com/victornm/subguessr/internal/guess"
)

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"R/Cats":  "cats",
		" cats ":  "cats",
		"cats":    "cats",
		"r/cats":  "cats",
		"R/CATS ": "cats",
	}

	for in, want := range tests {
		require.Equal(t, want, guess.Normalize(in), "input %q", in)
	}
}

func TestService_Record(t *testing.T) {
	s, _ := makeService(t)

	rec := domain.GuessRecord{
		Guess:     "cats",
		IsCorrect: true,
		Timestamp: time.Now().UTC().Truncate(time.Millisecond),
		ImageURL:  "img1",
		Answer:    "cats",
		ImageID:   "id1",
	}

	err := s.Record(context.Background(), "p1", "id1", rec)
	require.NoError(t, err)

	has, err := s.Has(context.Background(), "p1", "id1")
	require.NoError(t, err)
	require.True(t, has)

	got, err := s.Get(context.Background(), "p1", "id1")
	require.NoError(t, err)
	require.Equal(t, &rec, got)
}

func TestService_Record_Duplicate(t *testing.T) {
	s, _ := makeService(t)

	first := domain.GuessRecord{Guess: "cats", IsCorrect: true, ImageID: "id1"}
	require.NoError(t, s.Record(context.Background(), "p1", "id1", first))

	// A second write must fail and leave the stored record untouched.
	err := s.Record(context.Background(), "p1", "id1", domain.GuessRecord{Guess: "dogs", IsCorrect: false, ImageID: "id1"})
	require.True(t, errors.Is(err, errors.CodeAlreadyExists), "want CodeAlreadyExists, got %v", err)

	got, err := s.Get(context.Background(), "p1", "id1")
	require.NoError(t, err)
	require.Equal(t, "cats", got.Guess)
	require.True(t, got.IsCorrect)
}

func TestService_Record_IsScopedPerPlayerAndImage(t *testing.T) {
	s, _ := makeService(t)

	require.NoError(t, s.Record(context.Background(), "p1", "id1", domain.GuessRecord{Guess: "cats"}))
	require.NoError(t, s.Record(context.Background(), "p2", "id1", domain.GuessRecord{Guess: "dogs"}))
	require.NoError(t, s.Record(context.Background(), "p1", "id2", domain.GuessRecord{Guess: "birds"}))

	has, err := s.Has(context.Background(), "p2", "id2")
	require.NoError(t, err)
	require.False(t, has)
}

func TestService_Record_Expires(t *testing.T) {
	s, mr := makeService(t)

	require.NoError(t, s.Record(context.Background(), "p1", "id1", domain.GuessRecord{Guess: "cats"}))
	require.Equal(t, 7*24*time.Hour, mr.TTL("local:guess:p1:id1"))

	mr.FastForward(7*24*time.Hour + time.Second)

	has, err := s.Has(context.Background(), "p1", "id1")
	require.NoError(t, err)
	require.False(t, has)
}

func TestService_Get_MalformedRecord(t *testing.T) {
	s, mr := makeService(t)

	require.NoError(t, mr.Set("local:guess:p1:id1", "{not json"))

	got, err := s.Get(context.Background(), "p1", "id1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func makeService(t *testing.T) (*guess.Service, *miniredis.Miniredis) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	mr := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	return guess.NewService(guess.Config{
		Redis:  rc,
		Prefix: "local",
	}), mr
}
