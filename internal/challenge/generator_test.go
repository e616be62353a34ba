package challenge_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/victornm/subguessr/internal/challenge"
	"github.com/victornm/subguessr/internal/errors"
)

type feedFunc func(ctx context.Context, category string, limit int) ([]challenge.Candidate, error)

func (f feedFunc) ListCandidates(ctx context.Context, category string, limit int) ([]challenge.Candidate, error) {
	return f(ctx, category, limit)
}

// pickFirst makes every random choice deterministic.
func pickFirst(int) int { return 0 }

func TestGenerator_Generate(t *testing.T) {
	t.Run("picks a candidate from the allow-list", func(t *testing.T) {
		g := challenge.NewGenerator(challenge.Config{
			Categories: []string{"cats"},
			IntN:       pickFirst,
			Feed: feedFunc(func(_ context.Context, category string, limit int) ([]challenge.Candidate, error) {
				require.Equal(t, "cats", category)
				require.Equal(t, 25, limit)
				return []challenge.Candidate{
					{Reference: "https://example.com/article"},
					{Reference: "https://i.redd.it/abc.jpg"},
				}, nil
			}),
		})

		ch, err := g.Generate(context.Background())
		require.NoError(t, err)
		require.Equal(t, "https://i.redd.it/abc.jpg", ch.ImageURL)
		require.Equal(t, "cats", ch.Answer)
		require.Equal(t, challenge.IdentityOf(ch.ImageURL, ch.Answer), ch.ImageID)
	})

	t.Run("transport errors cost one attempt each", func(t *testing.T) {
		calls := 0
		g := challenge.NewGenerator(challenge.Config{
			Categories: []string{"cats"},
			IntN:       pickFirst,
			Feed: feedFunc(func(context.Context, string, int) ([]challenge.Candidate, error) {
				calls++
				if calls <= 2 {
					return nil, fmt.Errorf("connection reset")
				}
				return []challenge.Candidate{{Reference: "https://i.redd.it/abc.jpg"}}, nil
			}),
		})

		ch, err := g.Generate(context.Background())
		require.NoError(t, err)
		require.Equal(t, 3, calls)
		require.Equal(t, "https://i.redd.it/abc.jpg", ch.ImageURL)
	})

	t.Run("exhausts the attempt budget", func(t *testing.T) {
		calls := 0
		g := challenge.NewGenerator(challenge.Config{
			Categories:  []string{"cats"},
			MaxAttempts: 4,
			IntN:        pickFirst,
			Feed: feedFunc(func(context.Context, string, int) ([]challenge.Candidate, error) {
				calls++
				return nil, fmt.Errorf("feed down")
			}),
		})

		_, err := g.Generate(context.Background())
		require.True(t, errors.Is(err, errors.CodeUnavailable), "want CodeUnavailable, got %v", err)
		require.Equal(t, 4, calls)
	})

	t.Run("sentinel thumbnails are not images", func(t *testing.T) {
		g := challenge.NewGenerator(challenge.Config{
			Categories:  []string{"cats"},
			MaxAttempts: 2,
			IntN:        pickFirst,
			Feed: feedFunc(func(context.Context, string, int) ([]challenge.Candidate, error) {
				return []challenge.Candidate{
					{Reference: "https://example.com/text-post", ThumbnailRef: "self"},
					{Reference: "", ThumbnailRef: "default"},
				}, nil
			}),
		})

		_, err := g.Generate(context.Background())
		require.True(t, errors.Is(err, errors.CodeUnavailable))
	})

	t.Run("re-validates the resolved reference", func(t *testing.T) {
		// A candidate can pass the filter on a real thumbnail while its
		// resolved reference still isn't an image.
		g := challenge.NewGenerator(challenge.Config{
			Categories:  []string{"cats"},
			MaxAttempts: 2,
			IntN:        pickFirst,
			Feed: feedFunc(func(context.Context, string, int) ([]challenge.Candidate, error) {
				return []challenge.Candidate{
					{Reference: "https://example.com/gallery", ThumbnailRef: "https://thumbs.example.com/t"},
				}, nil
			}),
		})

		_, err := g.Generate(context.Background())
		require.True(t, errors.Is(err, errors.CodeUnavailable))
	})

	t.Run("falls back to the thumbnail reference", func(t *testing.T) {
		g := challenge.NewGenerator(challenge.Config{
			Categories: []string{"cats"},
			IntN:       pickFirst,
			Feed: feedFunc(func(context.Context, string, int) ([]challenge.Candidate, error) {
				return []challenge.Candidate{
					{Reference: "", ThumbnailRef: "https://i.redd.it/thumb.png"},
				}, nil
			}),
		})

		ch, err := g.Generate(context.Background())
		require.NoError(t, err)
		require.Equal(t, "https://i.redd.it/thumb.png", ch.ImageURL)
	})
}
