package challenge

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/victornm/subguessr/internal/domain"
	"github.com/victornm/subguessr/internal/errors"
)

const (
	defaultMaxAttempts = 10
	candidatePageSize  = 25
)

// imageHosts and imageSuffixes form the allow-list for references that
// plausibly denote an image.
var (
	imageHosts    = []string{"i.redd.it", "imgur.com"}
	imageSuffixes = []string{".jpg", ".png", ".gif"}
)

// Candidate is one item returned by the content feed for a category.
type Candidate struct {
	Reference    string
	ThumbnailRef string
}

// Feed lists candidate items for a category. Implementations may fail
// transiently; the generator treats a failure as one spent attempt.
type Feed interface {
	ListCandidates(ctx context.Context, category string, limit int) ([]Candidate, error)
}

type Config struct {
	Feed        Feed
	Categories  []string
	MaxAttempts int

	// IntN overrides the random source, for tests.
	IntN func(n int) int
}

// Generator produces candidate challenges by sampling the content feed.
type Generator struct {
	feed        Feed
	categories  []string
	maxAttempts int
	intN        func(n int) int
}

func NewGenerator(c Config) *Generator {
	g := &Generator{
		feed:        c.Feed,
		categories:  c.Categories,
		maxAttempts: c.MaxAttempts,
		intN:        c.IntN,
	}

	if len(g.categories) == 0 {
		g.categories = DefaultCategories
	}
	if g.maxAttempts <= 0 {
		g.maxAttempts = defaultMaxAttempts
	}
	if g.intN == nil {
		g.intN = rand.IntN
	}

	return g
}

// Generate picks a random category, lists a page of candidates from the feed
// and returns a random candidate that passes the image allow-list. Transport
// errors and empty pages cost one attempt each; when all attempts are spent
// it fails with CodeUnavailable and no partial challenge.
func (g *Generator) Generate(ctx context.Context) (domain.Challenge, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		category := g.categories[g.intN(len(g.categories))]

		candidates, err := g.feed.ListCandidates(ctx, category, candidatePageSize)
		if err != nil {
			slog.ErrorContext(ctx, "challenge: generation attempt failed",
				"attempt", attempt,
				"category", category,
				"error", err,
			)
			continue
		}

		images := make([]Candidate, 0, len(candidates))
		for _, c := range candidates {
			if looksLikeImage(c) {
				images = append(images, c)
			}
		}
		if len(images) == 0 {
			continue
		}

		picked := images[g.intN(len(images))]

		// Re-validate the resolved reference: a candidate can pass the filter
		// on its thumbnail alone while resolving to a non-image reference.
		ref := resolveReference(picked)
		if !isImageReference(ref) {
			continue
		}

		return domain.Challenge{
			ImageURL: ref,
			Answer:   category,
			ImageID:  IdentityOf(ref, category),
		}, nil
	}

	return domain.Challenge{}, errors.New(errors.CodeUnavailable,
		errors.WithMessagef("could not generate challenge after %d attempts", g.maxAttempts))
}

func looksLikeImage(c Candidate) bool {
	if isImageReference(c.Reference) {
		return true
	}

	return c.ThumbnailRef != "" && !isSentinel(c.ThumbnailRef)
}

// resolveReference returns the candidate's image reference, falling back to
// the thumbnail when the primary reference is empty.
func resolveReference(c Candidate) string {
	if c.Reference != "" {
		return c.Reference
	}
	return c.ThumbnailRef
}

func isImageReference(ref string) bool {
	if ref == "" || isSentinel(ref) {
		return false
	}

	for _, h := range imageHosts {
		if strings.Contains(ref, h) {
			return true
		}
	}
	for _, s := range imageSuffixes {
		if strings.Contains(ref, s) {
			return true
		}
	}

	return false
}

// isSentinel reports whether ref is one of the feed's placeholder values for
// "no image here".
func isSentinel(ref string) bool {
	return ref == "self" || ref == "default"
}
