// Package game orchestrates one unit of work per player action: entering a
// post, asking for a new round, submitting a guess. It owns no state of its
// own; everything durable lives behind the component services.
package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/victornm/subguessr/internal/challenge"
	"github.com/victornm/subguessr/internal/domain"
	"github.com/victornm/subguessr/internal/errors"
	"github.com/victornm/subguessr/internal/event"
	"github.com/victornm/subguessr/internal/guess"
	"github.com/victornm/subguessr/internal/platform"
	"github.com/victornm/subguessr/internal/post"
	"github.com/victornm/subguessr/internal/score"
	"github.com/victornm/subguessr/internal/stats"
)

// newRoundAttempts bounds how often a new round is regenerated to dodge a
// challenge the player already answered. The last attempt is accepted
// unconditionally: a possibly-repeated challenge beats no challenge.
const newRoundAttempts = 3

const postTitle = "SubGuessr Challenge - Can you guess this sub?"

type Config struct {
	EventBus  *event.Bus
	Generator *challenge.Generator
	Posts     *post.Service
	Guesses   *guess.Service
	Scores    *score.Service
	Stats     *stats.Service

	// Platform is optional; without it the share/create-post flows fail with
	// CodeUnavailable while the rest of the game keeps working.
	Platform platform.Client
}

type Service struct {
	eb        *event.Bus
	generator *challenge.Generator
	posts     *post.Service
	guesses   *guess.Service
	scores    *score.Service
	stats     *stats.Service
	platform  platform.Client
}

func NewService(c Config) *Service {
	return &Service{
		eb:        c.EventBus,
		generator: c.Generator,
		posts:     c.Posts,
		guesses:   c.Guesses,
		scores:    c.Scores,
		stats:     c.Stats,
		platform:  c.Platform,
	}
}

// Session is what a player sees on entering a post.
type Session struct {
	Challenge  *domain.Challenge
	HasGuessed bool
	PriorGuess *domain.GuessRecord
	Score      int64
	Stats      *domain.ImageStats
}

// StartOrResume loads the post's original challenge (falling back to a legacy
// current-only binding), resets the current challenge to it, and looks up the
// caller's standing on it. Challenge is nil when the post has no binding.
func (s *Service) StartOrResume(ctx context.Context, postID, playerID string) (*Session, error) {
	ch, err := s.posts.ResetCurrentToOriginal(ctx, postID)
	if err != nil {
		return nil, err
	}

	sess := &Session{Challenge: ch}

	if playerID != "" {
		if sess.Score, err = s.scores.Get(ctx, playerID); err != nil {
			return nil, err
		}
	}

	if ch == nil {
		return sess, nil
	}

	if sess.Stats, err = s.stats.Get(ctx, ch.ImageID); err != nil {
		return nil, err
	}

	if playerID != "" {
		rec, err := s.guesses.Get(ctx, playerID, ch.ImageID)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			sess.HasGuessed = true
			sess.PriorGuess = rec
		}
	}

	return sess, nil
}

// NewRound generates a fresh challenge for the post and stores it as the
// current one, leaving the original untouched. It retries a bounded number of
// times to avoid an image the player already guessed on, then takes whatever
// the final attempt produced.
func (s *Service) NewRound(ctx context.Context, postID, playerID string) (*domain.Challenge, error) {
	var ch domain.Challenge

	for attempt := 1; ; attempt++ {
		var err error
		if ch, err = s.generator.Generate(ctx); err != nil {
			return nil, err
		}

		if playerID == "" {
			break
		}

		guessed, err := s.guesses.Has(ctx, playerID, ch.ImageID)
		if err != nil {
			return nil, err
		}
		if !guessed {
			break
		}

		if attempt >= newRoundAttempts {
			slog.WarnContext(ctx, "game: no unguessed challenge found, using last generated",
				"player", playerID,
				"attempts", attempt,
			)
			break
		}
	}

	if err := s.posts.SetCurrent(ctx, postID, ch); err != nil {
		return nil, err
	}

	return &ch, nil
}

type GuessResult struct {
	IsCorrect       bool
	NormalizedGuess string
	CorrectAnswer   string
	NewScore        int64
}

// SubmitGuess scores the player's one guess on the challenge. The ledger
// write is the duplicate guard; a second guess on the same image fails with
// CodeAlreadyExists and changes nothing. A correct first guess bumps the
// player's score synchronously; stats follow from the guess.recorded event.
func (s *Service) SubmitGuess(ctx context.Context, playerID, displayName string, ch domain.Challenge, guessText string) (*GuessResult, error) {
	if playerID == "" {
		return nil, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("a player identity is required to guess"))
	}

	normalized := guess.Normalize(guessText)
	imageID := challenge.IdentityOf(ch.ImageURL, ch.Answer)

	rec := domain.GuessRecord{
		Guess:     normalized,
		IsCorrect: guess.IsCorrect(normalized, ch.Answer),
		Timestamp: time.Now(),
		ImageURL:  ch.ImageURL,
		Answer:    ch.Answer,
		ImageID:   imageID,
	}

	if err := s.guesses.Record(ctx, playerID, imageID, rec); err != nil {
		return nil, err
	}

	s.eb.Publish(ctx, domain.EventGuessRecorded{
		PlayerID:    playerID,
		DisplayName: displayName,
		ImageID:     imageID,
		Record:      rec,
	})

	res := &GuessResult{
		IsCorrect:       rec.IsCorrect,
		NormalizedGuess: normalized,
		CorrectAnswer:   ch.Answer,
	}

	var err error
	if rec.IsCorrect {
		res.NewScore, err = s.scores.Increment(ctx, playerID, displayName)
	} else {
		res.NewScore, err = s.scores.Get(ctx, playerID)
	}
	if err != nil {
		return nil, err
	}

	return res, nil
}

// Stats returns the aggregate difficulty stats for the challenge's image.
func (s *Service) Stats(ctx context.Context, ch domain.Challenge) (*domain.ImageStats, error) {
	return s.stats.Get(ctx, challenge.IdentityOf(ch.ImageURL, ch.Answer))
}

// CreatePost generates a fresh challenge, creates a sharable post for it and
// binds the challenge as the post's original.
func (s *Service) CreatePost(ctx context.Context) (string, *domain.Challenge, error) {
	ch, err := s.generator.Generate(ctx)
	if err != nil {
		return "", nil, err
	}

	postID, err := s.publishChallenge(ctx, ch, nil)
	if err != nil {
		return "", nil, err
	}

	return postID, &ch, nil
}

// Share turns a player-picked (image, answer) pair into a new sharable post.
func (s *Service) Share(ctx context.Context, imageURL, answer string) (string, error) {
	if imageURL == "" || answer == "" {
		return "", errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("imageUrl and answer are required"))
	}

	answer = strings.ToLower(answer)
	ch := domain.Challenge{
		ImageURL: imageURL,
		Answer:   answer,
		ImageID:  challenge.IdentityOf(imageURL, answer),
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate challenge id: %w", err)
	}

	return s.publishChallenge(ctx, ch, map[string]string{
		"challengeId": id.String(),
		"shared":      "true",
	})
}

func (s *Service) publishChallenge(ctx context.Context, ch domain.Challenge, metadata map[string]string) (string, error) {
	if s.platform == nil {
		return "", errors.New(errors.CodeUnavailable,
			errors.WithMessagef("no sharing platform configured"))
	}

	postID, err := s.platform.CreatePost(ctx, platform.Post{
		Title:    postTitle,
		ImageURL: ch.ImageURL,
		Metadata: metadata,
	})
	if err != nil {
		return "", fmt.Errorf("create post: %w", err)
	}

	if err := s.posts.BindOriginal(ctx, postID, ch); err != nil {
		return "", err
	}

	return postID, nil
}
