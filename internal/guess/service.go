// Package guess is the write-once ledger of player guesses, keyed by
// (player, content identity).
package guess

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/subguessr/internal/domain"
	"github.com/victornm/subguessr/internal/errors"
)

// recordTTL is how long an individual guess is retained.
const recordTTL = 7 * 24 * time.Hour

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
}

type Service struct {
	redis  redis.UniversalClient
	prefix string
}

func NewService(c Config) *Service {
	return &Service{
		redis:  c.Redis,
		prefix: c.Prefix,
	}
}

// Has reports whether the player already guessed on this image.
func (s *Service) Has(ctx context.Context, playerID, imageID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.recordKey(playerID, imageID)).Result()
	if err != nil {
		return false, fmt.Errorf("check guess: %w", err)
	}

	return n > 0, nil
}

// Record persists the guess, failing with CodeAlreadyExists when a record for
// (player, image) exists. The write is a single SETNX so two concurrent
// submissions from the same player cannot both be scored; callers must treat
// this, not a prior Has check, as the duplicate guard.
func (s *Service) Record(ctx context.Context, playerID, imageID string, rec domain.GuessRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal guess record: %w", err)
	}

	ok, err := s.redis.SetNX(ctx, s.recordKey(playerID, imageID), b, recordTTL).Result()
	if err != nil {
		return fmt.Errorf("record guess: %w", err)
	}
	if !ok {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("already guessed on this image: player=%s image=%s", playerID, imageID))
	}

	return nil
}

// Get returns the stored guess record, or nil when absent. A record that
// fails to deserialize is logged and treated as absent so the game stays
// playable.
func (s *Service) Get(ctx context.Context, playerID, imageID string) (*domain.GuessRecord, error) {
	b, err := s.redis.Get(ctx, s.recordKey(playerID, imageID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get guess: %w", err)
	}

	var rec domain.GuessRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		slog.ErrorContext(ctx, "guess: malformed stored record, treating as absent",
			"player", playerID,
			"image", imageID,
			"error", err,
		)
		return nil, nil
	}

	return &rec, nil
}

func (s *Service) recordKey(playerID, imageID string) string {
	return fmt.Sprintf("%s:guess:%s:%s", s.prefix, playerID, imageID)
}

// Normalize cleans a submitted label for comparison and storage: lowercase,
// leading "r/" marker stripped, surrounding whitespace trimmed.
func Normalize(guess string) string {
	g := strings.ToLower(guess)
	g = strings.TrimPrefix(g, "r/")
	return strings.TrimSpace(g)
}

// IsCorrect compares a normalized guess against the challenge's answer label.
func IsCorrect(normalized, answer string) bool {
	return normalized == strings.ToLower(answer)
}
