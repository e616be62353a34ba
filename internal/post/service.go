// Package post binds sharable posts to challenges. Each post carries two
// snapshots: the original challenge, set once at post creation, and the
// current one, replaced on every new round and reset back to the original
// whenever the player re-enters the post.
package post

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/subguessr/internal/domain"
)

const bindingTTL = 7 * 24 * time.Hour

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

// BindOriginal stores ch as both the original and the current challenge for
// the post. Meant to be called exactly once, right after post creation.
func (s *Service) BindOriginal(ctx context.Context, postID string, ch domain.Challenge) error {
	b, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, s.originalKey(postID), b, bindingTTL)
	pipe.Set(ctx, s.currentKey(postID), b, bindingTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("bind original challenge: %w", err)
	}

	return nil
}

// SetCurrent replaces the current challenge without touching the original.
func (s *Service) SetCurrent(ctx context.Context, postID string, ch domain.Challenge) error {
	b, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal challenge: %w", err)
	}

	if err := s.redis.Set(ctx, s.currentKey(postID), b, bindingTTL).Err(); err != nil {
		return fmt.Errorf("set current challenge: %w", err)
	}

	return nil
}

// ResetCurrentToOriginal overwrites the current challenge from the original
// and returns it. Bindings written before originals existed only have a
// current snapshot; that one is used as the fallback. Returns nil when the
// post has no binding at all.
func (s *Service) ResetCurrentToOriginal(ctx context.Context, postID string) (*domain.Challenge, error) {
	b, err := s.redis.Get(ctx, s.originalKey(postID)).Bytes()
	if err == redis.Nil {
		b, err = s.redis.Get(ctx, s.currentKey(postID)).Bytes()
	}
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get original challenge: %w", err)
	}

	ch := s.unmarshalChallenge(ctx, postID, b)
	if ch == nil {
		return nil, nil
	}

	if err := s.redis.Set(ctx, s.currentKey(postID), b, bindingTTL).Err(); err != nil {
		return nil, fmt.Errorf("reset current challenge: %w", err)
	}

	return ch, nil
}

func (s *Service) GetOriginal(ctx context.Context, postID string) (*domain.Challenge, error) {
	return s.getChallenge(ctx, postID, s.originalKey(postID))
}

func (s *Service) GetCurrent(ctx context.Context, postID string) (*domain.Challenge, error) {
	return s.getChallenge(ctx, postID, s.currentKey(postID))
}

func (s *Service) getChallenge(ctx context.Context, postID, key string) (*domain.Challenge, error) {
	b, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get challenge: %w", err)
	}

	return s.unmarshalChallenge(ctx, postID, b), nil
}

// unmarshalChallenge returns nil for a snapshot that fails to deserialize;
// the post then behaves as unbound instead of breaking the game.
func (s *Service) unmarshalChallenge(ctx context.Context, postID string, b []byte) *domain.Challenge {
	var ch domain.Challenge
	if err := json.Unmarshal(b, &ch); err != nil {
		slog.ErrorContext(ctx, "post: malformed stored challenge, treating as absent",
			"post", postID,
			"error", err,
		)
		return nil
	}

	return &ch
}

func (s *Service) originalKey(postID string) string {
	return fmt.Sprintf("%s:post:%s:original", s.prefix, postID)
}

func (s *Service) currentKey(postID string) string {
	return fmt.Sprintf("%s:post:%s:current", s.prefix, postID)
}
