// Package archive keeps a durable append-only mirror of the guess ledger in
// postgres. Ledger records expire after a week; the archive does not, so
// long-term analysis survives redis eviction.
package archive

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/subguessr/internal/domain"
	"github.com/victornm/subguessr/internal/event"
)

type Config struct {
	EventBus *event.Bus
	DB       *pgxpool.Pool
}

type Service struct {
	db *pgxpool.Pool
}

func NewService(c Config) *Service {
	s := &Service{db: c.DB}

	c.EventBus.Subscribe(domain.EventNameGuessRecorded, func(ctx context.Context, e event.Event) error {
		return s.Append(ctx, e.(domain.EventGuessRecorded))
	})

	return s
}

// Append inserts one guess row. The ledger already guarantees at most one
// guess per (player, image); a unique violation here means the event was
// redelivered and the row is simply kept as-is.
func (s *Service) Append(ctx context.Context, e domain.EventGuessRecorded) error {
	const stmt = `
INSERT INTO guesses (player_id, image_id, guess, is_correct, image_url, answer, create_time)
VALUES ($1, $2, $3, $4, $5, $6, $7);`

	_, err := s.db.Exec(ctx, stmt,
		e.PlayerID, e.ImageID, e.Record.Guess, e.Record.IsCorrect,
		e.Record.ImageURL, e.Record.Answer, e.Record.Timestamp)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return nil
	}

	return err
}

// History lists a player's archived guesses, newest first.
func (s *Service) History(ctx context.Context, playerID string, limit int) ([]domain.GuessRecord, error) {
	const stmt = `
SELECT guess, is_correct, image_url, answer, image_id, create_time
FROM guesses
WHERE player_id = $1
ORDER BY create_time DESC
LIMIT $2;`

	rows, err := s.db.Query(ctx, stmt, playerID, limit)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.GuessRecord, error) {
		var (
			rec domain.GuessRecord
			ts  time.Time
		)
		if err := r.Scan(&rec.Guess, &rec.IsCorrect, &rec.ImageURL, &rec.Answer, &rec.ImageID, &ts); err != nil {
			return domain.GuessRecord{}, err
		}
		rec.Timestamp = ts
		return rec, nil
	})
}
