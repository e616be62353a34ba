package domain

import "time"

// Challenge is an (image reference, correct answer) pair shown to a player.
// The answer is a lowercase community label. A challenge is immutable once
// created; it lives embedded in a post binding or is passed around directly.
type Challenge struct {
	ImageURL string `json:"imageUrl"`
	Answer   string `json:"answer"`
	ImageID  string `json:"imageId"`
}

// GuessRecord is a player's one-shot guess on a specific image.
// Once written it never changes.
type GuessRecord struct {
	Guess     string    `json:"guess"`
	IsCorrect bool      `json:"isCorrect"`
	Timestamp time.Time `json:"timestamp"`
	ImageURL  string    `json:"imageUrl"`
	Answer    string    `json:"answer"`
	ImageID   string    `json:"imageId"`
}

// ImageStats are the running guess totals for one image, keyed by its
// content identity. Totals only ever grow.
type ImageStats struct {
	TotalGuesses     int64
	CorrectGuesses   int64
	IncorrectGuesses int64
	// SuccessRate is round(100 * correct / total), 0 when there are no guesses.
	SuccessRate int64
}

// Score is a player's cumulative score across all challenges.
type Score struct {
	PlayerID    string
	DisplayName string
	Total       int64
	UpdateTime  time.Time
}

// Leaderboard is the global ranked view over all player scores.
// Entries are sorted by score in descending order.
type Leaderboard struct {
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	Rank        int
	DisplayName string
	Score       int64
}
