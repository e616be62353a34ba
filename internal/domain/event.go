package domain

const (
	EventNameGuessRecorded      = "guess.recorded"
	EventNameScoreUpdated       = "score.updated"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

// EventGuessRecorded is published after the ledger accepts a new guess,
// and exactly once per accepted guess.
type EventGuessRecorded struct {
	PlayerID    string
	DisplayName string
	ImageID     string
	Record      GuessRecord
}

func (EventGuessRecorded) Name() string { return EventNameGuessRecorded }

type EventScoreUpdated struct {
	Score Score
}

func (EventScoreUpdated) Name() string { return EventNameScoreUpdated }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
