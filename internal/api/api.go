package api

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/subguessr/internal/archive"
	"github.com/victornm/subguessr/internal/domain"
	"github.com/victornm/subguessr/internal/errors"
	"github.com/victornm/subguessr/internal/event"
	"github.com/victornm/subguessr/internal/game"
	"github.com/victornm/subguessr/internal/leaderboard"
)

// Identity headers filled in by the identity-providing proxy. Both values are
// opaque to the game.
const (
	headerPlayerID    = "X-Player-Id"
	headerDisplayName = "X-Player-Name"
)

const anonymousName = "anonymous"

type Config struct {
	Engine      *gin.Engine
	EventBus    *event.Bus
	Game        *game.Service
	Leaderboard *leaderboard.Service
	Archive     *archive.Service
	Categories  []string

	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	game       *game.Service
	ls         *leaderboard.Service
	archive    *archive.Service
	categories []string

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		game:       c.Game,
		ls:         c.Leaderboard,
		archive:    c.Archive,
		categories: c.Categories,
		redis:      c.Redis,
		prefix:     c.PubsubPrefix,
	}

	e := c.Engine
	e.GET("/api/init", a.Init)
	e.POST("/api/new-game", a.NewGame)
	e.POST("/api/guess", a.Guess)
	e.GET("/api/stats", a.Stats)
	e.GET("/api/leaderboard", a.Leaderboard)
	e.GET("/api/categories", a.Categories)
	e.POST("/api/share", a.Share)
	e.POST("/internal/posts", a.CreatePost)
	if a.archive != nil {
		e.GET("/api/history", a.History)
	}

	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}

type (
	ChallengeData struct {
		ImageURL string `json:"imageUrl"`
		Answer   string `json:"answer"`
		ImageID  string `json:"imageId"`
	}

	GuessData struct {
		Guess     string `json:"guess"`
		IsCorrect bool   `json:"isCorrect"`
		Timestamp int64  `json:"timestamp"`
	}

	ImageStats struct {
		TotalGuesses     int64 `json:"totalGuesses"`
		CorrectGuesses   int64 `json:"correctGuesses"`
		IncorrectGuesses int64 `json:"incorrectGuesses"`
		SuccessRate      int64 `json:"successRate"`
	}

	InitResponse struct {
		Type          string         `json:"type"`
		PostID        string         `json:"postId"`
		Username      string         `json:"username"`
		UserScore     int64          `json:"userScore"`
		ChallengeData *ChallengeData `json:"challengeData,omitempty"`
		HasGuessed    bool           `json:"hasGuessed"`
		GuessData     *GuessData     `json:"guessData,omitempty"`
		PostStats     *ImageStats    `json:"postStats,omitempty"`
	}
)

func (a *API) Init(c *gin.Context) {
	postID := c.Query("postId")
	if postID == "" {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("postId is required")))
		return
	}

	playerID := c.GetHeader(headerPlayerID)

	sess, err := a.game.StartOrResume(c.Request.Context(), postID, playerID)
	if err != nil {
		abort(c, err)
		return
	}

	resp := InitResponse{
		Type:          "init",
		PostID:        postID,
		Username:      displayNameOf(c),
		UserScore:     sess.Score,
		ChallengeData: challengeData(sess.Challenge),
		HasGuessed:    sess.HasGuessed,
	}

	if sess.PriorGuess != nil {
		resp.GuessData = &GuessData{
			Guess:     sess.PriorGuess.Guess,
			IsCorrect: sess.PriorGuess.IsCorrect,
			Timestamp: sess.PriorGuess.Timestamp.UnixMilli(),
		}
	}
	if sess.Stats != nil {
		resp.PostStats = imageStats(sess.Stats)
	}

	c.JSON(200, resp)
}

type NewGameRequest struct {
	PostID string `json:"postId"`
}

func (a *API) NewGame(c *gin.Context) {
	var req NewGameRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PostID == "" {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("postId is required")))
		return
	}

	ch, err := a.game.NewRound(c.Request.Context(), req.PostID, c.GetHeader(headerPlayerID))
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(200, gin.H{
		"status":        "success",
		"message":       "New challenge loaded",
		"challengeData": challengeData(ch),
	})
}

type GuessRequest struct {
	Guess    string `json:"guess"`
	ImageURL string `json:"imageUrl"`
	Answer   string `json:"answer"`
}

func (a *API) Guess(c *gin.Context) {
	var req GuessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}
	if req.Guess == "" || req.ImageURL == "" || req.Answer == "" {
		abort(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("guess, imageUrl, and answer are required")))
		return
	}

	res, err := a.game.SubmitGuess(c.Request.Context(),
		c.GetHeader(headerPlayerID), displayNameOf(c),
		domain.Challenge{ImageURL: req.ImageURL, Answer: req.Answer},
		req.Guess,
	)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(200, gin.H{
		"type":          "guess",
		"isCorrect":     res.IsCorrect,
		"userGuess":     res.NormalizedGuess,
		"correctAnswer": res.CorrectAnswer,
		"newScore":      res.NewScore,
	})
}

func (a *API) Stats(c *gin.Context) {
	imageURL, answer := c.Query("imageUrl"), c.Query("answer")
	if imageURL == "" || answer == "" {
		abort(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("imageUrl and answer are required")))
		return
	}

	st, err := a.game.Stats(c.Request.Context(), domain.Challenge{ImageURL: imageURL, Answer: answer})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(200, gin.H{"imageStats": imageStats(st)})
}

func (a *API) Leaderboard(c *gin.Context) {
	var req struct {
		Limit int `form:"limit"`
	}
	_ = c.ShouldBindQuery(&req)

	l, err := a.ls.TopN(c.Request.Context(), leaderboard.TopNRequest{N: req.Limit})
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(200, gin.H{
		"type":        "leaderboard",
		"leaderboard": leaderboardEntries(l),
	})
}

func (a *API) Categories(c *gin.Context) {
	c.JSON(200, gin.H{"categories": a.categories})
}

type ShareRequest struct {
	ImageURL string `json:"imageUrl"`
	Answer   string `json:"answer"`
}

func (a *API) Share(c *gin.Context) {
	var req ShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, errors.New(errors.CodeInvalidArgument, errors.WithCause(err)))
		return
	}

	postID, err := a.game.Share(c.Request.Context(), req.ImageURL, req.Answer)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(200, gin.H{
		"status":  "success",
		"message": "Challenge shared successfully",
		"postId":  postID,
	})
}

func (a *API) CreatePost(c *gin.Context) {
	postID, _, err := a.game.CreatePost(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(200, gin.H{
		"status":  "success",
		"message": "Post created",
		"postId":  postID,
	})
}

func (a *API) History(c *gin.Context) {
	playerID := c.GetHeader(headerPlayerID)
	if playerID == "" {
		abort(c, errors.New(errors.CodeUnauthenticated,
			errors.WithMessagef("a player identity is required")))
		return
	}

	var req struct {
		Limit int `form:"limit"`
	}
	_ = c.ShouldBindQuery(&req)
	if req.Limit <= 0 {
		req.Limit = 50
	}

	records, err := a.archive.History(c.Request.Context(), playerID, req.Limit)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(200, gin.H{"history": records})
}

func displayNameOf(c *gin.Context) string {
	if name := c.GetHeader(headerDisplayName); name != "" {
		return name
	}
	return anonymousName
}

func challengeData(ch *domain.Challenge) *ChallengeData {
	if ch == nil {
		return nil
	}
	return &ChallengeData{ImageURL: ch.ImageURL, Answer: ch.Answer, ImageID: ch.ImageID}
}

func imageStats(st *domain.ImageStats) *ImageStats {
	if st == nil {
		return nil
	}
	return &ImageStats{
		TotalGuesses:     st.TotalGuesses,
		CorrectGuesses:   st.CorrectGuesses,
		IncorrectGuesses: st.IncorrectGuesses,
		SuccessRate:      st.SuccessRate,
	}
}

func abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), gin.H{
		"status":  "error",
		"message": e.Message,
	})
}
