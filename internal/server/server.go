package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/subguessr/internal/api"
	"github.com/victornm/subguessr/internal/archive"
	"github.com/victornm/subguessr/internal/challenge"
	"github.com/victornm/subguessr/internal/event"
	"github.com/victornm/subguessr/internal/feed"
	"github.com/victornm/subguessr/internal/game"
	"github.com/victornm/subguessr/internal/guess"
	"github.com/victornm/subguessr/internal/leaderboard"
	"github.com/victornm/subguessr/internal/platform"
	"github.com/victornm/subguessr/internal/post"
	"github.com/victornm/subguessr/internal/score"
	"github.com/victornm/subguessr/internal/stats"
	"github.com/victornm/subguessr/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Store struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Postgres struct {
		Archive struct {
			// Addr empty disables the archive.
			Addr string
			User string
			Pass string
			Name string
		}
	}

	Feed struct {
		BaseURL   string
		UserAgent string
	}

	Platform struct {
		// BaseURL empty disables the share/create-post flows.
		BaseURL string
		Token   string
	}

	Game struct {
		Categories []string
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis struct {
			store  redis.UniversalClient
			pubsub redis.UniversalClient
		}

		postgres struct {
			archive *pgxpool.Pool
		}
	}

	service struct {
		posts       *post.Service
		guesses     *guess.Service
		scores      *score.Service
		stats       *stats.Service
		leaderboard *leaderboard.Service
		archive     *archive.Service
		game        *game.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.store, err = connect(s.c.Redis.Store.Addrs, s.c.Redis.Store.Pass)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}

	s.infra.redis.pubsub, err = connect(s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initPostgres() error {
	pg := s.c.Postgres.Archive
	if pg.Addr == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pg.User, pg.Pass, pg.Addr, pg.Name))
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("archive: %w", err)
	}

	s.infra.postgres.archive = db
	return nil
}

func (s *Server) initService() {
	prefix := s.c.Redis.Store.Prefix

	s.service.posts = post.NewService(post.Config{
		Redis:  s.infra.redis.store,
		Prefix: prefix,
	})

	s.service.guesses = guess.NewService(guess.Config{
		Redis:  s.infra.redis.store,
		Prefix: prefix,
	})

	s.service.scores = score.NewService(score.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.store,
		Prefix:   prefix,
	})

	s.service.stats = stats.NewService(stats.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.store,
		Prefix:   prefix,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.store,
		Prefix:   prefix,
	})

	if s.infra.postgres.archive != nil {
		s.service.archive = archive.NewService(archive.Config{
			EventBus: s.eb,
			DB:       s.infra.postgres.archive,
		})
	}

	generator := challenge.NewGenerator(challenge.Config{
		Feed: feed.NewClient(feed.Config{
			BaseURL:   s.c.Feed.BaseURL,
			UserAgent: s.c.Feed.UserAgent,
		}),
		Categories: s.c.Game.Categories,
	})

	var pub platform.Client
	if s.c.Platform.BaseURL != "" {
		pub = platform.NewHTTPClient(platform.Config{
			BaseURL:   s.c.Platform.BaseURL,
			Token:     s.c.Platform.Token,
			UserAgent: s.c.Feed.UserAgent,
		})
	}

	s.service.game = game.NewService(game.Config{
		EventBus:  s.eb,
		Generator: generator,
		Posts:     s.service.posts,
		Guesses:   s.service.guesses,
		Scores:    s.service.scores,
		Stats:     s.service.stats,
		Platform:  pub,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	categories := s.c.Game.Categories
	if len(categories) == 0 {
		categories = challenge.DefaultCategories
	}

	api.New(api.Config{
		Engine:       e,
		EventBus:     s.eb,
		Game:         s.service.game,
		Leaderboard:  s.service.leaderboard,
		Archive:      s.service.archive,
		Categories:   categories,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if s.infra.postgres.archive != nil {
		s.infra.postgres.archive.Close()
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
