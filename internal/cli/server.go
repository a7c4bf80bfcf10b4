package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
	pgloader "live-quiz-service/internal/infra/postgres"
	redisinfra "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// questionCatalog is the intersection of the in-memory and Redis caches: the
// runner's repository plus invalidation for the admin authoring endpoints.
type questionCatalog interface {
	app.QuestionRepository
	Invalidate()
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var store app.DocumentStore
	if redisClient != nil {
		store = redisinfra.NewDocumentStore(redisClient)
	} else {
		store = memory.NewDocumentStore()
	}

	if err := seedUsers(ctx, store); err != nil {
		return err
	}

	questionTTL := config.TTLDuration(cfg.Quiz.QuestionTTL, 10*time.Minute)
	var catalog questionCatalog
	switch {
	case pool != nil && redisClient != nil:
		catalog = redisinfra.NewQuestionCache(redisClient, pgloader.NewQuestionLoader(pool), questionTTL)
	case pool != nil:
		catalog = memory.NewQuestionCache(pgloader.NewQuestionLoader(pool), questionTTL)
	case redisClient != nil:
		if err := seedQuestions(ctx, store); err != nil {
			return err
		}
		catalog = redisinfra.NewQuestionCache(redisClient, app.NewStoreQuestionLoader(store), questionTTL)
	default:
		if err := seedQuestions(ctx, store); err != nil {
			return err
		}
		catalog = memory.NewQuestionCache(app.NewStoreQuestionLoader(store), questionTTL)
	}

	hub := transport.NewHub()
	runner := app.NewQuizRunner(store, catalog, hub, app.RunnerConfig{
		LeadIn:          config.TTLDuration(cfg.Quiz.LeadIn, 0),
		GracePeriod:     config.TTLDuration(cfg.Quiz.GracePeriod, 0),
		LeaderboardSize: cfg.Quiz.LeaderboardSize,
	})
	wsHandler := transport.NewWSHandler(runner, hub)
	apiHandler := transport.NewAPIHandler(runner, store, catalog, catalog)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedUsers creates a default admin and a few students when the users
// collection is empty, so a fresh deployment is immediately usable.
func seedUsers(ctx context.Context, store app.DocumentStore) error {
	existing, err := store.List(ctx, app.CollectionUsers, nil, app.ListOptions{Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	users := []domain.User{
		{ID: "admin", Username: "admin", Email: "admin@quiz.local", Role: domain.RoleAdmin},
		{ID: "user1", Username: "alice", Email: "alice@quiz.local", Role: "student"},
		{ID: "user2", Username: "bob", Email: "bob@quiz.local", Role: "student"},
	}
	for _, u := range users {
		if _, err := store.Create(ctx, app.CollectionUsers, u.Fields(), u.ID); err != nil {
			return err
		}
	}
	log.Printf("seeded %d default users", len(users))
	return nil
}

// seedQuestions provides a starter question set when the store holds none;
// Postgres deployments load the catalog from the questions table instead.
func seedQuestions(ctx context.Context, store app.DocumentStore) error {
	existing, err := store.List(ctx, app.CollectionQuestions, nil, app.ListOptions{Limit: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	questions := []domain.Question{
		{
			Text:             "What is the capital of France?",
			Options:          []string{"London", "Paris", "Berlin", "Madrid"},
			CorrectAnswer:    1,
			TimeLimitSeconds: 30,
			Active:           true,
		},
		{
			Text:             "Which planet is known as the Red Planet?",
			Options:          []string{"Venus", "Jupiter", "Mars", "Saturn"},
			CorrectAnswer:    2,
			TimeLimitSeconds: 30,
			Active:           true,
		},
		{
			Text:             "What is 7 x 8?",
			Options:          []string{"54", "56", "63", "64"},
			CorrectAnswer:    1,
			TimeLimitSeconds: 20,
			Active:           true,
		},
	}
	for _, q := range questions {
		if _, err := store.Create(ctx, app.CollectionQuestions, q.Fields(), ""); err != nil {
			return err
		}
	}
	log.Printf("seeded %d sample questions", len(questions))
	return nil
}
