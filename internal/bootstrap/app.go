package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"insights-backend/internal/companies"
	"insights-backend/internal/insights"
	"insights-backend/internal/jobs"
	"insights-backend/internal/llm"
	openai "insights-backend/internal/llm/openai"
	"insights-backend/internal/notify"
	"insights-backend/internal/runs"
	"insights-backend/internal/scheduling"
	"insights-backend/internal/shared/config"
	"insights-backend/internal/shared/server"
	"insights-backend/internal/shared/storage/db"
	"insights-backend/internal/taskqueue"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB

	CompaniesRepo companies.Repo
	InsightsRepo  insights.Repo
	RunsRepo      runs.RunRepo
	ResultsRepo   runs.ResultRepo

	LLM         llm.Client
	RunsService *runs.Service

	Queue       *taskqueue.Queue
	Pool        *taskqueue.Pool
	Scheduler   *scheduling.Scheduler
	Notifier    *notify.Dispatcher
	JobHandlers *jobs.Handlers
}

// Build prepares shared dependencies and wires the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
	}

	buildRepos(app)
	if err := buildLLM(app); err != nil {
		return nil, err
	}
	if err := buildPipeline(ctx, app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           cfg,
		CompaniesHandler: companies.NewHandler(app.CompaniesRepo),
		InsightsHandler:  insights.NewHandler(app.InsightsRepo),
		RunsHandler:      runs.NewHandler(app.RunsService),
		TasksHandler:     taskqueue.NewHandler(app.Pool),
	})
	return app, nil
}

// Start brings up the worker pool and the scheduler. It returns after
// launching; Stop tears both down.
func (a *App) Start(ctx context.Context) error {
	defs, err := scheduling.LoadFile(a.Config.ScheduleFile)
	if err != nil {
		return err
	}
	if err := a.Scheduler.Register(defs); err != nil {
		return err
	}
	go a.Pool.Run(ctx)
	a.Scheduler.Start()
	return nil
}

// Stop halts the scheduler and closes the queue so workers drain.
func (a *App) Stop() {
	a.Scheduler.Stop()
	a.Queue.Close()
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildRepos(app *App) {
	if app.DB != nil {
		app.CompaniesRepo = &companies.PGRepo{DB: app.DB}
		app.InsightsRepo = &insights.PGRepo{DB: app.DB}
		app.RunsRepo = &runs.PGRunRepo{DB: app.DB}
		app.ResultsRepo = &runs.PGResultRepo{DB: app.DB}
		return
	}
	app.CompaniesRepo = companies.NewMemoryRepo()
	app.InsightsRepo = insights.NewMemoryRepo()
	app.RunsRepo = runs.NewMemoryRunRepo()
	app.ResultsRepo = runs.NewMemoryResultRepo()
}

func buildLLM(app *App) error {
	cfg := app.Config
	base := llm.Client(llm.PlaceholderClient{})
	if cfg.LLMProvider == "openai" && strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		client, err := openai.NewClient(openai.Config{
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.LLMModel,
			Temperature: cfg.OpenAITemperature,
			MaxTokens:   cfg.OpenAIMaxTokens,
			Timeout:     cfg.OpenAITimeout,
		})
		if err != nil {
			return err
		}
		base = client
	} else if !isDevLike(cfg.Env) {
		return fmt.Errorf("LLM provider %q is not configured", cfg.LLMProvider)
	}

	app.LLM = &llm.RetryingClient{
		Base:        base,
		MaxAttempts: cfg.AnalysisRetryAttempts,
	}
	return nil
}

func buildPipeline(ctx context.Context, app *App) error {
	cfg := app.Config

	app.Queue = taskqueue.NewQueue()
	deadLetters := taskqueue.NewDeadLetterQueue(cfg.DeadLetterTTL)
	app.Pool = &taskqueue.Pool{
		Queue:         app.Queue,
		DeadLetters:   deadLetters,
		Concurrency:   cfg.WorkerConcurrency,
		MaxAttempts:   cfg.TaskMaxAttempts,
		SoftTimeLimit: cfg.TaskSoftTimeLimit,
		HardTimeLimit: cfg.TaskHardTimeLimit,
	}
	app.Scheduler = scheduling.NewScheduler(app.Queue)

	sink := notify.Sink(notify.LogSink{})
	if strings.TrimSpace(cfg.NotificationsQueueURL) != "" {
		sqsSink, err := notify.NewSQSSink(ctx, cfg.AWSRegion, cfg.NotificationsQueueURL)
		if err != nil {
			return err
		}
		sink = sqsSink
	}
	app.Notifier = notify.NewDispatcher(sink, notify.NewTokenBucket(cfg.NotifyRatePerMinute, cfg.NotifyBurst))

	executor := &runs.Executor{
		Runs:        app.RunsRepo,
		Results:     app.ResultsRepo,
		Companies:   app.CompaniesRepo,
		Insights:    app.InsightsRepo,
		LLM:         app.LLM,
		Source:      &runs.StaticSource{},
		Temperature: cfg.OpenAITemperature,
		BatchSize:   cfg.AnalysisBatchSize,
	}
	app.RunsService = &runs.Service{
		Runs:    app.RunsRepo,
		Results: app.ResultsRepo,
		Selector: &companies.Selector{
			Repo:            app.CompaniesRepo,
			FreshnessWindow: cfg.FreshnessWindow,
		},
		Executor: executor,
		Queue:    &jobs.RunEnqueuer{Queue: app.Queue},
	}

	app.JobHandlers = &jobs.Handlers{
		Runs:         app.RunsService,
		Notifier:     app.Notifier,
		DeadLetters:  deadLetters,
		RunRetention: time.Duration(cfg.RunRetentionDays) * 24 * time.Hour,
	}
	app.JobHandlers.Register(app.Pool)
	return nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
