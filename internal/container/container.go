package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"

	"n1core/adapters/kafka"
	"n1core/adapters/memory"
	"n1core/adapters/narration"
	"n1core/adapters/polarity"
	"n1core/adapters/postgres"
	"n1core/adapters/redislock"
	"n1core/app"
	"n1core/domain/core"
	"n1core/internal"
	"n1core/internal/api"
	"n1core/internal/config"
	"n1core/internal/findings"
	"n1core/internal/metrics"
	"n1core/ports"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config  *config.Config
	Logger  *internal.Logger
	Metrics *metrics.Registry
	Clock   core.Clock

	// Infrastructure; DB is nil for STORE=memory
	DB     *sqlx.DB
	Memory *memory.Store

	// Repositories and collaborators
	Repos     app.Repositories
	Athletes  ports.AthleteLister
	Locker    ports.Locker
	Flags     ports.FlagProvider
	Polarity  ports.PolarityRegistry
	Narrator  ports.Narrator
	Publisher ports.InsightPublisher

	// Services
	Pipeline    *app.PipelineService
	Batch       *app.BatchRunner
	Calibration *app.CalibrationService
	Insights    *app.InsightService
	Findings    *findings.Store

	closers []func() error
}

// New builds the container from configuration, connecting to every configured backend
func New(ctx context.Context, cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger.Or(),
		Metrics: metrics.NewRegistry(),
		Clock:   core.SystemClock{},
	}

	if err := c.initStore(ctx); err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := c.initCollaborators(ctx); err != nil {
		c.Shutdown(ctx)
		return nil, fmt.Errorf("failed to initialize collaborators: %w", err)
	}
	c.initServices()
	c.Logger.Info("container initialized (store=%s, lock=%s, publisher=%t, narrator=%t)",
		cfg.Database.Store, c.lockBackend(), c.Publisher != nil, c.Narrator != nil)
	return c, nil
}

// NewWithMemory builds a container over an existing in-memory store with in-process
// locking and no outbound collaborators
func NewWithMemory(cfg *config.Config, store *memory.Store, clock core.Clock, logger *internal.Logger) *Container {
	c := &Container{
		Config:  cfg,
		Logger:  logger.Or(),
		Metrics: metrics.NewRegistry(),
		Clock:   clock,
	}
	c.useMemory(store)
	c.Locker = memory.NewLocker()
	c.Flags = &config.FileFlagProvider{Path: cfg.Paths.FlagsFile}
	c.Polarity = polarity.New(nil)
	c.initServices()
	return c
}

func (c *Container) initStore(ctx context.Context) error {
	if c.Config.Database.Store == "memory" {
		c.useMemory(memory.NewStore())
		return nil
	}
	db, err := postgres.Open(ctx, c.Config.Database.URL, c.Config.Database.MaxOpenConns)
	if err != nil {
		return err
	}
	c.DB = db
	c.closers = append(c.closers, db.Close)

	samples := postgres.NewSampleRepository(db)
	c.Athletes = samples
	c.Repos = app.Repositories{
		Samples:     samples,
		Links:       samples,
		Findings:    postgres.NewFindingRepository(db),
		Readiness:   postgres.NewReadinessRepository(db),
		Thresholds:  postgres.NewThresholdRepository(db),
		Calibration: postgres.NewCalibrationRepository(db),
		SelfReg:     postgres.NewSelfRegulationRepository(db),
		Insights:    postgres.NewInsightRepository(db),
		RuleStates:  postgres.NewRuleStateRepository(db),
	}
	return nil
}

func (c *Container) useMemory(store *memory.Store) {
	c.Memory = store
	c.Athletes = store
	c.Repos = app.Repositories{
		Samples:     store,
		Links:       store,
		Findings:    store.Findings(),
		Readiness:   store.Readiness(),
		Thresholds:  store.Thresholds(),
		Calibration: store.CalibrationRecords(),
		SelfReg:     store.SelfRegulation(),
		Insights:    store.Insights(),
		RuleStates:  store.RuleStates(),
	}
}

func (c *Container) initCollaborators(ctx context.Context) error {
	cfg := c.Config

	if cfg.Redis.Addr != "" {
		l, err := redislock.New(ctx, cfg.Redis, c.Logger)
		if err != nil {
			return err
		}
		c.Locker = l
	} else {
		c.Locker = memory.NewLocker()
	}

	c.Flags = &config.FileFlagProvider{Path: cfg.Paths.FlagsFile}

	reg, err := polarity.Load(cfg.Paths.PolarityFile)
	if err != nil {
		return err
	}
	c.Polarity = reg

	if cfg.Narrator.URL != "" {
		c.Narrator = narration.NewClient(cfg.Narrator, c.Logger)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		p := kafka.NewPublisher(cfg.Kafka, c.Logger)
		c.Publisher = p
		c.closers = append(c.closers, p.Close)
	}
	return nil
}

func (c *Container) initServices() {
	cfg := c.Config
	c.Pipeline = app.NewPipelineService(c.Repos, app.PipelineOptions{
		Analysis:     cfg.Analysis,
		LookbackDays: cfg.Batch.LookbackDays,
		LockTTL:      cfg.Redis.LockTTL,
		Flags:        c.Flags,
		Locker:       c.Locker,
		Polarity:     c.Polarity,
		Narrator:     c.Narrator,
		Publisher:    c.Publisher,
		Clock:        c.Clock,
		Logger:       c.Logger,
		Metrics:      c.Metrics,
	})
	c.Batch = app.NewBatchRunner(c.Pipeline, cfg.Batch.Concurrency, cfg.Batch.AthleteRunTimeout, c.Logger, c.Metrics)
	c.Calibration = app.NewCalibrationService(c.Repos.Thresholds, c.Repos.Calibration, cfg.Analysis.CalibrationFloor, c.Clock, c.Logger, c.Metrics)
	c.Insights = app.NewInsightService(c.Repos.Insights, c.Repos.RuleStates, c.Clock, c.Logger)
	c.Findings = findings.NewStore(c.Repos.Findings, c.Clock, c.Logger, c.Metrics).WithPolicy(cfg.Analysis.SurfacePolicy())
}

func (c *Container) lockBackend() string {
	if _, ok := c.Locker.(*redislock.Locker); ok {
		return "redis"
	}
	return "process"
}

// APIServer builds the read API over the container's services
func (c *Container) APIServer() *api.Server {
	return api.NewServer(api.Deps{
		Readiness: c.Repos.Readiness,
		Findings:  c.Findings,
		Insights:  c.Insights,
		Clock:     c.Clock,
		Logger:    c.Logger,
		Metrics:   c.Metrics,
		Ready: func(r *http.Request) error {
			if c.DB == nil {
				return nil
			}
			return c.DB.PingContext(r.Context())
		},
	})
}

// Shutdown closes every connection the container opened, newest first
func (c *Container) Shutdown(ctx context.Context) error {
	var first error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	c.closers = nil
	return first
}
