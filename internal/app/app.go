// Package app wires configuration into the engine components.
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/MoonWalka/app-booking-2-sub017/config"
	"github.com/MoonWalka/app-booking-2-sub017/internal/repositories"
	"github.com/MoonWalka/app-booking-2-sub017/internal/store"
	"github.com/MoonWalka/app-booking-2-sub017/internal/store/memory"
	"github.com/MoonWalka/app-booking-2-sub017/internal/store/postgres"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/audit"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/database"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/events"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/graph"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/identity"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/kafka"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/legacy"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/liaison"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/query"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/redis"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/repair"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/startup"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing"
	"github.com/MoonWalka/app-booking-2-sub017/pkg/tracing/exporters"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Needs selects the optional dependencies a command brings up.
type Needs struct {
	Graph bool
}

// App holds the connected dependencies of one process.
type App struct {
	Config *config.Config
	Logger ectologger.Logger

	Store    store.Store
	Repos    *repositories.Repositories
	DB       database.DB
	Redis    *redis.Client
	Producer *kafka.Producer
	Graph    *graph.Client

	startup         *startup.Startup
	shutdownTracing func(context.Context) error
}

// New connects every configured dependency, retrying with backoff.
func New(ctx context.Context, cfg *config.Config, logger ectologger.Logger, needs Needs) (*App, error) {
	a := &App{
		Config:  cfg,
		Logger:  logger,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}

	if cfg.TracingEnabled {
		a.startup.AddDependency(startup.Func{Name: "tracing", OnStart: a.startTracing, OnStop: a.stopTracing})
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		a.startup.AddDependency(startup.Func{Name: "database", OnStart: a.startDatabase, OnStop: a.stopDatabase})
		if cfg.DatabaseAutoMigrate {
			a.startup.AddDependency(startup.Func{
				Name:     "migrations",
				Requires: []string{"database"},
				OnStart:  func(context.Context) error { return a.Migrate() },
			})
		}
	case StoreDriverMemory:
		a.useStore(memory.New(memory.WithMaxOpsPerBatch(cfg.StoreMaxOpsPerBatch)))
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.RedisEnabled {
		a.startup.AddDependency(startup.Func{Name: "redis", OnStart: a.startRedis, OnStop: a.stopRedis})
	}
	if cfg.KafkaEnabled {
		a.startup.AddDependency(startup.Func{Name: "kafka", OnStart: a.startKafka, OnStop: a.stopKafka})
	}
	if needs.Graph {
		a.startup.AddDependency(startup.Func{Name: "graph", OnStart: a.startGraph, OnStop: a.stopGraph})
	}

	if err := a.startup.Start(ctx); err != nil {
		_ = a.startup.Stop(ctx)
		return nil, err
	}
	return a, nil
}

// Close stops the started dependencies.
func (a *App) Close(ctx context.Context) error {
	return a.startup.Stop(ctx)
}

func (a *App) useStore(s store.Store) {
	a.Store = s
	a.Repos = repositories.New(s, a.Logger)
}

func (a *App) startTracing(ctx context.Context) error {
	shutdown, err := tracing.Setup(ctx, a.Config.AppName, exporters.OTLPConfig{
		Endpoint: a.Config.TracingEndpoint,
		Protocol: a.Config.TracingProtocol,
		Insecure: a.Config.TracingInsecure,
	})
	if err != nil {
		return err
	}
	a.shutdownTracing = shutdown
	return nil
}

func (a *App) stopTracing(ctx context.Context) error {
	if a.shutdownTracing == nil {
		return nil
	}
	return a.shutdownTracing(ctx)
}

func (a *App) startDatabase(ctx context.Context) error {
	db, err := database.Connect(ctx, a.Config.DatabaseDSN(), database.PoolConfig{
		MaxOpenConns:    a.Config.DatabaseMaxOpenConns,
		MaxIdleConns:    a.Config.DatabaseMaxIdleConns,
		ConnMaxLifetime: a.Config.DatabaseConnMaxLifetime,
	}, a.Logger)
	if err != nil {
		return err
	}
	a.DB = db
	a.useStore(postgres.NewStore(db, a.Logger, a.Config.StoreMaxOpsPerBatch))
	return nil
}

func (a *App) stopDatabase(context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// Migrate applies the document store schema.
func (a *App) Migrate() error {
	if a.DB == nil {
		return fmt.Errorf("migrations require STORE_DRIVER=%s", StoreDriverPostgres)
	}
	service := database.NewMigrationService(a.Logger, &database.MigrationConfig{
		MigrationFolderPath: a.Config.DatabaseMigrationFolderPath,
		Version:             uint(a.Config.DatabaseMigrationVersion),
		Force:               a.Config.DatabaseMigrationForce,
		AutoRollback:        a.Config.DatabaseMigrationAutoRollback,
	})
	return service.MigratePostgres(a.Config.DatabaseName, a.DB.SqlDB())
}

func (a *App) startRedis(context.Context) error {
	client, err := redis.NewClient(redis.Config{
		Host:     a.Config.RedisHost,
		Port:     a.Config.RedisPort,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	}, a.Logger)
	if err != nil {
		return err
	}
	a.Redis = client
	return nil
}

func (a *App) stopRedis(context.Context) error {
	if a.Redis == nil {
		return nil
	}
	return a.Redis.Close()
}

func (a *App) startKafka(context.Context) error {
	a.Producer = kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      a.Config.KafkaBrokers,
		Topic:        a.Config.KafkaOutputTopic,
		BatchSize:    a.Config.KafkaBatchSize,
		BatchTimeout: time.Duration(a.Config.KafkaBatchTimeout) * time.Millisecond,
		RequiredAcks: a.Config.KafkaRequiredAcks,
		Compression:  a.Config.KafkaCompression,
	}, a.Logger)
	return nil
}

func (a *App) stopKafka(context.Context) error {
	if a.Producer == nil {
		return nil
	}
	return a.Producer.Close()
}

func (a *App) startGraph(ctx context.Context) error {
	client, err := graph.NewClient(graph.Config{
		Host:     a.Config.GraphDBHost,
		Port:     a.Config.GraphDBPort,
		Username: a.Config.GraphDBUser,
		Password: a.Config.GraphDBPassword,
	}, a.Logger)
	if err != nil {
		return err
	}
	if err := client.VerifyConnectivity(ctx); err != nil {
		_ = client.Close(ctx)
		return err
	}
	a.Graph = client
	return nil
}

func (a *App) stopGraph(ctx context.Context) error {
	if a.Graph == nil {
		return nil
	}
	return a.Graph.Close(ctx)
}

// Engine builds the repair engine. With no legacy file the bundles are read
// from the legacy collection of the store.
func (a *App) Engine(legacyFile string, out io.Writer) *repair.Engine {
	var source legacy.Source = legacy.NewStoreSource(a.Store, a.Logger)
	if legacyFile != "" {
		source = legacy.NewFileSource(legacyFile, a.Logger)
	}

	engine := repair.NewEngine(a.Repos, a.Store, source, a.Logger).WithOutput(out)
	if a.Producer != nil {
		engine.WithEmitter(events.NewEmitter(a.Producer, a.Logger))
	}
	if a.Redis != nil {
		engine.WithLocker(redis.NewLocker(a.Redis, ""), a.Config.RunLockTTL).
			WithStatsInvalidator(redis.NewStatsCache(a.Redis, a.Config.StatisticsCacheTTL))
	}
	return engine
}

// Resolver finds or creates structures for live edits.
func (a *App) Resolver() *identity.Resolver {
	return identity.NewResolver(a.Repos.Structures, a.Logger)
}

// LiaisonManager writes liaisons for live edits. Events are published when Kafka is configured.
func (a *App) LiaisonManager() *liaison.Manager {
	var emitter liaison.EventEmitter
	if a.Producer != nil {
		emitter = events.NewEmitter(a.Producer, a.Logger)
	}
	return liaison.NewManager(a.Repos.Structures, a.Repos.Personnes, a.Repos.Liaisons, emitter, a.Logger)
}

func (a *App) Auditor() *audit.Auditor {
	return audit.NewAuditor(a.Repos, a.Logger)
}

func (a *App) Facade() *query.Facade {
	facade := query.NewFacade(a.Repos, a.Logger)
	if a.Redis != nil {
		facade.WithCache(redis.NewStatsCache(a.Redis, a.Config.StatisticsCacheTTL))
	}
	return facade
}

func (a *App) Projector() (*graph.Projector, error) {
	if a.Graph == nil {
		return nil, fmt.Errorf("graph database is not connected")
	}
	return graph.NewProjector(a.Repos, a.Graph, a.Logger), nil
}
