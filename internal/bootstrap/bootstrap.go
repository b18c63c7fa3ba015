package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	httpadapter "github.com/mkarpushin/jarvis-rag/internal/adapters/http"
	"github.com/mkarpushin/jarvis-rag/internal/config"
	"github.com/mkarpushin/jarvis-rag/internal/core/ports"
	"github.com/mkarpushin/jarvis-rag/internal/core/usecase"
	"github.com/mkarpushin/jarvis-rag/internal/infrastructure/chunking"
	"github.com/mkarpushin/jarvis-rag/internal/infrastructure/loader"
	"github.com/mkarpushin/jarvis-rag/internal/infrastructure/openai"
	inprocqueue "github.com/mkarpushin/jarvis-rag/internal/infrastructure/queue/inproc"
	natsqueue "github.com/mkarpushin/jarvis-rag/internal/infrastructure/queue/nats"
	"github.com/mkarpushin/jarvis-rag/internal/infrastructure/repository/memory"
	"github.com/mkarpushin/jarvis-rag/internal/infrastructure/repository/postgres"
	"github.com/mkarpushin/jarvis-rag/internal/infrastructure/resilience"
	"github.com/mkarpushin/jarvis-rag/internal/infrastructure/similarity"
	"github.com/mkarpushin/jarvis-rag/internal/infrastructure/storage/localfs"
	"github.com/mkarpushin/jarvis-rag/internal/infrastructure/vector/pinecone"
	"github.com/mkarpushin/jarvis-rag/internal/observability/logging"
	"github.com/mkarpushin/jarvis-rag/internal/observability/metrics"
)

// Role selects which parts of the dependency graph a binary needs.
type Role string

const (
	RoleAPI    Role = "api"
	RoleWorker Role = "worker"
	RoleCLI    Role = "cli"
)

// App is the wired dependency graph shared by the binaries.
type App struct {
	Cfg config.Config
	Log *slog.Logger

	// ConfigErr is non-nil when required credentials are missing. The HTTP
	// process still starts; operations that need the credentials return 503.
	ConfigErr error

	Ingest    *usecase.IngestUseCase
	Chat      *usecase.ChatUseCase
	Jobs      *usecase.IngestJobUseCase
	Provision *usecase.ProvisionUseCase

	Queue         ports.JobQueue
	Server        *httpadapter.Server
	HTTPMetrics   *metrics.HTTPServerMetrics
	IngestMetrics *metrics.IngestMetrics

	db *sql.DB
}

func NewApp(service string, role Role) (*App, error) {
	cfg := config.Load()
	log := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(log)

	configErr := cfg.Validate()
	if configErr != nil {
		if role == RoleAPI {
			log.Warn("configuration_incomplete", "error", configErr)
		} else {
			return nil, configErr
		}
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts: cfg.RetryMaxAttempts,
		BreakerEnabled:   cfg.BreakerEnabled,
	})

	openaiClient := openai.New(
		cfg.OpenAIBaseURL,
		cfg.OpenAIAPIKey,
		cfg.OpenAIChatModel,
		cfg.OpenAIEmbedModel,
		cfg.EmbeddingDimension,
		executor,
	)
	embedder := openai.NewEmbedder(openaiClient)
	generator := openai.NewGenerator(openaiClient)

	vectors := pinecone.New(
		cfg.PineconeControlURL,
		cfg.PineconeAPIKey,
		cfg.PineconeIndexName,
		cfg.PineconeCloud,
		cfg.PineconeRegion,
		executor,
	)

	newChunker := ports.ChunkerFactory(func(size, overlap int) ports.Chunker {
		return chunking.NewSplitter(size, overlap)
	})

	app := &App{
		Cfg:       cfg,
		Log:       log,
		ConfigErr: configErr,
	}

	app.Ingest = usecase.NewIngestUseCase(
		loader.New(),
		newChunker,
		embedder,
		vectors,
		log,
		cfg.ChunkSize,
		cfg.ChunkOverlap,
		cfg.ClearWaitTimeout,
	)
	app.Chat = usecase.NewChatUseCase(embedder, vectors, generator, similarity.NewScorer(), cfg.RAGTopK)
	app.Provision = usecase.NewProvisionUseCase(
		vectors,
		cfg.PineconeIndexName,
		cfg.EmbeddingDimension,
		cfg.IndexReadyTimeout,
		log,
	)

	if role == RoleCLI {
		return app, nil
	}

	store, err := app.buildJobStore(role)
	if err != nil {
		return nil, err
	}

	queue, err := app.buildQueue(role, executor)
	if err != nil {
		return nil, err
	}
	app.Queue = queue

	app.IngestMetrics = metrics.NewIngestMetrics(service)
	app.Jobs = usecase.NewIngestJobUseCase(store, queue, app.Ingest, app.IngestMetrics)

	if role == RoleAPI {
		uploads, err := localfs.New(cfg.DocsFolder)
		if err != nil {
			return nil, err
		}
		app.HTTPMetrics = metrics.NewHTTPServerMetrics(service)
		app.Server = httpadapter.NewServer(
			cfg,
			configErr,
			app.Chat,
			app.Jobs,
			app.Jobs,
			uploads,
			app.HTTPMetrics,
			log,
		)
	}

	return app, nil
}

// buildJobStore picks the job record backend. NATS deployments need Postgres:
// the message carries only the job id, so the consuming process must see the
// same records as the publisher.
func (a *App) buildJobStore(role Role) (ports.JobStore, error) {
	needsShared := role == RoleWorker || a.Cfg.QueueDriver == "nats"

	if a.Cfg.PostgresDSN == "" {
		if needsShared {
			return nil, fmt.Errorf("QUEUE_DRIVER=nats requires POSTGRES_DSN: job records must be shared across processes")
		}
		return memory.NewJobStore(), nil
	}

	db, err := postgres.OpenDB(a.Cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	a.db = db

	repo := postgres.NewJobRepository(db)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure job schema: %w", err)
	}
	return repo, nil
}

func (a *App) buildQueue(role Role, executor *resilience.Executor) (ports.JobQueue, error) {
	driver := a.Cfg.QueueDriver
	if role == RoleWorker {
		driver = "nats"
	}

	switch driver {
	case "nats":
		queue, err := natsqueue.NewWithOptions(a.Cfg.NATSURL, a.Cfg.NATSSubject, natsqueue.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("connect job queue: %w", err)
		}
		return queue, nil
	case "inproc":
		return inprocqueue.New(a.Cfg.IngestWorkers, a.Cfg.IngestQueueSize), nil
	default:
		return nil, fmt.Errorf("unknown QUEUE_DRIVER %q (want inproc or nats)", driver)
	}
}

func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Log.Warn("close_db", "error", err)
		}
	}
}
