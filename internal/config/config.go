package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort  string
	LogLevel string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIChatModel  string
	OpenAIEmbedModel string

	PineconeAPIKey     string
	PineconeIndexName  string
	PineconeControlURL string
	PineconeCloud      string
	PineconeRegion     string

	EmbeddingDimension int

	DocsFolder   string
	ChunkSize    int
	ChunkOverlap int
	RAGTopK      int

	ChatRateLimit  int
	ChatRateWindow time.Duration

	APIRateLimitRPS   int
	APIRateLimitBurst int
	APIMaxInFlight    int

	QueueDriver     string
	NATSURL         string
	NATSSubject     string
	IngestWorkers   int
	IngestQueueSize int

	PostgresDSN string

	IndexReadyTimeout time.Duration
	ClearWaitTimeout  time.Duration

	RetryMaxAttempts int
	BreakerEnabled   bool

	WorkerMetricsPort string
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first; values already set in the environment win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIPort:  mustEnv("API_PORT", "5000"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    mustEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIChatModel:  mustEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAIEmbedModel: mustEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small"),

		PineconeAPIKey:     os.Getenv("PINECONE_API_KEY"),
		PineconeIndexName:  os.Getenv("PINECONE_INDEX_NAME"),
		PineconeControlURL: mustEnv("PINECONE_CONTROL_URL", "https://api.pinecone.io"),
		PineconeCloud:      mustEnv("PINECONE_CLOUD", "aws"),
		PineconeRegion:     mustEnv("PINECONE_REGION", "us-east-1"),

		EmbeddingDimension: mustEnvInt("EMBEDDING_DIMENSION", 1536),

		DocsFolder:   mustEnv("DOCS_FOLDER", "./docs"),
		ChunkSize:    mustEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: mustEnvInt("CHUNK_OVERLAP", 200),
		RAGTopK:      mustEnvInt("RAG_TOP_K", 3),

		ChatRateLimit:  mustEnvInt("CHAT_RATE_LIMIT", 10),
		ChatRateWindow: mustEnvDuration("CHAT_RATE_WINDOW", 60*time.Second),

		APIRateLimitRPS:   mustEnvInt("API_RATE_LIMIT_RPS", 0),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 20),
		APIMaxInFlight:    mustEnvInt("API_MAX_IN_FLIGHT", 0),

		QueueDriver:     mustEnv("QUEUE_DRIVER", "inproc"),
		NATSURL:         mustEnv("NATS_URL", "nats://localhost:4222"),
		NATSSubject:     mustEnv("NATS_SUBJECT", "ingest.jobs"),
		IngestWorkers:   mustEnvInt("INGEST_WORKERS", 2),
		IngestQueueSize: mustEnvInt("INGEST_QUEUE_SIZE", 16),

		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		IndexReadyTimeout: mustEnvDuration("INDEX_READY_TIMEOUT", 120*time.Second),
		ClearWaitTimeout:  mustEnvDuration("CLEAR_WAIT_TIMEOUT", 30*time.Second),

		RetryMaxAttempts: mustEnvInt("RETRY_MAX_ATTEMPTS", 1),
		BreakerEnabled:   mustEnvBool("BREAKER_ENABLED", true),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}
}

// Validate reports the credentials the remote services require. A validation
// failure is an operation-level error for callers, not a process crash.
func (c Config) Validate() error {
	var missing []string
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.PineconeAPIKey == "" {
		missing = append(missing, "PINECONE_API_KEY")
	}
	if c.PineconeIndexName == "" {
		missing = append(missing, "PINECONE_INDEX_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}

func mustEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
