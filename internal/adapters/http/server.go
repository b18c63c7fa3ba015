package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/mkarpushin/jarvis-rag/internal/config"
	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
	"github.com/mkarpushin/jarvis-rag/internal/core/ports"
	"github.com/mkarpushin/jarvis-rag/internal/infrastructure/storage/localfs"
	"github.com/mkarpushin/jarvis-rag/internal/observability/metrics"
)

const maxChatMessageRunes = 1000

var exampleQuestions = []string{
	"What documents do you have knowledge about?",
	"Summarize the key points from the uploaded documents.",
	"What information can you find about the main topic?",
}

// Server exposes the chat, upload and job endpoints. Remote dependencies are
// injected through the inbound ports so handlers stay testable with fakes.
type Server struct {
	cfg       config.Config
	configErr error

	chat      ports.ChatService
	scheduler ports.IngestScheduler
	jobs      ports.JobReader
	uploads   *localfs.Storage

	chatLimiter   *SlidingWindowLimiter
	globalLimiter *rate.Limiter

	metrics *metrics.HTTPServerMetrics
	log     *slog.Logger
}

func NewServer(
	cfg config.Config,
	configErr error,
	chat ports.ChatService,
	scheduler ports.IngestScheduler,
	jobs ports.JobReader,
	uploads *localfs.Storage,
	m *metrics.HTTPServerMetrics,
	log *slog.Logger,
) *Server {
	if log == nil {
		log = slog.Default()
	}

	var global *rate.Limiter
	if cfg.APIRateLimitRPS > 0 {
		burst := cfg.APIRateLimitBurst
		if burst <= 0 {
			burst = cfg.APIRateLimitRPS
		}
		global = rate.NewLimiter(rate.Limit(cfg.APIRateLimitRPS), burst)
	}

	return &Server{
		cfg:           cfg,
		configErr:     configErr,
		chat:          chat,
		scheduler:     scheduler,
		jobs:          jobs,
		uploads:       uploads,
		chatLimiter:   NewSlidingWindowLimiter(cfg.ChatRateLimit, cfg.ChatRateWindow),
		globalLimiter: global,
		metrics:       m,
		log:           log,
	}
}

// ChatLimiter exposes the per-client limiter, mainly for tests that need to
// swap the clock.
func (s *Server) ChatLimiter() *SlidingWindowLimiter {
	return s.chatLimiter
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("POST /api/ingest-path", s.handleIngestPath)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleJobStatus)
	mux.HandleFunc("GET /api/example-questions", s.handleExampleQuestions)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	mux.Handle("/", staticHandler())

	var handler http.Handler = mux
	handler = backpressureMiddleware(s.cfg.APIMaxInFlight, handler)
	handler = globalRateLimitMiddleware(s.globalLimiter, s.metrics, handler)
	handler = metricsMiddleware(s.metrics, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "running",
		"pinecone_index": s.cfg.PineconeIndexName,
		"openai_model":   s.cfg.OpenAIChatModel,
		"local_metrics":  "active",
	})
}

func (s *Server) handleExampleQuestions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"questions": exampleQuestions})
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Sources []string    `json:"sources"`
	Metrics chatMetrics `json:"metrics"`
}

type chatMetrics struct {
	LatencySeconds     float64 `json:"latency_seconds"`
	TopSimilarityScore float64 `json:"top_similarity_score"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.configErr != nil {
		writeError(w, http.StatusServiceUnavailable, s.configErr.Error())
		return
	}

	key := clientIP(r)
	if !s.chatLimiter.Allow(key) {
		if s.metrics != nil {
			s.metrics.ObserveRateLimited()
		}
		w.Header().Set("Retry-After", retryAfterHeader(s.chatLimiter.RetryAfter(key)))
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "message must not be empty")
		return
	}
	if utf8.RuneCountInString(message) > maxChatMessageRunes {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("message exceeds %d characters", maxChatMessageRunes))
		return
	}

	answer, err := s.chat.Answer(r.Context(), message)
	if err != nil {
		s.log.Error("chat_failed", "error", err, "request_id", requestIDFromContext(r.Context()))
		writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveChat(answer.Similarity, answer.Text == domain.FallbackAnswer)
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Status:  "success",
		Message: answer.Text,
		Sources: answer.Sources,
		Metrics: chatMetrics{
			LatencySeconds:     round(float64(answer.LatencyMS)/1000.0, 2),
			TopSimilarityScore: round(answer.Similarity, 4),
		},
	})
}

type jobAcceptedResponse struct {
	Status string `json:"status"`
	JobID  string `json:"job_id"`
	Files  int    `json:"files"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.configErr != nil {
		writeError(w, http.StatusServiceUnavailable, s.configErr.Error())
		return
	}

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "no files provided")
		return
	}

	// Validate every part before writing anything, so a rejected batch leaves
	// no partial state on disk.
	for _, header := range files {
		ext := strings.ToLower(filepath.Ext(header.Filename))
		if ext != ".pdf" && ext != ".txt" {
			writeError(w, http.StatusBadRequest,
				fmt.Sprintf("unsupported file type %q: only .pdf and .txt are accepted", ext))
			return
		}
	}

	var saved []string
	for _, header := range files {
		part, err := header.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		path, err := s.uploads.Save(r.Context(), header.Filename, part)
		closeErr := part.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			s.log.Error("upload_save_failed", "file", header.Filename, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to store uploaded file")
			return
		}
		saved = append(saved, path)
	}

	req := domain.IngestRequest{
		Paths:        saved,
		ChunkSize:    formInt(r, "chunk_size", s.cfg.ChunkSize),
		ChunkOverlap: formInt(r, "chunk_overlap", s.cfg.ChunkOverlap),
	}

	job, err := s.scheduler.Enqueue(r.Context(), req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveJobAccepted("upload")
	}
	writeJSON(w, http.StatusAccepted, jobAcceptedResponse{
		Status: "accepted",
		JobID:  job.ID,
		Files:  len(saved),
	})
}

type ingestPathRequest struct {
	FilePath      json.RawMessage `json:"file_path"`
	ChunkSize     int             `json:"chunk_size"`
	ChunkOverlap  int             `json:"chunk_overlap"`
	ClearExisting bool            `json:"clear_existing"`
}

func (s *Server) handleIngestPath(w http.ResponseWriter, r *http.Request) {
	if s.configErr != nil {
		writeError(w, http.StatusServiceUnavailable, s.configErr.Error())
		return
	}

	var req ingestPathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	paths, err := parsePathList(req.FilePath)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(paths) == 0 {
		writeError(w, http.StatusBadRequest, "file_path must not be empty")
		return
	}

	var missing []string
	for _, p := range paths {
		if _, statErr := os.Stat(p); statErr != nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		writeError(w, http.StatusNotFound,
			fmt.Sprintf("files not found: %s", strings.Join(missing, ", ")))
		return
	}

	chunkSize := req.ChunkSize
	if chunkSize <= 0 {
		chunkSize = s.cfg.ChunkSize
	}
	chunkOverlap := req.ChunkOverlap
	if chunkOverlap < 0 {
		chunkOverlap = s.cfg.ChunkOverlap
	}

	job, err := s.scheduler.Enqueue(r.Context(), domain.IngestRequest{
		Paths:         paths,
		ChunkSize:     chunkSize,
		ChunkOverlap:  chunkOverlap,
		ClearExisting: req.ClearExisting,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if s.metrics != nil {
		s.metrics.ObserveJobAccepted("ingest-path")
	}
	writeJSON(w, http.StatusAccepted, jobAcceptedResponse{
		Status: "accepted",
		JobID:  job.ID,
		Files:  len(paths),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	job, err := s.jobs.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// parsePathList accepts either a JSON string (optionally comma separated) or
// a JSON array of strings, matching what clients of the original service send.
func parsePathList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, errors.New("file_path is required")
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return splitNonEmpty(single), nil
	}

	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		var out []string
		for _, p := range many {
			out = append(out, splitNonEmpty(p)...)
		}
		return out, nil
	}

	return nil, errors.New("file_path must be a string or an array of strings")
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func formInt(r *http.Request, field string, fallback int) int {
	v := strings.TrimSpace(r.FormValue(field))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
