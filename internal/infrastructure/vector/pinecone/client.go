package pinecone

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
	"github.com/mkarpushin/jarvis-rag/internal/infrastructure/resilience"
)

// Pinecone serverless caps upsert batches; the pipeline still sees one
// batched write.
const upsertBatchSize = 100

// Client talks to both Pinecone planes: the control plane for index
// provisioning and the per-index data plane for vector operations. The data
// plane host is resolved from the index description and cached.
type Client struct {
	controlURL string
	apiKey     string
	indexName  string
	cloud      string
	region     string
	httpClient *http.Client
	executor   *resilience.Executor

	hostMu sync.Mutex
	host   string
}

func New(controlURL, apiKey, indexName, cloud, region string, executor *resilience.Executor) *Client {
	return &Client{
		controlURL: strings.TrimRight(controlURL, "/"),
		apiKey:     apiKey,
		indexName:  indexName,
		cloud:      cloud,
		region:     region,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

func (c *Client) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) == 0 || len(vectors) == 0 {
		return nil
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks/vectors mismatch: %d/%d", len(chunks), len(vectors))
	}

	host, err := c.dataPlaneHost(ctx)
	if err != nil {
		return err
	}

	type vector struct {
		ID       string         `json:"id"`
		Values   []float32      `json:"values"`
		Metadata map[string]any `json:"metadata"`
	}

	all := make([]vector, 0, len(chunks))
	for i := range chunks {
		all = append(all, vector{
			ID:     uuid.NewString(),
			Values: vectors[i],
			Metadata: map[string]any{
				"source": chunks[i].Source,
				"type":   string(chunks[i].Type),
				"text":   chunks[i].Text,
			},
		})
	}

	for start := 0; start < len(all); start += upsertBatchSize {
		end := start + upsertBatchSize
		if end > len(all) {
			end = len(all)
		}
		payload := map[string]any{"vectors": all[start:end]}
		err := c.call(ctx, "upsert", func(callCtx context.Context) error {
			return c.doJSON(callCtx, http.MethodPost, host+"/vectors/upsert", payload, nil, "upsert")
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) Query(ctx context.Context, queryVector []float32, topK int) ([]domain.RetrievedChunk, error) {
	if topK <= 0 {
		topK = 3
	}

	host, err := c.dataPlaneHost(ctx)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"vector":          queryVector,
		"topK":            topK,
		"includeMetadata": true,
	}

	var response struct {
		Matches []struct {
			Score    float64        `json:"score"`
			Metadata map[string]any `json:"metadata"`
		} `json:"matches"`
	}
	err = c.call(ctx, "query", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, host+"/query", payload, &response, "query")
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.RetrievedChunk, 0, len(response.Matches))
	for _, m := range response.Matches {
		out = append(out, domain.RetrievedChunk{
			Source: metadataString(m.Metadata, "source"),
			Type:   metadataString(m.Metadata, "type"),
			Text:   metadataString(m.Metadata, "text"),
			Score:  m.Score,
		})
	}
	return out, nil
}

// DeleteAll clears every vector from the index. Clearing an absent or empty
// index is a no-op, not an error.
func (c *Client) DeleteAll(ctx context.Context) error {
	host, err := c.dataPlaneHost(ctx)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}

	payload := map[string]any{"deleteAll": true}
	err = c.call(ctx, "delete_all", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, host+"/vectors/delete", payload, nil, "delete_all")
	})
	if err != nil {
		var statusErr *HTTPStatusError
		if asStatusError(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil
		}
		return err
	}
	return nil
}

func (c *Client) VectorCount(ctx context.Context) (int64, error) {
	host, err := c.dataPlaneHost(ctx)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	var response struct {
		TotalVectorCount int64 `json:"totalVectorCount"`
	}
	err = c.call(ctx, "stats", func(callCtx context.Context) error {
		return c.doJSON(callCtx, http.MethodPost, host+"/describe_index_stats", map[string]any{}, &response, "stats")
	})
	if err != nil {
		return 0, err
	}
	return response.TotalVectorCount, nil
}

func (c *Client) dataPlaneHost(ctx context.Context) (string, error) {
	c.hostMu.Lock()
	cached := c.host
	c.hostMu.Unlock()
	if cached != "" {
		return cached, nil
	}

	info, err := c.DescribeIndex(ctx, c.indexName)
	if err != nil {
		return "", err
	}
	if info.Host == "" {
		return "", fmt.Errorf("index %s has no data plane host yet", c.indexName)
	}

	host := info.Host
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	host = strings.TrimRight(host, "/")

	c.hostMu.Lock()
	c.host = host
	c.hostMu.Unlock()
	return host, nil
}

// InvalidateHost drops the cached data plane host, e.g. after the index was
// recreated.
func (c *Client) InvalidateHost() {
	c.hostMu.Lock()
	c.host = ""
	c.hostMu.Unlock()
}

func (c *Client) call(ctx context.Context, operation string, fn func(context.Context) error) error {
	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "pinecone."+operation, fn, classifyPineconeError)
	} else {
		err = fn(ctx)
	}
	return wrapTemporaryIfNeeded(operation, err)
}

func metadataString(metadata map[string]any, key string) string {
	v, ok := metadata[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
