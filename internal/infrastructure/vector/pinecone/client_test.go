package pinecone

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
)

// fakePinecone serves both the control plane and the data plane from one
// httptest server; the index description points the data plane host back at
// the same server.
type fakePinecone struct {
	mu sync.Mutex

	indexName string
	dimension int
	ready     bool
	missing   bool

	upsertBatches [][]json.RawMessage
	deleteAlls    int
	vectorCount   int64
	queryMatches  []map[string]any

	lastAPIKey string

	server *httptest.Server
}

func newFakePinecone(t *testing.T) *fakePinecone {
	t.Helper()
	f := &fakePinecone{
		indexName: "test-index",
		dimension: 1536,
		ready:     true,
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /indexes", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		indexes := []map[string]any{}
		if !f.missing {
			indexes = append(indexes, f.describeBody())
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"indexes": indexes})
	})
	mux.HandleFunc("GET /indexes/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.missing || r.PathValue("name") != f.indexName {
			http.Error(w, `{"error":"index not found"}`, http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(f.describeBody())
	})
	mux.HandleFunc("POST /indexes", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if !f.missing {
			http.Error(w, `{"error":"already exists"}`, http.StatusConflict)
			return
		}
		f.missing = false
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("DELETE /indexes/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if f.missing {
			http.Error(w, `{"error":"index not found"}`, http.StatusNotFound)
			return
		}
		f.missing = true
		w.WriteHeader(http.StatusAccepted)
	})

	mux.HandleFunc("POST /vectors/upsert", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var payload struct {
			Vectors []json.RawMessage `json:"vectors"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.upsertBatches = append(f.upsertBatches, payload.Vectors)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"upsertedCount": len(payload.Vectors)})
	})
	mux.HandleFunc("POST /query", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_ = json.NewEncoder(w).Encode(map[string]any{"matches": f.queryMatches})
	})
	mux.HandleFunc("POST /vectors/delete", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		f.deleteAlls++
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{})
	})
	mux.HandleFunc("POST /describe_index_stats", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		_ = json.NewEncoder(w).Encode(map[string]any{"totalVectorCount": f.vectorCount})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakePinecone) record(r *http.Request) {
	f.mu.Lock()
	f.lastAPIKey = r.Header.Get("Api-Key")
	f.mu.Unlock()
}

func (f *fakePinecone) describeBody() map[string]any {
	return map[string]any{
		"name":      f.indexName,
		"dimension": f.dimension,
		"metric":    "cosine",
		"host":      f.server.URL,
		"status":    map[string]any{"ready": f.ready, "state": "Ready"},
	}
}

func (f *fakePinecone) client() *Client {
	return New(f.server.URL, "secret-key", f.indexName, "aws", "us-east-1", nil)
}

func TestDescribeIndex(t *testing.T) {
	f := newFakePinecone(t)
	info, err := f.client().DescribeIndex(context.Background(), "test-index")
	if err != nil {
		t.Fatalf("describe failed: %v", err)
	}
	if info.Dimension != 1536 || !info.Ready {
		t.Fatalf("unexpected info %+v", info)
	}
	if f.lastAPIKey != "secret-key" {
		t.Fatalf("api key header missing, got %q", f.lastAPIKey)
	}
}

func TestDescribeIndexNotFound(t *testing.T) {
	f := newFakePinecone(t)
	f.missing = true
	_, err := f.client().DescribeIndex(context.Background(), "test-index")
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateIndexConflictIsSuccess(t *testing.T) {
	f := newFakePinecone(t)
	// Index already exists, so the control plane answers 409.
	if err := f.client().CreateIndex(context.Background(), "test-index", 1536); err != nil {
		t.Fatalf("conflict must be treated as success, got %v", err)
	}
}

func TestDeleteIndexAbsentIsSuccess(t *testing.T) {
	f := newFakePinecone(t)
	f.missing = true
	if err := f.client().DeleteIndex(context.Background(), "test-index"); err != nil {
		t.Fatalf("deleting an absent index must succeed, got %v", err)
	}
}

func TestUpsertSplitsIntoBatches(t *testing.T) {
	f := newFakePinecone(t)
	c := f.client()

	n := 250
	chunks := make([]domain.Chunk, n)
	vectors := make([][]float32, n)
	for i := range chunks {
		chunks[i] = domain.Chunk{Text: fmt.Sprintf("chunk %d", i), Source: "doc.txt", Type: domain.SourceTXT}
		vectors[i] = []float32{1, 2, 3}
	}

	if err := c.Upsert(context.Background(), chunks, vectors); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	if len(f.upsertBatches) != 3 {
		t.Fatalf("expected 3 batches for 250 vectors, got %d", len(f.upsertBatches))
	}
	total := 0
	for i, batch := range f.upsertBatches {
		if len(batch) > upsertBatchSize {
			t.Fatalf("batch %d exceeds limit: %d", i, len(batch))
		}
		total += len(batch)
	}
	if total != n {
		t.Fatalf("expected %d vectors upserted, got %d", n, total)
	}
}

func TestUpsertLengthMismatch(t *testing.T) {
	f := newFakePinecone(t)
	err := f.client().Upsert(context.Background(), make([]domain.Chunk, 2), make([][]float32, 3))
	if err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestQueryMapsMatches(t *testing.T) {
	f := newFakePinecone(t)
	f.queryMatches = []map[string]any{
		{"score": 0.91, "metadata": map[string]any{"source": "a.pdf", "type": "pdf", "text": "first"}},
		{"score": 0.82, "metadata": map[string]any{"source": "b.txt", "type": "txt", "text": "second"}},
	}

	chunks, err := f.client().Query(context.Background(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[0].Source != "a.pdf" || chunks[0].Score != 0.91 || chunks[0].Text != "first" {
		t.Fatalf("unexpected first chunk %+v", chunks[0])
	}
}

func TestDeleteAllOnAbsentIndexIsNoop(t *testing.T) {
	f := newFakePinecone(t)
	f.missing = true
	if err := f.client().DeleteAll(context.Background()); err != nil {
		t.Fatalf("clearing an absent index must be a no-op, got %v", err)
	}
	if f.deleteAlls != 0 {
		t.Fatal("no data plane call expected when the index is absent")
	}
}

func TestVectorCount(t *testing.T) {
	f := newFakePinecone(t)
	f.vectorCount = 77
	count, err := f.client().VectorCount(context.Background())
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 77 {
		t.Fatalf("expected 77, got %d", count)
	}
}

func TestDataPlaneHostIsCached(t *testing.T) {
	f := newFakePinecone(t)
	c := f.client()

	if _, err := c.VectorCount(context.Background()); err != nil {
		t.Fatal(err)
	}
	// Break the control plane; cached host must keep data plane calls working.
	f.missing = true
	if _, err := c.VectorCount(context.Background()); err != nil {
		t.Fatalf("cached host should bypass the control plane, got %v", err)
	}

	c.InvalidateHost()
	if _, err := c.VectorCount(context.Background()); err != nil {
		t.Fatal("after invalidation an absent index must report zero vectors, not an error")
	}
}
