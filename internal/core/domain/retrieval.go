package domain

// FallbackAnswer is what the chat surface returns when retrieval produced no
// context; the prompt template also instructs the model to use it verbatim
// when the context is insufficient.
const FallbackAnswer = "I don't have enough information to answer that based on my current knowledge base."

type RetrievedChunk struct {
	Source string  `json:"source"`
	Type   string  `json:"type"`
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
}

type Answer struct {
	Text       string   `json:"text"`
	Sources    []string `json:"sources"`
	Similarity float64  `json:"similarity"`
	LatencyMS  int64    `json:"latency_ms"`
}

// IndexInfo describes a remote vector index as reported by the control plane.
type IndexInfo struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Ready     bool   `json:"ready"`
}
