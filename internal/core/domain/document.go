package domain

// SourceType identifies the file format a chunk was extracted from.
type SourceType string

const (
	SourcePDF SourceType = "pdf"
	SourceTXT SourceType = "txt"
)

// Chunk is the unit stored in the vector index: a bounded substring of a
// source document plus the metadata persisted alongside its vector. Only the
// base filename is recorded, never a filesystem path.
type Chunk struct {
	Text   string     `json:"text"`
	Source string     `json:"source"`
	Type   SourceType `json:"type"`
}

// IngestRequest describes one ingestion run. When Paths is empty the docs
// folder is scanned for .pdf/.txt files instead.
type IngestRequest struct {
	Paths         []string `json:"paths,omitempty"`
	DocsFolder    string   `json:"docs_folder,omitempty"`
	ChunkSize     int      `json:"chunk_size"`
	ChunkOverlap  int      `json:"chunk_overlap"`
	ClearExisting bool     `json:"clear_existing"`
}

// IngestResult reports what an ingestion run actually did.
type IngestResult struct {
	Files        int      `json:"files"`
	Chunks       int      `json:"chunks"`
	SkippedFiles []string `json:"skipped_files,omitempty"`
	LatencyMS    int64    `json:"latency_ms"`
}
