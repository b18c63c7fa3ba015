package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"github.com/mkarpushin/jarvis-rag/internal/core/domain"
)

// Loader extracts plain text from .pdf and .txt files. Failures are returned
// per file; the caller decides whether to skip or abort.
type Loader struct{}

func New() *Loader {
	return &Loader{}
}

func (l *Loader) Load(ctx context.Context, path string) (string, domain.SourceType, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err := extractPDF(path)
		return text, domain.SourcePDF, err
	case ".txt":
		text, err := readText(path)
		return text, domain.SourceTXT, err
	default:
		return "", "", domain.WrapError(domain.ErrInvalidInput, "load document",
			fmt.Errorf("unsupported file extension: %s", filepath.Ext(path)))
	}
}

func extractPDF(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat pdf: %w", err)
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract pdf page %d: %w", i, err)
		}
		sb.WriteString(pageText)
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("pdf contains no extractable text")
	}
	return text, nil
}

func readText(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read text file: %w", err)
	}
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("text file is not valid utf-8")
	}
	return string(raw), nil
}
