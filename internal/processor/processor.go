// Package processor extracts text from policy documents (PDF, HTML, DOCX)
// and prepares it for indexing: cleaning, content hashing, chunking and
// summarization.
package processor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/govchat-nl/policyscan/internal/hash/sha256"
	"github.com/govchat-nl/policyscan/internal/scraper"
)

// Defaults for the processing parameters.
const (
	DefaultMaxChunkSize  = 10000
	DefaultOverlapSize   = 200
	DefaultSummaryLength = 500
)

// ProcessingError describes a failure to process one document.
type ProcessingError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ProcessingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("process %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("process %s: %s", e.Path, e.Reason)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// Config tunes the processing parameters. Zero values take the defaults.
type Config struct {
	MaxChunkSize  int `mapstructure:"max_chunk_size"`
	OverlapSize   int `mapstructure:"overlap_size"`
	SummaryLength int `mapstructure:"summary_length"`
}

// Result is the outcome of processing one document.
type Result struct {
	Text        string
	Chunks      []string
	ContentHash string
	Summary     string
	WordCount   int
	PageCount   int
	ChunkCount  int
}

// Processor extracts and prepares document text.
type Processor struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a processor, filling defaulted configuration values.
func New(cfg Config, logger *zap.Logger) *Processor {
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = DefaultMaxChunkSize
	}
	if cfg.OverlapSize <= 0 {
		cfg.OverlapSize = DefaultOverlapSize
	}
	if cfg.SummaryLength <= 0 {
		cfg.SummaryLength = DefaultSummaryLength
	}
	return &Processor{cfg: cfg, logger: logger}
}

// Process extracts text from the file at path according to docType and
// derives the index payload: cleaned text, overlapping chunks, SHA-256
// content hash, summary and word count. PageCount is set for PDFs only.
func (p *Processor) Process(ctx context.Context, path string, docType scraper.DocumentType) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, &ProcessingError{Path: path, Reason: "file not found", Err: err}
	}

	p.logger.Info("processing document",
		zap.String("path", path),
		zap.String("type", string(docType)))

	var (
		text      string
		pageCount int
		err       error
	)
	switch docType {
	case scraper.TypePDF:
		text, pageCount, err = p.extractPDF(path)
	case scraper.TypeHTML:
		text, err = p.extractHTML(path)
	case scraper.TypeDOCX:
		text, err = p.extractDOCX(path)
	default:
		return nil, &ProcessingError{Path: path, Reason: fmt.Sprintf("unsupported document type: %s", docType)}
	}
	if err != nil {
		return nil, err
	}

	text = cleanText(text)
	chunks := chunkText(text, p.cfg.MaxChunkSize, p.cfg.OverlapSize)

	result := &Result{
		Text:        text,
		Chunks:      chunks,
		ContentHash: sha256.Sum([]byte(text)),
		Summary:     summarize(text, p.cfg.SummaryLength),
		WordCount:   len(strings.Fields(text)),
		PageCount:   pageCount,
		ChunkCount:  len(chunks),
	}

	p.logger.Info("document processed",
		zap.Int("words", result.WordCount),
		zap.Int("chunks", result.ChunkCount),
		zap.String("hash", result.ContentHash[:16]))

	return result, nil
}

// ValidateFile checks that path exists and is a regular file. A mismatch
// between the file extension and docType is logged, not rejected.
func (p *Processor) ValidateFile(path string, docType scraper.DocumentType) error {
	info, err := os.Stat(path)
	if err != nil {
		return &ProcessingError{Path: path, Reason: "file not found", Err: err}
	}
	if info.IsDir() {
		return &ProcessingError{Path: path, Reason: "not a file"}
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext != string(docType) {
		p.logger.Warn("file extension does not match document type",
			zap.String("extension", ext),
			zap.String("type", string(docType)))
	}
	return nil
}

// cleanText normalizes whitespace: trimmed lines, blank lines dropped,
// runs of spaces collapsed.
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	text = strings.Join(kept, "\n")

	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	for strings.Contains(text, "  ") {
		text = strings.ReplaceAll(text, "  ", " ")
	}
	return strings.TrimSpace(text)
}

// chunkText splits text into chunks of at most maxSize bytes, preferring a
// paragraph or sentence boundary in the back half of the window, with
// overlap bytes carried into the next chunk.
func chunkText(text string, maxSize, overlap int) []string {
	if len(text) <= maxSize {
		return []string{text}
	}

	var chunks []string
	start := 0

	for start < len(text) {
		end := start + maxSize
		if end >= len(text) {
			end = len(text)
		} else {
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			window := text[start:end]
			if para := strings.LastIndex(window, "\n\n"); para > maxSize/2 {
				end = start + para + 2
			} else if sentence := lastSentenceBreak(window); sentence > maxSize/2 {
				end = start + sentence + 2
			}
		}

		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}

		if end < len(text) {
			start = end - overlap
			for start > 0 && !utf8.RuneStart(text[start]) {
				start--
			}
		} else {
			start = end
		}
	}
	return chunks
}

// lastSentenceBreak returns the byte offset of the last sentence-ending
// punctuation followed by a space, or -1.
func lastSentenceBreak(s string) int {
	best := -1
	for _, sep := range []string{". ", "! ", "? "} {
		if i := strings.LastIndex(s, sep); i > best {
			best = i
		}
	}
	return best
}

// summarize truncates text to maxLength runes, preferring a sentence
// boundary in the back half.
func summarize(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	truncated := string(runes[:maxLength])
	if i := strings.LastIndex(truncated, ". "); i > len(truncated)/2 {
		return truncated[:i+1]
	}
	return truncated + "..."
}
