// Package chunker splits source and documentation files into bounded,
// overlap-aware text chunks suitable for embedding. Chunking is
// deterministic: re-chunking an unchanged file yields the same chunk
// keys with the same content.
package chunker

import (
	"bytes"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

// DefaultChunkSize is the default number of bytes per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping bytes
// between consecutive chunks of the same file.
const DefaultChunkOverlap = 200

// Chunker splits file content into fixed-size chunks.
type Chunker struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithChunkSize sets the chunk size in bytes.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in bytes.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave forward progress per chunk.
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// Chunk splits content into DocumentChunks keyed by (repoID, filePath,
// index). Empty content produces no chunks.
func (c *Chunker) Chunk(repoID, filePath, content string, now time.Time) []domain.DocumentChunk {
	if content == "" {
		return nil
	}

	lang := LanguageFor(filePath)
	contentLen := len(content)

	estimated := (contentLen / (c.chunkSize - c.overlap)) + 1
	chunks := make([]domain.DocumentChunk, 0, estimated)

	index := 0
	start := 0

	for start < contentLen {
		end := start + c.chunkSize
		if end > contentLen {
			end = contentLen
		}

		chunks = append(chunks, domain.DocumentChunk{
			RepoID:     repoID,
			Path:       filePath,
			ChunkIndex: index,
			Content:    content[start:end],
			Language:   lang,
			UpdatedAt:  now,
		})
		index++

		start += c.chunkSize - c.overlap
	}

	return chunks
}

// sniffLen is how many leading bytes IsBinary inspects.
const sniffLen = 8000

// IsBinary reports whether data looks like binary content that cannot be
// chunked. A NUL byte in the sniff window or invalid UTF-8 disqualifies
// the file.
func IsBinary(data []byte) bool {
	window := data
	if len(window) > sniffLen {
		window = window[:sniffLen]
		// The cut can split a multi-byte rune; drop the dangling
		// fragment so a valid text file is not misread as binary.
		for len(window) > sniffLen-utf8.UTFMax {
			r, size := utf8.DecodeLastRune(window)
			if r != utf8.RuneError || size > 1 {
				break
			}
			window = window[:len(window)-1]
		}
	}

	if bytes.IndexByte(window, 0) >= 0 {
		return true
	}
	return !utf8.Valid(window)
}

// languageByExt maps file extensions to language labels used in the index.
var languageByExt = map[string]string{
	".go":    "go",
	".py":    "python",
	".js":    "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cs":    "csharp",
	".sh":    "shell",
	".sql":   "sql",
	".md":    "markdown",
	".txt":   "text",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
	".proto": "protobuf",
	".tf":    "terraform",
}

// LanguageFor derives a language label from the file path.
func LanguageFor(filePath string) string {
	ext := strings.ToLower(path.Ext(filePath))
	if lang, ok := languageByExt[ext]; ok {
		return lang
	}
	return "text"
}
