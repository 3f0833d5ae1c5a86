package domain

import (
	"fmt"
	"time"
)

// DocumentChunk is a bounded-size unit of extracted text paired with its
// embedding vector. Chunks are owned by the analysis pipeline; the index
// and artifact stores hold derived copies.
type DocumentChunk struct {
	// RepoID is the owning repository.
	RepoID string

	// Path is the source file path within the repository.
	Path string

	// ChunkIndex is the ordinal position within the file.
	ChunkIndex int

	// Content is the raw chunk text.
	Content string

	// Embedding is the vector representation for semantic search.
	// Nil until the embedding stage has run.
	Embedding []float32

	// Language is the detected source language or file type.
	Language string

	// UpdatedAt is when the chunk was last (re)indexed.
	UpdatedAt time.Time
}

// Key returns the unique chunk identity within the index.
// Re-chunking an unchanged file yields the same keys.
func (c DocumentChunk) Key() string {
	return ChunkKey(c.RepoID, c.Path, c.ChunkIndex)
}

// ChunkKey builds the canonical chunk identity from its parts.
func ChunkKey(repoID, path string, index int) string {
	return fmt.Sprintf("%s:%s:%d", repoID, path, index)
}
