package domain

// InsufficientContextAnswer is the deterministic response returned by RAG
// search when retrieval yields no chunks. It is a normal answer, not an
// error, and the generation client is never called to produce it.
const InsufficientContextAnswer = "I could not find enough indexed content to answer this question. " +
	"Try re-running analysis on the relevant repositories or rephrasing the question."

// SearchOptions configures a full-text search query.
type SearchOptions struct {
	// Limit is the maximum number of results (default 20).
	Limit int

	// RepoIDs restricts the search to specific repositories.
	// Empty means cross-repository search over everything indexed.
	RepoIDs []string
}

// SearchResult is a single full-text search hit.
type SearchResult struct {
	// Chunk is the matched chunk.
	Chunk DocumentChunk

	// Score is the relevance score from the index.
	Score float64

	// RepoName is the display name of the owning repository.
	RepoName string

	// Highlights contains snippets with matched terms.
	Highlights []string
}

// RAGOptions configures a retrieval-augmented generation query.
type RAGOptions struct {
	// RepoIDs restricts retrieval to specific repositories.
	// Empty means cross-repository retrieval.
	RepoIDs []string

	// TopK is the number of chunks to retrieve (default 12).
	TopK int
}

// Citation references a chunk that grounded a generated answer.
type Citation struct {
	// RepoID is the repository the chunk belongs to.
	RepoID string

	// Path is the source file path.
	Path string

	// ChunkIndex is the chunk's position within the file.
	ChunkIndex int

	// Score is the retrieval similarity score.
	Score float64
}

// Key returns the canonical chunk key the citation points at.
func (c Citation) Key() string {
	return ChunkKey(c.RepoID, c.Path, c.ChunkIndex)
}

// RAGAnswer is the result of a retrieval-augmented generation query.
// It is transient and never persisted.
type RAGAnswer struct {
	// Answer is the generated (or deterministic fallback) text.
	Answer string

	// Citations lists the chunks that were included in the generation
	// prompt, in retrieval order. Empty only for the insufficient
	// context fallback.
	Citations []Citation

	// Grounded is false when the insufficient-context fallback was
	// returned without calling the generation client.
	Grounded bool
}
