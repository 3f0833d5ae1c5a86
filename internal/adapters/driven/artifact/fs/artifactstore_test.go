package fs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

func newTestStore(t *testing.T) *ArtifactStore {
	t.Helper()
	store, err := NewArtifactStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func testPage(repoID, sourcePath string) domain.WikiPage {
	return domain.WikiPage{
		RepoID:     repoID,
		PageID:     domain.PageIDFor(sourcePath),
		Title:      sourcePath,
		Kind:       domain.PageKindCode,
		SourcePath: sourcePath,
		Content:    "# " + sourcePath + "\n\nGenerated docs.",
		Importance: domain.ImportanceFor(domain.PageKindCode),
		Tags:       []string{"go"},
		SourceRefs: []string{domain.ChunkKey(repoID, sourcePath, 0)},
		UpdatedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func TestPutGetPageRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	page := testPage("r1", "internal/auth/token.go")

	require.NoError(t, store.PutPage(ctx, page))

	got, err := store.GetPage(ctx, "r1", page.PageID)
	require.NoError(t, err)
	assert.Equal(t, page.Content, got.Content)
	assert.Equal(t, page.Title, got.Title)
	assert.Equal(t, page.Kind, got.Kind)
	assert.Equal(t, page.Importance, got.Importance)
	assert.Equal(t, page.Tags, got.Tags)
	assert.Equal(t, page.SourceRefs, got.SourceRefs)
	assert.Equal(t, page.UpdatedAt, got.UpdatedAt)
}

func TestPutPageOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	page := testPage("r1", "main.go")
	require.NoError(t, store.PutPage(ctx, page))

	page.Content = "# main.go\n\nRewritten."
	require.NoError(t, store.PutPage(ctx, page))

	got, err := store.GetPage(ctx, "r1", page.PageID)
	require.NoError(t, err)
	assert.Contains(t, got.Content, "Rewritten")
}

func TestGetPageNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetPage(context.Background(), "r1", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListPages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.PutPage(ctx, testPage("r1", "a.go")))
	require.NoError(t, store.PutPage(ctx, testPage("r1", "b.go")))
	require.NoError(t, store.PutPage(ctx, testPage("r2", "c.go")))

	pages, err := store.ListPages(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	pages, err = store.ListPages(ctx, "unscanned")
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestDeletePageIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	page := testPage("r1", "a.go")
	require.NoError(t, store.PutPage(ctx, page))

	require.NoError(t, store.DeletePage(ctx, "r1", page.PageID))
	_, err := store.GetPage(ctx, "r1", page.PageID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.DeletePage(ctx, "r1", page.PageID))
}

func TestPutRawLayout(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.PutRaw(ctx, "r1", "sha-1", "manifest.json", []byte(`{"files":3}`)))

	data, err := os.ReadFile(filepath.Join(store.Root(), "r1", "raw", "sha-1", "manifest.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"files":3}`, string(data))
}

func TestSanitizeKeepsPathsInsideRoot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	page := testPage("../escape", "a.go")
	page.RepoID = "../escape"
	require.NoError(t, store.PutPage(ctx, page))

	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "..")
	}
}
