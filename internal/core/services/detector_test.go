package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/codewiki/internal/core/domain"
)

func TestDetectWithoutBaseReportsAllAdded(t *testing.T) {
	d := NewChangeDetector(&fakeSource{})

	changes, err := d.Detect(context.Background(), testRepo("r1", domain.RepoStatusReady), "", "sha-1",
		[]domain.RepoFile{{Path: "a.go"}, {Path: "b.go"}})
	require.NoError(t, err)

	require.Len(t, changes, 2)
	for _, c := range changes {
		assert.Equal(t, domain.ChangeAdded, c.Kind)
	}
}

func TestDetectUnknownBaseFallsBackToFullScan(t *testing.T) {
	source := &fakeSource{}
	source.compareFn = func(base, head string) ([]domain.FileChange, error) {
		return nil, domain.ErrNotFound
	}
	d := NewChangeDetector(source)

	changes, err := d.Detect(context.Background(), testRepo("r1", domain.RepoStatusReady), "gone", "sha-1",
		[]domain.RepoFile{{Path: "a.go"}})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.ChangeAdded, changes[0].Kind)
}

func TestDetectPassesDeltaThrough(t *testing.T) {
	source := &fakeSource{}
	source.compareFn = func(base, head string) ([]domain.FileChange, error) {
		assert.Equal(t, "sha-old", base)
		assert.Equal(t, "sha-new", head)
		return []domain.FileChange{
			{Path: "a.go", Kind: domain.ChangeModified},
			{Path: "b.go", Kind: domain.ChangeDeleted},
		}, nil
	}
	d := NewChangeDetector(source)

	changes, err := d.Detect(context.Background(), testRepo("r1", domain.RepoStatusReady), "sha-old", "sha-new", nil)
	require.NoError(t, err)
	assert.Len(t, changes, 2)
}

func TestDetectSurfacesCompareError(t *testing.T) {
	source := &fakeSource{}
	source.compareFn = func(base, head string) ([]domain.FileChange, error) {
		return nil, errors.New("host unavailable")
	}
	d := NewChangeDetector(source)

	_, err := d.Detect(context.Background(), testRepo("r1", domain.RepoStatusReady), "sha-old", "sha-new", nil)
	assert.Error(t, err)
}
