package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gotidy/ptr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"github.com/tendant/simple-asset/pkg/simpleasset/repo/memory"
)

func pending(filename string, date time.Time) *simpleasset.Asset {
	return &simpleasset.Asset{
		Filename:    filename,
		ContentType: "text/plain",
		Content:     []byte("data"),
		Size:        4,
		UploadDate:  date,
		Status:      simpleasset.AssetStatusPending,
	}
}

func TestRepository_SaveAssignsID(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	asset := pending("a.txt", time.Now().UTC())

	saved, err := repo.Save(ctx, asset)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, saved.ID)
	assert.Equal(t, saved.ID, asset.ID)
	assert.Nil(t, saved.Content)

	stored, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.Content)
	assert.Equal(t, "a.txt", stored.Filename)
}

func TestRepository_SaveUpdatesExisting(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	saved, err := repo.Save(ctx, pending("a.txt", time.Now().UTC()))
	require.NoError(t, err)

	require.NoError(t, saved.MarkCompleted("memory://k"))
	_, err = repo.Save(ctx, saved)
	require.NoError(t, err)

	stored, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, simpleasset.AssetStatusCompleted, stored.Status)
	assert.Equal(t, "memory://k", stored.URL)
	assert.Equal(t, 1, repo.Len())
}

func TestRepository_SaveUnknownID(t *testing.T) {
	repo := memory.New()
	asset := pending("a.txt", time.Now().UTC())
	asset.ID = uuid.New()

	_, err := repo.Save(context.Background(), asset)

	assert.ErrorIs(t, err, simpleasset.ErrAssetNotFound)
}

func TestRepository_SaveRejectsInvalidRecords(t *testing.T) {
	repo := memory.New()
	asset := pending("a.txt", time.Now().UTC())
	asset.Status = simpleasset.AssetStatusCompleted

	_, err := repo.Save(context.Background(), asset)

	assert.ErrorIs(t, err, simpleasset.ErrInvalidStatus)
	assert.Zero(t, repo.Len())
}

func TestRepository_ReturnedCopiesAreIndependent(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	saved, err := repo.Save(ctx, pending("a.txt", time.Now().UTC()))
	require.NoError(t, err)

	saved.Filename = "changed"
	found, err := repo.FindByFilter(ctx, simpleasset.BuildQuery(nil))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "a.txt", found[0].Filename)

	found[0].Filename = "changed again"
	stored, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.txt", stored.Filename)
}

func TestRepository_FindByFilter(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"one.txt", "two.TXT", "three.png"} {
		_, err := repo.Save(ctx, pending(name, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	found, err := repo.FindByFilter(ctx, simpleasset.BuildQuery(&simpleasset.AssetFilter{
		Filename:      ptr.String(".txt"),
		SortDirection: simpleasset.SortAsc,
	}))
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "one.txt", found[0].Filename)
	assert.Equal(t, "two.TXT", found[1].Filename)

	found, err = repo.FindByFilter(ctx, simpleasset.BuildQuery(nil))
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, "three.png", found[0].Filename)
}

func TestRepository_ConcurrentAccess(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := repo.Save(ctx, pending("a.txt", time.Now().UTC()))
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := repo.FindByFilter(ctx, simpleasset.BuildQuery(nil))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, repo.Len())
}
