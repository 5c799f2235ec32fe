package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gotidy/ptr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

func TestBuildFindQuery(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	tests := []struct {
		name          string
		filter        *simpleasset.AssetFilter
		expectedWhere string
		expectedArgs  []interface{}
	}{
		{
			name:          "no filter",
			filter:        nil,
			expectedWhere: " ORDER BY upload_date DESC, id ASC",
			expectedArgs:  []interface{}{},
		},
		{
			name: "all clauses ascending",
			filter: &simpleasset.AssetFilter{
				UploadDateStart: &start,
				UploadDateEnd:   &end,
				Filename:        ptr.String("My_File"),
				ContentType:     ptr.String("Image/PNG"),
				Statuses:        []simpleasset.AssetStatus{simpleasset.AssetStatusPending, simpleasset.AssetStatusFailed},
				SortDirection:   simpleasset.SortAsc,
			},
			expectedWhere: " AND upload_date >= $1 AND upload_date <= $2" +
				` AND LOWER(filename) LIKE $3 ESCAPE '\'` +
				" AND LOWER(content_type) = $4 AND status = ANY($5)" +
				" ORDER BY upload_date ASC, id ASC",
			expectedArgs: []interface{}{
				start,
				end,
				`%my\_file%`,
				"image/png",
				[]string{"PENDING", "FAILED"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args, err := buildFindQuery(simpleasset.BuildQuery(tt.filter))
			require.NoError(t, err)
			assert.Equal(t, "SELECT "+assetColumns+" FROM asset WHERE 1=1"+tt.expectedWhere, query)
			assert.Equal(t, tt.expectedArgs, args)
		})
	}
}

func TestBuildFindQuery_RejectsUnsupportedClauses(t *testing.T) {
	_, _, err := buildFindQuery(simpleasset.Query{
		Clauses: []simpleasset.Clause{{Field: simpleasset.FieldID, Op: simpleasset.OpEqualFold, Value: "x"}},
	})
	assert.Error(t, err)

	_, _, err = buildFindQuery(simpleasset.Query{
		Clauses: []simpleasset.Clause{{Field: simpleasset.FieldUploadDate, Op: simpleasset.OpGreaterOrEqual, Value: "yesterday"}},
	})
	assert.Error(t, err)
}

// setupTestDB connects to TEST_DATABASE_URL and skips when it is unset.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping postgres integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	_, err = pool.Exec(ctx, "TRUNCATE asset")
	require.NoError(t, err)
	return pool
}

func TestRepository_Integration(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewWithPool(pool)
	ctx := context.Background()
	date := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	asset := &simpleasset.Asset{
		Filename:    "Photo.JPG",
		ContentType: "image/jpeg",
		Size:        10,
		UploadDate:  date,
		Status:      simpleasset.AssetStatusPending,
	}
	saved, err := repo.Save(ctx, asset)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, saved.ID)
	assert.Equal(t, saved.ID, asset.ID)

	require.NoError(t, saved.MarkCompleted("https://cdn.example.com/photo.jpg"))
	_, err = repo.Save(ctx, saved)
	require.NoError(t, err)

	found, err := repo.FindByFilter(ctx, simpleasset.BuildQuery(&simpleasset.AssetFilter{
		Filename: ptr.String("photo"),
		Statuses: []simpleasset.AssetStatus{simpleasset.AssetStatusCompleted},
	}))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "https://cdn.example.com/photo.jpg", found[0].URL)
	assert.True(t, date.Equal(found[0].UploadDate))

	unknown := &simpleasset.Asset{ID: uuid.New(), Status: simpleasset.AssetStatusFailed, UploadDate: date}
	_, err = repo.Save(ctx, unknown)
	assert.ErrorIs(t, err, simpleasset.ErrAssetNotFound)
}
