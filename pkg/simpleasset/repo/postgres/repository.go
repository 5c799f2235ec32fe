package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-asset/pkg/simpleasset"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Schema creates the asset table. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS asset (
    id           UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    filename     VARCHAR(255) NOT NULL,
    content_type VARCHAR(100) NOT NULL,
    size         BIGINT NOT NULL DEFAULT 0,
    url          TEXT,
    upload_date  TIMESTAMPTZ NOT NULL,
    status       VARCHAR(16) NOT NULL CHECK (status IN ('PENDING', 'COMPLETED', 'FAILED'))
);
CREATE INDEX IF NOT EXISTS idx_asset_upload_date ON asset (upload_date, id);
CREATE INDEX IF NOT EXISTS idx_asset_status ON asset (status);
`

const assetColumns = `id, filename, content_type, size, url, upload_date, status`

// Repository implements simpleasset.Repository using PostgreSQL
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply asset schema: %w", err)
	}
	return nil
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return simpleasset.ErrAssetNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("asset already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "23514": // check_violation
			return fmt.Errorf("%w: rejected by %s", simpleasset.ErrInvalidStatus, pgErr.ConstraintName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}

// Save inserts a new asset, letting the database assign its ID, or updates
// the mutable fields of an existing one.
func (r *Repository) Save(ctx context.Context, asset *simpleasset.Asset) (*simpleasset.Asset, error) {
	if err := asset.Validate(); err != nil {
		return nil, err
	}
	if asset.ID == uuid.Nil {
		return r.insert(ctx, asset)
	}
	return r.update(ctx, asset)
}

func (r *Repository) insert(ctx context.Context, asset *simpleasset.Asset) (*simpleasset.Asset, error) {
	query := `
        INSERT INTO asset (filename, content_type, size, url, upload_date, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING ` + assetColumns

	row := r.db.QueryRow(ctx, query,
		asset.Filename, asset.ContentType, asset.Size, nullString(asset.URL), asset.UploadDate, string(asset.Status))
	saved, err := scanAsset(row)
	if err != nil {
		return nil, r.handlePostgresError("save", err)
	}
	asset.ID = saved.ID
	return saved, nil
}

func (r *Repository) update(ctx context.Context, asset *simpleasset.Asset) (*simpleasset.Asset, error) {
	query := `
        UPDATE asset
        SET filename = $2, content_type = $3, size = $4, url = $5, upload_date = $6, status = $7
        WHERE id = $1
        RETURNING ` + assetColumns

	row := r.db.QueryRow(ctx, query,
		asset.ID, asset.Filename, asset.ContentType, asset.Size, nullString(asset.URL), asset.UploadDate, string(asset.Status))
	saved, err := scanAsset(row)
	if err != nil {
		return nil, r.handlePostgresError("save", err)
	}
	return saved, nil
}

// FindByFilter translates the query's clauses into SQL.
func (r *Repository) FindByFilter(ctx context.Context, q simpleasset.Query) ([]*simpleasset.Asset, error) {
	query, args, err := buildFindQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("find", err)
	}
	defer rows.Close()

	assets := []*simpleasset.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, r.handlePostgresError("find", err)
		}
		assets = append(assets, a)
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("find", err)
	}
	return assets, nil
}

func buildFindQuery(q simpleasset.Query) (string, []interface{}, error) {
	query := `SELECT ` + assetColumns + ` FROM asset WHERE 1=1`
	args := []interface{}{}
	argIndex := 1

	for _, c := range q.Clauses {
		switch {
		case c.Field == simpleasset.FieldUploadDate && (c.Op == simpleasset.OpGreaterOrEqual || c.Op == simpleasset.OpLessOrEqual):
			t, ok := c.Value.(time.Time)
			if !ok {
				return "", nil, fmt.Errorf("upload_date clause needs a time value, got %T", c.Value)
			}
			query += fmt.Sprintf(" AND upload_date %s $%d", c.Op, argIndex)
			args = append(args, t)
		case c.Field == simpleasset.FieldFilename && c.Op == simpleasset.OpContainsFold:
			s, ok := c.Value.(string)
			if !ok {
				return "", nil, fmt.Errorf("filename clause needs a string value, got %T", c.Value)
			}
			query += fmt.Sprintf(` AND LOWER(filename) LIKE $%d ESCAPE '\'`, argIndex)
			args = append(args, "%"+simpleasset.EscapeLike(strings.ToLower(s))+"%")
		case c.Field == simpleasset.FieldContentType && c.Op == simpleasset.OpEqualFold:
			s, ok := c.Value.(string)
			if !ok {
				return "", nil, fmt.Errorf("content_type clause needs a string value, got %T", c.Value)
			}
			query += fmt.Sprintf(" AND LOWER(content_type) = $%d", argIndex)
			args = append(args, strings.ToLower(s))
		case c.Field == simpleasset.FieldStatus && c.Op == simpleasset.OpIn:
			statuses, ok := c.Value.([]simpleasset.AssetStatus)
			if !ok {
				return "", nil, fmt.Errorf("status clause needs a status list, got %T", c.Value)
			}
			values := make([]string, len(statuses))
			for i, st := range statuses {
				values[i] = string(st)
			}
			query += fmt.Sprintf(" AND status = ANY($%d)", argIndex)
			args = append(args, values)
		default:
			return "", nil, fmt.Errorf("unsupported clause %s %s", c.Field, c.Op)
		}
		argIndex++
	}

	sortOrder := "DESC"
	if q.Sort.Direction == simpleasset.SortAsc {
		sortOrder = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY upload_date %s, id ASC", sortOrder)

	return query, args, nil
}

func scanAsset(row pgx.Row) (*simpleasset.Asset, error) {
	var (
		a      simpleasset.Asset
		url    *string
		status string
	)
	if err := row.Scan(&a.ID, &a.Filename, &a.ContentType, &a.Size, &url, &a.UploadDate, &status); err != nil {
		return nil, err
	}
	if url != nil {
		a.URL = *url
	}
	a.Status = simpleasset.AssetStatus(status)
	a.UploadDate = a.UploadDate.UTC()
	return &a, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
