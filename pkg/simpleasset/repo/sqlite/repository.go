// Package sqlite stores asset records in an embedded SQLite database through
// gorm. It suits single-node deployments and local development.
package sqlite

import (
	"context"
	"strings"
	"time"

	"emperror.dev/errors"
	gormigrate "github.com/go-gormigrate/gormigrate/v2"
	"github.com/google/uuid"
	"github.com/tendant/simple-asset/pkg/simpleasset"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// assetRecord is the gorm model for the asset table.
type assetRecord struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Filename    string    `gorm:"size:255;not null"`
	ContentType string    `gorm:"size:100;not null"`
	Size        int64     `gorm:"not null;default:0"`
	URL         *string   `gorm:"column:url"`
	UploadDate  time.Time `gorm:"not null;index:idx_asset_upload_date,priority:1"`
	Status      string    `gorm:"size:16;not null;index:idx_asset_status"`
}

func (assetRecord) TableName() string {
	return "asset"
}

func (r *assetRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return
}

var migrations = []*gormigrate.Migration{
	{
		ID: "202410010000",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&assetRecord{})
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("asset")
		},
	},
}

// Open connects to the SQLite database at dsn, e.g. "file:assets.db" or
// "file::memory:?cache=shared".
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.WrapWithDetails(err, "failed to open sqlite database", "dsn", dsn)
	}
	return db, nil
}

// Migrate brings the schema up to date.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations)
	if err := m.Migrate(); err != nil {
		return errors.Wrap(err, "could not migrate asset schema")
	}
	return nil
}

// Repository implements simpleasset.Repository on top of gorm.
type Repository struct {
	DB *gorm.DB
}

// New creates a repository. The schema must already be migrated.
func New(db *gorm.DB) *Repository {
	return &Repository{DB: db}
}

// Save inserts a new asset, generating its ID, or updates an existing one.
func (r *Repository) Save(ctx context.Context, asset *simpleasset.Asset) (*simpleasset.Asset, error) {
	if err := asset.Validate(); err != nil {
		return nil, err
	}

	db := r.DB.WithContext(ctx)
	rec := toRecord(asset)

	if asset.ID == uuid.Nil {
		if err := db.Create(&rec).Error; err != nil {
			return nil, errors.Wrap(err, "failed to insert asset")
		}
		saved, err := fromRecord(&rec)
		if err != nil {
			return nil, err
		}
		asset.ID = saved.ID
		return saved, nil
	}

	res := db.Model(&assetRecord{}).
		Where("id = ?", rec.ID).
		Updates(map[string]interface{}{
			"filename":     rec.Filename,
			"content_type": rec.ContentType,
			"size":         rec.Size,
			"url":          rec.URL,
			"upload_date":  rec.UploadDate,
			"status":       rec.Status,
		})
	if res.Error != nil {
		return nil, errors.WrapWithDetails(res.Error, "failed to update asset", "asset_id", rec.ID)
	}
	if res.RowsAffected == 0 {
		return nil, errors.WithStack(simpleasset.ErrAssetNotFound)
	}
	return fromRecord(&rec)
}

// FindByFilter applies the query as a gorm scope.
func (r *Repository) FindByFilter(ctx context.Context, q simpleasset.Query) ([]*simpleasset.Asset, error) {
	var recs []assetRecord
	if err := r.DB.WithContext(ctx).Scopes(QueryScope(q)).Find(&recs).Error; err != nil {
		return nil, errors.Wrap(err, "failed to query assets")
	}

	assets := make([]*simpleasset.Asset, 0, len(recs))
	for i := range recs {
		a, err := fromRecord(&recs[i])
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}

// QueryScope translates a query into WHERE and ORDER BY clauses. An
// unsupported clause is reported through db.AddError.
func QueryScope(q simpleasset.Query) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		for _, c := range q.Clauses {
			switch {
			case c.Field == simpleasset.FieldUploadDate && c.Op == simpleasset.OpGreaterOrEqual:
				t, _ := c.Value.(time.Time)
				db = db.Where("upload_date >= ?", t.UTC())
			case c.Field == simpleasset.FieldUploadDate && c.Op == simpleasset.OpLessOrEqual:
				t, _ := c.Value.(time.Time)
				db = db.Where("upload_date <= ?", t.UTC())
			case c.Field == simpleasset.FieldFilename && c.Op == simpleasset.OpContainsFold:
				s, _ := c.Value.(string)
				db = db.Where(`LOWER(filename) LIKE ? ESCAPE '\'`, "%"+simpleasset.EscapeLike(strings.ToLower(s))+"%")
			case c.Field == simpleasset.FieldContentType && c.Op == simpleasset.OpEqualFold:
				s, _ := c.Value.(string)
				db = db.Where("LOWER(content_type) = ?", strings.ToLower(s))
			case c.Field == simpleasset.FieldStatus && c.Op == simpleasset.OpIn:
				statuses, _ := c.Value.([]simpleasset.AssetStatus)
				values := make([]string, len(statuses))
				for i, st := range statuses {
					values[i] = string(st)
				}
				db = db.Where("status IN ?", values)
			default:
				_ = db.AddError(errors.Errorf("unsupported clause %s %s", c.Field, c.Op))
			}
		}

		order := "upload_date DESC"
		if q.Sort.Direction == simpleasset.SortAsc {
			order = "upload_date ASC"
		}
		return db.Order(order).Order("id ASC")
	}
}

func toRecord(a *simpleasset.Asset) assetRecord {
	rec := assetRecord{
		Filename:    a.Filename,
		ContentType: a.ContentType,
		Size:        a.Size,
		UploadDate:  a.UploadDate.UTC(),
		Status:      string(a.Status),
	}
	if a.ID != uuid.Nil {
		rec.ID = a.ID.String()
	}
	if a.URL != "" {
		url := a.URL
		rec.URL = &url
	}
	return rec
}

func fromRecord(rec *assetRecord) (*simpleasset.Asset, error) {
	id, err := uuid.Parse(rec.ID)
	if err != nil {
		return nil, errors.WrapWithDetails(err, "stored asset has a malformed id", "id", rec.ID)
	}
	a := &simpleasset.Asset{
		ID:          id,
		Filename:    rec.Filename,
		ContentType: rec.ContentType,
		Size:        rec.Size,
		UploadDate:  rec.UploadDate.UTC(),
		Status:      simpleasset.AssetStatus(rec.Status),
	}
	if rec.URL != nil {
		a.URL = *rec.URL
	}
	return a, nil
}
