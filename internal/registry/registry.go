// Package registry stores document metadata and the raw uploaded payload,
// keyed by document id. The raw bytes live next to the metadata row, so
// re-extraction never needs a separate blob store.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"

	"docchat/internal/config"
	"docchat/internal/models"
)

type documentRow struct {
	bun.BaseModel `bun:"table:documents,alias:d"`
	ID            string    `bun:"id,pk"`
	Filename      string    `bun:"filename,notnull"`
	MimeType      string    `bun:"mime_type,notnull"`
	ByteSize      int64     `bun:"byte_size,notnull"`
	UploadedAt    time.Time `bun:"uploaded_at,notnull,default:current_timestamp"`
	Raw           []byte    `bun:"raw,notnull"`
}

// ErrNotFound is returned by GetDocument for an unknown id. Deletion of an
// unknown document is not an error.
var ErrNotFound = errors.New("document not found")

func ConnectDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	dsn := cfg.URL + "?sslmode=disable"
	return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn), pgdriver.WithPassword(cfg.Password))), nil
}

func NewDB(sqldb *sql.DB, debug bool) *bun.DB {
	db := bun.NewDB(sqldb, pgdialect.New())
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// Registry is the document metadata and payload store.
type Registry struct {
	db *bun.DB
}

func New(db *bun.DB) *Registry {
	return &Registry{db: db}
}

func (r *Registry) Init(ctx context.Context) error {
	_, err := r.db.NewCreateTable().Model((*documentRow)(nil)).IfNotExists().Exec(ctx)
	return err
}

// SaveDocument inserts or replaces the registry row for the document.
func (r *Registry) SaveDocument(ctx context.Context, doc models.Document, raw []byte) error {
	row := &documentRow{
		ID:         doc.ID,
		Filename:   doc.Filename,
		MimeType:   doc.MimeType,
		ByteSize:   doc.ByteSize,
		UploadedAt: doc.UploadedAt,
		Raw:        raw,
	}
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("filename = EXCLUDED.filename").
		Set("mime_type = EXCLUDED.mime_type").
		Set("byte_size = EXCLUDED.byte_size").
		Set("uploaded_at = EXCLUDED.uploaded_at").
		Set("raw = EXCLUDED.raw").
		Exec(ctx)
	return err
}

// GetDocument returns the document metadata and raw payload.
func (r *Registry) GetDocument(ctx context.Context, id string) (models.Document, []byte, error) {
	var row documentRow
	err := r.db.NewSelect().Model(&row).Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Document{}, nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Document{}, nil, err
	}
	return rowToDocument(row), row.Raw, nil
}

// ListDocuments returns metadata for every stored document, newest first.
// Raw payloads are not loaded.
func (r *Registry) ListDocuments(ctx context.Context) ([]models.Document, error) {
	var rows []documentRow
	err := r.db.NewSelect().
		Model(&rows).
		Column("id", "filename", "mime_type", "byte_size", "uploaded_at").
		Order("uploaded_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]models.Document, len(rows))
	for i, row := range rows {
		docs[i] = rowToDocument(row)
	}
	return docs, nil
}

// DeleteDocument removes the registry row. Unknown ids are a no-op.
func (r *Registry) DeleteDocument(ctx context.Context, id string) error {
	_, err := r.db.NewDelete().Model((*documentRow)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func rowToDocument(row documentRow) models.Document {
	return models.Document{
		ID:         row.ID,
		Filename:   row.Filename,
		MimeType:   row.MimeType,
		ByteSize:   row.ByteSize,
		UploadedAt: row.UploadedAt,
	}
}
