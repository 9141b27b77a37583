package vectorstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/uptrace/bun"

	"docchat/internal/models"
)

// indexEntry is the persisted row shape. The embedding column's type is set
// in Init, where the configured dimensionality is known.
type indexEntry struct {
	bun.BaseModel `bun:"table:index_entries,alias:ie"`
	ChunkID       string    `bun:"chunk_id,pk"`
	DocumentID    string    `bun:"document_id,notnull"`
	Ordinal       int       `bun:"ordinal,notnull"`
	Content       string    `bun:"content,notnull"`
	Embedding     []float32 `bun:"embedding,notnull"`
	Distance      float64   `bun:"distance,scanonly"`
}

// DefaultVectorSize matches nomic-embed-text, the default embedding model.
const DefaultVectorSize = 768

// PostgresStore keeps the index in a pgvector-enabled Postgres table.
// Replacement is transactional: delete plus insert commit together, so
// readers never see a mixed or empty mid-replacement state.
type PostgresStore struct {
	db         *bun.DB
	vectorSize int
}

func NewPostgresStore(db *bun.DB, vectorSize int) *PostgresStore {
	if vectorSize <= 0 {
		vectorSize = DefaultVectorSize
	}
	return &PostgresStore{db: db, vectorSize: vectorSize}
}

// Init creates the entries table if needed, sized to the embedding model.
func (s *PostgresStore) Init(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS index_entries (
		chunk_id text PRIMARY KEY,
		document_id text NOT NULL,
		ordinal integer NOT NULL,
		content text NOT NULL,
		embedding vector(%d) NOT NULL
	)`, s.vectorSize)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table: %v: %w", err, models.ErrIndexUnavailable)
	}
	return nil
}

func (s *PostgresStore) Upsert(ctx context.Context, documentID string, entries []Entry) error {
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*indexEntry)(nil)).
			Where("document_id = ?", documentID).
			Exec(ctx); err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		rows := make([]indexEntry, len(entries))
		for i, entry := range entries {
			rows[i] = indexEntry{
				ChunkID:    entry.ChunkID,
				DocumentID: entry.DocumentID,
				Ordinal:    entry.Ordinal,
				Content:    entry.Content,
				Embedding:  entry.Embedding,
			}
		}
		_, err := tx.NewInsert().Model(&rows).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert document %s: %v: %w", documentID, err, models.ErrIndexUnavailable)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, vector []float32, k int, documentIDs []string) ([]Result, error) {
	if k <= 0 {
		return []Result{}, nil
	}

	var rows []indexEntry
	q := s.db.NewSelect().
		Model(&rows).
		ColumnExpr("ie.*").
		ColumnExpr("embedding <=> ? AS distance", vector).
		OrderExpr("embedding <=> ?, document_id, ordinal", vector).
		Limit(k)
	if len(documentIDs) > 0 {
		q = q.Where("document_id IN (?)", bun.In(documentIDs))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("query: %v: %w", err, models.ErrIndexUnavailable)
	}

	results := make([]Result, len(rows))
	for i, row := range rows {
		results[i] = Result{
			Entry: Entry{
				ChunkID:    row.ChunkID,
				DocumentID: row.DocumentID,
				Ordinal:    row.Ordinal,
				Content:    row.Content,
				Embedding:  row.Embedding,
			},
			// pgvector's <=> is cosine distance.
			Similarity: float32(1 - row.Distance),
		}
	}
	return results, nil
}

func (s *PostgresStore) Delete(ctx context.Context, documentID string) error {
	if _, err := s.db.NewDelete().
		Model((*indexEntry)(nil)).
		Where("document_id = ?", documentID).
		Exec(ctx); err != nil {
		return fmt.Errorf("delete document %s: %v: %w", documentID, err, models.ErrIndexUnavailable)
	}
	return nil
}
