package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
)

type fileRow struct {
	bun.BaseModel `bun:"table:files,alias:f"`

	ID          string     `bun:"id,pk,type:uuid"`
	Name        string     `bun:"name,notnull"`
	Fingerprint string     `bun:"fingerprint,notnull,unique"`
	ProcessedAt *time.Time `bun:"processed_at,nullzero"`
	CreatedAt   time.Time  `bun:"created_at,notnull"`
}

type chunkRow struct {
	bun.BaseModel `bun:"table:chunks,alias:c"`

	ID        string          `bun:"id,pk,type:uuid"`
	FileID    string          `bun:"file_id,notnull,type:uuid"`
	Index     int             `bun:"index,notnull"`
	Content   string          `bun:"content,notnull"`
	Embedding pgvector.Vector `bun:"embedding"`
	CreatedAt time.Time       `bun:"created_at,notnull"`
}

// DefaultVectorDims matches the width of the default openai embedding model.
const DefaultVectorDims = 1536

// Postgres implements Store on a pgvector-enabled database. Table names
// carry an environment prefix so deployments can share an instance.
type Postgres struct {
	db     *bun.DB
	files  string
	chunks string
	dims   int
}

var _ Store = (*Postgres)(nil)

// NewPostgres wires a handle to the prefixed tables. dims is the width of
// the vector column; it must match the configured embedding model.
func NewPostgres(db *bun.DB, tablePrefix string, dims int) *Postgres {
	if dims <= 0 {
		dims = DefaultVectorDims
	}
	return &Postgres{
		db:     db,
		files:  tablePrefix + "files",
		chunks: tablePrefix + "chunks",
		dims:   dims,
	}
}

// InitSchema creates the vector extension and both tables if they are
// missing. Chunk rows cascade on file deletion.
func (p *Postgres) InitSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("store: create vector extension: %w", err)
	}

	if _, err := p.db.NewCreateTable().
		Model((*fileRow)(nil)).
		ModelTableExpr("?", bun.Ident(p.files)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("store: create %s: %w", p.files, err)
	}

	query, args := p.chunksDDL()
	if _, err := p.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: create %s: %w", p.chunks, err)
	}
	return nil
}

// chunksDDL builds the chunk table statement. The vector column width is
// configuration, not a model constant, so the table is declared explicitly.
func (p *Postgres) chunksDDL() (string, []interface{}) {
	query := `CREATE TABLE IF NOT EXISTS ? (
	"id" uuid PRIMARY KEY,
	"file_id" uuid NOT NULL REFERENCES ? ("id") ON DELETE CASCADE,
	"index" bigint NOT NULL,
	"content" text NOT NULL,
	"embedding" vector(?),
	"created_at" timestamptz NOT NULL
)`
	return query, []interface{}{bun.Ident(p.chunks), bun.Ident(p.files), p.dims}
}

func (p *Postgres) CreateFile(ctx context.Context, name, fingerprint string) (*File, error) {
	row := &fileRow{
		ID:          uuid.NewString(),
		Name:        name,
		Fingerprint: fingerprint,
		CreatedAt:   time.Now(),
	}
	_, err := p.db.NewInsert().
		Model(row).
		ModelTableExpr("?", bun.Ident(p.files)).
		On("CONFLICT (fingerprint) DO UPDATE").
		Set("name = EXCLUDED.name").
		Returning("*").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: upsert file %s: %w", name, err)
	}
	return row.toFile(), nil
}

func (p *Postgres) FindByFingerprint(ctx context.Context, fingerprint string) (*File, error) {
	row := new(fileRow)
	err := p.db.NewSelect().
		Model(row).
		ModelTableExpr("? AS f", bun.Ident(p.files)).
		Where("f.fingerprint = ?", fingerprint).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: find file by fingerprint: %w", err)
	}
	return row.toFile(), nil
}

func (p *Postgres) ListFiles(ctx context.Context) ([]File, error) {
	var rows []fileRow
	err := p.db.NewSelect().
		Model(&rows).
		ModelTableExpr("? AS f", bun.Ident(p.files)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list files: %w", err)
	}
	files := make([]File, len(rows))
	for i := range rows {
		files[i] = *rows[i].toFile()
	}
	return files, nil
}

func (p *Postgres) MarkProcessed(ctx context.Context, fileID string) error {
	_, err := p.db.NewUpdate().
		Model((*fileRow)(nil)).
		ModelTableExpr("? AS f", bun.Ident(p.files)).
		Set("processed_at = ?", time.Now()).
		Where("f.id = ?", fileID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("store: mark file %s processed: %w", fileID, err)
	}
	return nil
}

func (p *Postgres) DeleteFile(ctx context.Context, fileID string) error {
	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*chunkRow)(nil)).
			ModelTableExpr("? AS c", bun.Ident(p.chunks)).
			Where("c.file_id = ?", fileID).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*fileRow)(nil)).
			ModelTableExpr("? AS f", bun.Ident(p.files)).
			Where("f.id = ?", fileID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("store: delete file %s: %w", fileID, err)
	}
	return nil
}

func (p *Postgres) ReplaceChunks(ctx context.Context, fileID string, chunks []Chunk) error {
	err := p.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*chunkRow)(nil)).
			ModelTableExpr("? AS c", bun.Ident(p.chunks)).
			Where("c.file_id = ?", fileID).
			Exec(ctx); err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}

		rows := make([]chunkRow, len(chunks))
		now := time.Now()
		for i, chunk := range chunks {
			rows[i] = chunkRow{
				ID:        uuid.NewString(),
				FileID:    fileID,
				Index:     chunk.Index,
				Content:   chunk.Content,
				Embedding: pgvector.NewVector(chunk.Vector),
				CreatedAt: now,
			}
		}
		_, err := tx.NewInsert().
			Model(&rows).
			ModelTableExpr("?", bun.Ident(p.chunks)).
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("store: replace chunks for file %s: %w", fileID, err)
	}
	return nil
}

// TopK orders by negative inner product, the metric the embedding models
// are tuned for, and reports similarity as 1 - distance.
func (p *Postgres) TopK(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error) {
	query := pgvector.NewVector(vector)

	var rows []struct {
		Content    string  `bun:"content"`
		Similarity float64 `bun:"similarity"`
	}
	err := p.db.NewSelect().
		ModelTableExpr("? AS c", bun.Ident(p.chunks)).
		ColumnExpr("c.content").
		ColumnExpr("1 - (c.embedding <#> ?) AS similarity", query).
		OrderExpr("c.embedding <#> ?", query).
		Limit(k).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("store: top-k query: %w", err)
	}

	scored := make([]ScoredChunk, len(rows))
	for i, row := range rows {
		scored[i] = ScoredChunk{Content: row.Content, Similarity: row.Similarity}
	}
	return scored, nil
}

func (r *fileRow) toFile() *File {
	return &File{
		ID:          r.ID,
		Name:        r.Name,
		Fingerprint: r.Fingerprint,
		ProcessedAt: r.ProcessedAt,
		CreatedAt:   r.CreatedAt,
	}
}
