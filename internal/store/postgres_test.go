package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/schema"
)

func renderChunksDDL(p *Postgres) string {
	query, args := p.chunksDDL()
	return schema.NewFormatter(pgdialect.New()).FormatQuery(query, args...)
}

func TestChunksDDLUsesConfiguredDimensions(t *testing.T) {
	ddl := renderChunksDDL(NewPostgres(nil, "dev_mun_", 768))

	assert.Contains(t, ddl, `"embedding" vector(768)`)
	assert.Contains(t, ddl, `"dev_mun_chunks"`)
	assert.Contains(t, ddl, `REFERENCES "dev_mun_files"`)
}

func TestChunksDDLDefaultsDimensions(t *testing.T) {
	ddl := renderChunksDDL(NewPostgres(nil, "mun_", 0))

	assert.Contains(t, ddl, "vector(1536)")
}
