package runstore

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"hospitalsync/application/ports"
	"hospitalsync/internal/domain"
)

// upsertBatch bounds the rows per INSERT so the bind parameter count stays small
const upsertBatch = 500

var recordColumns = []string{
	"dataset_id",
	"last_processed_at",
	"processed_at",
	"output_key",
	"checksum",
	"bytes",
}

// PostgresBackend keeps one row per dataset. Rows are upserted, never deleted.
type PostgresBackend struct {
	db    ports.Database
	table string
	qb    squirrel.StatementBuilderType
}

func NewPostgresBackend(db ports.Database, table string) *PostgresBackend {
	return &PostgresBackend{
		db:    db,
		table: table,
		qb:    squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// EnsureSchema creates the records table when missing
func (b *PostgresBackend) EnsureSchema(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	dataset_id        TEXT PRIMARY KEY,
	last_processed_at TIMESTAMPTZ NOT NULL,
	processed_at      TIMESTAMPTZ NOT NULL,
	output_key        TEXT NOT NULL,
	checksum          TEXT NOT NULL DEFAULT '',
	bytes             BIGINT NOT NULL DEFAULT 0
)`, b.table)

	if _, err := b.db.Execute(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", b.table, err)
	}
	return nil
}

// Load selects every record. Any database error is reported as corrupt metadata.
func (b *PostgresBackend) Load(ctx context.Context) (*domain.RunState, error) {
	query, args, err := b.qb.
		Select(recordColumns...).
		From(b.table).
		OrderBy("dataset_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var records []domain.RunRecord
	if err := b.db.Select(ctx, &records, query, args...); err != nil {
		return nil, domain.MetadataCorruptError("select "+b.table, err)
	}

	state := domain.NewRunState()
	for _, rec := range records {
		rec.LastProcessedAt = rec.LastProcessedAt.UTC()
		rec.ProcessedAt = rec.ProcessedAt.UTC()
		state.Put(rec)
		if rec.ProcessedAt.After(state.LastRun) {
			state.LastRun = rec.ProcessedAt
		}
	}
	return state, nil
}

// Save upserts all records in one transaction
func (b *PostgresBackend) Save(ctx context.Context, state *domain.RunState) error {
	records := state.Sorted()
	if len(records) == 0 {
		return nil
	}

	return b.db.Transaction(ctx, func(tx ports.Transaction) error {
		for start := 0; start < len(records); start += upsertBatch {
			end := start + upsertBatch
			if end > len(records) {
				end = len(records)
			}

			query, args, err := b.upsert(records[start:end])
			if err != nil {
				return fmt.Errorf("build upsert: %w", err)
			}
			if _, err := tx.Execute(ctx, query, args...); err != nil {
				return domain.IOError("upsert "+b.table, "", err)
			}
		}
		return nil
	})
}

func (b *PostgresBackend) upsert(records []domain.RunRecord) (string, []interface{}, error) {
	insert := b.qb.Insert(b.table).Columns(recordColumns...)
	for _, rec := range records {
		insert = insert.Values(
			rec.DatasetID,
			rec.LastProcessedAt.UTC(),
			rec.ProcessedAt.UTC(),
			rec.OutputKey,
			rec.Checksum,
			rec.Bytes,
		)
	}

	return insert.Suffix(`ON CONFLICT (dataset_id) DO UPDATE SET
	last_processed_at = EXCLUDED.last_processed_at,
	processed_at = EXCLUDED.processed_at,
	output_key = EXCLUDED.output_key,
	checksum = EXCLUDED.checksum,
	bytes = EXCLUDED.bytes`).ToSql()
}
