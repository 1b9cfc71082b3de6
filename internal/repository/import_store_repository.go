package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/rpattn/retailops/internal/db"
	"github.com/rpattn/retailops/internal/domain"
	"github.com/rpattn/retailops/internal/importer"
)

// importStore implements importer.TargetStore against PostgreSQL. Each chunk
// becomes a single multi-row INSERT ... ON CONFLICT upsert on the schema's
// natural key; atomicity per key is what the pipeline's concurrency model
// leans on.
type importStore struct {
	conn *db.Connection
}

// NewImportStore wires the batch-writer target store backed by the pgx pool.
func NewImportStore(conn *db.Connection) importer.TargetStore {
	return &importStore{conn: conn}
}

func (s *importStore) DeleteAll(ctx context.Context, schema importer.TargetSchema) error {
	if _, err := s.conn.Pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", schema.Table)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", schema.Table, err)
	}
	return nil
}

// ReplaceBatch runs the clear and the first chunk's upsert in one
// transaction; a failed write rolls the delete back with it.
func (s *importStore) ReplaceBatch(ctx context.Context, schema importer.TargetSchema, records []domain.CanonicalRecord) error {
	if len(records) == 0 {
		return s.DeleteAll(ctx, schema)
	}

	columns := schema.ColumnNames()
	query, args := buildUpsert(schema, columns, records)
	return s.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", schema.Table)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", schema.Table, err)
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to upsert into %s: %w", schema.Table, err)
		}
		return nil
	})
}

func (s *importStore) ExistingKeys(ctx context.Context, schema importer.TargetSchema, keys []string) (map[string]bool, error) {
	if len(keys) == 0 {
		return map[string]bool{}, nil
	}

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ANY($1)",
		schema.NaturalKey, schema.Table, schema.NaturalKey,
	)
	rows, err := s.conn.Pool.Query(ctx, query, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to query existing keys in %s: %w", schema.Table, err)
	}
	defer rows.Close()

	existing := make(map[string]bool, len(keys))
	for rows.Next() {
		var key string
		if scanErr := rows.Scan(&key); scanErr != nil {
			return nil, fmt.Errorf("failed to scan existing key: %w", scanErr)
		}
		existing[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read existing keys: %w", err)
	}
	return existing, nil
}

func (s *importStore) UpsertBatch(ctx context.Context, schema importer.TargetSchema, records []domain.CanonicalRecord) error {
	if len(records) == 0 {
		return nil
	}

	columns := schema.ColumnNames()
	query, args := buildUpsert(schema, columns, records)
	if _, err := s.conn.Pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert into %s: %w", schema.Table, err)
	}
	return nil
}

// buildUpsert assembles one multi-row upsert statement. Absent record fields
// bind as NULL; on conflict every non-key column takes the incoming value.
func buildUpsert(schema importer.TargetSchema, columns []string, records []domain.CanonicalRecord) (string, []any) {
	var (
		builder strings.Builder
		args    = make([]any, 0, len(records)*len(columns))
	)

	fmt.Fprintf(&builder, "INSERT INTO %s (%s) VALUES ", schema.Table, strings.Join(columns, ", "))

	placeholder := 1
	for i, record := range records {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString("(")
		for j, column := range columns {
			if j > 0 {
				builder.WriteString(", ")
			}
			fmt.Fprintf(&builder, "$%d", placeholder)
			placeholder++
			if value, ok := record[column]; ok {
				args = append(args, value)
			} else {
				args = append(args, nil)
			}
		}
		builder.WriteString(")")
	}

	fmt.Fprintf(&builder, " ON CONFLICT (%s) DO UPDATE SET ", schema.NaturalKey)
	first := true
	for _, column := range columns {
		if column == schema.NaturalKey {
			continue
		}
		if !first {
			builder.WriteString(", ")
		}
		fmt.Fprintf(&builder, "%s = EXCLUDED.%s", column, column)
		first = false
	}
	builder.WriteString(", updated_at = now()")

	return builder.String(), args
}
