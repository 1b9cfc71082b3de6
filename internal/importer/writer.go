package importer

import (
	"context"
	"fmt"
	"log"

	"github.com/rpattn/retailops/internal/domain"
)

// TargetStore is the upsert-capable store the batch writer runs against.
// Correctness under concurrent jobs relies on upserts being atomic per key.
type TargetStore interface {
	// DeleteAll clears the target collection (replace mode with nothing
	// left to write).
	DeleteAll(ctx context.Context, schema TargetSchema) error
	// ReplaceBatch clears the target and writes a chunk in one transaction,
	// so a failed replace cannot leave the target emptied.
	ReplaceBatch(ctx context.Context, schema TargetSchema, records []domain.CanonicalRecord) error
	// ExistingKeys reports which of the given natural keys already exist.
	ExistingKeys(ctx context.Context, schema TargetSchema, keys []string) (map[string]bool, error)
	// UpsertBatch writes a chunk in one statement, insert-or-update on the
	// natural key.
	UpsertBatch(ctx context.Context, schema TargetSchema, records []domain.CanonicalRecord) error
}

// numbered pairs a canonical record with its source row number so write
// failures and duplicates can be reported against the original file.
type numbered struct {
	rowNum int
	record domain.CanonicalRecord
}

// writeResult carries the final write-phase counts for the job tracker.
type writeResult struct {
	written    int
	failed     int
	inserted   int
	updated    int
	duplicates int
	errors     []domain.RowError
}

// writeRecords deduplicates, classifies and upserts the job's valid records
// in fixed-size chunks. A failure in one record or chunk never aborts the
// remaining chunks. onChunk, when non-nil, runs after every chunk with the
// cumulative written count.
func writeRecords(
	ctx context.Context,
	store TargetStore,
	schema TargetSchema,
	mode domain.ImportMode,
	rows []numbered,
	onChunk func(written int),
) (writeResult, error) {
	var result writeResult

	unique, dupErrors := dedupeByKey(schema, rows)
	result.duplicates = len(dupErrors)
	result.errors = append(result.errors, dupErrors...)

	// Replace mode with nothing to write still clears the target; with
	// records, the clear rides in the first chunk's transaction instead.
	if mode == domain.ModeReplace && len(unique) == 0 {
		if err := store.DeleteAll(ctx, schema); err != nil {
			return result, fmt.Errorf("clear %s: %w", schema.Table, err)
		}
	}

	existing := map[string]bool{}
	if mode == domain.ModeAmend && len(unique) > 0 {
		keys := make([]string, len(unique))
		for i, row := range unique {
			keys[i] = row.record[schema.NaturalKey]
		}
		found, err := store.ExistingKeys(ctx, schema, keys)
		if err != nil {
			return result, fmt.Errorf("classify existing keys: %w", err)
		}
		existing = found
	}

	chunkSize := schema.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 500
	}

	for start := 0; start < len(unique); start += chunkSize {
		end := start + chunkSize
		if end > len(unique) {
			end = len(unique)
		}
		chunk := unique[start:end]

		records := make([]domain.CanonicalRecord, len(chunk))
		for i, row := range chunk {
			records[i] = row.record
		}

		var err error
		if mode == domain.ModeReplace && start == 0 {
			err = store.ReplaceBatch(ctx, schema, records)
			if err != nil {
				// The combined clear and write rolled back together; clear
				// separately before retrying records one at a time.
				if delErr := store.DeleteAll(ctx, schema); delErr != nil {
					return result, fmt.Errorf("clear %s: %w", schema.Table, delErr)
				}
			}
		} else {
			err = store.UpsertBatch(ctx, schema, records)
		}
		if err != nil {
			log.Printf("[import] chunk write failed for %s, retrying per record: %v", schema.Table, err)
			writeChunkSingly(ctx, store, schema, chunk, existing, &result)
		} else {
			result.written += len(chunk)
			countClassified(chunk, schema, existing, &result)
		}

		if onChunk != nil {
			onChunk(result.written)
		}
	}

	return result, nil
}

// writeChunkSingly retries a failed chunk one record at a time so only the
// genuinely offending records land in the error ledger.
func writeChunkSingly(
	ctx context.Context,
	store TargetStore,
	schema TargetSchema,
	chunk []numbered,
	existing map[string]bool,
	result *writeResult,
) {
	for _, row := range chunk {
		if err := store.UpsertBatch(ctx, schema, []domain.CanonicalRecord{row.record}); err != nil {
			result.failed++
			result.errors = append(result.errors, domain.RowError{
				Row:      row.rowNum,
				Field:    schema.NaturalKey,
				RawValue: row.record[schema.NaturalKey],
				Message:  fmt.Sprintf("write failed: %v", err),
			})
			continue
		}
		result.written++
		countClassified([]numbered{row}, schema, existing, result)
	}
}

func countClassified(chunk []numbered, schema TargetSchema, existing map[string]bool, result *writeResult) {
	for _, row := range chunk {
		if existing[row.record[schema.NaturalKey]] {
			result.updated++
		} else {
			result.inserted++
		}
	}
}

// dedupeByKey keeps the first occurrence of each natural key across the whole
// valid-record set. Later occurrences become ledger entries referencing the
// row that won.
func dedupeByKey(schema TargetSchema, rows []numbered) ([]numbered, []domain.RowError) {
	firstSeen := make(map[string]int, len(rows))
	unique := make([]numbered, 0, len(rows))
	var duplicates []domain.RowError

	for _, row := range rows {
		key := row.record[schema.NaturalKey]
		if first, seen := firstSeen[key]; seen {
			duplicates = append(duplicates, domain.RowError{
				Row:      row.rowNum,
				Field:    schema.NaturalKey,
				RawValue: key,
				Message:  fmt.Sprintf("duplicate of row %d", first),
			})
			continue
		}
		firstSeen[key] = row.rowNum
		unique = append(unique, row)
	}

	return unique, duplicates
}
