package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rpattn/retailops/internal/domain"
)

// stubStore records writer calls and can be primed to fail specific keys.
type stubStore struct {
	mu           sync.Mutex
	deleted      bool
	existing     map[string]bool
	failKeys     map[string]bool
	batchCalls   int
	singleCalls  int
	replaceCalls int
	upserted     []domain.CanonicalRecord
}

var _ TargetStore = (*stubStore)(nil)

func (s *stubStore) DeleteAll(ctx context.Context, schema TargetSchema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = true
	return nil
}

func (s *stubStore) ReplaceBatch(ctx context.Context, schema TargetSchema, records []domain.CanonicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replaceCalls++
	// A rejected record rolls back the clear along with the write.
	for _, record := range records {
		if s.failKeys[record[schema.NaturalKey]] {
			return fmt.Errorf("key %s rejected", record[schema.NaturalKey])
		}
	}
	s.deleted = true
	s.upserted = append(s.upserted, records...)
	return nil
}

func (s *stubStore) ExistingKeys(ctx context.Context, schema TargetSchema, keys []string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	found := make(map[string]bool)
	for _, key := range keys {
		if s.existing[key] {
			found[key] = true
		}
	}
	return found, nil
}

func (s *stubStore) UpsertBatch(ctx context.Context, schema TargetSchema, records []domain.CanonicalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(records) == 1 {
		s.singleCalls++
	} else {
		s.batchCalls++
	}
	for _, record := range records {
		if s.failKeys[record[schema.NaturalKey]] {
			return fmt.Errorf("key %s rejected", record[schema.NaturalKey])
		}
	}
	s.upserted = append(s.upserted, records...)
	return nil
}

func (s *stubStore) rows() []domain.CanonicalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CanonicalRecord, len(s.upserted))
	copy(out, s.upserted)
	return out
}

func numberedRows(keys ...string) []numbered {
	rows := make([]numbered, len(keys))
	for i, key := range keys {
		rows[i] = numbered{rowNum: i + 1, record: domain.CanonicalRecord{"item_code": key, "normal_price": "100.00"}}
	}
	return rows
}

func TestWriteRecordsDeduplicatesAcrossWholeSet(t *testing.T) {
	schema := mustSchema(t, "price_list")
	store := &stubStore{}

	result, err := writeRecords(context.Background(), store, schema, domain.ModeAmend,
		numberedRows("A", "B", "A", "C", "A"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.written != 3 {
		t.Fatalf("expected 3 written, got %d", result.written)
	}
	if result.duplicates != 2 {
		t.Fatalf("expected 2 duplicates, got %d", result.duplicates)
	}
	if len(result.errors) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(result.errors))
	}
	for i, wantRow := range []int{3, 5} {
		entry := result.errors[i]
		if entry.Row != wantRow || entry.Message != "duplicate of row 1" {
			t.Fatalf("unexpected duplicate entry: %+v", entry)
		}
	}
	if store.deleted {
		t.Fatal("amend mode must not clear the target")
	}
}

func TestWriteRecordsReplaceModeClearsWithFirstChunk(t *testing.T) {
	schema := mustSchema(t, "price_list")
	store := &stubStore{}

	result, err := writeRecords(context.Background(), store, schema, domain.ModeReplace,
		numberedRows("A", "B"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.deleted {
		t.Fatal("replace mode must clear the target")
	}
	if store.replaceCalls != 1 || store.batchCalls != 0 {
		t.Fatalf("expected one transactional replace chunk, got replace=%d batch=%d",
			store.replaceCalls, store.batchCalls)
	}
	if result.written != 2 {
		t.Fatalf("expected 2 written, got %d", result.written)
	}
}

func TestWriteRecordsReplaceFailureKeepsTargetThenRetries(t *testing.T) {
	schema := mustSchema(t, "price_list")
	store := &stubStore{failKeys: map[string]bool{"B": true}}

	result, err := writeRecords(context.Background(), store, schema, domain.ModeReplace,
		numberedRows("A", "B", "C"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.deleted {
		t.Fatal("per-record retry still clears the target first")
	}
	if result.written != 2 || result.failed != 1 {
		t.Fatalf("expected 2 written and 1 failed, got %d/%d", result.written, result.failed)
	}
	if store.singleCalls != 3 {
		t.Fatalf("expected 3 per-record retries, got %d", store.singleCalls)
	}
}

func TestWriteRecordsReplaceWithoutRecordsStillClears(t *testing.T) {
	schema := mustSchema(t, "price_list")
	store := &stubStore{}

	_, err := writeRecords(context.Background(), store, schema, domain.ModeReplace, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.deleted {
		t.Fatal("replace with no valid rows must still clear the target")
	}
	if store.replaceCalls != 0 {
		t.Fatalf("expected plain clear, got %d replace calls", store.replaceCalls)
	}
}

func TestWriteRecordsClassifiesInsertedAndUpdated(t *testing.T) {
	schema := mustSchema(t, "price_list")
	store := &stubStore{existing: map[string]bool{"A": true}}

	result, err := writeRecords(context.Background(), store, schema, domain.ModeAmend,
		numberedRows("A", "B"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.updated != 1 || result.inserted != 1 {
		t.Fatalf("expected 1 updated and 1 inserted, got %d/%d", result.updated, result.inserted)
	}
}

func TestWriteRecordsChunkFailureRetriesPerRecord(t *testing.T) {
	schema := mustSchema(t, "price_list")
	store := &stubStore{failKeys: map[string]bool{"B": true}}

	result, err := writeRecords(context.Background(), store, schema, domain.ModeAmend,
		numberedRows("A", "B", "C"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.written != 2 {
		t.Fatalf("expected 2 written after retry, got %d", result.written)
	}
	if result.failed != 1 {
		t.Fatalf("expected 1 failed, got %d", result.failed)
	}
	if len(result.errors) != 1 || result.errors[0].Row != 2 {
		t.Fatalf("expected failure reported against row 2, got %+v", result.errors)
	}
	if store.singleCalls != 3 {
		t.Fatalf("expected 3 per-record retries, got %d", store.singleCalls)
	}
}

func TestWriteRecordsChunking(t *testing.T) {
	schema := mustSchema(t, "price_list")
	schema.ChunkSize = 2
	store := &stubStore{}

	var progress []int
	result, err := writeRecords(context.Background(), store, schema, domain.ModeAmend,
		numberedRows("A", "B", "C", "D", "E"), func(written int) {
			progress = append(progress, written)
		})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.written != 5 {
		t.Fatalf("expected 5 written, got %d", result.written)
	}
	if store.batchCalls != 2 || store.singleCalls != 1 {
		t.Fatalf("expected chunks of 2,2,1, got batch=%d single=%d", store.batchCalls, store.singleCalls)
	}
	want := []int{2, 4, 5}
	if len(progress) != len(want) {
		t.Fatalf("expected %v progress callbacks, got %v", want, progress)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Fatalf("expected progress %v, got %v", want, progress)
		}
	}
}

func TestWriteRecordsReplaceClearErrorAborts(t *testing.T) {
	schema := mustSchema(t, "price_list")
	store := &failingDeleteStore{}

	_, err := writeRecords(context.Background(), store, schema, domain.ModeReplace, nil, nil)
	if err == nil {
		t.Fatal("expected clear failure to abort the write phase")
	}
}

type failingDeleteStore struct{ stubStore }

func (s *failingDeleteStore) DeleteAll(ctx context.Context, schema TargetSchema) error {
	return errors.New("delete failed")
}
