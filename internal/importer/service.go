package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/retailops/internal/domain"
)

// ErrJobNotFound is returned for status, subscription and report lookups
// against an unknown or already swept job id.
var ErrJobNotFound = errors.New("import job not found")

// FileSource resolves a staged upload reference to its raw bytes.
type FileSource interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

// Service drives the import pipeline: it owns the job tracker, schedules the
// parse/validate/write sequence detached from the submitting call, and serves
// status, progress subscriptions and the error report artifact.
type Service struct {
	tracker *Tracker
	store   TargetStore
	files   FileSource

	reportDir string
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithReportDirectory overrides where error report artifacts are written.
func WithReportDirectory(dir string) Option {
	return func(s *Service) {
		if strings.TrimSpace(dir) != "" {
			s.reportDir = filepath.Clean(dir)
		}
	}
}

// WithFileSource wires the staged-upload source used for submissions that
// carry a file reference instead of inline data.
func WithFileSource(source FileSource) Option {
	return func(s *Service) { s.files = source }
}

// NewService creates the import service.
func NewService(store TargetStore, opts ...Option) *Service {
	s := &Service{
		tracker:   NewTracker(),
		store:     store,
		reportDir: filepath.Join(os.TempDir(), "retailops-import-reports"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tracker exposes the registry for sweep scheduling.
func (s *Service) Tracker() *Tracker { return s.tracker }

// SubmitRequest describes one import submission. Exactly one of Data and
// FileReference must be set.
type SubmitRequest struct {
	FileName       string
	TargetSchema   string
	ImportMode     domain.ImportMode
	IdempotencyKey string
	FileReference  string
	Data           io.Reader
}

// SubmitResult acknowledges a submission.
type SubmitResult struct {
	JobID    uuid.UUID        `json:"jobId"`
	Status   domain.JobStatus `json:"status"`
	Existing bool             `json:"existing"`
}

// Submit validates the request, registers the job (idempotently) and starts
// the pipeline in the background. Malformed submissions fail synchronously
// before any job exists.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if strings.TrimSpace(req.FileName) == "" {
		return SubmitResult{}, errors.New("file name is required")
	}
	schema, err := SchemaByName(req.TargetSchema)
	if err != nil {
		return SubmitResult{}, err
	}

	mode := req.ImportMode
	if mode == "" {
		mode = domain.ModeAmend
	}
	if mode != domain.ModeAmend && mode != domain.ModeReplace {
		return SubmitResult{}, fmt.Errorf("unknown import mode %q", mode)
	}

	var payload []byte
	switch {
	case req.Data != nil:
		payload, err = io.ReadAll(req.Data)
		if err != nil {
			return SubmitResult{}, fmt.Errorf("read upload: %w", err)
		}
		if len(payload) == 0 {
			return SubmitResult{}, errors.New("file is empty")
		}
	case strings.TrimSpace(req.FileReference) != "":
		if s.files == nil {
			return SubmitResult{}, errors.New("staged file submissions are not configured")
		}
	default:
		return SubmitResult{}, errors.New("either file data or a file reference is required")
	}

	j, existing := s.tracker.register(strings.TrimSpace(req.IdempotencyKey), func(id uuid.UUID, now time.Time) *job {
		return &job{
			id:             id,
			idempotencyKey: strings.TrimSpace(req.IdempotencyKey),
			schema:         schema,
			mode:           mode,
			fileName:       req.FileName,
			fileRef:        strings.TrimSpace(req.FileReference),
			payload:        payload,
			status:         domain.JobStatusQueued,
			progress:       domain.Progress{Phase: domain.PhaseParsing},
			created:        now,
			updated:        now,
		}
	})
	if existing {
		// Duplicate submission: hand back the job that already owns the key.
		return SubmitResult{JobID: j.id, Status: j.Snapshot().Status, Existing: true}, nil
	}

	go s.run(j)

	return SubmitResult{JobID: j.id, Status: domain.JobStatusQueued}, nil
}

// Status returns the current snapshot for a job.
func (s *Service) Status(id uuid.UUID) (domain.JobSnapshot, error) {
	j, ok := s.tracker.get(id)
	if !ok {
		return domain.JobSnapshot{}, ErrJobNotFound
	}
	return j.Snapshot(), nil
}

// Subscribe attaches a progress channel to a job. The channel closes when the
// job reaches a terminal state or the subscriber is removed.
func (s *Service) Subscribe(id uuid.UUID) (int, <-chan domain.JobSnapshot, error) {
	j, ok := s.tracker.get(id)
	if !ok {
		return 0, nil, ErrJobNotFound
	}
	subID, ch := j.subscribe()
	return subID, ch, nil
}

// Unsubscribe detaches a progress channel. Safe to call repeatedly and for
// unknown ids.
func (s *Service) Unsubscribe(id uuid.UUID, subID int) {
	if j, ok := s.tracker.get(id); ok {
		j.unsubscribe(subID)
	}
}

// OpenErrorReport opens the completed job's error report CSV for streaming.
func (s *Service) OpenErrorReport(id uuid.UUID) (*os.File, error) {
	j, ok := s.tracker.get(id)
	if !ok {
		return nil, ErrJobNotFound
	}
	j.mu.Lock()
	path := j.reportPath
	terminal := j.status.Terminal()
	j.mu.Unlock()

	if !terminal || path == "" {
		return nil, errors.New("error report is not available")
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open error report: %w", err)
	}
	return file, nil
}

// run executes the pipeline for one job, detached from the submitting call.
// Row-level problems land in the ledger; any uncaught error transitions the
// job to failed and halts the remaining phases.
func (s *Service) run(j *job) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[import] panic while processing job %s: %v", j.id, rec)
			s.fail(j, fmt.Errorf("panic: %v", rec))
		}
	}()

	ctx := context.Background()

	if err := s.process(ctx, j); err != nil {
		s.fail(j, err)
	}
}

func (s *Service) process(ctx context.Context, j *job) error {
	payload := j.payload
	if payload == nil {
		fetched, err := s.files.Fetch(ctx, j.fileRef)
		if err != nil {
			return fmt.Errorf("fetch staged file %s: %w", j.fileRef, err)
		}
		payload = fetched
	}

	j.update(s.now(), func(j *job) {
		j.status = domain.JobStatusProcessing
		j.started = s.now()
		j.progress.Phase = domain.PhaseParsing
	})

	// Parse. The reader streams raw rows and hands over the sanitized
	// header row, so alias claiming follows column order.
	var (
		mapper  *columnMapper
		rawRows []domain.RawRow
	)
	total, err := readRows(j.fileName, payload, j.schema, func(headers []string) {
		mapper = newColumnMapper(j.schema, headers)
	}, func(count int) {
		j.update(s.now(), func(j *job) {
			j.progress.RowsParsed = count
		})
	}, func(rowNum int, row domain.RawRow) error {
		rawRows = append(rawRows, row)
		return nil
	})
	if err != nil {
		return err
	}

	j.update(s.now(), func(j *job) {
		j.progress.Phase = domain.PhaseValidating
		j.progress.RowsTotal = total
		j.progress.RowsParsed = total
	})

	// Validate. Row failures are collected, never fatal.
	var valid []numbered
	for idx, raw := range rawRows {
		rowNum := idx + 1
		mapped := mapper.Map(raw)
		record, rowErrors := validateRow(j.schema, rowNum, mapped)
		if len(rowErrors) > 0 {
			j.update(s.now(), func(j *job) {
				j.errors = append(j.errors, rowErrors...)
				j.progress.RowsFailed++
			})
			continue
		}
		valid = append(valid, numbered{rowNum: rowNum, record: record})
	}

	j.update(s.now(), func(j *job) {
		j.progress.Phase = domain.PhaseWriting
		j.progress.RowsValid = len(valid)
	})

	// Write in chunks, updating progress at every chunk boundary.
	result, err := writeRecords(ctx, s.store, j.schema, j.mode, valid, func(written int) {
		j.update(s.now(), func(j *job) {
			j.progress.RowsWritten = written
		})
	})
	if err != nil {
		return err
	}

	// Stage the report artifact before the terminal transition so a client
	// notified of completion can fetch it immediately.
	j.mu.Lock()
	ledger := make([]domain.RowError, len(j.errors))
	copy(ledger, j.errors)
	j.mu.Unlock()
	ledger = append(ledger, result.errors...)
	if len(ledger) > 0 {
		if reportErr := s.writeErrorReport(j, ledger); reportErr != nil {
			log.Printf("[import] job %s: error report not written: %v", j.id, reportErr)
		}
	}

	j.update(s.now(), func(j *job) {
		j.progress.Phase = domain.PhaseDone
		j.status = domain.JobStatusCompleted
		j.progress.RowsWritten = result.written
		j.progress.WriteFailures = result.failed
		j.progress.DuplicatesSkipped = result.duplicates
		j.errors = append(j.errors, result.errors...)
	})

	log.Printf("[import] job %s completed (schema=%s written=%d failed=%d duplicates=%d)",
		j.id, j.schema.Name, result.written, result.failed, result.duplicates)
	return nil
}

func (s *Service) fail(j *job, err error) {
	j.update(s.now(), func(j *job) {
		if j.status.Terminal() {
			return
		}
		j.status = domain.JobStatusFailed
		j.progress.Phase = domain.PhaseFailed
		j.failure = err.Error()
	})
	log.Printf("[import] job %s failed: %v", j.id, err)
}

// writeErrorReport stages the ledger as a CSV artifact and promotes it with
// an atomic rename once fully written.
func (s *Service) writeErrorReport(j *job, entries []domain.RowError) error {
	if err := os.MkdirAll(s.reportDir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	tempFile, err := os.CreateTemp(s.reportDir, fmt.Sprintf("%s-*.csv", j.id))
	if err != nil {
		return fmt.Errorf("create temp report file: %w", err)
	}
	tempPath := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = tempFile.Close()
			_ = os.Remove(tempPath)
		}
	}()

	writer := csv.NewWriter(tempFile)
	if err := writer.Write([]string{"row_number", "field", "original_value", "message"}); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	for _, entry := range entries {
		record := []string{strconv.Itoa(entry.Row), entry.Field, entry.RawValue, entry.Message}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write report row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close report file: %w", err)
	}

	finalPath := filepath.Join(s.reportDir, fmt.Sprintf("%s-errors.csv", j.id))
	if err := os.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("promote report file: %w", err)
	}
	cleanup = false

	j.mu.Lock()
	j.reportPath = finalPath
	j.mu.Unlock()
	return nil
}
