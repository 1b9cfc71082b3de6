package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus tracks the lifecycle of an import job. Transitions are
// monotonic: queued -> processing -> completed|failed.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ImportPhase names the pipeline stage currently running.
type ImportPhase string

const (
	PhaseParsing    ImportPhase = "parsing"
	PhaseValidating ImportPhase = "validating"
	PhaseWriting    ImportPhase = "writing"
	PhaseDone       ImportPhase = "done"
	PhaseFailed     ImportPhase = "failed"
)

// ImportMode controls how the batch writer treats existing data.
type ImportMode string

const (
	// ModeAmend upserts into the existing collection.
	ModeAmend ImportMode = "amend"
	// ModeReplace clears the target collection before writing.
	ModeReplace ImportMode = "replace"
)

// RowError is one entry in a job's error ledger.
type RowError struct {
	Row      int    `json:"row"`
	Field    string `json:"field"`
	RawValue string `json:"rawValue"`
	Message  string `json:"message"`
}

// Progress is a point-in-time snapshot of a running or finished job.
//
// RowsFailed counts validation rejections only. Once Phase is done:
// RowsValid + RowsFailed == RowsParsed == RowsTotal, and
// RowsWritten + WriteFailures + DuplicatesSkipped == RowsValid.
type Progress struct {
	Phase             ImportPhase `json:"phase"`
	RowsTotal         int         `json:"rowsTotal"`
	RowsParsed        int         `json:"rowsParsed"`
	RowsValid         int         `json:"rowsValid"`
	RowsWritten       int         `json:"rowsWritten"`
	RowsFailed        int         `json:"rowsFailed"`
	WriteFailures     int         `json:"writeFailures"`
	DuplicatesSkipped int         `json:"duplicatesSkipped"`
	ThroughputRps     float64     `json:"throughputRps"`
	ETASeconds        float64     `json:"etaSeconds"`
}

// JobSnapshot is the externally visible state of an import job, pushed to
// subscribers and returned from status queries.
type JobSnapshot struct {
	ID       uuid.UUID  `json:"jobId"`
	Status   JobStatus  `json:"status"`
	Schema   string     `json:"targetSchema"`
	FileName string     `json:"fileName"`
	Progress Progress   `json:"progress"`
	Errors   []RowError `json:"errors"`
	Failure  string     `json:"failure,omitempty"`
	Created  time.Time  `json:"createdAt"`
	Started  time.Time  `json:"startedAt,omitzero"`
	Updated  time.Time  `json:"updatedAt"`
}

// RawRow maps an uninterpreted header string to its raw cell value.
// Produced lazily by the file reader and consumed by the column mapper.
type RawRow map[string]string

// CanonicalRecord maps canonical field names to coerced values. Integers,
// decimals and dates are carried as canonical strings (decimals as fixed
// point, dates as YYYY-MM-DD) so the store can bind them as text.
type CanonicalRecord map[string]string
