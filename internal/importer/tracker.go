package importer

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/retailops/internal/domain"
)

// subscriberBuffer bounds each progress channel. Delivery is advisory: a
// full channel drops the event rather than blocking the pipeline.
const subscriberBuffer = 8

// job is the tracker-owned state for one import. All fields behind mu.
type job struct {
	mu sync.Mutex

	id             uuid.UUID
	idempotencyKey string
	schema         TargetSchema
	mode           domain.ImportMode
	fileName       string
	fileRef        string
	payload        []byte

	status   domain.JobStatus
	progress domain.Progress
	errors   []domain.RowError
	failure  string

	created time.Time
	started time.Time
	updated time.Time
	// finished is set on the terminal transition, for registry sweeps.
	finished time.Time

	reportPath string

	subscribers map[int]chan domain.JobSnapshot
	nextSubID   int
}

// Tracker owns every live import job for the process lifetime. Jobs are not
// persisted; a restart loses all job state.
type Tracker struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]*job
	byKey map[string]*job
	now   func() time.Time
}

// NewTracker builds an empty in-memory job registry.
func NewTracker() *Tracker {
	return &Tracker{
		byID:  make(map[uuid.UUID]*job),
		byKey: make(map[string]*job),
		now:   time.Now,
	}
}

// register creates a job under the given idempotency key, or returns the
// existing one. The check-and-insert is atomic under the registry mutex so a
// true race of two identical submissions still yields one job.
func (t *Tracker) register(key string, build func(id uuid.UUID, now time.Time) *job) (*job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if key != "" {
		if existing, ok := t.byKey[key]; ok {
			return existing, true
		}
	}

	id := uuid.New()
	j := build(id, t.now())
	t.byID[id] = j
	if key != "" {
		t.byKey[key] = j
	}
	return j, false
}

func (t *Tracker) get(id uuid.UUID) (*job, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.byID[id]
	return j, ok
}

// Sweep drops terminal jobs older than the retention window.
func (t *Tracker) Sweep(retention time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-retention)
	removed := 0
	for id, j := range t.byID {
		j.mu.Lock()
		expired := j.status.Terminal() && !j.finished.IsZero() && j.finished.Before(cutoff)
		key := j.idempotencyKey
		j.mu.Unlock()
		if !expired {
			continue
		}
		delete(t.byID, id)
		if key != "" {
			delete(t.byKey, key)
		}
		removed++
	}
	return removed
}

// Snapshot assembles the externally visible job state.
func (j *job) Snapshot() domain.JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.snapshotLocked()
}

func (j *job) snapshotLocked() domain.JobSnapshot {
	errs := make([]domain.RowError, len(j.errors))
	copy(errs, j.errors)
	return domain.JobSnapshot{
		ID:       j.id,
		Status:   j.status,
		Schema:   j.schema.Name,
		FileName: j.fileName,
		Progress: j.progress,
		Errors:   errs,
		Failure:  j.failure,
		Created:  j.created,
		Started:  j.started,
		Updated:  j.updated,
	}
}

// subscribe registers a push channel. Events before subscription are not
// replayed.
func (j *job) subscribe() (int, <-chan domain.JobSnapshot) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ch := make(chan domain.JobSnapshot, subscriberBuffer)
	if j.subscribers == nil {
		j.subscribers = make(map[int]chan domain.JobSnapshot)
	}
	j.nextSubID++
	id := j.nextSubID
	if j.status.Terminal() {
		// Late subscriber to a finished job gets the final state and a
		// closed channel.
		ch <- j.snapshotLocked()
		close(ch)
		return id, ch
	}
	j.subscribers[id] = ch
	return id, ch
}

// unsubscribe is idempotent and safe for unknown ids.
func (j *job) unsubscribe(id int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if ch, ok := j.subscribers[id]; ok {
		delete(j.subscribers, id)
		close(ch)
	}
}

// publishLocked pushes the current snapshot to every subscriber without
// blocking; a slow subscriber misses the event.
func (j *job) publishLocked() {
	if len(j.subscribers) == 0 {
		return
	}
	snapshot := j.snapshotLocked()
	for _, ch := range j.subscribers {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// update mutates job state under the lock, refreshes throughput and ETA, and
// publishes the resulting snapshot. Calls against an already terminal job
// leave the timestamps alone so the retention window stays anchored to the
// terminal transition.
func (j *job) update(now time.Time, fn func(*job)) {
	j.mu.Lock()
	defer j.mu.Unlock()

	wasTerminal := j.status.Terminal()
	fn(j)
	if wasTerminal {
		return
	}
	j.updated = now
	j.recomputeRateLocked(now)
	j.publishLocked()

	if j.status.Terminal() {
		j.finished = now
		for id, ch := range j.subscribers {
			delete(j.subscribers, id)
			close(ch)
		}
	}
}

// recomputeRateLocked derives throughput as parsed rows over elapsed time and
// an ETA clamped to non-negative, zero when throughput is zero.
func (j *job) recomputeRateLocked(now time.Time) {
	if j.started.IsZero() {
		return
	}
	elapsed := now.Sub(j.started).Seconds()
	if elapsed <= 0 || j.progress.RowsParsed == 0 {
		j.progress.ThroughputRps = 0
		j.progress.ETASeconds = 0
		return
	}
	j.progress.ThroughputRps = float64(j.progress.RowsParsed) / elapsed

	remaining := j.progress.RowsTotal - j.progress.RowsParsed
	if remaining <= 0 || j.progress.ThroughputRps == 0 {
		j.progress.ETASeconds = 0
		return
	}
	j.progress.ETASeconds = float64(remaining) / j.progress.ThroughputRps
}
