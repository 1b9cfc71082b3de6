package importer

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/retailops/internal/domain"
)

func newTestJob(id uuid.UUID, now time.Time) *job {
	return &job{
		id:       id,
		schema:   targetSchemas["price_list"],
		mode:     domain.ModeAmend,
		fileName: "prices.csv",
		status:   domain.JobStatusQueued,
		progress: domain.Progress{Phase: domain.PhaseParsing},
		created:  now,
		updated:  now,
	}
}

func TestRegisterIdempotencyKey(t *testing.T) {
	tracker := NewTracker()

	first, existing := tracker.register("key-1", newTestJob)
	if existing {
		t.Fatal("first registration should create the job")
	}
	second, existing := tracker.register("key-1", newTestJob)
	if !existing {
		t.Fatal("second registration should find the existing job")
	}
	if first.id != second.id {
		t.Fatalf("expected same job, got %s and %s", first.id, second.id)
	}

	third, existing := tracker.register("key-2", newTestJob)
	if existing || third.id == first.id {
		t.Fatal("distinct keys must create distinct jobs")
	}
}

func TestRegisterEmptyKeyNeverDeduplicates(t *testing.T) {
	tracker := NewTracker()

	first, _ := tracker.register("", newTestJob)
	second, existing := tracker.register("", newTestJob)
	if existing || first.id == second.id {
		t.Fatal("submissions without a key must always create new jobs")
	}
}

func TestSweepDropsExpiredTerminalJobs(t *testing.T) {
	tracker := NewTracker()
	clock := time.Now()
	tracker.now = func() time.Time { return clock }

	done, _ := tracker.register("done", newTestJob)
	done.update(clock, func(j *job) { j.status = domain.JobStatusCompleted })

	running, _ := tracker.register("running", newTestJob)

	clock = clock.Add(2 * time.Hour)
	removed := tracker.Sweep(time.Hour)
	if removed != 1 {
		t.Fatalf("expected 1 job swept, got %d", removed)
	}
	if _, ok := tracker.get(done.id); ok {
		t.Fatal("terminal job should have been dropped")
	}
	if _, ok := tracker.get(running.id); !ok {
		t.Fatal("non-terminal job must survive the sweep")
	}

	// The swept key is free again for re-submission.
	if _, existing := tracker.register("done", newTestJob); existing {
		t.Fatal("swept idempotency key should be reusable")
	}
}

func TestSubscribePublishesOnUpdate(t *testing.T) {
	j := newTestJob(uuid.New(), time.Now())
	subID, ch := j.subscribe()
	defer j.unsubscribe(subID)

	j.update(time.Now(), func(j *job) {
		j.status = domain.JobStatusProcessing
		j.progress.RowsParsed = 42
	})

	select {
	case snapshot := <-ch:
		if snapshot.Status != domain.JobStatusProcessing || snapshot.Progress.RowsParsed != 42 {
			t.Fatalf("unexpected snapshot: %+v", snapshot)
		}
	case <-time.After(time.Second):
		t.Fatal("expected a published snapshot")
	}
}

func TestSubscribeClosesOnTerminal(t *testing.T) {
	j := newTestJob(uuid.New(), time.Now())
	_, ch := j.subscribe()

	j.update(time.Now(), func(j *job) { j.status = domain.JobStatusCompleted })

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel should close on terminal transition")
		}
	}
}

func TestLateSubscriberToTerminalJob(t *testing.T) {
	j := newTestJob(uuid.New(), time.Now())
	j.update(time.Now(), func(j *job) { j.status = domain.JobStatusFailed })

	_, ch := j.subscribe()
	snapshot, ok := <-ch
	if !ok {
		t.Fatal("expected the final snapshot before close")
	}
	if snapshot.Status != domain.JobStatusFailed {
		t.Fatalf("expected failed status, got %s", snapshot.Status)
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after the final snapshot")
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	j := newTestJob(uuid.New(), time.Now())
	subID, _ := j.subscribe()

	j.unsubscribe(subID)
	j.unsubscribe(subID)
	j.unsubscribe(999)
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	j := newTestJob(uuid.New(), time.Now())
	_, ch := j.subscribe()

	// Fill the buffer and keep publishing; update must never block.
	for i := 0; i < subscriberBuffer*3; i++ {
		j.update(time.Now(), func(j *job) { j.progress.RowsParsed++ })
	}

	drained := 0
	for {
		select {
		case <-ch:
			drained++
		default:
			if drained != subscriberBuffer {
				t.Fatalf("expected %d buffered events, got %d", subscriberBuffer, drained)
			}
			return
		}
	}
}

func TestPostTerminalUpdateKeepsTimestamps(t *testing.T) {
	t0 := time.Now()
	j := newTestJob(uuid.New(), t0)

	j.update(t0, func(j *job) { j.status = domain.JobStatusCompleted })
	if !j.finished.Equal(t0) {
		t.Fatalf("expected finished at the terminal transition, got %v", j.finished)
	}

	// A straggling transition attempt after completion must not reopen the
	// retention window.
	j.update(t0.Add(time.Hour), func(j *job) {
		if j.status.Terminal() {
			return
		}
		j.status = domain.JobStatusFailed
	})

	if j.status != domain.JobStatusCompleted {
		t.Fatalf("expected status unchanged, got %s", j.status)
	}
	if !j.finished.Equal(t0) {
		t.Fatalf("expected finished unchanged, got %v", j.finished)
	}
	if !j.updated.Equal(t0) {
		t.Fatalf("expected updated unchanged, got %v", j.updated)
	}
}

func TestSweepWindowSurvivesLateUpdates(t *testing.T) {
	tracker := NewTracker()
	clock := time.Now()
	tracker.now = func() time.Time { return clock }

	j, _ := tracker.register("late", newTestJob)
	j.update(clock, func(j *job) { j.status = domain.JobStatusCompleted })

	clock = clock.Add(90 * time.Minute)
	j.update(clock, func(j *job) {
		if j.status.Terminal() {
			return
		}
		j.status = domain.JobStatusFailed
	})

	if removed := tracker.Sweep(time.Hour); removed != 1 {
		t.Fatalf("expected the job swept on the original window, removed %d", removed)
	}
}

func TestRecomputeRate(t *testing.T) {
	start := time.Now()
	j := newTestJob(uuid.New(), start)
	j.started = start
	j.progress.RowsTotal = 1000

	j.update(start.Add(10*time.Second), func(j *job) {
		j.progress.RowsParsed = 500
	})

	snapshot := j.Snapshot()
	if snapshot.Progress.ThroughputRps != 50 {
		t.Fatalf("expected 50 rows/s, got %v", snapshot.Progress.ThroughputRps)
	}
	if snapshot.Progress.ETASeconds != 10 {
		t.Fatalf("expected 10s ETA, got %v", snapshot.Progress.ETASeconds)
	}
}
