package domain

import (
	"errors"
	"testing"
	"time"
)

func newTestJob() *Job {
	sig := WorkSignature{States: []string{"TX"}, DataTypes: []DataType{DataTypeRules}}
	return NewJob(sig, DepthSummary, nil, time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC))
}

func TestJob_Lifecycle_Success(t *testing.T) {
	job := newTestJob()
	if job.Status != JobStatusQueued {
		t.Fatalf("new job should be queued, got %s", job.Status)
	}

	if err := job.MarkRunning(); err != nil {
		t.Fatalf("queued → running: %v", err)
	}
	finished := job.StartedAt.Add(90 * time.Second)
	if err := job.MarkSucceeded(JobStats{Artifacts: 12, Programs: 3}, finished); err != nil {
		t.Fatalf("running → success: %v", err)
	}

	if job.Stats == nil || job.Stats.Artifacts != 12 || job.Stats.Programs != 3 {
		t.Errorf("unexpected stats: %+v", job.Stats)
	}
	if job.Duration() != 90*time.Second {
		t.Errorf("expected duration 90s, got %s", job.Duration())
	}
	if job.ErrorText != "" {
		t.Errorf("error text must be empty on success, got %q", job.ErrorText)
	}
}

func TestJob_Lifecycle_Error(t *testing.T) {
	job := newTestJob()
	_ = job.MarkRunning()

	if err := job.MarkFailed("upstream timeout", job.StartedAt.Add(time.Minute)); err != nil {
		t.Fatalf("running → error: %v", err)
	}
	if job.Status != JobStatusError || job.ErrorText != "upstream timeout" {
		t.Errorf("unexpected job: %+v", job)
	}
	if job.Stats != nil {
		t.Error("stats must stay nil on error")
	}
}

func TestJob_InvalidTransitions(t *testing.T) {
	now := time.Now()

	job := newTestJob()
	if err := job.MarkSucceeded(JobStats{}, now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("queued → success should fail, got %v", err)
	}
	if err := job.MarkFailed("x", now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("queued → error should fail, got %v", err)
	}

	_ = job.MarkRunning()
	if err := job.MarkRunning(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("running → running should fail, got %v", err)
	}

	_ = job.MarkSucceeded(JobStats{}, now)
	if err := job.MarkFailed("late", now); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("success → error should fail, got %v", err)
	}
	if job.Status != JobStatusSuccess {
		t.Errorf("terminal status must not change, got %s", job.Status)
	}
}

func TestJobStatus(t *testing.T) {
	for _, s := range ActiveJobStatuses {
		if !s.IsActive() || s.IsTerminal() {
			t.Errorf("%s should be active", s)
		}
	}
	if JobStatus("cancelled").IsValid() {
		t.Error("unknown status must be invalid")
	}
	if job := newTestJob(); job.Duration() != 0 {
		t.Error("unfinished job duration must be zero")
	}
}
