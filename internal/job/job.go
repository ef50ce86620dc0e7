// Package job tracks transcription jobs through their lifecycle and runs them
// on a bounded worker pool.
//
// State lives entirely in memory for the lifetime of the process; a restart
// loses all jobs. That is a documented limitation of the service, not an
// oversight.
//
// Lifecycle:
//
//	queued ──► processing ──► completed
//	                     └──► failed
//
// Transitions only move forward. The store serializes them per job under a
// single lock, so when a Complete and a Fail race exactly one wins and the
// other gets [ErrInvalidState].
package job

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/scrivano/internal/transcript"
)

// ErrNotFound is returned when no job with the given id exists.
var ErrNotFound = errors.New("job: not found")

// ErrInvalidState is returned when a transition is not allowed from the
// job's current status.
var ErrInvalidState = errors.New("job: invalid state transition")

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is an end state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one transcription request tracked by the store.
//
// Invariants, enforced by the store:
//   - completed ⇔ Result non-nil and Err empty
//   - failed    ⇔ Err non-empty and Result nil
type Job struct {
	// ID is the unique job identifier (a UUID).
	ID string

	// Status is the current lifecycle state.
	Status Status

	// Engine is the transcription provider name ("azure-speech", "openai").
	Engine string

	// Language is the short language code the job was submitted with.
	Language string

	// Filename is the original name of the uploaded file.
	Filename string

	// UploadPath is the temporary on-disk location of the uploaded audio.
	// Deleted together with the job.
	UploadPath string

	// CreatedAt is the submission time.
	CreatedAt time.Time

	// FinishedAt is the time the job reached a terminal state; zero before.
	FinishedAt time.Time

	// Result is the normalized transcript. Non-nil exactly when completed.
	Result *transcript.Transcript

	// Err is the human-readable failure reason. Non-empty exactly when failed.
	Err string
}

// Store is a thread-safe in-memory job registry. The zero value is not
// usable; create one with NewStore.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	// removeUpload deletes a job's upload artifact. Overridable in tests.
	removeUpload func(path string)
}

// NewStore returns an initialised Store.
func NewStore() *Store {
	return &Store{
		jobs:         make(map[string]*Job),
		removeUpload: defaultRemoveUpload,
	}
}

// Create registers a new queued job and returns a copy of it.
func (s *Store) Create(engine, language, filename, uploadPath string) Job {
	j := &Job{
		ID:         uuid.NewString(),
		Status:     StatusQueued,
		Engine:     engine,
		Language:   language,
		Filename:   filename,
		UploadPath: uploadPath,
		CreatedAt:  time.Now(),
	}

	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()

	return *j
}

// Begin moves a queued job to processing.
func (s *Store) Begin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != StatusQueued {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, j.Status, StatusProcessing)
	}
	j.Status = StatusProcessing
	return nil
}

// Complete moves a processing job to completed and attaches its result.
// A nil result is a programming error and is rejected.
func (s *Store) Complete(id string, result *transcript.Transcript) error {
	if result == nil {
		return fmt.Errorf("%w: completed job requires a result", ErrInvalidState)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status != StatusProcessing {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, j.Status, StatusCompleted)
	}
	j.Status = StatusCompleted
	j.Result = result
	j.Err = ""
	j.FinishedAt = time.Now()
	return nil
}

// Fail moves a queued or processing job to failed with a human-readable
// reason. Queued jobs can fail directly (e.g. shutdown before a worker
// picked them up).
func (s *Store) Fail(id, reason string) error {
	if reason == "" {
		reason = "unknown error"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if j.Status.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, j.Status, StatusFailed)
	}
	j.Status = StatusFailed
	j.Err = reason
	j.Result = nil
	j.FinishedAt = time.Now()
	return nil
}

// Get returns a copy of the job with the given id.
func (s *Store) Get(id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *j, nil
}

// List returns copies of all jobs, newest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool {
		return out[i].CreatedAt.After(out[k].CreatedAt)
	})
	return out
}

// Delete removes the job and its upload artifact. Deleting twice returns
// [ErrNotFound] the second time.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	if j.UploadPath != "" {
		s.removeUpload(j.UploadPath)
	}
	return nil
}

// Len returns the number of tracked jobs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// defaultRemoveUpload deletes the upload artifact, ignoring errors; the file
// may already be gone.
func defaultRemoveUpload(path string) {
	_ = os.Remove(path)
}
