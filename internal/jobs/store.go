package jobs

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pablopda/linux-speech-tools/internal/models"
)

// staleAfter drops jobs stuck in processing.
const staleAfter = time.Hour

// JobStore is a thread-safe in-memory store for synthesis jobs.
type JobStore struct {
	jobs    map[string]*models.Job
	mu      sync.RWMutex
	ttl     time.Duration // time-to-live of finished jobs
	cleanup time.Duration
	done    chan struct{}
	once    sync.Once
}

// NewJobStore creates a JobStore and starts its cleanup goroutine.
func NewJobStore(ttl, cleanupInterval time.Duration) *JobStore {
	store := &JobStore{
		jobs:    make(map[string]*models.Job),
		ttl:     ttl,
		cleanup: cleanupInterval,
		done:    make(chan struct{}),
	}
	go store.startCleanupRoutine()
	return store
}

// CreateJob creates a processing job for a text of the given chunk count.
func (s *JobStore) CreateJob(chunks int) models.Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &models.Job{
		ID:        uuid.New().String(),
		Status:    models.JobStatusProcessing,
		Chunks:    chunks,
		Progress:  fmt.Sprintf("0/%d", chunks),
		CreatedAt: time.Now().UTC(),
	}
	s.jobs[job.ID] = job
	return *job
}

// GetJob returns a snapshot of the job with the given ID.
func (s *JobStore) GetJob(id string) (models.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, found := s.jobs[id]
	if !found {
		return models.Job{}, false
	}
	return *job, true
}

// UpdateProgress records how many chunks are done.
func (s *JobStore) UpdateProgress(id string, done int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, found := s.jobs[id]; found && job.Status == models.JobStatusProcessing {
		job.Progress = fmt.Sprintf("%d/%d", done, job.Chunks)
	}
}

// SetJobComplete marks a job as complete and stores its audio.
func (s *JobStore) SetJobComplete(id string, audioData []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, found := s.jobs[id]; found {
		now := time.Now().UTC()
		job.Status = models.JobStatusComplete
		job.AudioData = audioData
		job.Progress = ""
		job.CompletedAt = &now
	}
}

// SetJobError marks a job as failed.
func (s *JobStore) SetJobError(id, errorMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, found := s.jobs[id]; found {
		now := time.Now().UTC()
		job.Status = models.JobStatusError
		job.Error = errorMsg
		job.CompletedAt = &now
	}
}

// Len returns the number of stored jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Close stops the cleanup goroutine.
func (s *JobStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *JobStore) startCleanupRoutine() {
	ticker := time.NewTicker(s.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupJobs(time.Now().UTC())
		case <-s.done:
			return
		}
	}
}

// cleanupJobs removes finished jobs past their TTL and stale processing jobs.
func (s *JobStore) cleanupJobs(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, job := range s.jobs {
		if job.CompletedAt != nil && now.Sub(*job.CompletedAt) > s.ttl {
			delete(s.jobs, id)
			continue
		}
		if job.Status == models.JobStatusProcessing && now.Sub(job.CreatedAt) > staleAfter {
			delete(s.jobs, id)
		}
	}
}
