package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/dvloznov/autobills/internal/jobs"
)

// Store is an in-memory implementation of RunStore. It is safe for
// concurrent use; history is lost on restart, which is acceptable because
// all reconciliation state lives in the remote ledger.
type Store struct {
	mu   sync.RWMutex
	runs map[string]*jobs.CheckBillsJob
}

// NewStore creates a new in-memory run store.
func NewStore() *Store {
	return &Store{
		runs: make(map[string]*jobs.CheckBillsJob),
	}
}

// SaveJob implements the RunStore interface.
func (s *Store) SaveJob(ctx context.Context, job *jobs.CheckBillsJob) error {
	if job.JobID == "" {
		return fmt.Errorf("job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external modifications
	jobCopy := *job
	s.runs[job.JobID] = &jobCopy

	return nil
}

// GetJob implements the RunStore interface.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.CheckBillsJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.runs[jobID]
	if !exists {
		return nil, fmt.Errorf("run not found: %s", jobID)
	}

	jobCopy := *job
	return &jobCopy, nil
}

// ListJobs implements the RunStore interface.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.CheckBillsJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*jobs.CheckBillsJob

	for _, job := range s.runs {
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}

		jobCopy := *job
		result = append(result, &jobCopy)
	}

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}

	return result, nil
}

// Ensure Store implements RunStore interface.
var _ jobs.RunStore = (*Store)(nil)
