package core

import (
	"sync"

	"harbor-hoover/internal/types"
)

// Stats is the run's shared counter set. Every scan and delete worker
// writes to it concurrently, so all updates go through the mutex; readers
// take an immutable snapshot at run end.
type Stats struct {
	mu                    sync.Mutex
	repositoriesProcessed int64
	artifactsChecked      int64
	artifactsToDelete     int64
	artifactsDeleted      int64
	errors                int64
}

func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) RepositoryProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repositoriesProcessed++
}

func (s *Stats) ArtifactChecked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifactsChecked++
}

func (s *Stats) ArtifactsToDelete(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifactsToDelete += int64(count)
}

func (s *Stats) ArtifactsDeleted(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifactsDeleted += int64(count)
}

func (s *Stats) Error() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors++
}

// Snapshot returns the counters by value.
func (s *Stats) Snapshot() types.RunStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.RunStats{
		RepositoriesProcessed: s.repositoriesProcessed,
		ArtifactsChecked:      s.artifactsChecked,
		ArtifactsToDelete:     s.artifactsToDelete,
		ArtifactsDeleted:      s.artifactsDeleted,
		Errors:                s.errors,
	}
}
