package core

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"harbor-hoover/internal/types"
)

func TestStatsSnapshot(t *testing.T) {
	stats := NewStats()
	stats.RepositoryProcessed()
	stats.ArtifactChecked()
	stats.ArtifactChecked()
	stats.ArtifactsToDelete(3)
	stats.ArtifactsDeleted(2)
	stats.Error()

	want := types.RunStats{
		RepositoriesProcessed: 1,
		ArtifactsChecked:      2,
		ArtifactsToDelete:     3,
		ArtifactsDeleted:      2,
		Errors:                1,
	}
	if diff := cmp.Diff(want, stats.Snapshot()); diff != "" {
		t.Fatalf("unexpected snapshot (-want +got):\n%s", diff)
	}
}

func TestStatsConcurrentIncrements(t *testing.T) {
	stats := NewStats()
	const workers = 16
	const perWorker = 500

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				stats.ArtifactChecked()
				stats.Error()
			}
		}()
	}
	wg.Wait()

	snapshot := stats.Snapshot()
	require.Equal(t, int64(workers*perWorker), snapshot.ArtifactsChecked)
	require.Equal(t, int64(workers*perWorker), snapshot.Errors)
}
