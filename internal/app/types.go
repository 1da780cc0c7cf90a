package app

import "harbor-hoover/internal/types"

// CleanupResult summarizes one pipeline run for the CLI layer.
type CleanupResult struct {
	DryRun         bool
	Candidates     int
	Deleted        int
	Failed         int
	TotalSizeBytes int64
	FreedSizeBytes int64
	Stats          types.RunStats
}
