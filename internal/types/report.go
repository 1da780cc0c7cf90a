package types

import "time"

// RunReport is everything the report and notification sinks need about a
// completed run: the deduplicated candidate set, the final counters, and
// the size accounting. FreedSizeBytes sums only artifacts whose delete
// call reported success; it stays zero for dry runs.
type RunReport struct {
	Project        string
	DryRun         bool
	GeneratedAt    time.Time
	Elapsed        time.Duration
	Stats          RunStats
	Artifacts      []ArtifactInfo
	TotalSizeBytes int64
	FreedSizeBytes int64
}
