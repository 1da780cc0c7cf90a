package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"harbor-hoover/internal/core"
	"harbor-hoover/internal/types"
)

// Cleanup runs the full scan-decide-execute pipeline. The scan phase
// completes entirely before the delete phase starts, since deletion
// operates on the complete deduplicated candidate set. A failed run still
// reports whatever statistics were accumulated; only run-level failures
// (unreachable registry, certificate trust) return an error.
func (s Service) Cleanup(ctx context.Context) (CleanupResult, error) {
	assert.NotEmpty(ctx, s.Config.Harbor.Project, "project must be configured before scanning")
	start := timeNow(s.Clock)
	policy := s.Config.Policy(start)
	stats := core.NewStats()

	log.Info().
		Str("project", s.Config.Harbor.Project).
		Int("days_to_keep", s.Config.Retention.DaysToKeep).
		Int("max_workers", s.Config.MaxWorkers).
		Bool("dry_run", s.Config.DryRun).
		Msg("starting cleanup")

	scanner := core.Scanner{
		Registry:   s.Registry,
		Stats:      stats,
		MaxWorkers: s.Config.MaxWorkers,
	}
	candidates, err := scanner.Scan(ctx, policy)
	if err != nil {
		return CleanupResult{Stats: stats.Snapshot()}, err
	}

	unique := core.Dedupe(candidates)
	totalSize := core.TotalSize(unique)

	var outcome core.DeleteOutcome
	if s.Config.DryRun {
		s.printDryRunTable(unique, totalSize)
	} else {
		deleter := core.Deleter{
			Registry:   s.Registry,
			Stats:      stats,
			MaxWorkers: s.Config.MaxWorkers,
		}
		outcome = deleter.Execute(ctx, unique)
	}

	snapshot := stats.Snapshot()
	elapsed := timeNow(s.Clock).Sub(start)
	report := types.RunReport{
		Project:        s.Config.Harbor.Project,
		DryRun:         s.Config.DryRun,
		GeneratedAt:    start,
		Elapsed:        elapsed,
		Stats:          snapshot,
		Artifacts:      unique,
		TotalSizeBytes: totalSize,
		FreedSizeBytes: outcome.FreedBytes,
	}
	if s.Report != nil {
		if err := s.Report.Write(report); err != nil {
			log.Error().Err(err).Msg("failed to write report")
		}
	}
	if s.Notifier != nil {
		if err := s.Notifier.Notify(ctx, report); err != nil {
			log.Error().Err(err).Msg("failed to deliver run summary")
		}
	}

	log.Info().
		Dur("elapsed", elapsed).
		Int64("repositories_processed", snapshot.RepositoriesProcessed).
		Int64("artifacts_checked", snapshot.ArtifactsChecked).
		Int64("artifacts_to_delete", snapshot.ArtifactsToDelete).
		Int64("artifacts_deleted", snapshot.ArtifactsDeleted).
		Int64("errors", snapshot.Errors).
		Str("total_size", humanize.IBytes(uint64(totalSize))).
		Msg("cleanup completed")

	return CleanupResult{
		DryRun:         s.Config.DryRun,
		Candidates:     len(unique),
		Deleted:        outcome.Deleted,
		Failed:         outcome.Failed,
		TotalSizeBytes: totalSize,
		FreedSizeBytes: outcome.FreedBytes,
		Stats:          snapshot,
	}, nil
}

// printDryRunTable writes the would-be deletions as an aligned table. No
// network calls happen on this path.
func (s Service) printDryRunTable(unique []types.ArtifactInfo, totalSize int64) {
	if s.Out == nil {
		return
	}
	if len(unique) == 0 {
		fmt.Fprintln(s.Out, "\nDry-run complete: no artifacts to delete.")
		return
	}
	fmt.Fprintf(s.Out, "\nDry-run results: %d unique artifacts to delete:\n\n", len(unique))
	w := tabwriter.NewWriter(s.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REPOSITORY\tDIGEST\tLAST PULL\tSIZE\tLATEST")
	for _, artifact := range unique {
		pullTime := "Never pulled"
		if !artifact.LastPullTime.IsZero() {
			pullTime = artifact.LastPullTime.Format("2006-01-02 15:04")
		}
		latest := ""
		if artifact.IsLatest {
			latest = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			artifact.RepoName, artifact.ShortDigest(), pullTime,
			humanize.IBytes(uint64(artifact.SizeBytes)), latest)
	}
	w.Flush()
	fmt.Fprintf(s.Out, "\nTotal size that would be freed: %s\n", humanize.IBytes(uint64(totalSize)))
}
