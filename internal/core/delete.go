package core

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"harbor-hoover/internal/ports"
	"harbor-hoover/internal/types"
)

// Deleter executes the delete phase over a deduplicated candidate set.
// Candidates are partitioned into contiguous batches fed to a pool of at
// most MaxWorkers workers; deletes are sequential within a batch, batches
// run concurrently.
type Deleter struct {
	Registry   ports.RegistryPort
	Stats      *Stats
	MaxWorkers int
}

// DeleteOutcome aggregates the delete phase. FreedBytes sums sizes
// strictly over artifacts whose individual delete reported success.
type DeleteOutcome struct {
	Deleted    int
	Failed     int
	FreedBytes int64
}

// Dedupe collapses the candidate list on (repository, digest). Last seen
// wins; the first-seen position is kept so batch partitioning stays
// deterministic for a given scan result.
func Dedupe(candidates []types.ArtifactInfo) []types.ArtifactInfo {
	if len(candidates) == 0 {
		return nil
	}
	index := make(map[string]int, len(candidates))
	unique := make([]types.ArtifactInfo, 0, len(candidates))
	for _, candidate := range candidates {
		key := candidate.RepoName + "@" + candidate.Digest
		if at, seen := index[key]; seen {
			unique[at] = candidate
			continue
		}
		index[key] = len(unique)
		unique = append(unique, candidate)
	}
	return unique
}

// TotalSize sums the advisory size over a candidate set.
func TotalSize(candidates []types.ArtifactInfo) int64 {
	var total int64
	for _, candidate := range candidates {
		total += candidate.SizeBytes
	}
	return total
}

// Execute deletes every candidate. The input must already be
// deduplicated. Per-artifact failures are logged and counted; they never
// abort the owning batch or its siblings.
func (d Deleter) Execute(ctx context.Context, candidates []types.ArtifactInfo) DeleteOutcome {
	if len(candidates) == 0 {
		log.Info().Msg("no artifacts to delete")
		return DeleteOutcome{}
	}

	maxWorkers := d.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	batchSize := len(candidates) / maxWorkers
	if batchSize < 1 {
		batchSize = 1
	}
	var batches [][]types.ArtifactInfo
	for start := 0; start < len(candidates); start += batchSize {
		end := start + batchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batches = append(batches, candidates[start:end])
	}

	log.Info().
		Int("artifacts", len(candidates)).
		Int("batches", len(batches)).
		Msg("starting parallel deletion")

	// With floor division the batch count can exceed maxWorkers, so the
	// batches go through a bounded pool rather than a goroutine each.
	workerCount := maxWorkers
	if len(batches) < workerCount {
		workerCount = len(batches)
	}
	tasks := make(chan []types.ArtifactInfo)
	results := make(chan DeleteOutcome, len(batches))
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range tasks {
				results <- d.deleteBatch(ctx, batch)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	for _, batch := range batches {
		tasks <- batch
	}
	close(tasks)

	var outcome DeleteOutcome
	for batchOutcome := range results {
		outcome.Deleted += batchOutcome.Deleted
		outcome.Failed += batchOutcome.Failed
		outcome.FreedBytes += batchOutcome.FreedBytes
	}

	d.Stats.ArtifactsDeleted(outcome.Deleted)
	log.Info().
		Int("deleted", outcome.Deleted).
		Int("failed", outcome.Failed).
		Msg("deletion complete")
	return outcome
}

// deleteBatch walks one batch in insertion order.
func (d Deleter) deleteBatch(ctx context.Context, batch []types.ArtifactInfo) DeleteOutcome {
	var outcome DeleteOutcome
	for _, artifact := range batch {
		if ctx.Err() != nil {
			outcome.Failed += len(batch) - outcome.Deleted - outcome.Failed
			return outcome
		}
		if err := d.Registry.DeleteArtifact(ctx, artifact.RepoName, artifact.Digest); err != nil {
			outcome.Failed++
			d.Stats.Error()
			log.Error().Err(err).
				Str("repository", artifact.RepoName).
				Str("digest", artifact.ShortDigest()).
				Msg("failed to delete artifact")
			continue
		}
		outcome.Deleted++
		outcome.FreedBytes += artifact.SizeBytes
		log.Info().
			Str("repository", artifact.RepoName).
			Str("digest", artifact.ShortDigest()).
			Msg("deleted artifact")
	}
	return outcome
}
