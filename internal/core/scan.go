package core

import (
	"context"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"harbor-hoover/internal/policies"
	"harbor-hoover/internal/ports"
	"harbor-hoover/internal/shared"
	"harbor-hoover/internal/types"
)

// Artifact detail fetches within one repository fan out over their own
// small pool, capped so a large repository cannot flood the registry even
// when the repository-level concurrency is already high.
const maxArtifactWorkers = 5

var scopeMarkers = []string{"cdp", "sdp"}

// Scanner walks the registry and produces the run's deletion candidates.
// Repository scans run concurrently up to MaxWorkers; each repository
// fans out its own bounded pool of artifact evaluations. Every worker
// appends only to its own slice; merging happens here, in completion
// order.
type Scanner struct {
	Registry   ports.RegistryPort
	Stats      *Stats
	MaxWorkers int
}

// RepoInScope reports whether a repository short name qualifies for
// scanning. Out-of-scope repositories are skipped before any
// artifact-level API call.
func RepoInScope(shortName string) bool {
	for _, marker := range scopeMarkers {
		if strings.Contains(shortName, marker) {
			return true
		}
	}
	return false
}

// Scan enumerates repositories, filters them, and evaluates every
// artifact in scope against the policy. Per-repository and per-artifact
// failures are counted and contained; the initial repository listing
// failure and certificate trust failures abort the scan, since every
// later request would fail the same way.
func (s Scanner) Scan(ctx context.Context, policy types.RetentionPolicy) ([]types.ArtifactInfo, error) {
	repositories, err := s.Registry.ListRepositories(ctx)
	if err != nil {
		return nil, err
	}

	inScope := make([]types.Repository, 0, len(repositories))
	for _, repo := range repositories {
		if RepoInScope(repo.ShortName()) {
			inScope = append(inScope, repo)
			continue
		}
		log.Info().Str("repository", repo.ShortName()).Msg("repository out of scope, skipping")
	}
	log.Info().
		Int("total", len(repositories)).
		Int("in_scope", len(inScope)).
		Msg("repository listing complete")

	if len(inScope) == 0 {
		return nil, nil
	}

	workerCount := s.MaxWorkers
	if workerCount < 1 {
		workerCount = 1
	}
	if len(inScope) < workerCount {
		workerCount = len(inScope)
	}

	tasks := make(chan types.Repository)
	results := make(chan []types.ArtifactInfo, len(inScope))
	var fatalMu sync.Mutex
	var fatal error
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for repo := range tasks {
				if ctx.Err() != nil {
					results <- nil
					continue
				}
				batch, err := s.scanRepository(ctx, repo, policy)
				if err != nil {
					fatalMu.Lock()
					if fatal == nil {
						fatal = err
					}
					fatalMu.Unlock()
				}
				results <- batch
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	for _, repo := range inScope {
		tasks <- repo
	}
	close(tasks)

	var candidates []types.ArtifactInfo
	for batch := range results {
		candidates = append(candidates, batch...)
	}
	if fatal != nil {
		return nil, fatal
	}
	return candidates, nil
}

// scanRepository lists one repository's artifacts and evaluates them on a
// bounded sub-pool. A listing failure contributes zero candidates and one
// error without touching sibling repositories; a certificate trust
// failure is returned so the caller can abort the whole scan.
func (s Scanner) scanRepository(ctx context.Context, repo types.Repository, policy types.RetentionPolicy) ([]types.ArtifactInfo, error) {
	shortName := repo.ShortName()
	log.Info().Str("repository", shortName).Msg("scanning repository")

	artifacts, err := s.Registry.ListArtifacts(ctx, shortName)
	if err != nil {
		if errbuilder.CodeOf(err) == errbuilder.CodePermissionDenied {
			return nil, err
		}
		s.Stats.Error()
		log.Error().Err(err).Str("repository", shortName).Msg("failed to list artifacts")
		return nil, nil
	}
	log.Info().Str("repository", shortName).Int("artifacts", len(artifacts)).Msg("artifact listing complete")

	workerCount := len(artifacts)
	if workerCount > maxArtifactWorkers {
		workerCount = maxArtifactWorkers
	}
	if workerCount < 1 {
		workerCount = 1
	}

	tasks := make(chan types.ArtifactRecord)
	results := make(chan *types.ArtifactInfo, len(artifacts))
	var fatalMu sync.Mutex
	var fatal error
	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for artifact := range tasks {
				if ctx.Err() != nil {
					results <- nil
					continue
				}
				candidate, err := s.processArtifact(ctx, shortName, artifact, policy)
				if err != nil {
					fatalMu.Lock()
					if fatal == nil {
						fatal = err
					}
					fatalMu.Unlock()
				}
				results <- candidate
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	for _, artifact := range artifacts {
		tasks <- artifact
	}
	close(tasks)

	var marked []types.ArtifactInfo
	for candidate := range results {
		if candidate != nil {
			marked = append(marked, *candidate)
		}
	}
	if fatal != nil {
		return nil, fatal
	}

	s.Stats.RepositoryProcessed()
	s.Stats.ArtifactsToDelete(len(marked))
	log.Info().Str("repository", shortName).Int("marked", len(marked)).Msg("repository scan complete")
	return marked, nil
}

// processArtifact fetches one artifact's details and applies the policy.
// Failures are contained at this artifact: counted, logged, and the
// artifact stays out of the candidate list. Certificate trust failures
// are the exception; they come back as an error and abort the scan.
func (s Scanner) processArtifact(ctx context.Context, repoName string, artifact types.ArtifactRecord, policy types.RetentionPolicy) (*types.ArtifactInfo, error) {
	details, err := s.Registry.GetArtifactDetails(ctx, repoName, artifact.Digest)
	if err != nil {
		if errbuilder.CodeOf(err) == errbuilder.CodePermissionDenied {
			return nil, err
		}
		s.Stats.Error()
		log.Error().Err(err).
			Str("repository", repoName).
			Str("digest", shared.ShortDigest(artifact.Digest)).
			Msg("failed to fetch artifact details")
		return nil, nil
	}
	if details == nil {
		s.Stats.Error()
		log.Warn().
			Str("repository", repoName).
			Str("digest", shared.ShortDigest(artifact.Digest)).
			Msg("no details returned for artifact, skipping")
		return nil, nil
	}

	s.Stats.ArtifactChecked()

	if !policies.IsCandidate(repoName, details, policy) {
		return nil, nil
	}

	tags := details.TagNames()
	isLatest := false
	for _, tag := range tags {
		if tag == "latest" {
			isLatest = true
			break
		}
	}
	return &types.ArtifactInfo{
		RepoName:     repoName,
		Digest:       details.Digest,
		LastPullTime: policies.LastActivityTime(details),
		SizeBytes:    details.Size,
		Tags:         tags,
		IsLatest:     isLatest,
	}, nil
}
