package core

import (
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/require"

	"harbor-hoover/internal/types"
)

func scanPolicy(cutoff time.Time) types.RetentionPolicy {
	return types.RetentionPolicy{
		CutoffTime:    cutoff,
		ProtectedTags: []string{"latest", "stable"},
	}
}

func oldRecord(digest string, tags ...string) types.ArtifactRecord {
	tagRecords := make([]types.TagRecord, 0, len(tags))
	for _, tag := range tags {
		tagRecords = append(tagRecords, types.TagRecord{Name: tag})
	}
	return types.ArtifactRecord{
		Digest:   digest,
		Size:     100,
		PullTime: "2026-08-01T00:00:00.000Z",
		Tags:     tagRecords,
	}
}

func TestRepoInScope(t *testing.T) {
	require.True(t, RepoInScope("svc-cdp"))
	require.True(t, RepoInScope("data-sdp-ingest"))
	require.False(t, RepoInScope("other"))
}

func TestScanFiltersRepositoriesBeforeArtifactWork(t *testing.T) {
	registry := newFakeRegistry()
	registry.repos = []types.Repository{
		{Name: "platform/svc-cdp"},
		{Name: "platform/other"},
	}
	registry.addArtifact("svc-cdp", oldRecord("sha256:aaa", "v1"))

	stats := NewStats()
	scanner := Scanner{Registry: registry, Stats: stats, MaxWorkers: 4}
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	candidates, err := scanner.Scan(t.Context(), scanPolicy(cutoff))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "svc-cdp", candidates[0].RepoName)
	// the out-of-scope repository never reaches the artifact listing
	require.Equal(t, []string{"svc-cdp"}, registry.listCalls)
}

func TestScanContainsArtifactFailures(t *testing.T) {
	registry := newFakeRegistry()
	registry.repos = []types.Repository{{Name: "svc-cdp"}}
	registry.addArtifact("svc-cdp", oldRecord("sha256:aaa", "v1"))
	registry.addArtifact("svc-cdp", oldRecord("sha256:bbb", "v2"))
	registry.failDetails["svc-cdp@sha256:bbb"] = true

	stats := NewStats()
	scanner := Scanner{Registry: registry, Stats: stats, MaxWorkers: 2}
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	candidates, err := scanner.Scan(t.Context(), scanPolicy(cutoff))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "sha256:aaa", candidates[0].Digest)

	snapshot := stats.Snapshot()
	require.Equal(t, int64(1), snapshot.Errors)
	require.Equal(t, int64(1), snapshot.ArtifactsChecked)
	require.Equal(t, int64(1), snapshot.RepositoriesProcessed)
}

func TestScanContainsRepositoryFailures(t *testing.T) {
	registry := newFakeRegistry()
	registry.repos = []types.Repository{
		{Name: "svc-cdp"},
		{Name: "svc-sdp"},
	}
	registry.addArtifact("svc-sdp", oldRecord("sha256:ccc", "v1"))
	registry.failListArtifacts["svc-cdp"] = true

	stats := NewStats()
	scanner := Scanner{Registry: registry, Stats: stats, MaxWorkers: 2}
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	candidates, err := scanner.Scan(t.Context(), scanPolicy(cutoff))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "svc-sdp", candidates[0].RepoName)

	snapshot := stats.Snapshot()
	require.Equal(t, int64(1), snapshot.Errors)
	// the failed repository does not count as processed
	require.Equal(t, int64(1), snapshot.RepositoriesProcessed)
}

func TestScanAbortsOnRepositoryListingFailure(t *testing.T) {
	registry := newFakeRegistry()
	registry.failListRepos = true

	scanner := Scanner{Registry: registry, Stats: NewStats(), MaxWorkers: 2}
	_, err := scanner.Scan(t.Context(), scanPolicy(time.Now()))
	require.Error(t, err)
}

func TestScanSkipsProtectedAndFreshArtifacts(t *testing.T) {
	registry := newFakeRegistry()
	registry.repos = []types.Repository{{Name: "svc-cdp"}}
	registry.addArtifact("svc-cdp", oldRecord("sha256:old", "v1"))

	protected := oldRecord("sha256:protected", "latest")
	registry.addArtifact("svc-cdp", protected)

	fresh := oldRecord("sha256:fresh", "v3")
	fresh.PullTime = "2026-08-29T12:00:00.000Z"
	registry.addArtifact("svc-cdp", fresh)

	stats := NewStats()
	scanner := Scanner{Registry: registry, Stats: stats, MaxWorkers: 1}
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	candidates, err := scanner.Scan(t.Context(), scanPolicy(cutoff))
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	require.Equal(t, "sha256:old", candidates[0].Digest)

	snapshot := stats.Snapshot()
	require.Equal(t, int64(3), snapshot.ArtifactsChecked)
	require.Equal(t, int64(1), snapshot.ArtifactsToDelete)
}

func TestScanIdempotentCandidateSet(t *testing.T) {
	registry := newFakeRegistry()
	registry.repos = []types.Repository{{Name: "svc-cdp"}}
	registry.addArtifact("svc-cdp", oldRecord("sha256:aaa", "v1"))
	registry.addArtifact("svc-cdp", oldRecord("sha256:bbb", "v2"))

	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	scanner := Scanner{Registry: registry, Stats: NewStats(), MaxWorkers: 3}

	first, err := scanner.Scan(t.Context(), scanPolicy(cutoff))
	require.NoError(t, err)
	second, err := scanner.Scan(t.Context(), scanPolicy(cutoff))
	require.NoError(t, err)

	require.ElementsMatch(t, digests(first), digests(second))
	require.Len(t, first, 2)
}

func digests(candidates []types.ArtifactInfo) []string {
	out := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		out = append(out, candidate.Digest)
	}
	return out
}

func certError() error {
	return errbuilder.New().
		WithCode(errbuilder.CodePermissionDenied).
		WithMsg("certificate verification failed")
}

func TestScanAbortsOnCertificateFailureInDetails(t *testing.T) {
	registry := newFakeRegistry()
	registry.repos = []types.Repository{{Name: "svc-cdp"}}
	registry.addArtifact("svc-cdp", oldRecord("sha256:aaa", "v1"))
	registry.addArtifact("svc-cdp", oldRecord("sha256:bbb", "v2"))
	registry.detailsErr["svc-cdp@sha256:bbb"] = certError()

	scanner := Scanner{Registry: registry, Stats: NewStats(), MaxWorkers: 2}
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	candidates, err := scanner.Scan(t.Context(), scanPolicy(cutoff))
	require.Error(t, err)
	require.Equal(t, errbuilder.CodePermissionDenied, errbuilder.CodeOf(err))
	require.Empty(t, candidates)
}

func TestScanAbortsOnCertificateFailureInListing(t *testing.T) {
	registry := newFakeRegistry()
	registry.repos = []types.Repository{
		{Name: "svc-cdp"},
		{Name: "svc-sdp"},
	}
	registry.addArtifact("svc-sdp", oldRecord("sha256:ccc", "v1"))
	registry.listArtifactsErr["svc-cdp"] = certError()

	scanner := Scanner{Registry: registry, Stats: NewStats(), MaxWorkers: 2}
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

	_, err := scanner.Scan(t.Context(), scanPolicy(cutoff))
	require.Error(t, err)
	require.Equal(t, errbuilder.CodePermissionDenied, errbuilder.CodeOf(err))
}
