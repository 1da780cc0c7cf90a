package policies

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harbor-hoover/internal/types"
)

func testPolicy(cutoff time.Time) types.RetentionPolicy {
	return types.RetentionPolicy{
		CutoffTime:    cutoff,
		ProtectedTags: []string{"latest", "stable", "prod"},
		Exclusions: types.Exclusions{
			Repositories: []string{"infra-cdp-base"},
			TagPatterns:  []string{"release-*", "*-snapshot"},
		},
	}
}

func record(digest string, tags ...string) *types.ArtifactRecord {
	tagRecords := make([]types.TagRecord, 0, len(tags))
	for _, tag := range tags {
		tagRecords = append(tagRecords, types.TagRecord{Name: tag})
	}
	return &types.ArtifactRecord{Digest: digest, Tags: tagRecords}
}

func TestShouldSkipProtectedTagRegardlessOfAge(t *testing.T) {
	policy := testPolicy(time.Now())
	artifact := record("sha256:aaa", "latest")
	artifact.PullTime = "2015-01-01T00:00:00.000Z"

	require.True(t, ShouldSkip("svc-cdp", artifact, policy))
	require.False(t, IsCandidate("svc-cdp", artifact, policy))
}

func TestShouldSkipMissingDetails(t *testing.T) {
	policy := testPolicy(time.Now())

	require.True(t, ShouldSkip("svc-cdp", nil, policy))
	require.True(t, ShouldSkip("svc-cdp", &types.ArtifactRecord{}, policy))
}

func TestShouldSkipExcludedRepository(t *testing.T) {
	policy := testPolicy(time.Now())
	artifact := record("sha256:bbb", "v1")

	require.True(t, ShouldSkip("infra-cdp-base", artifact, policy))
	require.False(t, ShouldSkip("svc-cdp", artifact, policy))
}

func TestShouldSkipTagPatterns(t *testing.T) {
	policy := testPolicy(time.Now())

	tests := []struct {
		tag  string
		skip bool
	}{
		{"release-2024", true},
		{"2024-snapshot", true},
		{"v1", false},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			require.Equal(t, tt.skip, ShouldSkip("svc-cdp", record("sha256:ccc", tt.tag), policy))
		})
	}
}

func TestIsOldWithoutTimestamp(t *testing.T) {
	policy := testPolicy(time.Now())

	require.True(t, IsOld(record("sha256:ddd", "v1"), policy))
	require.True(t, IsOld(nil, policy))
}

func TestIsOldAgainstCutoff(t *testing.T) {
	cutoff := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	policy := testPolicy(cutoff)

	old := record("sha256:eee", "v1")
	old.PullTime = "2026-08-20T10:00:00.000Z"
	require.True(t, IsOld(old, policy))

	fresh := record("sha256:fff", "v1")
	fresh.PullTime = "2026-08-29T10:00:00.000Z"
	require.False(t, IsOld(fresh, policy))
}

func TestLastActivityTimePrecedence(t *testing.T) {
	artifact := record("sha256:abc", "v1")
	artifact.PullTime = "2026-03-01T00:00:00.000Z"
	artifact.PushTime = "2026-02-01T00:00:00.000Z"
	artifact.ExtraAttrs = &types.ExtraAttrs{Created: "2026-01-01T00:00:00.000Z"}

	got := LastActivityTime(artifact)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)

	artifact.PullTime = ""
	got = LastActivityTime(artifact)
	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), got)

	artifact.PushTime = ""
	got = LastActivityTime(artifact)
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestLastActivityTimeSkipsEpochPlaceholders(t *testing.T) {
	artifact := record("sha256:abc", "v1")
	artifact.PullTime = "0001-01-01T00:00:00.000Z"
	artifact.PushTime = "2026-02-01T00:00:00.000Z"

	got := LastActivityTime(artifact)
	require.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestLastActivityTimeUnresolvable(t *testing.T) {
	artifact := record("sha256:abc", "v1")
	artifact.PullTime = "not-a-timestamp"

	require.True(t, LastActivityTime(artifact).IsZero())
	require.True(t, LastActivityTime(nil).IsZero())
}
