// Package policies holds the retention decision logic. Everything in this
// package is pure: no I/O, no clocks, no shared state.
package policies

import (
	"strings"
	"time"

	glob "github.com/bmatcuk/doublestar/v4"

	"harbor-hoover/internal/types"
)

// Timestamps at or before 1970 are placeholders Harbor reports for
// artifacts that were never pulled.
const minMeaningfulYear = 1970

var harborTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02 15:04:05 -0700 MST",
}

// ShouldSkip reports whether an artifact is exempt from deletion: missing
// or malformed details, a protected tag, an excluded repository, or a tag
// matching an exclusion pattern. Ambiguous data always skips; deleting on
// ambiguous data is the higher-risk default.
func ShouldSkip(repoName string, record *types.ArtifactRecord, policy types.RetentionPolicy) bool {
	if record == nil || strings.TrimSpace(record.Digest) == "" {
		return true
	}
	tags := record.TagNames()
	for _, tag := range tags {
		for _, protected := range policy.ProtectedTags {
			if tag == protected {
				return true
			}
		}
	}
	for _, excluded := range policy.Exclusions.Repositories {
		if repoName == strings.TrimSpace(excluded) {
			return true
		}
	}
	for _, tag := range tags {
		for _, pattern := range policy.Exclusions.TagPatterns {
			if matchTagPattern(pattern, tag) {
				return true
			}
		}
	}
	return false
}

// IsOld reports whether the artifact's reference timestamp predates the
// policy cutoff. An artifact with no resolvable timestamp is old: absence
// of history is not protection.
func IsOld(record *types.ArtifactRecord, policy types.RetentionPolicy) bool {
	reference := LastActivityTime(record)
	if reference.IsZero() {
		return true
	}
	return reference.Before(policy.CutoffTime)
}

// IsCandidate combines the two checks: eligible iff not skipped and old.
func IsCandidate(repoName string, record *types.ArtifactRecord, policy types.RetentionPolicy) bool {
	return !ShouldSkip(repoName, record, policy) && IsOld(record, policy)
}

// LastActivityTime resolves the artifact's reference timestamp with the
// precedence pull time, then push time, then the manifest creation time.
// Unparseable values and placeholder dates fall through to the next
// candidate; the zero time means nothing resolved.
func LastActivityTime(record *types.ArtifactRecord) time.Time {
	if record == nil {
		return time.Time{}
	}
	candidates := []string{record.PullTime, record.PushTime}
	if record.ExtraAttrs != nil {
		candidates = append(candidates, record.ExtraAttrs.Created)
	}
	for _, raw := range candidates {
		parsed := parseHarborTime(raw)
		if !parsed.IsZero() && parsed.Year() > minMeaningfulYear {
			return parsed
		}
	}
	return time.Time{}
}

func parseHarborTime(value string) time.Time {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}
	}
	for _, layout := range harborTimeLayouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

func matchTagPattern(pattern string, tag string) bool {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" {
		return false
	}
	matched, err := glob.Match(trimmed, tag)
	if err != nil {
		// Bad pattern in config; treat as non-matching rather than
		// widening the exclusion.
		return false
	}
	return matched
}
