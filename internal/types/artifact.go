package types

import (
	"strings"
	"time"

	"harbor-hoover/internal/shared"
)

// Repository is one repository entry as returned by the Harbor listing API.
// Name carries the full path within the project (for example
// "platform/svc-cdp-api").
type Repository struct {
	Name          string `json:"name"`
	ArtifactCount int64  `json:"artifact_count"`
}

// ShortName returns the last path segment of the repository name, which is
// what Harbor expects in repository-scoped endpoints.
func (r Repository) ShortName() string {
	trimmed := strings.Trim(strings.TrimSpace(r.Name), "/")
	if trimmed == "" {
		return ""
	}
	parts := strings.Split(trimmed, "/")
	return parts[len(parts)-1]
}

// TagRecord is a single tag attached to an artifact on the wire.
type TagRecord struct {
	Name string `json:"name"`
}

// ExtraAttrs carries the image config attributes Harbor extracts from the
// manifest. Only the creation timestamp is of interest here.
type ExtraAttrs struct {
	Created string `json:"created"`
}

// ArtifactRecord is the Harbor wire representation of an artifact, used for
// both the listing and the detail endpoints. Timestamps stay as strings
// until the retention policy resolves them.
type ArtifactRecord struct {
	Digest     string      `json:"digest"`
	Size       int64       `json:"size"`
	PullTime   string      `json:"pull_time"`
	PushTime   string      `json:"push_time"`
	Tags       []TagRecord `json:"tags"`
	ExtraAttrs *ExtraAttrs `json:"extra_attrs,omitempty"`
}

// TagNames flattens the tag records into plain names, dropping empty
// entries.
func (a *ArtifactRecord) TagNames() []string {
	if a == nil {
		return nil
	}
	names := make([]string, 0, len(a.Tags))
	for _, tag := range a.Tags {
		name := strings.TrimSpace(tag.Name)
		if name == "" {
			continue
		}
		names = append(names, name)
	}
	return names
}

// ArtifactInfo is an immutable deletion candidate. Values are produced by a
// single scan worker and handed off by value; nothing mutates them
// afterwards. (RepoName, Digest) identifies the artifact within a run.
type ArtifactInfo struct {
	RepoName     string
	Digest       string
	LastPullTime time.Time
	SizeBytes    int64
	Tags         []string
	IsLatest     bool
}

// ShortDigest trims the digest for log and report output.
func (a ArtifactInfo) ShortDigest() string {
	return shared.ShortDigest(a.Digest)
}

// RunStats is an immutable snapshot of the run counters, taken once the
// pipeline has finished.
type RunStats struct {
	RepositoriesProcessed int64
	ArtifactsChecked      int64
	ArtifactsToDelete     int64
	ArtifactsDeleted      int64
	Errors                int64
}
