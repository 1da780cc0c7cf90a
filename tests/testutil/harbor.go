package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
)

// HarborArtifact describes one artifact served by the fake registry. The
// string timestamps mirror the Harbor wire format; leave them empty to
// model artifacts that were never pulled or pushed.
type HarborArtifact struct {
	Digest   string
	Size     int64
	PullTime string
	PushTime string
	Created  string
	Tags     []string
}

// HarborRepo is a repository with its artifacts. Name is the full
// project-qualified path, as the listing endpoint reports it.
type HarborRepo struct {
	Name      string
	Artifacts []HarborArtifact
}

// FakeHarbor serves just enough of the Harbor v2 API for the cleanup
// pipeline: paginated repository and artifact listings, artifact details,
// and deletion. Deletions are recorded, not applied, so a scan can be
// replayed against the same state.
type FakeHarbor struct {
	Project string
	Repos   []HarborRepo

	mu      sync.Mutex
	deleted []string
	server  *httptest.Server
}

// Start runs the fake behind an httptest server and returns its base URL.
// The server shuts down with the test.
func (f *FakeHarbor) Start(t *testing.T) string {
	t.Helper()
	mux := http.NewServeMux()
	prefix := fmt.Sprintf("/api/v2.0/projects/%s/repositories", f.Project)
	mux.HandleFunc("GET "+prefix, f.listRepositories)
	mux.HandleFunc("GET "+prefix+"/{repo}/artifacts", f.listArtifacts)
	mux.HandleFunc("GET "+prefix+"/{repo}/artifacts/{digest}", f.getArtifact)
	mux.HandleFunc("DELETE "+prefix+"/{repo}/artifacts/{digest}", f.deleteArtifact)
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f.server.URL
}

// Deleted returns the recorded deletions as "repo@digest" keys.
func (f *FakeHarbor) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.deleted))
	copy(out, f.deleted)
	return out
}

func (f *FakeHarbor) listRepositories(w http.ResponseWriter, r *http.Request) {
	type repoEntry struct {
		Name          string `json:"name"`
		ArtifactCount int64  `json:"artifact_count"`
	}
	entries := make([]repoEntry, 0, len(f.Repos))
	for _, repo := range f.Repos {
		entries = append(entries, repoEntry{Name: repo.Name, ArtifactCount: int64(len(repo.Artifacts))})
	}
	writeJSON(w, paginate(r, entries))
}

func (f *FakeHarbor) listArtifacts(w http.ResponseWriter, r *http.Request) {
	repo, ok := f.findRepo(r.PathValue("repo"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	records := make([]map[string]any, 0, len(repo.Artifacts))
	for _, artifact := range repo.Artifacts {
		records = append(records, map[string]any{"digest": artifact.Digest, "size": artifact.Size})
	}
	writeJSON(w, paginate(r, records))
}

func (f *FakeHarbor) getArtifact(w http.ResponseWriter, r *http.Request) {
	repo, ok := f.findRepo(r.PathValue("repo"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	for _, artifact := range repo.Artifacts {
		if artifact.Digest == r.PathValue("digest") {
			writeJSON(w, artifactRecord(artifact))
			return
		}
	}
	http.NotFound(w, r)
}

func (f *FakeHarbor) deleteArtifact(w http.ResponseWriter, r *http.Request) {
	repo, ok := f.findRepo(r.PathValue("repo"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	f.mu.Lock()
	f.deleted = append(f.deleted, repo.shortName()+"@"+r.PathValue("digest"))
	f.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (f *FakeHarbor) findRepo(shortName string) (HarborRepo, bool) {
	for _, repo := range f.Repos {
		if repo.shortName() == shortName {
			return repo, true
		}
	}
	return HarborRepo{}, false
}

func (r HarborRepo) shortName() string {
	name := r.Name
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[i+1:]
		}
	}
	return name
}

func artifactRecord(artifact HarborArtifact) map[string]any {
	tags := make([]map[string]string, 0, len(artifact.Tags))
	for _, tag := range artifact.Tags {
		tags = append(tags, map[string]string{"name": tag})
	}
	record := map[string]any{
		"digest":    artifact.Digest,
		"size":      artifact.Size,
		"pull_time": artifact.PullTime,
		"push_time": artifact.PushTime,
		"tags":      tags,
	}
	if artifact.Created != "" {
		record["extra_attrs"] = map[string]string{"created": artifact.Created}
	}
	return record
}

func paginate[T any](r *http.Request, items []T) []T {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if page < 1 {
		page = 1
	}
	if size < 1 {
		return items
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := min(start+size, len(items))
	return items[start:end]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
