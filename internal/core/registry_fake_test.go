package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"harbor-hoover/internal/types"
)

// fakeRegistry is an in-memory RegistryPort for orchestration tests.
// Error injection is keyed by repository or digest.
type fakeRegistry struct {
	mu sync.Mutex

	repos     []types.Repository
	artifacts map[string][]types.ArtifactRecord
	details   map[string]*types.ArtifactRecord

	failListRepos     bool
	failListArtifacts map[string]bool
	failDetails       map[string]bool
	failDeletes       map[string]bool
	listArtifactsErr  map[string]error
	detailsErr        map[string]error

	deleteDelay time.Duration

	deleted        []string
	deleteCalls    int
	deleteInFlight int
	deletePeak     int
	detailCalls    int
	listCalls      []string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		artifacts:         map[string][]types.ArtifactRecord{},
		details:           map[string]*types.ArtifactRecord{},
		failListArtifacts: map[string]bool{},
		failDetails:       map[string]bool{},
		failDeletes:       map[string]bool{},
		listArtifactsErr:  map[string]error{},
		detailsErr:        map[string]error{},
	}
}

func (f *fakeRegistry) addArtifact(repo string, record types.ArtifactRecord) {
	f.artifacts[repo] = append(f.artifacts[repo], types.ArtifactRecord{Digest: record.Digest})
	detail := record
	f.details[repo+"@"+record.Digest] = &detail
}

func (f *fakeRegistry) ListRepositories(_ context.Context) ([]types.Repository, error) {
	if f.failListRepos {
		return nil, errors.New("repository listing unavailable")
	}
	return f.repos, nil
}

func (f *fakeRegistry) ListArtifacts(_ context.Context, repoName string) ([]types.ArtifactRecord, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, repoName)
	f.mu.Unlock()
	if err := f.listArtifactsErr[repoName]; err != nil {
		return nil, err
	}
	if f.failListArtifacts[repoName] {
		return nil, errors.New("artifact listing unavailable")
	}
	return f.artifacts[repoName], nil
}

func (f *fakeRegistry) GetArtifactDetails(_ context.Context, repoName string, digest string) (*types.ArtifactRecord, error) {
	f.mu.Lock()
	f.detailCalls++
	f.mu.Unlock()
	if err := f.detailsErr[repoName+"@"+digest]; err != nil {
		return nil, err
	}
	if f.failDetails[repoName+"@"+digest] {
		return nil, errors.New("detail fetch unavailable")
	}
	return f.details[repoName+"@"+digest], nil
}

func (f *fakeRegistry) DeleteArtifact(_ context.Context, repoName string, digest string) error {
	f.mu.Lock()
	f.deleteCalls++
	f.deleteInFlight++
	if f.deleteInFlight > f.deletePeak {
		f.deletePeak = f.deleteInFlight
	}
	delay := f.deleteDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteInFlight--
	if f.failDeletes[repoName+"@"+digest] {
		return errors.New("delete rejected")
	}
	f.deleted = append(f.deleted, repoName+"@"+digest)
	return nil
}
