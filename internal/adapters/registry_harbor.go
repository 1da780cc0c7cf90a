package adapters

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	backoff "github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"harbor-hoover/internal/ports"
	"harbor-hoover/internal/shared"
	"harbor-hoover/internal/types"
)

const defaultHarborPageSize = 100
const defaultHarborTimeout = 30 * time.Second
const defaultHarborRetries = 3
const defaultHarborRetryDelay = 1 * time.Second

type HarborConfig struct {
	BaseURL      string
	Username     string
	Password     string
	Project      string
	CACertFile   string
	PageSize     int
	TimeoutSec   int
	Retries      int
	RetryDelayMs int
}

// HarborRegistryAdapter talks to the Harbor v2 API. Every request carries
// basic auth and the client timeout; transient failures are retried with
// exponential backoff, certificate trust failures never are.
type HarborRegistryAdapter struct {
	baseURL    string
	username   string
	password   string
	project    string
	pageSize   int
	retries    int
	retryDelay time.Duration
	client     *http.Client
}

func NewHarborRegistryAdapter(cfg HarborConfig) (*HarborRegistryAdapter, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("harbor base url is empty")
	}
	pageSize := cfg.PageSize
	if pageSize < 1 {
		pageSize = defaultHarborPageSize
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultHarborTimeout
	}
	retries := cfg.Retries
	if retries < 1 {
		retries = defaultHarborRetries
	}
	retryDelay := time.Duration(cfg.RetryDelayMs) * time.Millisecond
	if retryDelay <= 0 {
		retryDelay = defaultHarborRetryDelay
	}

	transport, err := buildTransport(cfg.CACertFile)
	if err != nil {
		return nil, err
	}
	return &HarborRegistryAdapter{
		baseURL:    baseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		project:    cfg.Project,
		pageSize:   pageSize,
		retries:    retries,
		retryDelay: retryDelay,
		client:     &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

func buildTransport(caCertFile string) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if strings.TrimSpace(caCertFile) == "" {
		return transport, nil
	}
	pem, err := os.ReadFile(caCertFile)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("failed to read certificate bundle").
			WithCause(err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("certificate bundle contains no usable certificates")
	}
	transport.TLSClientConfig = &tls.Config{RootCAs: pool}
	return transport, nil
}

func (a *HarborRegistryAdapter) ListRepositories(ctx context.Context) ([]types.Repository, error) {
	var all []types.Repository
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("/api/v2.0/projects/%s/repositories?page=%d&page_size=%d",
			url.PathEscape(a.project), page, a.pageSize)
		body, err := a.doRequest(ctx, http.MethodGet, endpoint)
		if err != nil {
			return nil, err
		}
		var repos []types.Repository
		if err := json.Unmarshal(body, &repos); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to parse repository listing").
				WithCause(err)
		}
		if len(repos) == 0 {
			break
		}
		all = append(all, repos...)
		if len(repos) < a.pageSize {
			break
		}
	}
	return all, nil
}

func (a *HarborRegistryAdapter) ListArtifacts(ctx context.Context, repoName string) ([]types.ArtifactRecord, error) {
	var all []types.ArtifactRecord
	for page := 1; ; page++ {
		endpoint := fmt.Sprintf("/api/v2.0/projects/%s/repositories/%s/artifacts?page=%d&page_size=%d",
			url.PathEscape(a.project), url.PathEscape(repoName), page, a.pageSize)
		body, err := a.doRequest(ctx, http.MethodGet, endpoint)
		if err != nil {
			return nil, err
		}
		var artifacts []types.ArtifactRecord
		if err := json.Unmarshal(body, &artifacts); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to parse artifact listing").
				WithCause(err)
		}
		if len(artifacts) == 0 {
			break
		}
		all = append(all, artifacts...)
		if len(artifacts) < a.pageSize {
			break
		}
	}
	return all, nil
}

// GetArtifactDetails returns (nil, nil) when details cannot be fetched:
// the caller must treat the artifact as skip-don't-delete. A certificate
// trust failure still propagates, since it aborts the whole run.
func (a *HarborRegistryAdapter) GetArtifactDetails(ctx context.Context, repoName string, digest string) (*types.ArtifactRecord, error) {
	endpoint := fmt.Sprintf("/api/v2.0/projects/%s/repositories/%s/artifacts/%s",
		url.PathEscape(a.project), url.PathEscape(repoName), url.PathEscape(digest))
	body, err := a.doRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		if errbuilder.CodeOf(err) == errbuilder.CodePermissionDenied {
			return nil, err
		}
		log.Error().Err(err).
			Str("repository", repoName).
			Str("digest", shared.ShortDigest(digest)).
			Msg("failed to get artifact details")
		return nil, nil
	}
	var record types.ArtifactRecord
	if err := json.Unmarshal(body, &record); err != nil {
		log.Error().Err(err).
			Str("repository", repoName).
			Str("digest", shared.ShortDigest(digest)).
			Msg("failed to parse artifact details")
		return nil, nil
	}
	return &record, nil
}

func (a *HarborRegistryAdapter) DeleteArtifact(ctx context.Context, repoName string, digest string) error {
	endpoint := fmt.Sprintf("/api/v2.0/projects/%s/repositories/%s/artifacts/%s",
		url.PathEscape(a.project), url.PathEscape(repoName), url.PathEscape(digest))
	_, err := a.doRequest(ctx, http.MethodDelete, endpoint)
	return err
}

// doRequest performs one API call with the retry policy: up to the
// configured attempt count, exponential backoff starting at the base
// delay, doubling per attempt. Server-side and transport errors retry;
// certificate trust failures and client errors are permanent.
func (a *HarborRegistryAdapter) doRequest(ctx context.Context, method string, endpoint string) ([]byte, error) {
	requestURL := a.baseURL + endpoint
	attempt := 0
	return backoff.Retry(ctx, func() ([]byte, error) {
		attempt++
		body, err := a.doRequestOnce(ctx, method, requestURL)
		if err == nil {
			return body, nil
		}
		var permanent *backoff.PermanentError
		if !errors.As(err, &permanent) && attempt < a.retries {
			log.Warn().Err(err).
				Str("method", method).
				Str("url", requestURL).
				Int("attempt", attempt).
				Int("max_attempts", a.retries).
				Msg("api request failed, retrying")
		}
		return nil, err
	},
		backoff.WithBackOff(a.newBackOff()),
		backoff.WithMaxTries(uint(a.retries)),
		backoff.WithMaxElapsedTime(0),
	)
}

func (a *HarborRegistryAdapter) doRequestOnce(ctx context.Context, method string, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, requestURL, nil)
	if err != nil {
		return nil, backoff.Permanent(errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create harbor request").
			WithCause(err))
	}
	req.SetBasicAuth(a.username, a.password)
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if isCertificateError(err) {
			log.Error().Err(err).Msg("certificate verification failed, check the trust bundle")
			return nil, backoff.Permanent(errbuilder.New().
				WithCode(errbuilder.CodePermissionDenied).
				WithMsg("certificate verification failed").
				WithCause(err))
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("harbor request failed").
			WithCause(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	cause := shared.HTTPStatusErrorWithBody(resp.StatusCode, requestURL, strings.TrimSpace(string(body)))
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("harbor request failed").
			WithCause(cause)
	}
	code := errbuilder.CodeInternal
	if resp.StatusCode == http.StatusNotFound {
		code = errbuilder.CodeNotFound
	}
	return nil, backoff.Permanent(errbuilder.New().
		WithCode(code).
		WithMsg("harbor request rejected").
		WithCause(cause))
}

func (a *HarborRegistryAdapter) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.retryDelay
	b.Multiplier = 2.0
	b.RandomizationFactor = 0
	return b
}

func isCertificateError(err error) bool {
	var certVerify *tls.CertificateVerificationError
	if errors.As(err, &certVerify) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostname x509.HostnameError
	return errors.As(err, &hostname)
}

var _ ports.RegistryPort = (*HarborRegistryAdapter)(nil)
