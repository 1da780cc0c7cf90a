package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	backoff "github.com/cenkalti/backoff/v5"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"harbor-hoover/internal/ports"
	"harbor-hoover/internal/shared"
	"harbor-hoover/internal/types"
)

const defaultWebhookTimeout = 10 * time.Second
const defaultWebhookRetries = 3
const defaultWebhookRetryDelay = 1 * time.Second

// WebhookNotifierAdapter posts a JSON run summary to a configured
// endpoint after the run completes, with the same retry discipline as
// the registry client. An empty URL disables delivery.
type WebhookNotifierAdapter struct {
	URL        string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	client     *http.Client
}

func NewWebhookNotifierAdapter(url string, timeout time.Duration) *WebhookNotifierAdapter {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookNotifierAdapter{
		URL:        strings.TrimSpace(url),
		Timeout:    timeout,
		Retries:    defaultWebhookRetries,
		RetryDelay: defaultWebhookRetryDelay,
		client:     &http.Client{Timeout: timeout},
	}
}

type webhookPayload struct {
	Project           string `json:"project"`
	DryRun            bool   `json:"dry_run"`
	GeneratedAt       string `json:"generated_at"`
	ElapsedSeconds    int64  `json:"elapsed_seconds"`
	Repositories      int64  `json:"repositories_processed"`
	ArtifactsChecked  int64  `json:"artifacts_checked"`
	ArtifactsToDelete int64  `json:"artifacts_to_delete"`
	ArtifactsDeleted  int64  `json:"artifacts_deleted"`
	Errors            int64  `json:"errors"`
	TotalSize         string `json:"total_size"`
	FreedSize         string `json:"freed_size"`
}

func (a *WebhookNotifierAdapter) Notify(ctx context.Context, report types.RunReport) error {
	if a.URL == "" {
		return nil
	}
	payload := webhookPayload{
		Project:           report.Project,
		DryRun:            report.DryRun,
		GeneratedAt:       report.GeneratedAt.Format(time.RFC3339),
		ElapsedSeconds:    int64(report.Elapsed.Seconds()),
		Repositories:      report.Stats.RepositoriesProcessed,
		ArtifactsChecked:  report.Stats.ArtifactsChecked,
		ArtifactsToDelete: report.Stats.ArtifactsToDelete,
		ArtifactsDeleted:  report.Stats.ArtifactsDeleted,
		Errors:            report.Stats.Errors,
		TotalSize:         humanize.IBytes(uint64(report.TotalSizeBytes)),
		FreedSize:         humanize.IBytes(uint64(report.FreedSizeBytes)),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode notification payload").
			WithCause(err)
	}

	retries := a.Retries
	if retries < 1 {
		retries = defaultWebhookRetries
	}
	retryDelay := a.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultWebhookRetryDelay
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryDelay
	b.Multiplier = 2.0
	b.RandomizationFactor = 0

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, a.deliver(ctx, body)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(retries)),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		return err
	}
	log.Info().Str("url", a.URL).Msg("run summary delivered")
	return nil
}

// deliver performs one POST. Client errors are permanent; transport
// failures and server errors retry.
func (a *WebhookNotifierAdapter) deliver(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create notification request").
			WithCause(err))
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("notification delivery failed").
			WithCause(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	respBody, _ := io.ReadAll(resp.Body)
	cause := shared.HTTPStatusErrorWithBody(resp.StatusCode, a.URL, strings.TrimSpace(string(respBody)))
	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("notification delivery failed").
			WithCause(cause)
	}
	return backoff.Permanent(errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("notification delivery rejected").
		WithCause(cause))
}

var _ ports.NotifierPort = (*WebhookNotifierAdapter)(nil)
