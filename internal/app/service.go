package app

import (
	"io"
	"os"
	"time"

	"harbor-hoover/internal/adapters"
	"harbor-hoover/internal/config"
	"harbor-hoover/internal/ports"
)

// Service wires the cleanup pipeline to its collaborators. Tests swap the
// ports for fakes; production wiring comes from NewService.
type Service struct {
	Config   config.Config
	Registry ports.RegistryPort
	Report   ports.ReportPort
	Notifier ports.NotifierPort
	Clock    func() time.Time
	Out      io.Writer
}

func NewService(cfg config.Config) (Service, error) {
	registry, err := adapters.NewHarborRegistryAdapter(adapters.HarborConfig{
		BaseURL:      cfg.Harbor.URL,
		Username:     cfg.Harbor.Username,
		Password:     cfg.Harbor.Password,
		Project:      cfg.Harbor.Project,
		CACertFile:   cfg.Harbor.CACertFile,
		PageSize:     cfg.PageSize,
		TimeoutSec:   cfg.HTTP.TimeoutSec,
		Retries:      cfg.HTTP.Retries,
		RetryDelayMs: cfg.HTTP.RetryDelayMs,
	})
	if err != nil {
		return Service{}, err
	}
	return Service{
		Config:   cfg,
		Registry: registry,
		Report:   adapters.NewHTMLReportAdapter(cfg.Report.File),
		Notifier: adapters.NewWebhookNotifierAdapter(cfg.Notify.WebhookURL, 0),
		Clock:    time.Now,
		Out:      os.Stdout,
	}, nil
}

func timeNow(clock func() time.Time) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock().UTC()
}
