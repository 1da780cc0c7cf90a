package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"harbor-hoover/internal/app"
	"harbor-hoover/internal/config"
)

type cleanupOptions struct {
	Project        string
	DaysToKeep     int
	DryRun         bool
	MaxWorkers     int
	ReportFile     string
	WebhookURL     string
	ExclusionsFile string
	CACertFile     string
}

func newCleanupCommand() *cobra.Command {
	opts := cleanupOptions{}
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Scan a Harbor project and delete artifacts past the retention policy",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCleanup(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Project, "project", "", "Harbor project name")
	cmd.Flags().IntVar(&opts.DaysToKeep, "days-to-keep", 2, "Number of days to keep unpulled images")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report deletion candidates without deleting")
	cmd.Flags().IntVar(&opts.MaxWorkers, "max-workers", 10, "Maximum number of concurrent workers")
	cmd.Flags().StringVar(&opts.ReportFile, "report-file", "", "HTML report destination path")
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint for the run summary")
	cmd.Flags().StringVar(&opts.ExclusionsFile, "exclusions-file", "", "YAML file with extra repository and tag exclusions")
	cmd.Flags().StringVar(&opts.CACertFile, "ca-cert", "", "Certificate bundle for registry TLS trust")

	_ = viper.BindPFlag("harbor.project", cmd.Flags().Lookup("project"))
	_ = viper.BindPFlag("retention.days_to_keep", cmd.Flags().Lookup("days-to-keep"))
	_ = viper.BindPFlag("dry_run", cmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("max_workers", cmd.Flags().Lookup("max-workers"))
	_ = viper.BindPFlag("report.file", cmd.Flags().Lookup("report-file"))
	_ = viper.BindPFlag("notify.webhook_url", cmd.Flags().Lookup("webhook-url"))
	_ = viper.BindPFlag("harbor.ca_cert_file", cmd.Flags().Lookup("ca-cert"))

	return cmd
}

func runCleanup(ctx context.Context, cmd *cobra.Command, opts cleanupOptions) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	cfg.Harbor.Project = resolveString(cmd, opts.Project, "harbor.project", "project")
	cfg.Retention.DaysToKeep = resolveInt(cmd, opts.DaysToKeep, "retention.days_to_keep", "days-to-keep")
	cfg.DryRun = resolveBool(cmd, opts.DryRun, "dry_run", "dry-run")
	cfg.MaxWorkers = resolveInt(cmd, opts.MaxWorkers, "max_workers", "max-workers")
	cfg.Report.File = resolveString(cmd, opts.ReportFile, "report.file", "report-file")
	cfg.Notify.WebhookURL = resolveString(cmd, opts.WebhookURL, "notify.webhook_url", "webhook-url")
	cfg.Harbor.CACertFile = resolveString(cmd, opts.CACertFile, "harbor.ca_cert_file", "ca-cert")
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	if opts.ExclusionsFile != "" {
		if err := cfg.LoadExclusionsFile(opts.ExclusionsFile); err != nil {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	service, err := app.NewService(cfg)
	if err != nil {
		return err
	}
	result, err := service.Cleanup(ctx)
	if err != nil {
		return err
	}
	if result.DryRun {
		fmt.Printf("dry-run: candidates=%d\n", result.Candidates)
		return nil
	}
	fmt.Printf("deleted artifacts: %d/%d\n", result.Deleted, result.Candidates)
	return nil
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetInt(key)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	flag := cmd.Flags().Lookup(name)
	return flag != nil && flag.Changed
}
