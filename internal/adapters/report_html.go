package adapters

import (
	"html/template"
	"os"
	"path/filepath"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"

	"harbor-hoover/internal/ports"
	"harbor-hoover/internal/types"
)

// HTMLReportAdapter renders the run report to a standalone HTML file with
// a summary block and a per-artifact table.
type HTMLReportAdapter struct {
	Path string
}

func NewHTMLReportAdapter(path string) HTMLReportAdapter {
	return HTMLReportAdapter{Path: path}
}

type reportRow struct {
	Repository string
	Digest     string
	PullTime   string
	Size       string
	IsLatest   bool
}

type reportData struct {
	Mode          string
	GeneratedAt   string
	Stats         types.RunStats
	Rows          []reportRow
	TotalSize     string
	FreedSize     string
	ShowFreedSize bool
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<title>Harbor Cleanup Report</title>
<style>
body { font-family: Arial; margin: 20px; background: #f9f9f9; color: #333; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ddd; padding: 8px; }
th { background: #2980b9; color: white; }
tr:nth-child(even) { background: #f2f2f2; }
tfoot tr { background-color: #ecf0f1; font-weight: bold; }
.stats-block { background: #d9eefa; padding: 15px; margin-bottom: 20px; border-radius: 8px; color: #1b4f72; }
</style>
</head>
<body>
<h1>Harbor Cleanup Report - {{.Mode}}</h1>
<div class="stats-block">
<h2>Summary Statistics</h2>
<p>Generated: {{.GeneratedAt}}</p>
<p>Repositories Processed: {{.Stats.RepositoriesProcessed}}</p>
<p>Artifacts Checked: {{.Stats.ArtifactsChecked}}</p>
<p>Artifacts To Delete: {{.Stats.ArtifactsToDelete}}</p>
<p>Artifacts Deleted: {{.Stats.ArtifactsDeleted}}</p>
<p>Errors Encountered: {{.Stats.Errors}}</p>
<p>Total Size of Candidates: {{.TotalSize}}</p>
{{if .ShowFreedSize}}<p>Size Freed: {{.FreedSize}}</p>{{end}}
</div>
<table>
<thead>
<tr><th>Repository</th><th>Digest</th><th>Last Pull Time</th><th>Size</th><th>Is Latest</th></tr>
</thead>
<tbody>
{{range .Rows}}<tr><td>{{.Repository}}</td><td>{{.Digest}}</td><td>{{.PullTime}}</td><td>{{.Size}}</td><td>{{if .IsLatest}}yes{{end}}</td></tr>
{{end}}</tbody>
<tfoot>
<tr><td colspan="3">Total space</td><td colspan="2">{{.TotalSize}}</td></tr>
</tfoot>
</table>
</body>
</html>
`))

func (a HTMLReportAdapter) Write(report types.RunReport) error {
	if a.Path == "" {
		return nil
	}
	mode := "Actual Run"
	if report.DryRun {
		mode = "Dry Run"
	}
	rows := make([]reportRow, 0, len(report.Artifacts))
	for _, artifact := range report.Artifacts {
		rows = append(rows, reportRow{
			Repository: artifact.RepoName,
			Digest:     artifact.ShortDigest(),
			PullTime:   formatPullTime(artifact.LastPullTime),
			Size:       humanize.IBytes(uint64(artifact.SizeBytes)),
			IsLatest:   artifact.IsLatest,
		})
	}
	data := reportData{
		Mode:          mode,
		GeneratedAt:   report.GeneratedAt.Format(time.RFC3339),
		Stats:         report.Stats,
		Rows:          rows,
		TotalSize:     humanize.IBytes(uint64(report.TotalSizeBytes)),
		FreedSize:     humanize.IBytes(uint64(report.FreedSizeBytes)),
		ShowFreedSize: !report.DryRun,
	}

	if dir := filepath.Dir(a.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to create report directory").
				WithCause(err)
		}
	}
	file, err := os.Create(a.Path)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create report file").
			WithCause(err)
	}
	defer file.Close()
	if err := reportTemplate.Execute(file, data); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to render report").
			WithCause(err)
	}
	log.Info().Str("path", a.Path).Msg("report written")
	return nil
}

func formatPullTime(t time.Time) string {
	if t.IsZero() {
		return "Never pulled"
	}
	return t.Format("2006-01-02 15:04")
}

var _ ports.ReportPort = HTMLReportAdapter{}
