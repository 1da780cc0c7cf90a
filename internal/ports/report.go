package ports

import "harbor-hoover/internal/types"

// ReportPort renders the final run report. Formatting is the adapter's
// concern; core hands over the deduplicated candidates and the counters.
type ReportPort interface {
	Write(report types.RunReport) error
}
