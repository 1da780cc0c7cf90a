package ports

import (
	"context"

	"harbor-hoover/internal/types"
)

// NotifierPort delivers the run summary to an external channel. Delivery
// failures are never fatal to the run.
type NotifierPort interface {
	Notify(ctx context.Context, report types.RunReport) error
}
