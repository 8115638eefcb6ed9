package interfaces

import (
	"context"

	"github.com/mbaxter/finsync/internal/models"
)

// ProviderClient pulls account and transaction snapshots from the external
// aggregation provider. The client is stateless between calls except for the
// opaque cursor, which the caller persists and resumes from on restart.
//
// Pull returns one snapshot page, the continuation cursor, and whether more
// pages remain. It fails with *models.ProviderUnavailableError for transient
// faults and *models.AccountRelinkRequiredError for permanent ones.
type ProviderClient interface {
	Pull(ctx context.Context, accountID, cursor string) (*models.Snapshot, string, bool, error)
}
