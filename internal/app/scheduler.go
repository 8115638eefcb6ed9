package app

import (
	"context"
	"time"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/interfaces"
)

// startSyncScheduler triggers a sync for every linked account on a fixed
// interval. Triggers on accounts already syncing coalesce inside the
// coordinator, so overlapping ticks are harmless.
func startSyncScheduler(ctx context.Context, syncService interfaces.SyncService, storage interfaces.StorageManager, logger *common.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Sync scheduler: stopped")
			return
		case <-ticker.C:
			triggerAll(ctx, syncService, storage, logger)
		}
	}
}

func triggerAll(ctx context.Context, syncService interfaces.SyncService, storage interfaces.StorageManager, logger *common.Logger) {
	start := time.Now()

	accounts, err := storage.AccountStore().ListActive(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Sync scheduler: failed to list accounts")
		return
	}
	if len(accounts) == 0 {
		return
	}

	triggered := 0
	for _, account := range accounts {
		if _, err := syncService.Trigger(ctx, account.ID); err != nil {
			logger.Warn().Err(err).Str("account", account.ID).Msg("Sync scheduler: trigger failed")
			continue
		}
		triggered++
	}

	logger.Info().
		Int("accounts", triggered).
		Dur("elapsed", time.Since(start)).
		Msg("Sync scheduler: tick complete")
}
