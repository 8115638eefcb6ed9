// Package sync orchestrates the per-account pull, reconcile, recalculate,
// notify cycle. Each linked account gets one worker goroutine, so at most
// one sync per account is ever in flight and triggers coalesce into a
// single pending follow-up.
package sync

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	gosync "sync"
	"time"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/interfaces"
	"github.com/mbaxter/finsync/internal/models"
)

// Coordinator implements interfaces.SyncService.
type Coordinator struct {
	storage    interfaces.StorageManager
	provider   interfaces.ProviderClient
	reconciler interfaces.Reconciler
	recalc     interfaces.Recalculator
	notifier   interfaces.Notifier
	logger     *common.Logger
	config     *common.Config

	mu      gosync.Mutex
	workers map[string]*worker
	ctx     context.Context
	cancel  context.CancelFunc
	wg      gosync.WaitGroup
	started bool
}

// worker serializes one account's sync cycles. The trigger channel has
// capacity one: a trigger arriving mid-sync is buffered as the pending
// follow-up, and further triggers coalesce into it.
type worker struct {
	accountID string
	trigger   chan struct{}
	stop      chan struct{}

	mu        gosync.Mutex
	status    models.SyncStatus
	runCancel context.CancelFunc
	lastFull  time.Time
}

// NewCoordinator creates a sync coordinator.
func NewCoordinator(
	storage interfaces.StorageManager,
	provider interfaces.ProviderClient,
	reconciler interfaces.Reconciler,
	recalc interfaces.Recalculator,
	notifier interfaces.Notifier,
	logger *common.Logger,
	config *common.Config,
) *Coordinator {
	return &Coordinator{
		storage:    storage,
		provider:   provider,
		reconciler: reconciler,
		recalc:     recalc,
		notifier:   notifier,
		logger:     logger,
		config:     config,
		workers:    make(map[string]*worker),
	}
}

// safeGo launches a goroutine with panic recovery and logging.
func (c *Coordinator) safeGo(name string, fn func()) {
	c.wg.Add(1)
	fmt.Println("DEBUG: safeGo launching", name)
	go func() {
		fmt.Println("DEBUG: safeGo goroutine running", name)
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				fmt.Printf("DEBUG PANIC in %s: %v\n%s\n", name, r, debug.Stack())
				c.logger.Error().
					Str("goroutine", name).
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", string(debug.Stack())).
					Msg("Recovered from panic in sync goroutine")
			}
		}()
		fn()
	}()
}

// Start prepares the coordinator for triggers. Safe to call multiple times.
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	fmt.Printf("DEBUG: Start ctx=%p\n", c.ctx)
	c.started = true
	c.logger.Info().Msg("Sync coordinator started")
}

// Stop cancels all in-flight syncs and waits for the workers to exit.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	fmt.Printf("DEBUG: Stop cancelling ctx=%p\n%s\n", c.ctx, debug.Stack())
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()

	c.mu.Lock()
	c.workers = make(map[string]*worker)
	c.mu.Unlock()
	c.logger.Info().Msg("Sync coordinator stopped")
}

// ensureWorker returns the account's worker, spawning its goroutine on first
// use.
func (c *Coordinator) ensureWorker(accountID string) (*worker, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil, fmt.Errorf("sync coordinator is not running")
	}
	if w, ok := c.workers[accountID]; ok {
		return w, nil
	}

	w := &worker{
		accountID: accountID,
		trigger:   make(chan struct{}, 1),
		stop:      make(chan struct{}),
		status: models.SyncStatus{
			AccountID: accountID,
			State:     models.SyncStateIdle,
		},
	}
	c.workers[accountID] = w

	c.safeGo("sync-"+accountID, func() { c.runWorker(w) })
	return w, nil
}

// Trigger requests a sync for the account. A trigger while a sync is in
// flight queues at most one follow-up; repeat triggers are no-ops.
func (c *Coordinator) Trigger(ctx context.Context, accountID string) (*models.SyncStatus, error) {
	account, err := c.storage.AccountStore().Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.IsActive {
		return nil, fmt.Errorf("account '%s' is not linked", accountID)
	}

	w, err := c.ensureWorker(accountID)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	if w.status.Paused {
		status := w.status
		w.mu.Unlock()
		return &status, nil
	}
	busy := w.status.State != models.SyncStateIdle && w.status.State != models.SyncStateFailed
	w.mu.Unlock()

	fmt.Println("DEBUG: Trigger queueing", accountID, "busy:", busy)
	select {
	case w.trigger <- struct{}{}:
		fmt.Println("DEBUG: Trigger queued", accountID)
		if busy {
			w.mu.Lock()
			w.status.Pending = true
			w.mu.Unlock()
		}
	default:
		// Follow-up already queued; coalesce.
	}

	w.mu.Lock()
	status := w.status
	w.mu.Unlock()
	return &status, nil
}

var statusDumpOnce gosync.Once

// Status returns the account's current sync state.
func (c *Coordinator) Status(ctx context.Context, accountID string) (*models.SyncStatus, error) {
	statusDumpOnce.Do(func() {
		buf := make([]byte, 1<<20)
		n := runtime.Stack(buf, true)
		fmt.Printf("DEBUG GOROUTINE DUMP:\n%s\nEND DUMP\n", buf[:n])
	})
	if _, err := c.storage.AccountStore().Get(ctx, accountID); err != nil {
		return nil, err
	}

	c.mu.Lock()
	w, ok := c.workers[accountID]
	c.mu.Unlock()
	if !ok {
		return &models.SyncStatus{AccountID: accountID, State: models.SyncStateIdle}, nil
	}

	w.mu.Lock()
	status := w.status
	w.mu.Unlock()
	return &status, nil
}

// Resume clears a relink pause after the user re-authenticates and queues a
// fresh sync.
func (c *Coordinator) Resume(ctx context.Context, accountID string) error {
	c.mu.Lock()
	w, ok := c.workers[accountID]
	c.mu.Unlock()
	if !ok {
		return nil
	}

	w.mu.Lock()
	w.status.Paused = false
	w.status.LastError = ""
	w.status.Attempts = 0
	w.mu.Unlock()

	c.logger.Info().Str("account", accountID).Msg("Sync resumed after relink")
	_, err := c.Trigger(ctx, accountID)
	return err
}

// Unlink cancels any in-flight sync, stops the worker, soft-deletes the
// account, and discards its cursor. Local data is retained.
func (c *Coordinator) Unlink(ctx context.Context, accountID string) error {
	c.mu.Lock()
	w, ok := c.workers[accountID]
	if ok {
		delete(c.workers, accountID)
	}
	c.mu.Unlock()

	if ok {
		close(w.stop)
		w.mu.Lock()
		if w.runCancel != nil {
			w.runCancel()
		}
		w.mu.Unlock()
	}

	account, err := c.storage.AccountStore().Get(ctx, accountID)
	if err != nil {
		return err
	}
	account.IsActive = false
	account.Version++
	if err := c.storage.AccountStore().Save(ctx, account); err != nil {
		return err
	}
	if err := c.storage.CursorStore().Delete(ctx, accountID); err != nil {
		return err
	}

	c.notifier.Publish(models.ChangeEvent{
		Type:       models.EventTypeEntityChanged,
		EntityType: models.EntityTypeAccount,
		EntityID:   accountID,
		AccountID:  accountID,
		Version:    account.Version,
		ChangeKind: models.ChangeKindDeleted,
		Timestamp:  time.Now(),
	})

	c.logger.Info().Str("account", accountID).Msg("Account unlinked")
	return nil
}

// runWorker is the per-account loop: it waits for triggers and runs one
// sync cycle at a time.
func (c *Coordinator) runWorker(w *worker) {
	fmt.Println("DEBUG: runWorker started", w.accountID, "ctxErr:", c.ctx.Err())
	for {
		select {
		case <-c.ctx.Done():
			fmt.Println("DEBUG: runWorker ctx done", w.accountID)
			return
		case <-w.stop:
			return
		case <-w.trigger:
			fmt.Println("DEBUG: worker got trigger", w.accountID)
			w.mu.Lock()
			w.status.Pending = false
			paused := w.status.Paused
			w.mu.Unlock()
			if paused {
				continue
			}
			c.runSync(w)
			fmt.Println("DEBUG: runSync returned", w.accountID)
		}
	}
}

// runSync executes one sync cycle with exponential backoff on transient
// provider failures.
func (c *Coordinator) runSync(w *worker) {
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	w.mu.Lock()
	w.runCancel = cancel
	w.mu.Unlock()

	backoff := c.config.Sync.GetInitialBackoff()
	maxBackoff := c.config.Sync.GetMaxBackoff()
	maxAttempts := c.config.Sync.GetMaxAttempts()

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		w.mu.Lock()
		w.status.Attempts = attempt
		w.mu.Unlock()

		err := c.runCycle(runCtx, w)
		if err == nil {
			w.mu.Lock()
			w.status.State = models.SyncStateIdle
			w.status.LastError = ""
			w.status.Attempts = 0
			w.status.Stale = false
			w.status.LastSyncedAt = time.Now()
			w.mu.Unlock()
			c.publishSyncState(w.accountID, models.SyncStateIdle)
			return
		}

		if runCtx.Err() != nil {
			// Unlink or shutdown cancelled the run; leave no failure state.
			w.mu.Lock()
			w.status.State = models.SyncStateIdle
			w.mu.Unlock()
			return
		}

		if models.IsRelinkRequired(err) {
			c.logger.Warn().Str("account", w.accountID).Msg("Provider requires account relink, pausing sync")
			w.mu.Lock()
			w.status.State = models.SyncStateIdle
			w.status.Paused = true
			w.status.Stale = true
			w.status.LastError = err.Error()
			w.mu.Unlock()
			c.publishSyncState(w.accountID, models.SyncStateFailed)
			return
		}

		w.mu.Lock()
		w.status.State = models.SyncStateFailed
		w.status.Stale = true
		w.status.LastError = err.Error()
		w.mu.Unlock()
		c.publishSyncState(w.accountID, models.SyncStateFailed)

		if !models.IsProviderUnavailable(err) {
			c.logger.Error().Str("account", w.accountID).Err(err).Msg("Sync failed")
			w.mu.Lock()
			w.status.State = models.SyncStateIdle
			w.mu.Unlock()
			return
		}

		c.logger.Warn().
			Str("account", w.accountID).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Err(err).
			Msg("Provider unavailable, backing off")

		if attempt == maxAttempts {
			break
		}
		select {
		case <-runCtx.Done():
			w.mu.Lock()
			w.status.State = models.SyncStateIdle
			w.mu.Unlock()
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	c.logger.Error().
		Str("account", w.accountID).
		Int("attempts", maxAttempts).
		Msg("Sync abandoned after repeated provider failures")
	w.mu.Lock()
	w.status.State = models.SyncStateIdle
	w.mu.Unlock()
	c.publishSyncState(w.accountID, models.SyncStateIdle)
}

// runCycle executes pull, reconcile, recalculate, notify once. The cursor is
// persisted only after the reconcile round has committed, so an interrupted
// cycle re-pulls the same window and converges through reconciliation.
func (c *Coordinator) runCycle(ctx context.Context, w *worker) error {
	account, err := c.storage.AccountStore().Get(ctx, w.accountID)
	if err != nil {
		return err
	}

	c.setState(w, models.SyncStatePulling)

	startCursor, err := c.storage.CursorStore().Get(ctx, w.accountID)
	if err != nil {
		return err
	}

	// Some providers hand back a resume cursor on every page, so incremental
	// pulls alone would never produce the complete listing delete detection
	// needs. Discard the cursor periodically to force one.
	w.mu.Lock()
	lastFull := w.lastFull
	w.mu.Unlock()
	if startCursor != "" && time.Since(lastFull) >= c.config.Sync.GetFullSyncInterval() {
		startCursor = ""
	}

	combined := &models.Snapshot{}
	cursor := startCursor
	for {
		pageCtx, cancelPage := context.WithTimeout(ctx, c.config.Provider.GetPageTimeout())
		snapshot, nextCursor, more, err := c.provider.Pull(pageCtx, account.ProviderID, cursor)
		cancelPage()
		if err != nil {
			return err
		}

		combined.Accounts = append(combined.Accounts, snapshot.Accounts...)
		combined.Transactions = append(combined.Transactions, snapshot.Transactions...)
		if snapshot.Baseline.After(combined.Baseline) {
			combined.Baseline = snapshot.Baseline
		}

		cursor = nextCursor
		if !more {
			break
		}
	}

	c.setState(w, models.SyncStateReconciling)

	// Delete detection needs a complete listing, which only a from-scratch
	// pull provides.
	full := startCursor == ""
	changeSet, err := c.reconciler.ReconcileSnapshot(ctx, w.accountID, combined, full)
	if err != nil {
		return err
	}

	if err := c.storage.CursorStore().Set(ctx, w.accountID, cursor); err != nil {
		return err
	}
	if full {
		w.mu.Lock()
		w.lastFull = time.Now()
		w.mu.Unlock()
	}

	c.setState(w, models.SyncStateRecalculating)

	results, err := c.recalc.Recalculate(ctx, changeSet)
	if err != nil {
		return err
	}

	c.publishChanges(changeSet, results)

	c.logger.Info().
		Str("account", w.accountID).
		Int("changes", len(changeSet.Changes)).
		Int("aggregates", len(results)).
		Bool("full", full).
		Msg("Sync cycle completed")
	return nil
}

func (c *Coordinator) setState(w *worker, state string) {
	w.mu.Lock()
	w.status.State = state
	w.mu.Unlock()
	c.publishSyncState(w.accountID, state)
}

func (c *Coordinator) publishSyncState(accountID, state string) {
	c.notifier.Publish(models.ChangeEvent{
		Type:      models.EventTypeSyncState,
		AccountID: accountID,
		SyncState: state,
		Timestamp: time.Now(),
	})
}

// publishChanges emits one event per accepted entity change, in change-set
// order, followed by events for the recomputed aggregates.
func (c *Coordinator) publishChanges(changeSet *models.ChangeSet, results []models.AggregateResult) {
	now := time.Now()
	for _, change := range changeSet.Changes {
		c.notifier.Publish(models.ChangeEvent{
			Type:       models.EventTypeEntityChanged,
			EntityType: change.EntityType,
			EntityID:   change.EntityID,
			AccountID:  change.AccountID,
			Version:    change.Version,
			ChangeKind: change.Kind,
			Timestamp:  now,
		})
	}
	for _, result := range results {
		event := models.ChangeEvent{
			Type:       models.EventTypeEntityChanged,
			AccountID:  changeSet.AccountID,
			ChangeKind: models.ChangeKindUpdated,
			Timestamp:  now,
		}
		switch result.Kind {
		case "budget_category":
			event.EntityType = models.EntityTypeBudget
			event.EntityID = result.BudgetID
		case "goal":
			event.EntityType = models.EntityTypeGoal
			event.EntityID = result.GoalID
		default:
			continue
		}
		c.notifier.Publish(event)
	}
}

// Ensure Coordinator implements SyncService
var _ interfaces.SyncService = (*Coordinator)(nil)
