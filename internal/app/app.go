// Package app wires configuration, storage, clients, and services into the
// running application.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mbaxter/finsync/internal/clients/provider"
	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/interfaces"
	"github.com/mbaxter/finsync/internal/models"
	"github.com/mbaxter/finsync/internal/services/notify"
	"github.com/mbaxter/finsync/internal/services/recalc"
	"github.com/mbaxter/finsync/internal/services/reconcile"
	syncsvc "github.com/mbaxter/finsync/internal/services/sync"
	"github.com/mbaxter/finsync/internal/storage"
)

// App holds all initialized services and clients. It is the shared core used
// by cmd/finsync-server and the HTTP layer.
type App struct {
	Config      *common.Config
	Logger      *common.Logger
	Storage     interfaces.StorageManager
	Provider    interfaces.ProviderClient
	Reconciler  interfaces.Reconciler
	Recalc      *recalc.Service
	Notifier    *notify.Hub
	Sync        interfaces.SyncService
	StartupTime time.Time

	schedulerCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, the provider client, and all services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	binDir := getBinaryDir()

	// Load configuration - check provided path, FINSYNC_CONFIG, then binary dir, then fallback
	if configPath == "" {
		configPath = os.Getenv("FINSYNC_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "finsync.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/finsync.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage path to binary directory
	if config.Storage.Path != "" && !filepath.IsAbs(config.Storage.Path) {
		config.Storage.Path = filepath.Join(binDir, config.Storage.Path)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if config.Provider.APIKey == "" {
		logger.Warn().Msg("Provider API key not configured - account sync will be unavailable")
	}

	providerClient := provider.NewClient(config.Provider.BaseURL, config.Provider.APIKey,
		provider.WithLogger(logger),
		provider.WithRateLimit(config.Provider.RateLimit),
		provider.WithTimeout(config.Provider.GetPageTimeout()),
	)

	notifier := notify.NewHub(logger)
	reconciler := reconcile.NewService(storageManager, logger)
	recalculator := recalc.NewService(storageManager, logger)
	syncService := syncsvc.NewCoordinator(storageManager, providerClient, reconciler, recalculator, notifier, logger, config)

	a := &App{
		Config:      config,
		Logger:      logger,
		Storage:     storageManager,
		Provider:    providerClient,
		Reconciler:  reconciler,
		Recalc:      recalculator,
		Notifier:    notifier,
		Sync:        syncService,
		StartupTime: startupStart,
	}

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Start launches the notifier hub, the sync coordinator, and the scheduler.
func (a *App) Start() {
	go a.Notifier.WS().Run()
	a.Sync.Start()

	schedulerCtx, cancel := context.WithCancel(context.Background())
	a.schedulerCancel = cancel
	go startSyncScheduler(schedulerCtx, a.Sync, a.Storage, a.Logger, a.Config.Sync.GetInterval())
}

// Close releases all resources held by the App.
// Shutdown order: cancel scheduler, stop sync workers, stop notifier, close storage.
func (a *App) Close() {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
		a.schedulerCancel = nil
	}
	if a.Sync != nil {
		a.Sync.Stop()
	}
	if a.Notifier != nil {
		a.Notifier.Stop()
	}
	if a.Storage != nil {
		a.Storage.Close()
		a.Storage = nil
	}
}

// ApplyLocal runs the recalculation and notification steps for a change-set
// produced by a local write (edit, manual transaction, contribution). Local
// writes share the post-reconcile path with pulled data.
func (a *App) ApplyLocal(ctx context.Context, changeSet *models.ChangeSet) ([]models.AggregateResult, error) {
	results, err := a.Recalc.Recalculate(ctx, changeSet)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	for _, change := range changeSet.Changes {
		a.Notifier.Publish(models.ChangeEvent{
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
		a.Notifier.Publish(event)
	}

	return results, nil
}
