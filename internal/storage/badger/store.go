// Package badger provides BadgerHold-based storage implementations for the
// finsync local store.
package badger

import (
	"context"
	"fmt"
	"os"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/models"
)

// Store wraps a BadgerHold database connection.
type Store struct {
	db     *badgerhold.Store
	logger *common.Logger
}

// NewStore creates a new BadgerHold store at the given directory path.
func NewStore(logger *common.Logger, path string) (*Store, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create badger directory %s: %w", path, err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = path
	options.ValueDir = path
	options.Logger = nil // Disable default badger logger

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug().Str("path", path).Msg("BadgerHold store opened")

	return &Store{
		db:     db,
		logger: logger,
	}, nil
}

// DB returns the underlying badgerhold store.
func (s *Store) DB() *badgerhold.Store {
	return s.db
}

// SaveReconciled upserts the given accounts and transactions inside one
// badger transaction, so a failure mid-batch commits nothing.
func (s *Store) SaveReconciled(_ context.Context, accounts []*models.Account, txns []*models.Transaction) error {
	now := time.Now()
	err := s.db.Badger().Update(func(tx *badgerdb.Txn) error {
		for _, account := range accounts {
			account.UpdatedAt = now
			if account.CreatedAt.IsZero() {
				account.CreatedAt = now
			}
			if err := s.db.TxUpsert(tx, account.ID, account); err != nil {
				return fmt.Errorf("failed to save account '%s': %w", account.ID, err)
			}
		}
		for _, txn := range txns {
			txn.UpdatedAt = now
			if txn.CreatedAt.IsZero() {
				txn.CreatedAt = now
			}
			if err := s.db.TxUpsert(tx, txn.ID, txn); err != nil {
				return fmt.Errorf("failed to save transaction '%s': %w", txn.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug().
		Int("accounts", len(accounts)).
		Int("transactions", len(txns)).
		Msg("Reconcile batch committed")
	return nil
}

// Close closes the BadgerHold database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
