package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/mbaxter/finsync/internal/common"
	"github.com/mbaxter/finsync/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

type cursorStorage struct {
	store  *Store
	logger *common.Logger
}

// NewCursorStorage creates a new CursorStore backed by BadgerHold.
func NewCursorStorage(store *Store, logger *common.Logger) *cursorStorage {
	return &cursorStorage{store: store, logger: logger}
}

func (s *cursorStorage) Get(_ context.Context, accountID string) (string, error) {
	var cursor models.SyncCursor
	err := s.store.db.Get(accountID, &cursor)
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return "", nil
		}
		return "", fmt.Errorf("failed to get cursor for account '%s': %w", accountID, err)
	}
	return cursor.Cursor, nil
}

func (s *cursorStorage) Set(_ context.Context, accountID, value string) error {
	cursor := models.SyncCursor{
		AccountID: accountID,
		Cursor:    value,
		UpdatedAt: time.Now(),
	}
	if err := s.store.db.Upsert(accountID, &cursor); err != nil {
		return fmt.Errorf("failed to set cursor for account '%s': %w", accountID, err)
	}
	return nil
}

func (s *cursorStorage) Delete(_ context.Context, accountID string) error {
	err := s.store.db.Delete(accountID, models.SyncCursor{})
	if err != nil && err != badgerhold.ErrNotFound {
		return fmt.Errorf("failed to delete cursor for account '%s': %w", accountID, err)
	}
	return nil
}
