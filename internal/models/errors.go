package models

import (
	"errors"
	"fmt"
)

// ProviderUnavailableError is a transient provider failure (5xx, timeout).
// The sync coordinator retries it with backoff; local data is never marked
// dirty or lost on its account.
type ProviderUnavailableError struct {
	Cause error
}

func (e *ProviderUnavailableError) Error() string {
	return fmt.Sprintf("provider unavailable: %v", e.Cause)
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Cause
}

// AccountRelinkRequiredError is a permanent failure (401, invalid item).
// Sync for the account pauses until the user re-authenticates; other
// accounts are unaffected.
type AccountRelinkRequiredError struct {
	AccountID string
}

func (e *AccountRelinkRequiredError) Error() string {
	return fmt.Sprintf("account %s requires relink", e.AccountID)
}

// RecalculationInvariantError signals that a recomputed aggregate failed a
// sanity check (e.g. negative spent). The engine retries once from a full
// re-scan; a second failure marks the aggregate stale.
type RecalculationInvariantError struct {
	Aggregate string
	Reason    string
}

func (e *RecalculationInvariantError) Error() string {
	return fmt.Sprintf("recalculation invariant violated for %s: %s", e.Aggregate, e.Reason)
}

// IsProviderUnavailable reports whether err is a transient provider failure.
func IsProviderUnavailable(err error) bool {
	var pe *ProviderUnavailableError
	return errors.As(err, &pe)
}

// IsRelinkRequired reports whether err is a permanent relink failure.
func IsRelinkRequired(err error) bool {
	var re *AccountRelinkRequiredError
	return errors.As(err, &re)
}
