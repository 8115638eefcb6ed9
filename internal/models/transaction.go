package models

import "time"

// Transaction represents a single financial transaction.
// Amount and Date are immutable after the first successful reconcile;
// only Category, Description, and the pending→posted transition may change,
// and only through the reconciler's write path.
type Transaction struct {
	ID          string    `json:"id" badgerhold:"key"`
	ProviderID  string    `json:"provider_id" badgerhold:"index"` // empty for manual entries
	AccountID   string    `json:"account_id" badgerhold:"index"`
	Amount      Money     `json:"amount"` // signed, minor currency units
	Date        time.Time `json:"date"`
	CategoryID  string    `json:"category_id" badgerhold:"index"`
	Description string    `json:"description"`
	Pending     bool      `json:"pending"`
	Provenance  string    `json:"provenance"` // "remote" or "manual"
	Deleted     bool      `json:"deleted"`

	// MissCount tracks consecutive full pulls in which the provider did not
	// return this transaction. Two misses confirm a server-side delete; a
	// single miss guards against pagination flakiness.
	MissCount int `json:"miss_count"`

	SyncMeta

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InPeriod reports whether the transaction date falls within [start, end].
func (t *Transaction) InPeriod(start, end time.Time) bool {
	if t.Date.Before(start) {
		return false
	}
	return !t.Date.After(end)
}

// Matches reports whether the transaction counts toward a budget category
// over the given period. Deleted and pending transactions never count.
func (t *Transaction) Matches(categoryID string, start, end time.Time) bool {
	if t.Deleted || t.Pending {
		return false
	}
	if t.CategoryID != categoryID {
		return false
	}
	return t.InPeriod(start, end)
}

// ValueEqual reports whether two transactions carry the same domain values,
// ignoring sync metadata. Used to decide whether a merge produced a change.
func (t *Transaction) ValueEqual(other *Transaction) bool {
	if other == nil {
		return false
	}
	return t.Amount == other.Amount &&
		t.Date.Equal(other.Date) &&
		t.CategoryID == other.CategoryID &&
		t.Description == other.Description &&
		t.Pending == other.Pending &&
		t.Deleted == other.Deleted
}
