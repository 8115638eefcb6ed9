package reconcile

import (
	"time"

	"github.com/mbaxter/finsync/internal/models"
)

// mergeResult is the outcome of merging one incoming record against the
// stored state. The merge functions are pure: the same (existing, incoming)
// pair always yields the same merged record and conflict flag.
type mergeResult struct {
	merged   *models.Transaction
	changed  bool // merged state differs by value from the stored state
	conflict bool
}

// staleLocalEdit reports whether a pending local edit predates the record's
// last successful sync baseline. A stale edit was made against data a later
// sync already superseded, so the incoming value wins.
func staleLocalEdit(meta models.SyncMeta) bool {
	if !meta.Dirty || meta.LocalEditedAt.IsZero() {
		return false
	}
	return meta.LocalEditedAt.Before(meta.LastSyncedAt)
}

// mergeTransaction applies the field-group conflict policy to one stored
// transaction and the provider's incoming record.
//
// Provider-authoritative fields (amount, date, pending) always take the
// incoming value. A dirty flag that no user-field difference accounts for
// points at those fields; the local value is discarded and the conflict is
// reported.
//
// User-authoritative fields (category, description) keep a fresh local edit;
// a stale local edit loses to the incoming value and counts a conflict. The
// edit stays dirty while the provider keeps sending the pre-edit values,
// since a pull-only provider re-sends its own categorization on every round
// and must not be allowed to revert the edit once the record looks clean.
func mergeTransaction(existing *models.Transaction, incoming models.ProviderTransaction, baseline time.Time) mergeResult {
	merged := *existing

	conflict := false
	userFieldEdit := existing.CategoryID != incoming.Category || existing.Description != incoming.Description

	// Provider-authoritative group.
	if existing.Amount != incoming.Amount || !existing.Date.Equal(incoming.Date) {
		if existing.Dirty && !userFieldEdit {
			conflict = true
		}
		merged.Amount = incoming.Amount
		merged.Date = incoming.Date
	}
	merged.Pending = incoming.Pending

	// User-authoritative group.
	overrideHeld := false
	if existing.Dirty && !staleLocalEdit(existing.SyncMeta) {
		// Fresh local edit wins over the incoming values; merged already
		// carries them. The override is held until the provider agrees.
		overrideHeld = userFieldEdit
	} else {
		if existing.Dirty && userFieldEdit {
			conflict = true
		}
		merged.CategoryID = incoming.Category
		merged.Description = incoming.Description
	}

	// A reconciled record is no longer a delete candidate.
	merged.MissCount = 0
	merged.Deleted = false

	changed := !merged.ValueEqual(existing)
	if changed {
		merged.Version = existing.Version + 1
	}
	if conflict {
		merged.ConflictCount = existing.ConflictCount + 1
	}
	if overrideHeld {
		// Re-baseline the pending edit so it never goes stale against the
		// rounds it already survived.
		merged.Dirty = true
		if baseline.After(merged.LocalEditedAt) {
			merged.LocalEditedAt = baseline
		}
	} else {
		merged.Dirty = false
		merged.LocalEditedAt = time.Time{}
	}
	if baseline.After(merged.LastSyncedAt) {
		merged.LastSyncedAt = baseline
	}

	return mergeResult{merged: &merged, changed: changed, conflict: conflict}
}

// newRemoteTransaction builds a stored transaction from a provider record
// seen for the first time.
func newRemoteTransaction(id, accountID string, incoming models.ProviderTransaction, baseline time.Time) *models.Transaction {
	return &models.Transaction{
		ID:          id,
		ProviderID:  incoming.ID,
		AccountID:   accountID,
		Amount:      incoming.Amount,
		Date:        incoming.Date,
		CategoryID:  incoming.Category,
		Description: incoming.Description,
		Pending:     incoming.Pending,
		Provenance:  models.ProvenanceRemote,
		SyncMeta: models.SyncMeta{
			Version:      1,
			LastSyncedAt: baseline,
		},
	}
}

// mergeAccount applies the policy to an account record. Balance is
// provider-authoritative; the account name is user-editable. The anomaly and
// override rules mirror mergeTransaction.
func mergeAccount(existing *models.Account, incoming models.ProviderAccount, baseline time.Time) (*models.Account, bool, bool) {
	merged := *existing

	conflict := false
	nameEdit := incoming.Name != "" && existing.Name != incoming.Name

	if existing.Balance != incoming.Balance {
		if existing.Dirty && !nameEdit {
			conflict = true
		}
		merged.Balance = incoming.Balance
	}
	if incoming.Type != "" {
		merged.Type = incoming.Type
	}
	if incoming.Currency != "" {
		merged.Currency = incoming.Currency
	}

	overrideHeld := false
	if nameEdit {
		if existing.Dirty && !staleLocalEdit(existing.SyncMeta) {
			// Fresh local rename wins and stays pending until the provider
			// agrees.
			overrideHeld = true
		} else {
			if existing.Dirty {
				conflict = true
			}
			merged.Name = incoming.Name
		}
	}

	changed := merged.Balance != existing.Balance ||
		merged.Name != existing.Name ||
		merged.Type != existing.Type ||
		merged.Currency != existing.Currency

	if changed {
		merged.Version = existing.Version + 1
	}
	if conflict {
		merged.ConflictCount = existing.ConflictCount + 1
	}
	if overrideHeld {
		merged.Dirty = true
		if baseline.After(merged.LocalEditedAt) {
			merged.LocalEditedAt = baseline
		}
	} else {
		merged.Dirty = false
		merged.LocalEditedAt = time.Time{}
	}
	if baseline.After(merged.LastSyncedAt) {
		merged.LastSyncedAt = baseline
	}

	return &merged, changed, conflict
}
