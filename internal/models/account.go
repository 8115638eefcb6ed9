// Package models defines the finsync domain entities and pure computation on them.
package models

import "time"

// Money is a signed amount in minor currency units (cents).
// Integer arithmetic avoids floating-point drift in aggregates.
type Money int64

// Account types
const (
	AccountTypeChecking   = "checking"
	AccountTypeSavings    = "savings"
	AccountTypeCredit     = "credit"
	AccountTypeInvestment = "investment"
)

// Provenance values for records
const (
	ProvenanceRemote = "remote"
	ProvenanceManual = "manual"
)

// SyncMeta is the per-entity sync metadata carried by every stored record.
type SyncMeta struct {
	Version       int64     `json:"version"` // monotonic, +1 per accepted write
	Dirty         bool      `json:"dirty"`   // local edit not yet confirmed by a reconcile round
	LastSyncedAt  time.Time `json:"last_synced_at"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
	ConflictCount int       `json:"conflict_count"`
	LocalEditedAt time.Time `json:"local_edited_at,omitempty"` // when the pending local edit was made
}

// Account represents a linked financial account.
type Account struct {
	ID            string `json:"id" badgerhold:"key"`
	ProviderID    string `json:"provider_id" badgerhold:"index"`
	InstitutionID string `json:"institution_id"`
	Name          string `json:"name"`
	Type          string `json:"type"` // checking, savings, credit, investment
	Balance       Money  `json:"balance"`
	Currency      string `json:"currency"`
	IsActive      bool   `json:"is_active"` // false after unlink (soft delete)

	SyncMeta

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NetWorthSign returns +1 for asset accounts and -1 for liability accounts.
func (a *Account) NetWorthSign() Money {
	if a.Type == AccountTypeCredit {
		return -1
	}
	return 1
}

// NetWorth is the derived aggregate over all active accounts.
type NetWorth struct {
	Total     Money            `json:"total"`
	ByAccount map[string]Money `json:"by_account"` // signed contribution per account ID
	AsOf      time.Time        `json:"as_of"`
}
