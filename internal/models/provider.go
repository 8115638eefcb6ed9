package models

import "time"

// ProviderAccount is an account record as returned by the aggregation provider.
type ProviderAccount struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Balance  Money  `json:"balance"` // minor currency units
	Currency string `json:"currency"`
}

// ProviderTransaction is a transaction record as returned by the provider.
type ProviderTransaction struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Amount      Money     `json:"amount"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Pending     bool      `json:"pending"`
}

// Snapshot is one page of provider state for a linked account.
// Baseline is the provider-side as-of timestamp, used to detect stale local
// edits during conflict resolution.
type Snapshot struct {
	Accounts     []ProviderAccount     `json:"accounts"`
	Transactions []ProviderTransaction `json:"transactions"`
	Baseline     time.Time             `json:"baseline"`
}
