package models

import (
	"testing"
	"time"
)

func TestTransactionMatches(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		txn  Transaction
		want bool
	}{
		{"in period matching category", Transaction{CategoryID: "dining", Date: start.AddDate(0, 0, 10)}, true},
		{"on period start", Transaction{CategoryID: "dining", Date: start}, true},
		{"on period end", Transaction{CategoryID: "dining", Date: end}, true},
		{"before period", Transaction{CategoryID: "dining", Date: start.AddDate(0, 0, -1)}, false},
		{"after period", Transaction{CategoryID: "dining", Date: end.AddDate(0, 0, 1)}, false},
		{"wrong category", Transaction{CategoryID: "transport", Date: start.AddDate(0, 0, 10)}, false},
		{"pending excluded", Transaction{CategoryID: "dining", Date: start.AddDate(0, 0, 10), Pending: true}, false},
		{"deleted excluded", Transaction{CategoryID: "dining", Date: start.AddDate(0, 0, 10), Deleted: true}, false},
	}
	for _, tt := range tests {
		got := tt.txn.Matches("dining", start, end)
		if got != tt.want {
			t.Errorf("%s: Matches = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestTransactionValueEqual(t *testing.T) {
	base := Transaction{
		Amount:      -4500,
		Date:        time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		CategoryID:  "dining",
		Description: "lunch",
	}

	same := base
	same.Version = 7 // sync metadata is ignored
	if !base.ValueEqual(&same) {
		t.Error("identical domain values with different versions should be equal")
	}

	edited := base
	edited.CategoryID = "shopping"
	if base.ValueEqual(&edited) {
		t.Error("category change should break value equality")
	}

	if base.ValueEqual(nil) {
		t.Error("nil should never be equal")
	}
}
