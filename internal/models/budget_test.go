package models

import "testing"

func TestBudgetCategoryStatus(t *testing.T) {
	tests := []struct {
		name      string
		spent     Money
		allocated Money
		want      string
	}{
		{"well under", 2000, 10000, BudgetStatusOK},
		{"just under threshold", 7999, 10000, BudgetStatusOK},
		{"at threshold", 8000, 10000, BudgetStatusApproaching},
		{"spec example 85 of 100", 8500, 10000, BudgetStatusApproaching},
		{"exactly allocated", 10000, 10000, BudgetStatusApproaching},
		{"spec example 105 of 100", 10500, 10000, BudgetStatusOverBudget},
		{"zero allocation no spend", 0, 0, BudgetStatusOK},
		{"zero allocation with spend", 100, 0, BudgetStatusOverBudget},
		{"negative spend", -500, 10000, BudgetStatusOK},
	}
	for _, tt := range tests {
		got := BudgetCategoryStatus(tt.spent, tt.allocated)
		if got != tt.want {
			t.Errorf("%s: BudgetCategoryStatus(%d, %d) = %q, want %q",
				tt.name, tt.spent, tt.allocated, got, tt.want)
		}
	}
}

func TestBudgetCategoryLookup(t *testing.T) {
	b := Budget{
		Categories: []BudgetCategory{
			{CategoryID: "dining", Allocated: 10000},
			{CategoryID: "transport", Allocated: 5000},
		},
	}

	if c := b.Category("transport"); c == nil || c.Allocated != 5000 {
		t.Errorf("Category(transport) = %+v, want allocated 5000", c)
	}
	if c := b.Category("missing"); c != nil {
		t.Errorf("Category(missing) = %+v, want nil", c)
	}

	// Mutations through the returned pointer must reach the budget.
	b.Category("dining").Spent = 4200
	if b.Categories[0].Spent != 4200 {
		t.Errorf("Category must return a pointer into the budget, got spent %d", b.Categories[0].Spent)
	}
}
