package core

// Summary aggregates a user's non-deleted income and expense transactions.
// Transfers net to zero across the owner's accounts and are excluded.
type Summary struct {
	Income  Money `json:"income"`
	Expense Money `json:"expense"`
	Balance Money `json:"balance"`
}

// Report is a summary restricted to a date range, with the expense side
// broken down per category.
type Report struct {
	Summary
	Categories map[string]Money `json:"categories"`
}

// Page is one page of a user's non-deleted transactions plus the total
// count across all pages.
type Page struct {
	Items []Transaction `json:"items"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
	Total int64         `json:"total"`
}
