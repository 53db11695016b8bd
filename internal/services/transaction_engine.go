package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"moneyledger/internal/amqp"
	"moneyledger/internal/core"
	"moneyledger/internal/storage"
)

// TransactionEngine owns the transaction lifecycle and the read-side
// aggregations. Every balance change goes through the ledger's adjustment
// primitive, and every multi-record mutation runs inside one storage
// transaction.
type TransactionEngine struct {
	store  *storage.SQLiteRepository
	ledger *AccountLedger
	now    func() time.Time
}

func NewTransactionEngine(store *storage.SQLiteRepository, ledger *AccountLedger) *TransactionEngine {
	return &TransactionEngine{
		store:  store,
		ledger: ledger,
		now:    time.Now,
	}
}

// CreateTransactionRequest carries the caller's input for a manual entry.
// Transfers are created exclusively through AccountLedger.Transfer.
type CreateTransactionRequest struct {
	Type        core.Type
	AmountCents int64
	Category    string
	Description string
	Division    string
	AccountID   string
}

// UpdateTransactionRequest carries the editable fields. For transfers only
// the amount is applied, to every member of the group.
type UpdateTransactionRequest struct {
	AmountCents int64
	Category    string
	Description string
}

// Create records an income or expense against one of the caller's accounts
// and applies its balance effect atomically with the insert.
func (e *TransactionEngine) Create(ctx context.Context, ownerID string, req CreateTransactionRequest) (core.Transaction, error) {
	if req.Type != core.TypeIncome && req.Type != core.TypeExpense {
		return core.Transaction{}, core.ErrInvalidInput
	}
	if req.AmountCents <= 0 {
		return core.Transaction{}, core.ErrInvalidAmount
	}
	if req.AccountID == "" {
		return core.Transaction{}, core.ErrInvalidInput
	}

	unlock := e.ledger.locks.lock(req.AccountID)
	defer unlock()

	tx := core.Transaction{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		AccountID:   req.AccountID,
		Type:        req.Type,
		Direction:   core.DirectionIn,
		Amount:      core.Money{Cents: req.AmountCents},
		Category:    req.Category,
		Description: req.Description,
		CreatedAt:   e.now(),
		Division:    req.Division,
	}

	err := e.store.InTx(ctx, func(q *storage.Queries) error {
		account, err := q.GetAccount(ctx, req.AccountID)
		if err != nil {
			return err
		}
		if account.OwnerID != ownerID {
			return core.ErrForbidden
		}
		if req.Type == core.TypeExpense && account.Balance.Cents < req.AmountCents {
			return core.ErrInsufficientFunds
		}
		if _, err := e.ledger.adjust(ctx, q, req.AccountID, tx.Effect()); err != nil {
			return err
		}
		return q.CreateTransaction(ctx, tx)
	})
	if err != nil {
		return core.Transaction{}, err
	}

	event := amqp.NewLedgerEvent(amqp.EventTransactionCreated, ownerID)
	event.TransactionID = tx.ID
	event.AccountID = tx.AccountID
	event.AmountCents = tx.Amount.Cents
	e.ledger.publish(ctx, event)

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", tx.ID,
		"type", string(tx.Type),
		"amount_cents", tx.Amount.Cents,
		"account_id", tx.AccountID)
	return tx, nil
}

// Update amends a transaction inside its 12-hour edit window. The balance is
// kept consistent by reversing the currently applied effect and applying the
// new one; for transfers the whole group is rewritten member by member.
func (e *TransactionEngine) Update(ctx context.Context, ownerID, txID string, req UpdateTransactionRequest) (core.Transaction, error) {
	if req.AmountCents <= 0 {
		return core.Transaction{}, core.ErrInvalidAmount
	}

	tx, err := e.store.Queries().GetTransaction(ctx, txID)
	if err != nil {
		return core.Transaction{}, err
	}
	if tx.OwnerID != ownerID {
		return core.Transaction{}, core.ErrForbidden
	}
	if tx.Deleted {
		// A deleted transaction has no applied effect to amend; it only
		// leaves the trash through restore.
		return core.Transaction{}, core.ErrTransactionNotFound
	}
	if !tx.Editable(e.now()) {
		return core.Transaction{}, core.ErrEditWindowExpired
	}

	if tx.Type == core.TypeTransfer && tx.GroupID != "" {
		if err := e.updateTransferGroup(ctx, tx, req.AmountCents); err != nil {
			return core.Transaction{}, err
		}
	} else {
		unlock := e.ledger.locks.lock(tx.AccountID)
		err = e.store.InTx(ctx, func(q *storage.Queries) error {
			current, err := q.GetTransaction(ctx, txID)
			if err != nil {
				return err
			}
			amended := current
			amended.Amount = core.Money{Cents: req.AmountCents}
			delta := amended.Effect() - current.Effect()
			if _, err := e.ledger.adjust(ctx, q, current.AccountID, delta); err != nil {
				return err
			}
			return q.UpdateTransaction(ctx, txID, req.AmountCents, req.Category, req.Description)
		})
		unlock()
		if err != nil {
			return core.Transaction{}, err
		}
	}

	updated, err := e.store.Queries().GetTransaction(ctx, txID)
	if err != nil {
		return core.Transaction{}, err
	}

	event := amqp.NewLedgerEvent(amqp.EventTransactionUpdated, ownerID)
	event.TransactionID = txID
	event.GroupID = tx.GroupID
	event.AmountCents = req.AmountCents
	e.ledger.publish(ctx, event)

	return updated, nil
}

// updateTransferGroup rewrites the amount on every member of a transfer
// group, adjusting each member's account by the difference between the new
// and old effect in that member's own direction. Groups of size other than
// two are processed member by member all the same.
func (e *TransactionEngine) updateTransferGroup(ctx context.Context, tx core.Transaction, amountCents int64) error {
	siblings, err := e.store.Queries().ListTransactionsByGroup(ctx, tx.GroupID)
	if err != nil {
		return err
	}

	accountIDs := make([]string, 0, len(siblings))
	for _, s := range siblings {
		accountIDs = append(accountIDs, s.AccountID)
	}
	unlock := e.ledger.locks.lock(accountIDs...)
	defer unlock()

	return e.store.InTx(ctx, func(q *storage.Queries) error {
		members, err := q.ListTransactionsByGroup(ctx, tx.GroupID)
		if err != nil {
			return err
		}
		for _, member := range members {
			if !member.Deleted {
				amended := member
				amended.Amount = core.Money{Cents: amountCents}
				delta := amended.Effect() - member.Effect()
				if _, err := e.ledger.adjust(ctx, q, member.AccountID, delta); err != nil {
					return err
				}
			}
			// Deleted members still get the new amount so a later restore
			// re-applies the edited figure on both sides.
			if err := q.UpdateTransactionAmount(ctx, member.ID, amountCents); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete soft-deletes a transaction and reverses its balance effect. For
// transfers every non-deleted group member is taken out together. Deleting
// an already deleted transaction is a no-op.
func (e *TransactionEngine) Delete(ctx context.Context, ownerID, txID string) error {
	tx, err := e.store.Queries().GetTransaction(ctx, txID)
	if err != nil {
		return err
	}
	if tx.OwnerID != ownerID {
		return core.ErrForbidden
	}
	if tx.Deleted {
		return nil
	}

	if err := e.setGroupDeleted(ctx, tx, true); err != nil {
		return err
	}

	event := amqp.NewLedgerEvent(amqp.EventTransactionDeleted, ownerID)
	event.TransactionID = txID
	event.GroupID = tx.GroupID
	e.ledger.publish(ctx, event)
	return nil
}

// Restore brings a soft-deleted transaction back and re-applies its effect.
// For transfers every currently deleted group member is restored together.
// Restoring a live transaction is a no-op.
func (e *TransactionEngine) Restore(ctx context.Context, ownerID, txID string) error {
	tx, err := e.store.Queries().GetTransaction(ctx, txID)
	if err != nil {
		return err
	}
	if tx.OwnerID != ownerID {
		return core.ErrForbidden
	}
	if !tx.Deleted {
		return nil
	}

	if err := e.setGroupDeleted(ctx, tx, false); err != nil {
		return err
	}

	event := amqp.NewLedgerEvent(amqp.EventTransactionRestored, ownerID)
	event.TransactionID = txID
	event.GroupID = tx.GroupID
	e.ledger.publish(ctx, event)
	return nil
}

// setGroupDeleted flips the deleted flag on tx (and, for transfers, on its
// whole group), reversing or re-applying each member's effect. Members
// already in the target state are left alone, which makes delete and
// restore idempotent.
func (e *TransactionEngine) setGroupDeleted(ctx context.Context, tx core.Transaction, deleted bool) error {
	members := []core.Transaction{tx}
	if tx.Type == core.TypeTransfer && tx.GroupID != "" {
		siblings, err := e.store.Queries().ListTransactionsByGroup(ctx, tx.GroupID)
		if err != nil {
			return err
		}
		members = siblings
	}

	accountIDs := make([]string, 0, len(members))
	for _, m := range members {
		accountIDs = append(accountIDs, m.AccountID)
	}
	unlock := e.ledger.locks.lock(accountIDs...)
	defer unlock()

	return e.store.InTx(ctx, func(q *storage.Queries) error {
		for _, member := range members {
			current, err := q.GetTransaction(ctx, member.ID)
			if err != nil {
				return err
			}
			if current.Deleted == deleted {
				continue
			}
			delta := current.Effect()
			if deleted {
				delta = -delta
			}
			if _, err := e.ledger.adjust(ctx, q, current.AccountID, delta); err != nil {
				return err
			}
			if err := q.SetTransactionDeleted(ctx, current.ID, deleted); err != nil {
				return err
			}
		}
		return nil
	})
}

// Transactions lists the caller's non-deleted transactions, newest first.
func (e *TransactionEngine) Transactions(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	return e.store.Queries().ListTransactionsByOwner(ctx, ownerID, false)
}

// Deleted lists the caller's trash.
func (e *TransactionEngine) Deleted(ctx context.Context, ownerID string) ([]core.Transaction, error) {
	return e.store.Queries().ListTransactionsByOwner(ctx, ownerID, true)
}

// ByDivision lists non-deleted transactions tagged with the given division.
func (e *TransactionEngine) ByDivision(ctx context.Context, ownerID, division string) ([]core.Transaction, error) {
	if division == "" {
		return nil, core.ErrInvalidInput
	}
	return e.store.Queries().ListTransactionsByDivision(ctx, ownerID, division)
}

// Between lists non-deleted transactions whose creation date falls within
// [from, to], both "2006-01-02" strings, inclusive of both endpoints.
func (e *TransactionEngine) Between(ctx context.Context, ownerID, from, to string) ([]core.Transaction, error) {
	start, end, err := parseDateRange(from, to)
	if err != nil {
		return nil, err
	}

	txs, err := e.store.Queries().ListTransactionsByOwner(ctx, ownerID, false)
	if err != nil {
		return nil, err
	}

	var inRange []core.Transaction
	for _, tx := range txs {
		if dateWithin(tx.CreatedAt, start, end) {
			inRange = append(inRange, tx)
		}
	}
	return inRange, nil
}

// Paged returns one page of non-deleted transactions with the total count.
// Pages are 1-based.
func (e *TransactionEngine) Paged(ctx context.Context, ownerID string, page, size int) (core.Page, error) {
	if page < 1 || size < 1 || size > 200 {
		return core.Page{}, core.ErrInvalidInput
	}

	items, err := e.store.Queries().ListTransactionsPaged(ctx, ownerID, size, (page-1)*size)
	if err != nil {
		return core.Page{}, err
	}
	total, err := e.store.Queries().CountTransactionsByOwner(ctx, ownerID)
	if err != nil {
		return core.Page{}, err
	}
	return core.Page{Items: items, Page: page, Size: size, Total: total}, nil
}

// Summary totals the caller's non-deleted income and expense transactions.
// Transfers net to zero across the owner's accounts and are excluded.
func (e *TransactionEngine) Summary(ctx context.Context, ownerID string) (core.Summary, error) {
	income, expense, err := e.store.Queries().SumAmountsByType(ctx, ownerID)
	if err != nil {
		return core.Summary{}, err
	}
	return summaryOf(income, expense), nil
}

// SummaryByPeriod totals income and expense since the start of the current
// week (Monday), month or year.
func (e *TransactionEngine) SummaryByPeriod(ctx context.Context, ownerID, period string) (core.Summary, error) {
	now := e.now()
	var start time.Time
	switch period {
	case "week":
		daysSinceMonday := (int(now.Weekday()) + 6) % 7
		start = time.Date(now.Year(), now.Month(), now.Day()-daysSinceMonday, 0, 0, 0, 0, now.Location())
	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	case "year":
		start = time.Date(now.Year(), 1, 1, 0, 0, 0, 0, now.Location())
	default:
		return core.Summary{}, core.ErrInvalidInput
	}

	txs, err := e.store.Queries().ListTransactionsByOwner(ctx, ownerID, false)
	if err != nil {
		return core.Summary{}, err
	}

	var income, expense int64
	for _, tx := range txs {
		if tx.CreatedAt.Before(start) {
			continue
		}
		switch tx.Type {
		case core.TypeIncome:
			income += tx.Amount.Cents
		case core.TypeExpense:
			expense += tx.Amount.Cents
		}
	}
	return summaryOf(income, expense), nil
}

// CategorySummary returns total expense per category across all non-deleted
// transactions.
func (e *TransactionEngine) CategorySummary(ctx context.Context, ownerID string) (map[string]core.Money, error) {
	sums, err := e.store.Queries().SumExpenseByCategory(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	categories := make(map[string]core.Money, len(sums))
	for category, cents := range sums {
		categories[category] = core.Money{Cents: cents}
	}
	return categories, nil
}

// Report is the summary restricted to [from, to] inclusive, with the
// expense side broken down per category. Income is not broken down.
func (e *TransactionEngine) Report(ctx context.Context, ownerID, from, to string) (core.Report, error) {
	start, end, err := parseDateRange(from, to)
	if err != nil {
		return core.Report{}, err
	}

	txs, err := e.store.Queries().ListTransactionsByOwner(ctx, ownerID, false)
	if err != nil {
		return core.Report{}, err
	}

	var income, expense int64
	categories := make(map[string]core.Money)
	for _, tx := range txs {
		if !dateWithin(tx.CreatedAt, start, end) {
			continue
		}
		switch tx.Type {
		case core.TypeIncome:
			income += tx.Amount.Cents
		case core.TypeExpense:
			expense += tx.Amount.Cents
			sum := categories[tx.Category]
			sum.Cents += tx.Amount.Cents
			categories[tx.Category] = sum
		}
	}
	return core.Report{Summary: summaryOf(income, expense), Categories: categories}, nil
}

func summaryOf(income, expense int64) core.Summary {
	return core.Summary{
		Income:  core.Money{Cents: income},
		Expense: core.Money{Cents: expense},
		Balance: core.Money{Cents: income - expense},
	}
}

const dateLayout = "2006-01-02"

func parseDateRange(from, to string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout, from, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, core.ErrInvalidInput
	}
	end, err := time.ParseInLocation(dateLayout, to, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, core.ErrInvalidInput
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, core.ErrInvalidInput
	}
	return start, end, nil
}

// dateWithin compares on the creation date with the time of day truncated.
func dateWithin(t time.Time, start, end time.Time) bool {
	day := time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
	return !day.Before(start) && !day.After(end)
}
