package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneyledger/internal/core"
	"moneyledger/internal/storage"
)

func newTestServices(t *testing.T) (*AccountLedger, *TransactionEngine) {
	t.Helper()
	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "open test database")
	t.Cleanup(func() { store.Close() })

	ledger := NewAccountLedger(store, nil)
	engine := NewTransactionEngine(store, ledger)
	return ledger, engine
}

func mustAccount(t *testing.T, ledger *AccountLedger, ownerID, name string) core.Account {
	t.Helper()
	account, err := ledger.CreateAccount(context.Background(), ownerID, name)
	require.NoError(t, err)
	return account
}

func balanceOf(t *testing.T, ledger *AccountLedger, accountID string) int64 {
	t.Helper()
	account, err := ledger.store.Queries().GetAccount(context.Background(), accountID)
	require.NoError(t, err)
	return account.Balance.Cents
}

func TestCreateAccountValidation(t *testing.T) {
	ledger, _ := newTestServices(t)

	_, err := ledger.CreateAccount(context.Background(), "owner-1", "  ")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	account := mustAccount(t, ledger, "owner-1", "Checking")
	assert.Equal(t, int64(0), account.Balance.Cents)
	assert.Equal(t, "owner-1", account.OwnerID)
}

func TestCreateTransactionAppliesEffect(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	account := mustAccount(t, ledger, "owner-1", "Checking")

	income, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 10000, Category: "Salary", AccountID: account.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), balanceOf(t, ledger, account.ID))
	assert.Equal(t, core.DirectionIn, income.Direction)

	_, err = engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeExpense, AmountCents: 3000, Category: "Food", AccountID: account.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7000), balanceOf(t, ledger, account.ID))
}

func TestCreateTransactionRejections(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	account := mustAccount(t, ledger, "owner-1", "Checking")

	_, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeTransfer, AmountCents: 100, AccountID: account.ID,
	})
	assert.ErrorIs(t, err, core.ErrInvalidInput, "transfers only through the transfer operation")

	_, err = engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 0, AccountID: account.ID,
	})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 100,
	})
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	_, err = engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeExpense, AmountCents: 100, AccountID: account.ID,
	})
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)

	_, err = engine.Create(ctx, "owner-2", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 100, AccountID: account.ID,
	})
	assert.ErrorIs(t, err, core.ErrForbidden)

	assert.Equal(t, int64(0), balanceOf(t, ledger, account.ID), "rejected operations leave no trace")
}

func TestTransferCreatesSymmetricPair(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	from := mustAccount(t, ledger, "owner-1", "Checking")
	to := mustAccount(t, ledger, "owner-1", "Savings")

	_, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 10000, Category: "Salary", AccountID: from.ID,
	})
	require.NoError(t, err)

	require.NoError(t, ledger.Transfer(ctx, "owner-1", from.ID, to.ID, 4000))
	assert.Equal(t, int64(6000), balanceOf(t, ledger, from.ID))
	assert.Equal(t, int64(4000), balanceOf(t, ledger, to.ID))

	txs, err := engine.Transactions(ctx, "owner-1")
	require.NoError(t, err)

	var out, in core.Transaction
	for _, tx := range txs {
		if tx.Type != core.TypeTransfer {
			continue
		}
		switch tx.Direction {
		case core.DirectionOut:
			out = tx
		case core.DirectionIn:
			in = tx
		}
	}
	require.NotEmpty(t, out.ID)
	require.NotEmpty(t, in.ID)
	assert.Equal(t, out.GroupID, in.GroupID)
	assert.Equal(t, out.Amount, in.Amount)
	assert.Equal(t, from.ID, out.AccountID)
	assert.Equal(t, to.ID, in.AccountID)
	assert.Equal(t, "Transfer to Savings", out.Description)
	assert.Equal(t, "Transfer from Checking", in.Description)
}

func TestTransferUpdatePropagatesToGroup(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	from := mustAccount(t, ledger, "owner-1", "Checking")
	to := mustAccount(t, ledger, "owner-1", "Savings")

	_, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 10000, AccountID: from.ID,
	})
	require.NoError(t, err)
	require.NoError(t, ledger.Transfer(ctx, "owner-1", from.ID, to.ID, 4000))

	txs, err := engine.Transactions(ctx, "owner-1")
	require.NoError(t, err)
	var out core.Transaction
	for _, tx := range txs {
		if tx.Type == core.TypeTransfer && tx.Direction == core.DirectionOut {
			out = tx
		}
	}
	require.NotEmpty(t, out.ID)

	// Amending either side rewrites the whole pair.
	_, err = engine.Update(ctx, "owner-1", out.ID, UpdateTransactionRequest{AmountCents: 2500})
	require.NoError(t, err)
	assert.Equal(t, int64(7500), balanceOf(t, ledger, from.ID))
	assert.Equal(t, int64(2500), balanceOf(t, ledger, to.ID))

	members, err := ledger.store.Queries().ListTransactionsByGroup(ctx, out.GroupID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, m := range members {
		assert.Equal(t, int64(2500), m.Amount.Cents)
	}
}

func TestTransferDeleteAndRestorePair(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	from := mustAccount(t, ledger, "owner-1", "Checking")
	to := mustAccount(t, ledger, "owner-1", "Savings")

	_, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 10000, AccountID: from.ID,
	})
	require.NoError(t, err)
	require.NoError(t, ledger.Transfer(ctx, "owner-1", from.ID, to.ID, 4000))

	trashBefore, err := engine.Deleted(ctx, "owner-1")
	require.NoError(t, err)
	require.Empty(t, trashBefore)

	txs, err := engine.Transactions(ctx, "owner-1")
	require.NoError(t, err)
	var in core.Transaction
	for _, tx := range txs {
		if tx.Type == core.TypeTransfer && tx.Direction == core.DirectionIn {
			in = tx
		}
	}
	require.NotEmpty(t, in.ID)

	// Deleting one side takes the whole pair out and reverses both balances.
	require.NoError(t, engine.Delete(ctx, "owner-1", in.ID))
	assert.Equal(t, int64(10000), balanceOf(t, ledger, from.ID))
	assert.Equal(t, int64(0), balanceOf(t, ledger, to.ID))

	trash, err := engine.Deleted(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, trash, 2)

	// Deleting again is a no-op, not a double reversal.
	require.NoError(t, engine.Delete(ctx, "owner-1", in.ID))
	assert.Equal(t, int64(10000), balanceOf(t, ledger, from.ID))
	assert.Equal(t, int64(0), balanceOf(t, ledger, to.ID))

	require.NoError(t, engine.Restore(ctx, "owner-1", in.ID))
	assert.Equal(t, int64(6000), balanceOf(t, ledger, from.ID))
	assert.Equal(t, int64(4000), balanceOf(t, ledger, to.ID))
}

func TestTransferValidation(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	from := mustAccount(t, ledger, "owner-1", "Checking")
	to := mustAccount(t, ledger, "owner-1", "Savings")
	foreign := mustAccount(t, ledger, "owner-2", "Other")

	_, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 1000, AccountID: from.ID,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, ledger.Transfer(ctx, "owner-1", from.ID, to.ID, 0), core.ErrInvalidAmount)
	assert.ErrorIs(t, ledger.Transfer(ctx, "owner-1", from.ID, from.ID, 100), core.ErrInvalidInput)
	assert.ErrorIs(t, ledger.Transfer(ctx, "owner-1", "", to.ID, 100), core.ErrInvalidInput)
	assert.ErrorIs(t, ledger.Transfer(ctx, "owner-1", from.ID, "missing", 100), core.ErrAccountNotFound)
	assert.ErrorIs(t, ledger.Transfer(ctx, "owner-1", from.ID, foreign.ID, 100), core.ErrForbidden)
	assert.ErrorIs(t, ledger.Transfer(ctx, "owner-1", from.ID, to.ID, 5000), core.ErrInsufficientFunds)

	assert.Equal(t, int64(1000), balanceOf(t, ledger, from.ID))
	assert.Equal(t, int64(0), balanceOf(t, ledger, to.ID))
}

func TestExpenseLifecycleScenario(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	account := mustAccount(t, ledger, "owner-1", "Checking")

	_, err := ledger.AdjustBalance(ctx, account.ID, 10000)
	require.NoError(t, err)

	expense, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeExpense, AmountCents: 3000, Category: "Food", AccountID: account.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7000), balanceOf(t, ledger, account.ID))

	_, err = engine.Update(ctx, "owner-1", expense.ID, UpdateTransactionRequest{
		AmountCents: 5000, Category: "Food", Description: "groceries",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balanceOf(t, ledger, account.ID))

	require.NoError(t, engine.Delete(ctx, "owner-1", expense.ID))
	assert.Equal(t, int64(10000), balanceOf(t, ledger, account.ID))

	require.NoError(t, engine.Restore(ctx, "owner-1", expense.ID))
	assert.Equal(t, int64(5000), balanceOf(t, ledger, account.ID))

	// Restoring a live transaction changes nothing.
	require.NoError(t, engine.Restore(ctx, "owner-1", expense.ID))
	assert.Equal(t, int64(5000), balanceOf(t, ledger, account.ID))

	summary, err := engine.Summary(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), summary.Income.Cents)
	assert.Equal(t, int64(5000), summary.Expense.Cents)
	assert.Equal(t, int64(-5000), summary.Balance.Cents)
}

func TestUpdateRejections(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	account := mustAccount(t, ledger, "owner-1", "Checking")

	tx, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 1000, AccountID: account.ID,
	})
	require.NoError(t, err)

	_, err = engine.Update(ctx, "owner-1", tx.ID, UpdateTransactionRequest{AmountCents: 0})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = engine.Update(ctx, "owner-2", tx.ID, UpdateTransactionRequest{AmountCents: 500})
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = engine.Update(ctx, "owner-1", "missing", UpdateTransactionRequest{AmountCents: 500})
	assert.ErrorIs(t, err, core.ErrTransactionNotFound)

	require.NoError(t, engine.Delete(ctx, "owner-1", tx.ID))
	_, err = engine.Update(ctx, "owner-1", tx.ID, UpdateTransactionRequest{AmountCents: 500})
	assert.ErrorIs(t, err, core.ErrTransactionNotFound, "trash is amended only through restore")
}

func TestEditWindow(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	account := mustAccount(t, ledger, "owner-1", "Checking")

	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return created }

	tx, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 1000, AccountID: account.ID,
	})
	require.NoError(t, err)

	engine.now = func() time.Time { return created.Add(719 * time.Minute) }
	_, err = engine.Update(ctx, "owner-1", tx.ID, UpdateTransactionRequest{AmountCents: 2000})
	require.NoError(t, err)
	assert.Equal(t, int64(2000), balanceOf(t, ledger, account.ID))

	engine.now = func() time.Time { return created.Add(721 * time.Minute) }
	_, err = engine.Update(ctx, "owner-1", tx.ID, UpdateTransactionRequest{AmountCents: 3000})
	assert.ErrorIs(t, err, core.ErrEditWindowExpired)
	assert.Equal(t, int64(2000), balanceOf(t, ledger, account.ID))

	// Delete and restore are not bound by the window.
	require.NoError(t, engine.Delete(ctx, "owner-1", tx.ID))
	require.NoError(t, engine.Restore(ctx, "owner-1", tx.ID))
	assert.Equal(t, int64(2000), balanceOf(t, ledger, account.ID))
}

func TestOwnershipIsolation(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	account := mustAccount(t, ledger, "owner-1", "Checking")

	tx, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 1000, AccountID: account.ID,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, engine.Delete(ctx, "owner-2", tx.ID), core.ErrForbidden)
	assert.ErrorIs(t, engine.Restore(ctx, "owner-2", tx.ID), core.ErrForbidden)

	other, err := engine.Transactions(ctx, "owner-2")
	require.NoError(t, err)
	assert.Empty(t, other)

	accounts, err := ledger.Accounts(ctx, "owner-2")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestSummaryByPeriod(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	account := mustAccount(t, ledger, "owner-1", "Checking")

	at := func(y int, m time.Month, d int) func() time.Time {
		return func() time.Time { return time.Date(y, m, d, 10, 0, 0, 0, time.UTC) }
	}

	engine.now = at(2026, time.January, 10)
	_, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 5000, AccountID: account.ID,
	})
	require.NoError(t, err)

	engine.now = at(2026, time.March, 2)
	_, err = engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeExpense, AmountCents: 3000, Category: "Food", AccountID: account.ID,
	})
	require.NoError(t, err)

	engine.now = at(2026, time.March, 17)
	_, err = engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 10000, AccountID: account.ID,
	})
	require.NoError(t, err)

	// March 18th 2026 is a Wednesday; the week starts Monday the 16th.
	engine.now = at(2026, time.March, 18)

	week, err := engine.SummaryByPeriod(ctx, "owner-1", "week")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), week.Income.Cents)
	assert.Equal(t, int64(0), week.Expense.Cents)

	month, err := engine.SummaryByPeriod(ctx, "owner-1", "month")
	require.NoError(t, err)
	assert.Equal(t, int64(10000), month.Income.Cents)
	assert.Equal(t, int64(3000), month.Expense.Cents)

	year, err := engine.SummaryByPeriod(ctx, "owner-1", "year")
	require.NoError(t, err)
	assert.Equal(t, int64(15000), year.Income.Cents)
	assert.Equal(t, int64(3000), year.Expense.Cents)

	_, err = engine.SummaryByPeriod(ctx, "owner-1", "quarter")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestBetweenAndReport(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	account := mustAccount(t, ledger, "owner-1", "Checking")

	engine.now = func() time.Time { return time.Date(2026, 3, 5, 23, 30, 0, 0, time.UTC) }
	_, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 10000, AccountID: account.ID,
	})
	require.NoError(t, err)

	engine.now = func() time.Time { return time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC) }
	_, err = engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeExpense, AmountCents: 3000, Category: "Food", AccountID: account.ID,
	})
	require.NoError(t, err)
	_, err = engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeExpense, AmountCents: 1500, Category: "Transport", AccountID: account.ID,
	})
	require.NoError(t, err)

	// Endpoints are inclusive on the calendar date.
	within, err := engine.Between(ctx, "owner-1", "2026-03-05", "2026-03-10")
	require.NoError(t, err)
	assert.Len(t, within, 3)

	later, err := engine.Between(ctx, "owner-1", "2026-03-06", "2026-03-31")
	require.NoError(t, err)
	assert.Len(t, later, 2)

	_, err = engine.Between(ctx, "owner-1", "2026-03-10", "2026-03-05")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = engine.Between(ctx, "owner-1", "yesterday", "2026-03-05")
	assert.ErrorIs(t, err, core.ErrInvalidInput)

	report, err := engine.Report(ctx, "owner-1", "2026-03-06", "2026-03-31")
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Income.Cents)
	assert.Equal(t, int64(4500), report.Expense.Cents)
	assert.Equal(t, int64(3000), report.Categories["Food"].Cents)
	assert.Equal(t, int64(1500), report.Categories["Transport"].Cents)
}

func TestByDivision(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	account := mustAccount(t, ledger, "owner-1", "Checking")

	_, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 1000, Division: "personal", AccountID: account.ID,
	})
	require.NoError(t, err)
	_, err = engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 2000, Division: "business", AccountID: account.ID,
	})
	require.NoError(t, err)

	personal, err := engine.ByDivision(ctx, "owner-1", "personal")
	require.NoError(t, err)
	require.Len(t, personal, 1)
	assert.Equal(t, int64(1000), personal[0].Amount.Cents)

	_, err = engine.ByDivision(ctx, "owner-1", "")
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestPaged(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	account := mustAccount(t, ledger, "owner-1", "Checking")

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		offset := time.Duration(i) * time.Hour
		engine.now = func() time.Time { return base.Add(offset) }
		_, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
			Type: core.TypeIncome, AmountCents: int64(100 * (i + 1)), AccountID: account.ID,
		})
		require.NoError(t, err)
	}

	page, err := engine.Paged(ctx, "owner-1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(500), page.Items[0].Amount.Cents, "newest first")

	page, err = engine.Paged(ctx, "owner-1", 3, 2)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)

	_, err = engine.Paged(ctx, "owner-1", 0, 10)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = engine.Paged(ctx, "owner-1", 1, 0)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
	_, err = engine.Paged(ctx, "owner-1", 1, 201)
	assert.ErrorIs(t, err, core.ErrInvalidInput)
}

func TestConcurrentTransfersConserveTotal(t *testing.T) {
	ledger, engine := newTestServices(t)
	ctx := context.Background()
	a := mustAccount(t, ledger, "owner-1", "A")
	b := mustAccount(t, ledger, "owner-1", "B")

	_, err := engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 100000, AccountID: a.ID,
	})
	require.NoError(t, err)
	_, err = engine.Create(ctx, "owner-1", CreateTransactionRequest{
		Type: core.TypeIncome, AmountCents: 100000, AccountID: b.ID,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = ledger.Transfer(ctx, "owner-1", a.ID, b.ID, 100)
		}()
		go func() {
			defer wg.Done()
			_ = ledger.Transfer(ctx, "owner-1", b.ID, a.ID, 100)
		}()
	}
	wg.Wait()

	total := balanceOf(t, ledger, a.ID) + balanceOf(t, ledger, b.ID)
	assert.Equal(t, int64(200000), total, "transfers must conserve the combined balance")
}
