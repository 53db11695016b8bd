// Package services implements the ledger consistency engine: account
// balances, the transaction lifecycle and the invariants binding them.
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

// AccountLedger owns account creation, ownership checks and the single
// primitive all balance changes flow through. Events is optional; a nil
// client disables publishing.
type AccountLedger struct {
	store  *storage.SQLiteRepository
	events *amqp.Client
	locks  *accountLocks
	now    func() time.Time
}

func NewAccountLedger(store *storage.SQLiteRepository, events *amqp.Client) *AccountLedger {
	return &AccountLedger{
		store:  store,
		events: events,
		locks:  newAccountLocks(),
		now:    time.Now,
	}
}

// CreateAccount allocates a new account owned by ownerID with a zero
// balance.
func (l *AccountLedger) CreateAccount(ctx context.Context, ownerID, name string) (core.Account, error) {
	if err := core.ValidateAccountName(name); err != nil {
		return core.Account{}, err
	}

	account := core.Account{
		ID:      uuid.NewString(),
		OwnerID: ownerID,
		Name:    name,
	}
	if err := l.store.Queries().CreateAccount(ctx, account); err != nil {
		return core.Account{}, err
	}

	slog.InfoContext(ctx, "Account created", "account_id", account.ID, "name", name)
	return account, nil
}

// Accounts lists every account owned by ownerID.
func (l *AccountLedger) Accounts(ctx context.Context, ownerID string) ([]core.Account, error) {
	return l.store.Queries().ListAccountsByOwner(ctx, ownerID)
}

// AdjustBalance adds delta (possibly negative) to the account's balance and
// returns the updated account. It performs no ownership or overdraft check;
// callers authorize and enforce policy before reaching this primitive.
func (l *AccountLedger) AdjustBalance(ctx context.Context, accountID string, delta int64) (core.Account, error) {
	unlock := l.locks.lock(accountID)
	defer unlock()

	return l.store.Queries().AdjustAccountBalance(ctx, accountID, delta)
}

// adjust is the in-transaction form of AdjustBalance. The caller must
// already hold the account lock.
func (l *AccountLedger) adjust(ctx context.Context, q *storage.Queries, accountID string, delta int64) (core.Account, error) {
	return q.AdjustAccountBalance(ctx, accountID, delta)
}

// Transfer moves amountCents between two accounts of the same owner and
// records the movement as an OUT/IN transaction pair sharing a fresh group
// id. Both balance updates and both inserts commit atomically.
func (l *AccountLedger) Transfer(ctx context.Context, ownerID, fromID, toID string, amountCents int64) error {
	if amountCents <= 0 {
		return core.ErrInvalidAmount
	}
	if fromID == "" || toID == "" || fromID == toID {
		return core.ErrInvalidInput
	}

	unlock := l.locks.lock(fromID, toID)
	defer unlock()

	groupID := uuid.NewString()
	now := l.now()

	err := l.store.InTx(ctx, func(q *storage.Queries) error {
		from, err := q.GetAccount(ctx, fromID)
		if err != nil {
			return err
		}
		to, err := q.GetAccount(ctx, toID)
		if err != nil {
			return err
		}
		if from.OwnerID != ownerID || to.OwnerID != ownerID {
			return core.ErrForbidden
		}
		if from.Balance.Cents < amountCents {
			return core.ErrInsufficientFunds
		}

		if _, err := l.adjust(ctx, q, fromID, -amountCents); err != nil {
			return err
		}
		if _, err := l.adjust(ctx, q, toID, amountCents); err != nil {
			return err
		}

		out := core.Transaction{
			ID:          uuid.NewString(),
			OwnerID:     ownerID,
			AccountID:   fromID,
			Type:        core.TypeTransfer,
			Direction:   core.DirectionOut,
			Amount:      core.Money{Cents: amountCents},
			Category:    "Transfer",
			Description: "Transfer to " + to.Name,
			CreatedAt:   now,
			GroupID:     groupID,
		}
		in := core.Transaction{
			ID:          uuid.NewString(),
			OwnerID:     ownerID,
			AccountID:   toID,
			Type:        core.TypeTransfer,
			Direction:   core.DirectionIn,
			Amount:      core.Money{Cents: amountCents},
			Category:    "Transfer",
			Description: "Transfer from " + from.Name,
			CreatedAt:   now,
			GroupID:     groupID,
		}
		if err := q.CreateTransaction(ctx, out); err != nil {
			return err
		}
		return q.CreateTransaction(ctx, in)
	})
	if err != nil {
		return err
	}

	event := amqp.NewLedgerEvent(amqp.EventTransferCompleted, ownerID)
	event.GroupID = groupID
	event.AccountID = fromID
	event.AmountCents = amountCents
	l.publish(ctx, event)

	slog.InfoContext(ctx, "Transfer completed",
		"from_account", fromID,
		"to_account", toID,
		"amount_cents", amountCents,
		"group_id", groupID)
	return nil
}

// publish sends a ledger event after a committed mutation. Failures are
// logged, never surfaced; the ledger state is already durable.
func (l *AccountLedger) publish(ctx context.Context, event amqp.LedgerEvent) {
	if l.events == nil {
		return
	}
	if err := l.events.PublishLedgerEvent(ctx, event); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", event.Kind, "error", err)
	}
}
