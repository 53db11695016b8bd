package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"moneyledger/internal/core"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so the same query set runs
// standalone or inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// User is a registered identity. The ledger core only ever sees its ID.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is an issued bearer credential.
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

const transactionColumns = `id, owner_id, account_id, type, direction, amount_cents,
	category, description, created_at, group_id, deleted, division`

func (q *Queries) CreateAccount(ctx context.Context, a core.Account) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO accounts (id, owner_id, name, balance_cents) VALUES (?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Name, a.Balance.Cents,
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (q *Queries) GetAccount(ctx context.Context, id string) (core.Account, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, balance_cents FROM accounts WHERE id = ?`, id)

	var a core.Account
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Balance.Cents); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Account{}, core.ErrAccountNotFound
		}
		return core.Account{}, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}

func (q *Queries) ListAccountsByOwner(ctx context.Context, ownerID string) ([]core.Account, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, owner_id, name, balance_cents FROM accounts WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Balance.Cents); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// AdjustAccountBalance adds delta (possibly negative) to the stored balance
// in a single statement and returns the updated account.
func (q *Queries) AdjustAccountBalance(ctx context.Context, id string, delta int64) (core.Account, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ? WHERE id = ?`, delta, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("adjust balance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return core.Account{}, fmt.Errorf("adjust balance rows: %w", err)
	}
	if n == 0 {
		return core.Account{}, core.ErrAccountNotFound
	}
	return q.GetAccount(ctx, id)
}

func (q *Queries) CreateTransaction(ctx context.Context, t core.Transaction) error {
	var groupID any
	if t.GroupID != "" {
		groupID = t.GroupID
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.AccountID, string(t.Type), string(t.Direction), t.Amount.Cents,
		t.Category, t.Description, t.CreatedAt.UTC(), groupID, t.Deleted, t.Division,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t       core.Transaction
		groupID sql.NullString
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.AccountID, &t.Type, &t.Direction, &t.Amount.Cents,
		&t.Category, &t.Description, &t.CreatedAt, &groupID, &t.Deleted, &t.Division)
	if err != nil {
		return core.Transaction{}, err
	}
	t.GroupID = groupID.String
	return t, nil
}

func (q *Queries) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)

	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, core.ErrTransactionNotFound
		}
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}

func (q *Queries) listTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txs []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// ListTransactionsByGroup returns every transaction in a transfer group,
// deleted ones included.
func (q *Queries) ListTransactionsByGroup(ctx context.Context, groupID string) ([]core.Transaction, error) {
	return q.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE group_id = ? ORDER BY direction DESC`,
		groupID)
}

func (q *Queries) ListTransactionsByOwner(ctx context.Context, ownerID string, deleted bool) ([]core.Transaction, error) {
	return q.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE owner_id = ? AND deleted = ? ORDER BY created_at DESC, id`,
		ownerID, deleted)
}

func (q *Queries) ListTransactionsByDivision(ctx context.Context, ownerID, division string) ([]core.Transaction, error) {
	return q.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE owner_id = ? AND division = ? AND deleted = 0 ORDER BY created_at DESC, id`,
		ownerID, division)
}

func (q *Queries) ListTransactionsPaged(ctx context.Context, ownerID string, limit, offset int) ([]core.Transaction, error) {
	return q.listTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		 WHERE owner_id = ? AND deleted = 0 ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		ownerID, limit, offset)
}

func (q *Queries) CountTransactionsByOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE owner_id = ? AND deleted = 0`, ownerID).
		Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return count, nil
}

// UpdateTransaction rewrites the user-editable fields.
func (q *Queries) UpdateTransaction(ctx context.Context, id string, amountCents int64, category, description string) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET amount_cents = ?, category = ?, description = ? WHERE id = ?`,
		amountCents, category, description, id)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

// UpdateTransactionAmount rewrites only the amount, used for transfer group
// members whose category and description stay untouched.
func (q *Queries) UpdateTransactionAmount(ctx context.Context, id string, amountCents int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET amount_cents = ? WHERE id = ?`, amountCents, id)
	if err != nil {
		return fmt.Errorf("update transaction amount: %w", err)
	}
	return nil
}

func (q *Queries) SetTransactionDeleted(ctx context.Context, id string, deleted bool) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET deleted = ? WHERE id = ?`, deleted, id)
	if err != nil {
		return fmt.Errorf("set transaction deleted: %w", err)
	}
	return nil
}

// SumAmountsByType returns total income and expense cents over the owner's
// non-deleted transactions. Transfers are not summed.
func (q *Queries) SumAmountsByType(ctx context.Context, ownerID string) (income, expense int64, err error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount_cents ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount_cents ELSE 0 END), 0)
		 FROM transactions WHERE owner_id = ? AND deleted = 0`, ownerID)
	if err := row.Scan(&income, &expense); err != nil {
		return 0, 0, fmt.Errorf("sum amounts: %w", err)
	}
	return income, expense, nil
}

// SumExpenseByCategory returns expense cents per category over the owner's
// non-deleted transactions.
func (q *Queries) SumExpenseByCategory(ctx context.Context, ownerID string) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT category, COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE owner_id = ? AND type = 'expense' AND deleted = 0 GROUP BY category`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("sum expense by category: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]int64)
	for rows.Next() {
		var (
			category string
			cents    int64
		)
		if err := rows.Scan(&category, &cents); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		sums[category] = cents
	}
	return sums, rows.Err()
}

func (q *Queries) CreateUser(ctx context.Context, u User) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`, email)

	var u User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, sql.ErrNoRows
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}

func (q *Queries) CreateSession(ctx context.Context, s Session) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		s.Token, s.UserID, s.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (q *Queries) GetSession(ctx context.Context, token string) (Session, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at FROM sessions WHERE token = ?`, token)

	var s Session
	if err := row.Scan(&s.Token, &s.UserID, &s.ExpiresAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, sql.ErrNoRows
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	return s, nil
}

func (q *Queries) DeleteSession(ctx context.Context, token string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (q *Queries) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}
