// Package economy — repository.go выполняет все операции с таблицами balances и transactions.
// Баланс меняется одним условным UPDATE, запись журнала пишется в той же транзакции БД.
package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marquessam/select-start-bot2-sub000/internal/common"
	"github.com/marquessam/select-start-bot2-sub000/internal/db/postgres"
)

// Repository предоставляет методы для работы с балансами и транзакциями.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий экономики.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// InTx открывает транзакцию на пуле репозитория.
func (r *Repository) InTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return postgres.InTx(ctx, r.db, fn)
}

// CreateAccount создаёт счёт с нулевым балансом.
// Повторный вызов ничего не делает; возвращает true, если счёт создан сейчас.
func (r *Repository) CreateAccount(ctx context.Context, db postgres.DBTX, userID string) (bool, error) {
	tag, err := db.Exec(ctx, `
		INSERT INTO balances (user_id, balance, total_earned, total_spent)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	if err != nil {
		return false, fmt.Errorf("ошибка создания счёта: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetBalance возвращает текущий баланс пользователя.
func (r *Repository) GetBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64
	err := r.db.QueryRow(ctx, `SELECT balance FROM balances WHERE user_id = $1`, userID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, common.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("ошибка получения баланса: %w", err)
	}
	return balance, nil
}

// GetAccount возвращает счёт вместе с итогами.
func (r *Repository) GetAccount(ctx context.Context, userID string) (*Account, error) {
	var a Account
	err := r.db.QueryRow(ctx, `
		SELECT user_id, balance, total_earned, total_spent, created_at, updated_at
		FROM balances
		WHERE user_id = $1
	`, userID).Scan(&a.UserID, &a.Balance, &a.TotalEarned, &a.TotalSpent, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка получения счёта: %w", err)
	}
	return &a, nil
}

// Award начисляет amount внутри транзакции tx.
// Баланс увеличивается атомарно (balance = balance + $2), «до» вычисляется из «после».
func (r *Repository) Award(ctx context.Context, tx postgres.DBTX, userID string, amount int64, reason, detail, txContext string) (*Transaction, error) {
	var after int64
	err := tx.QueryRow(ctx, `
		UPDATE balances
		SET balance = balance + $2, total_earned = total_earned + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING balance
	`, userID, amount).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка начисления: %w", err)
	}
	return r.insertTransaction(ctx, tx, userID, amount, reason, detail, txContext, after-amount, after)
}

// Deduct списывает amount внутри транзакции tx.
// Условие balance >= $2 в самом UPDATE: баланс не уйдёт в минус даже при гонке.
func (r *Repository) Deduct(ctx context.Context, tx postgres.DBTX, userID string, amount int64, reason, detail, txContext string) (*Transaction, error) {
	var after int64
	err := tx.QueryRow(ctx, `
		UPDATE balances
		SET balance = balance - $2, total_spent = total_spent + $2, updated_at = NOW()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance
	`, userID, amount).Scan(&after)
	if errors.Is(err, pgx.ErrNoRows) {
		// Строка не обновилась: либо нет счёта, либо не хватает средств
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM balances WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("ошибка проверки счёта: %w", err)
		}
		if !exists {
			return nil, common.ErrUserNotFound
		}
		return nil, common.ErrInsufficientFunds
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка списания: %w", err)
	}
	return r.insertTransaction(ctx, tx, userID, -amount, reason, detail, txContext, after+amount, after)
}

func (r *Repository) insertTransaction(ctx context.Context, tx postgres.DBTX, userID string, amount int64, reason, detail, txContext string, before, after int64) (*Transaction, error) {
	t := &Transaction{
		UserID:        userID,
		Amount:        amount,
		Reason:        reason,
		Context:       txContext,
		Detail:        detail,
		BalanceBefore: before,
		BalanceAfter:  after,
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO transactions (user_id, amount, reason, context, detail, balance_before, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, userID, amount, reason, txContext, detail, before, after).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка записи транзакции: %w", err)
	}
	return t, nil
}

// GetTransactions возвращает последние limit записей журнала пользователя.
func (r *Repository) GetTransactions(ctx context.Context, userID string, limit int) ([]*Transaction, error) {
	return r.queryTransactions(ctx, `
		SELECT id, user_id, amount, reason, context, detail, balance_before, balance_after, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, userID, limit)
}

// GetTransactionsByContext возвращает все записи по контексту (например, одному челленджу).
// Используется CLI для сверки.
func (r *Repository) GetTransactionsByContext(ctx context.Context, txContext string) ([]*Transaction, error) {
	return r.queryTransactions(ctx, `
		SELECT id, user_id, amount, reason, context, detail, balance_before, balance_after, created_at
		FROM transactions
		WHERE context = $1
		ORDER BY id
	`, txContext)
}

func (r *Repository) queryTransactions(ctx context.Context, query string, args ...any) ([]*Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	defer rows.Close()

	var transactions []*Transaction
	for rows.Next() {
		var t Transaction
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.Amount, &t.Reason, &t.Context, &t.Detail,
			&t.BalanceBefore, &t.BalanceAfter, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования транзакции: %w", err)
		}
		transactions = append(transactions, &t)
	}
	return transactions, rows.Err()
}
