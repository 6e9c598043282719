package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Expense is a back-office outgoing (ingredients, packaging, delivery, ...).
type Expense struct {
	ID         uuid.UUID
	Label      string
	Category   string
	Amount     int64
	IncurredAt time.Time
	CreatedAt  time.Time
}

// CreateExpenseParams carries the admin expense form payload.
type CreateExpenseParams struct {
	Label      string
	Category   string
	Amount     int64
	IncurredAt time.Time
}

// CreateExpense inserts an expense row.
func (s *Store) CreateExpense(ctx context.Context, arg CreateExpenseParams) (Expense, error) {
	var e Expense
	err := s.db.QueryRow(ctx, `INSERT INTO expenses (label, category, amount, incurred_at)
VALUES ($1, $2, $3, $4)
RETURNING id, label, category, amount, incurred_at, created_at`,
		arg.Label, arg.Category, arg.Amount, arg.IncurredAt).
		Scan(&e.ID, &e.Label, &e.Category, &e.Amount, &e.IncurredAt, &e.CreatedAt)
	if err != nil {
		return Expense{}, err
	}
	return e, nil
}

// ListExpenses returns expenses within [from, to), newest first.
func (s *Store) ListExpenses(ctx context.Context, from, to time.Time) ([]Expense, error) {
	rows, err := s.db.Query(ctx, `SELECT id, label, category, amount, incurred_at, created_at
FROM expenses
WHERE incurred_at >= $1 AND incurred_at < $2
ORDER BY incurred_at DESC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expense
	for rows.Next() {
		var e Expense
		if err := rows.Scan(&e.ID, &e.Label, &e.Category, &e.Amount, &e.IncurredAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteExpense removes an expense by id.
func (s *Store) DeleteExpense(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetExpenseTotal sums expenses over [from, to) for the accounting summary.
func (s *Store) GetExpenseTotal(ctx context.Context, from, to time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM expenses WHERE incurred_at >= $1 AND incurred_at < $2`, from, to).Scan(&total)
	return total, err
}
