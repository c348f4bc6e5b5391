package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/models"
)

// UsageFilter narrows the redemption ledger. Zero values mean "no filter".
type UsageFilter struct {
	DiscountID string
	CustomerID string
	DateFrom   *time.Time
	DateTo     *time.Time
}

// ListUsages returns ledger rows matching the filter, newest first.
func (db *DB) ListUsages(ctx context.Context, f UsageFilter) ([]models.DiscountUsage, error) {
	query := `SELECT id, discount_id, customer_id, booking_id,
		original_amount, discount_amount, final_amount, used_at
		FROM discount_usages WHERE 1=1`
	var args []interface{}

	if f.DiscountID != "" {
		query += ` AND discount_id = ?`
		args = append(args, f.DiscountID)
	}
	if f.CustomerID != "" {
		query += ` AND customer_id = ?`
		args = append(args, f.CustomerID)
	}
	if f.DateFrom != nil {
		query += ` AND used_at >= ?`
		args = append(args, f.DateFrom.Format(time.RFC3339))
	}
	if f.DateTo != nil {
		query += ` AND used_at <= ?`
		args = append(args, f.DateTo.Format(time.RFC3339))
	}

	query += ` ORDER BY used_at DESC, id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query usages: %w", err)
	}
	defer rows.Close()

	var usages []models.DiscountUsage
	for rows.Next() {
		u, err := scanUsage(rows)
		if err != nil {
			return nil, err
		}
		usages = append(usages, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating usages: %w", err)
	}

	return usages, nil
}

// CountCustomerUsage counts a customer's redemptions of one discount.
func (db *DB) CountCustomerUsage(ctx context.Context, discountID, customerID string) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM discount_usages WHERE discount_id = ? AND customer_id = ?`,
		discountID, customerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count customer usage: %w", err)
	}
	return count, nil
}

// CountCustomerUsageTx is CountCustomerUsage inside an open transaction,
// used by the commit-time re-check.
func (db *DB) CountCustomerUsageTx(tx *sql.Tx, discountID, customerID string) (int, error) {
	var count int
	err := tx.QueryRow(
		`SELECT COUNT(*) FROM discount_usages WHERE discount_id = ? AND customer_id = ?`,
		discountID, customerID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count customer usage: %w", err)
	}
	return count, nil
}

// ConsumeQuotaTx increments used_count only while it is below usage_limit.
// The condition lives in the UPDATE itself so two concurrent redemptions
// cannot jointly exceed the limit: the loser matches no row and gets
// ErrQuotaExhausted.
func (db *DB) ConsumeQuotaTx(tx *sql.Tx, discountID string) error {
	res, err := tx.Exec(
		`UPDATE discounts SET used_count = used_count + 1, updated_at = ?
		 WHERE id = ? AND (usage_limit IS NULL OR used_count < usage_limit)`,
		time.Now().UTC().Format(time.RFC3339),
		discountID,
	)
	if err != nil {
		return fmt.Errorf("failed to consume quota: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrQuotaExhausted
	}

	return nil
}

// InsertUsageTx appends one ledger row inside an open transaction. Ledger
// rows are immutable once created; no update or delete path exists.
func (db *DB) InsertUsageTx(tx *sql.Tx, u models.DiscountUsage) error {
	_, err := tx.Exec(
		`INSERT INTO discount_usages (
			id, discount_id, customer_id, booking_id,
			original_amount, discount_amount, final_amount, used_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID,
		u.DiscountID,
		u.CustomerID,
		u.BookingID,
		u.OriginalAmount.String(),
		u.DiscountAmount.String(),
		u.FinalAmount.String(),
		u.UsedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage %s: %w", u.ID, err)
	}

	return nil
}

func scanUsage(rows *sql.Rows) (models.DiscountUsage, error) {
	var (
		u        models.DiscountUsage
		original string
		discount string
		final    string
		usedAt   string
	)

	err := rows.Scan(
		&u.ID,
		&u.DiscountID,
		&u.CustomerID,
		&u.BookingID,
		&original,
		&discount,
		&final,
		&usedAt,
	)
	if err != nil {
		return models.DiscountUsage{}, fmt.Errorf("failed to scan usage: %w", err)
	}

	if u.OriginalAmount, err = decimal.NewFromString(original); err != nil {
		return models.DiscountUsage{}, fmt.Errorf("failed to parse original_amount: %w", err)
	}
	if u.DiscountAmount, err = decimal.NewFromString(discount); err != nil {
		return models.DiscountUsage{}, fmt.Errorf("failed to parse discount_amount: %w", err)
	}
	if u.FinalAmount, err = decimal.NewFromString(final); err != nil {
		return models.DiscountUsage{}, fmt.Errorf("failed to parse final_amount: %w", err)
	}
	if u.UsedAt, err = time.Parse(time.RFC3339, usedAt); err != nil {
		return models.DiscountUsage{}, fmt.Errorf("failed to parse used_at: %w", err)
	}

	return u, nil
}
