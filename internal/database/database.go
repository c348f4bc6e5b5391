package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Ar1veeee/barbershop-webapp-sub000/internal/models"
)

var (
	// ErrNotFound is returned when a discount does not exist.
	ErrNotFound = errors.New("discount not found")
	// ErrCodeConflict is returned when a discount code is already taken.
	ErrCodeConflict = errors.New("discount code already exists")
	// ErrQuotaExhausted is returned when the conditional quota increment
	// matches no row, i.e. used_count has reached usage_limit.
	ErrQuotaExhausted = errors.New("discount quota exhausted")
)

// DB wraps the database connection and provides methods for data access.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection and initializes the schema.
func NewDB(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// BeginTx starts a transaction for the redemption path.
func (db *DB) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return db.conn.BeginTx(ctx, nil)
}

// initSchema creates the necessary tables if they don't exist.
func (db *DB) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS discounts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			code TEXT UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			discount_type TEXT NOT NULL CHECK (discount_type IN ('percentage', 'fixed_amount')),
			discount_value TEXT NOT NULL,
			max_discount_amount TEXT,
			min_order_amount TEXT,
			start_date TEXT NOT NULL,
			end_date TEXT NOT NULL,
			usage_limit INTEGER,
			customer_usage_limit INTEGER,
			is_active INTEGER NOT NULL,
			applies_to TEXT NOT NULL CHECK (applies_to IN ('all', 'specific')),
			applicables TEXT NOT NULL DEFAULT '[]',
			used_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS discount_usages (
			id TEXT PRIMARY KEY,
			discount_id TEXT NOT NULL REFERENCES discounts(id),
			customer_id TEXT NOT NULL,
			booking_id TEXT NOT NULL,
			original_amount TEXT NOT NULL,
			discount_amount TEXT NOT NULL,
			final_amount TEXT NOT NULL,
			used_at TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_discounts_code ON discounts(code)`,
		`CREATE INDEX IF NOT EXISTS idx_discounts_dates ON discounts(start_date, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_usages_discount_id ON discount_usages(discount_id)`,
		`CREATE INDEX IF NOT EXISTS idx_usages_customer_id ON discount_usages(customer_id)`,
		`CREATE INDEX IF NOT EXISTS idx_usages_used_at ON discount_usages(used_at)`,
		`CREATE INDEX IF NOT EXISTS idx_usages_discount_customer ON discount_usages(discount_id, customer_id)`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute schema query: %w", err)
		}
	}

	return nil
}

// InsertDiscount creates a discount.
func (db *DB) InsertDiscount(ctx context.Context, d models.Discount) error {
	query := `INSERT INTO discounts (
		id, name, code, description, discount_type, discount_value,
		max_discount_amount, min_order_amount, start_date, end_date,
		usage_limit, customer_usage_limit, is_active, applies_to,
		applicables, used_count, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.conn.ExecContext(ctx, query,
		d.ID,
		d.Name,
		nullableCode(d.Code),
		d.Description,
		string(d.DiscountType),
		d.DiscountValue.String(),
		nullableDecimal(d.MaxDiscountAmount),
		nullableDecimal(d.MinOrderAmount),
		d.StartDate.Format(time.RFC3339),
		d.EndDate.Format(time.RFC3339),
		nullableInt(d.UsageLimit),
		nullableInt(d.CustomerUsageLimit),
		d.IsActive,
		string(d.AppliesTo),
		serializeApplicables(d.Applicables),
		d.UsedCount,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeConflict
		}
		return fmt.Errorf("failed to insert discount: %w", err)
	}

	return nil
}

// UpdateDiscount updates a discount's configuration. The used_count column
// is owned by the redemption path and deliberately left untouched here.
func (db *DB) UpdateDiscount(ctx context.Context, d models.Discount) error {
	query := `UPDATE discounts SET
		name = ?,
		code = ?,
		description = ?,
		discount_type = ?,
		discount_value = ?,
		max_discount_amount = ?,
		min_order_amount = ?,
		start_date = ?,
		end_date = ?,
		usage_limit = ?,
		customer_usage_limit = ?,
		is_active = ?,
		applies_to = ?,
		applicables = ?,
		updated_at = ?
	WHERE id = ?`

	res, err := db.conn.ExecContext(ctx, query,
		d.Name,
		nullableCode(d.Code),
		d.Description,
		string(d.DiscountType),
		d.DiscountValue.String(),
		nullableDecimal(d.MaxDiscountAmount),
		nullableDecimal(d.MinOrderAmount),
		d.StartDate.Format(time.RFC3339),
		d.EndDate.Format(time.RFC3339),
		nullableInt(d.UsageLimit),
		nullableInt(d.CustomerUsageLimit),
		d.IsActive,
		string(d.AppliesTo),
		serializeApplicables(d.Applicables),
		time.Now().UTC().Format(time.RFC3339),
		d.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeConflict
		}
		return fmt.Errorf("failed to update discount: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteDiscount removes a discount. Its usage ledger rows are kept: the
// ledger is append-only and referenced by the transaction domain.
func (db *DB) DeleteDiscount(ctx context.Context, id string) error {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM discounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete discount: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

const discountColumns = `id, name, code, description, discount_type, discount_value,
	max_discount_amount, min_order_amount, start_date, end_date,
	usage_limit, customer_usage_limit, is_active, applies_to, applicables, used_count`

// GetDiscount fetches one discount by id.
func (db *DB) GetDiscount(ctx context.Context, id string) (models.Discount, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+discountColumns+` FROM discounts WHERE id = ?`, id)
	return scanDiscount(row)
}

// GetDiscountByCode fetches one discount by its case-normalized code.
func (db *DB) GetDiscountByCode(ctx context.Context, code string) (models.Discount, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+discountColumns+` FROM discounts WHERE code = ?`, code)
	return scanDiscount(row)
}

// GetDiscountTx fetches one discount inside an open transaction, for the
// commit-time eligibility re-check.
func (db *DB) GetDiscountTx(tx *sql.Tx, id string) (models.Discount, error) {
	row := tx.QueryRow(`SELECT `+discountColumns+` FROM discounts WHERE id = ?`, id)
	return scanDiscount(row)
}

// DiscountFilter narrows the discount list. Zero values mean "no filter".
type DiscountFilter struct {
	Search       string // matches name, code or description
	DiscountType string
	AppliesTo    string
	DateFrom     *time.Time // window overlap: end_date >= DateFrom
	DateTo       *time.Time // window overlap: start_date <= DateTo
	HasQuota     *bool
}

// ListDiscounts returns discounts matching the filter, newest window first.
// Status filtering is time-derived and applied by the caller.
func (db *DB) ListDiscounts(ctx context.Context, f DiscountFilter) ([]models.Discount, error) {
	query := `SELECT ` + discountColumns + ` FROM discounts WHERE 1=1`
	var args []interface{}

	if f.Search != "" {
		query += ` AND (name LIKE ? OR code LIKE ? OR description LIKE ?)`
		pattern := "%" + f.Search + "%"
		args = append(args, pattern, strings.ToUpper(pattern), pattern)
	}
	if f.DiscountType != "" {
		query += ` AND discount_type = ?`
		args = append(args, f.DiscountType)
	}
	if f.AppliesTo != "" {
		query += ` AND applies_to = ?`
		args = append(args, f.AppliesTo)
	}
	if f.DateFrom != nil {
		query += ` AND end_date >= ?`
		args = append(args, f.DateFrom.Format(time.RFC3339))
	}
	if f.DateTo != nil {
		query += ` AND start_date <= ?`
		args = append(args, f.DateTo.Format(time.RFC3339))
	}
	if f.HasQuota != nil {
		if *f.HasQuota {
			query += ` AND usage_limit IS NOT NULL`
		} else {
			query += ` AND usage_limit IS NULL`
		}
	}

	query += ` ORDER BY start_date DESC, id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query discounts: %w", err)
	}
	defer rows.Close()

	var discounts []models.Discount
	for rows.Next() {
		d, err := scanDiscount(rows)
		if err != nil {
			return nil, err
		}
		discounts = append(discounts, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating discounts: %w", err)
	}

	return discounts, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDiscount(row rowScanner) (models.Discount, error) {
	var (
		d               models.Discount
		code            sql.NullString
		discountValue   string
		maxDiscount     sql.NullString
		minOrder        sql.NullString
		startStr        string
		endStr          string
		usageLimit      sql.NullInt64
		custUsageLimit  sql.NullInt64
		appliesTo       string
		applicablesJSON string
		discountType    string
	)

	err := row.Scan(
		&d.ID,
		&d.Name,
		&code,
		&d.Description,
		&discountType,
		&discountValue,
		&maxDiscount,
		&minOrder,
		&startStr,
		&endStr,
		&usageLimit,
		&custUsageLimit,
		&d.IsActive,
		&appliesTo,
		&applicablesJSON,
		&d.UsedCount,
	)
	if err == sql.ErrNoRows {
		return models.Discount{}, ErrNotFound
	}
	if err != nil {
		return models.Discount{}, fmt.Errorf("failed to scan discount: %w", err)
	}

	d.Code = code.String
	d.DiscountType = models.DiscountType(discountType)
	d.AppliesTo = models.AppliesTo(appliesTo)

	if d.DiscountValue, err = decimal.NewFromString(discountValue); err != nil {
		return models.Discount{}, fmt.Errorf("failed to parse discount_value: %w", err)
	}
	if d.MaxDiscountAmount, err = parseNullDecimal(maxDiscount); err != nil {
		return models.Discount{}, fmt.Errorf("failed to parse max_discount_amount: %w", err)
	}
	if d.MinOrderAmount, err = parseNullDecimal(minOrder); err != nil {
		return models.Discount{}, fmt.Errorf("failed to parse min_order_amount: %w", err)
	}
	if d.StartDate, err = time.Parse(time.RFC3339, startStr); err != nil {
		return models.Discount{}, fmt.Errorf("failed to parse start_date: %w", err)
	}
	if d.EndDate, err = time.Parse(time.RFC3339, endStr); err != nil {
		return models.Discount{}, fmt.Errorf("failed to parse end_date: %w", err)
	}

	d.UsageLimit = parseNullInt(usageLimit)
	d.CustomerUsageLimit = parseNullInt(custUsageLimit)
	d.Applicables = deserializeApplicables(applicablesJSON)

	return d, nil
}

// serializeApplicables converts the applicable set to a JSON string column.
func serializeApplicables(applicables []models.Applicable) string {
	if len(applicables) == 0 {
		return "[]"
	}
	data, err := json.Marshal(applicables)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// deserializeApplicables converts a serialized applicable set back to a slice.
func deserializeApplicables(serialized string) []models.Applicable {
	if serialized == "" || serialized == "[]" {
		return nil
	}

	var result []models.Applicable
	if err := json.Unmarshal([]byte(serialized), &result); err != nil {
		return nil
	}
	return result
}

func nullableCode(code string) interface{} {
	if code == "" {
		return nil
	}
	return code
}

func nullableDecimal(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullableInt(i *int) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

func parseNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseNullInt(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
