package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"ledger/internal/core"
)

const transactionColumns = `id, tenant_id, type, date, period, description, amount, currency, source,
	category_id, category_kind, recurrence_type, recurrence_group_id, created_at, updated_at`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var (
		t                                  core.Transaction
		typ, period, currency, kind, recur string
		date, group                        sql.NullString
		categoryID                         sql.NullInt64
		createdAt, updatedAt               string
	)
	err := row.Scan(&t.ID, &t.TenantID, &typ, &date, &period, &t.Description, &t.Amount, &currency,
		&t.Source, &categoryID, &kind, &recur, &group, &createdAt, &updatedAt)
	if err != nil {
		return core.Transaction{}, err
	}

	t.Type = core.TransactionType(typ)
	t.Currency = core.Currency(currency)
	t.CategoryKind = core.CategoryKind(kind)
	t.RecurrenceType = core.RecurrenceType(recur)
	t.RecurrenceGroupID = group.String
	if categoryID.Valid {
		id := categoryID.Int64
		t.CategoryID = &id
	}
	if t.Period, err = core.ParsePeriod(period); err != nil {
		return core.Transaction{}, err
	}
	if date.Valid {
		if t.Date, err = core.ParseDate(date.String); err != nil {
			return core.Transaction{}, err
		}
	}
	t.CreatedAt = parseTimestamp(createdAt)
	t.UpdatedAt = parseTimestamp(updatedAt)
	return t, nil
}

func collectTransactions(rows *sql.Rows) ([]core.Transaction, error) {
	defer rows.Close()
	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertTransaction stores t and fills in its id and timestamps.
func (q *Queries) InsertTransaction(ctx context.Context, t *core.Transaction) error {
	ts := q.timestamp()
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO transactions (tenant_id, type, date, period, description, amount, currency, source,
			category_id, category_kind, recurrence_type, recurrence_group_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TenantID, string(t.Type), nullString(t.Date.String()), t.Period.Key(), t.Description,
		core.FormatAmount(t.Amount), string(t.Currency), t.Source, nullInt64(t.CategoryID),
		string(t.CategoryKind), string(t.RecurrenceType), nullString(t.RecurrenceGroupID), ts, ts)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("transaction id: %w", err)
	}
	t.CreatedAt = parseTimestamp(ts)
	t.UpdatedAt = t.CreatedAt
	return nil
}

// GetTransaction returns core.ErrTransactionNotFound for unknown ids.
func (q *Queries) GetTransaction(ctx context.Context, tenantID, id int64) (core.Transaction, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE tenant_id = ? AND id = ?`, tenantID, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("%w: id %d", core.ErrTransactionNotFound, id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// UpdateTransaction overwrites every mutable column of one row.
func (q *Queries) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := q.db.ExecContext(ctx, `
		UPDATE transactions SET type = ?, date = ?, period = ?, description = ?, amount = ?, currency = ?,
			source = ?, category_id = ?, category_kind = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?`,
		string(t.Type), nullString(t.Date.String()), t.Period.Key(), t.Description, core.FormatAmount(t.Amount),
		string(t.Currency), t.Source, nullInt64(t.CategoryID), string(t.CategoryKind), q.timestamp(),
		t.TenantID, t.ID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", core.ErrTransactionNotFound, t.ID)
	}
	return nil
}

// UpdateGroupShared copies the shared fields of t onto every row of a
// recurrence group. Dates and periods are left as they are.
func (q *Queries) UpdateGroupShared(ctx context.Context, tenantID int64, groupID string, t core.Transaction) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE transactions SET type = ?, description = ?, amount = ?, currency = ?, source = ?,
			category_id = ?, category_kind = ?, updated_at = ?
		WHERE tenant_id = ? AND recurrence_group_id = ?`,
		string(t.Type), t.Description, core.FormatAmount(t.Amount), string(t.Currency), t.Source,
		nullInt64(t.CategoryID), string(t.CategoryKind), q.timestamp(), tenantID, groupID)
	if err != nil {
		return 0, fmt.Errorf("update group %s: %w", groupID, err)
	}
	return res.RowsAffected()
}

// DeleteTransaction removes one row.
func (q *Queries) DeleteTransaction(ctx context.Context, tenantID, id int64) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: id %d", core.ErrTransactionNotFound, id)
	}
	return nil
}

// DeleteGroup removes every row of a recurrence group and returns how many went.
func (q *Queries) DeleteGroup(ctx context.Context, tenantID int64, groupID string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE tenant_id = ? AND recurrence_group_id = ?`, tenantID, groupID)
	if err != nil {
		return 0, fmt.Errorf("delete group %s: %w", groupID, err)
	}
	return res.RowsAffected()
}

// GroupPeriods lists the distinct periods a recurrence group occupies.
func (q *Queries) GroupPeriods(ctx context.Context, tenantID int64, groupID string) ([]core.Period, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT DISTINCT period FROM transactions
		WHERE tenant_id = ? AND recurrence_group_id = ?
		ORDER BY period`, tenantID, groupID)
	if err != nil {
		return nil, fmt.Errorf("group periods: %w", err)
	}
	defer rows.Close()

	var out []core.Period
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		p, err := core.ParsePeriod(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindDuplicates returns the tenant's rows matching key.
func (q *Queries) FindDuplicates(ctx context.Context, tenantID int64, key core.DuplicateKey) ([]core.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE tenant_id = ? AND type = ? AND amount = ? AND currency = ? AND COALESCE(date, period) = ?
		ORDER BY id`,
		tenantID, string(key.Type), key.Amount, string(key.Currency), key.EffectiveDate.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("find duplicates: %w", err)
	}
	candidates, err := collectTransactions(rows)
	if err != nil {
		return nil, err
	}

	// SQLite NOCASE folds ASCII only, so descriptions are compared here.
	out := candidates[:0]
	for _, c := range candidates {
		if strings.EqualFold(strings.TrimSpace(c.Description), strings.TrimSpace(key.Description)) {
			out = append(out, c)
		}
	}
	return out, nil
}

// ListTransactions applies f and orders by effective date, newest first.
func (q *Queries) ListTransactions(ctx context.Context, tenantID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	where := []string{"tenant_id = ?"}
	args := []any{tenantID}

	if !f.From.IsEmpty() {
		where = append(where, "COALESCE(date, period) >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsEmpty() {
		where = append(where, "COALESCE(date, period) <= ?")
		args = append(args, f.To.String())
	}
	if !f.MonthFrom.IsZero() {
		where = append(where, "period >= ?")
		args = append(args, f.MonthFrom.Key())
	}
	if !f.MonthTo.IsZero() {
		where = append(where, "period <= ?")
		args = append(args, f.MonthTo.Key())
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(f.Type))
	}
	if f.CategoryID != nil {
		where = append(where, "category_id = ?")
		args = append(args, *f.CategoryID)
	}
	if f.CategoryKind != "" {
		where = append(where, "category_kind = ?")
		args = append(args, string(f.CategoryKind))
	}
	if text := strings.TrimSpace(f.Text); text != "" {
		like := "%" + escapeLike(strings.ToLower(text)) + "%"
		where = append(where, `(lower(description) LIKE ? ESCAPE '\' OR lower(source) LIKE ? ESCAPE '\')`)
		args = append(args, like, like)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY COALESCE(date, period) DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return collectTransactions(rows)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
