package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/sellerdesk/indexd/internal/source"
)

// sourceReader implements source.Reader. All reads are plain SELECTs
// bounded by tenant and watermark; no locks are taken on the write path.
type sourceReader struct {
	store *Store
}

// tableColumns maps each business table to the columns renderers consume.
// Numeric columns are normalized to fixed-precision strings at scan time so
// rendering stays deterministic regardless of driver float formatting.
type columnSpec struct {
	name string
	kind columnKind
}

type columnKind int

const (
	kindText columnKind = iota
	kindInt
	kindMoney  // 2 decimal places
	kindRating // 1 decimal place, empty when NULL
)

var tableColumns = map[string][]columnSpec{
	source.TableOrders: {
		{"product_name", kindText}, {"quantity", kindInt},
		{"total_price", kindMoney}, {"currency", kindText},
		{"status", kindText}, {"order_date", kindText}, {"region", kindText},
	},
	source.TableProducts: {
		{"sku", kindText}, {"name", kindText}, {"category", kindText},
		{"brand", kindText}, {"price", kindMoney}, {"currency", kindText},
		{"rating", kindRating}, {"description", kindText},
	},
	source.TableStocks: {
		{"sku", kindText}, {"product_name", kindText}, {"warehouse", kindText},
		{"quantity", kindInt}, {"reserved", kindInt},
	},
	source.TableReviews: {
		{"sku", kindText}, {"product_name", kindText}, {"rating", kindInt},
		{"review_date", kindText}, {"text", kindText},
	},
	source.TableSales: {
		{"sku", kindText}, {"product_name", kindText}, {"quantity", kindInt},
		{"revenue", kindMoney}, {"currency", kindText}, {"channel", kindText},
		{"sale_date", kindText},
	},
}

// SelectAll returns every row of every indexed table for the tenant.
func (r *sourceReader) SelectAll(ctx context.Context, tenantID string) ([]source.Row, error) {
	var rows []source.Row
	for _, table := range source.Tables() {
		tableRows, err := r.selectTable(ctx, table, tenantID, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", source.ErrExtraction, table, err)
		}
		rows = append(rows, tableRows...)
	}
	return rows, nil
}

// SelectChanged returns rows updated strictly after since.
func (r *sourceReader) SelectChanged(ctx context.Context, tenantID string, since time.Time) ([]source.Row, error) {
	var rows []source.Row
	for _, table := range source.Tables() {
		tableRows, err := r.selectTable(ctx, table, tenantID, &since)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", source.ErrExtraction, table, err)
		}
		rows = append(rows, tableRows...)
	}
	return rows, nil
}

// Tenants returns the distinct tenant identifiers across all tables.
func (r *sourceReader) Tenants(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var tenants []string
	for _, table := range source.Tables() {
		rows, err := r.store.db.QueryContext(ctx,
			fmt.Sprintf("SELECT DISTINCT tenant_id FROM %s", table)) //nolint:gosec // table names come from a fixed set
		if err != nil {
			return nil, fmt.Errorf("%w: tenants from %s: %v", source.ErrExtraction, table, err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("%w: scanning tenant: %v", source.ErrExtraction, err)
			}
			if !seen[id] {
				seen[id] = true
				tenants = append(tenants, id)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("%w: iterating tenants: %v", source.ErrExtraction, err)
		}
		rows.Close()
	}
	return tenants, nil
}

func (r *sourceReader) selectTable(ctx context.Context, table, tenantID string, since *time.Time) ([]source.Row, error) {
	specs := tableColumns[table]

	cols := "id, tenant_id, updated_at"
	for _, spec := range specs {
		cols += ", " + spec.name
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE tenant_id = ?", cols, table) //nolint:gosec // fixed column/table sets
	args := []interface{}{tenantID}
	if since != nil {
		query += " AND updated_at > ?"
		args = append(args, since.UTC())
	}
	query += " ORDER BY id"

	dbRows, err := r.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer dbRows.Close()

	var rows []source.Row
	for dbRows.Next() {
		row := source.Row{Table: table, Fields: make(map[string]string, len(specs))}

		dest := make([]interface{}, 0, len(specs)+3)
		dest = append(dest, &row.ID, &row.TenantID, &row.UpdatedAt)

		raw := make([]interface{}, len(specs))
		for i, spec := range specs {
			switch spec.kind {
			case kindInt:
				raw[i] = new(sql.NullInt64)
			case kindMoney, kindRating:
				raw[i] = new(sql.NullFloat64)
			default:
				raw[i] = new(sql.NullString)
			}
			dest = append(dest, raw[i])
		}

		if err := dbRows.Scan(dest...); err != nil {
			return nil, err
		}

		for i, spec := range specs {
			row.Fields[spec.name] = formatColumn(spec.kind, raw[i])
		}
		rows = append(rows, row)
	}
	return rows, dbRows.Err()
}

// formatColumn normalizes a scanned column to its canonical string form.
// Money is always rendered with two decimals, so raw float churn below a
// cent does not change the rendered text (and therefore skips re-embedding).
func formatColumn(kind columnKind, raw interface{}) string {
	switch kind {
	case kindInt:
		v := raw.(*sql.NullInt64)
		if !v.Valid {
			return ""
		}
		return strconv.FormatInt(v.Int64, 10)
	case kindMoney:
		v := raw.(*sql.NullFloat64)
		if !v.Valid {
			return ""
		}
		return strconv.FormatFloat(v.Float64, 'f', 2, 64)
	case kindRating:
		v := raw.(*sql.NullFloat64)
		if !v.Valid {
			return ""
		}
		return strconv.FormatFloat(v.Float64, 'f', 1, 64)
	default:
		v := raw.(*sql.NullString)
		return v.String
	}
}
