// Package source defines read-only access to the relational business store.
//
// The indexing core never writes to these tables; extraction is a plain
// watermark-bounded read so it cannot block the primary write path.
package source

import (
	"context"
	"errors"
	"time"
)

// ErrExtraction wraps relational read failures. A run that cannot extract
// aborts and the tenant's index status transitions to failed.
var ErrExtraction = errors.New("source extraction failed")

// Business tables the indexer renders into chunks.
const (
	TableOrders   = "orders"
	TableProducts = "products"
	TableStocks   = "stocks"
	TableReviews  = "reviews"
	TableSales    = "sales"
)

// Tables lists every indexed business table in a fixed scan order.
func Tables() []string {
	return []string{TableOrders, TableProducts, TableStocks, TableReviews, TableSales}
}

// Row is one business record in renderable form.
//
// Fields holds the columns a renderer needs, already normalized to strings
// by the store (fixed numeric formatting, trimmed text). Rendering must be
// deterministic, so renderers read named fields in a fixed order and never
// iterate the map.
type Row struct {
	Table     string
	ID        int64
	TenantID  string
	UpdatedAt time.Time
	Fields    map[string]string
}

// Field returns the named field or "" when absent.
func (r Row) Field(name string) string {
	return r.Fields[name]
}

// Reader extracts business rows for indexing.
type Reader interface {
	// SelectAll returns every row of every indexed table for the tenant.
	SelectAll(ctx context.Context, tenantID string) ([]Row, error)

	// SelectChanged returns rows updated strictly after since.
	SelectChanged(ctx context.Context, tenantID string, since time.Time) ([]Row, error)

	// Tenants returns the distinct tenant identifiers present in the store.
	Tenants(ctx context.Context) ([]string, error)
}
