package chunk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sellerdesk/indexd/internal/source"
)

func orderRow() source.Row {
	return source.Row{
		Table:     source.TableOrders,
		ID:        101,
		TenantID:  "42",
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Fields: map[string]string{
			"product_name": "Ceramic Mug",
			"quantity":     "2",
			"total_price":  "24.00",
			"currency":     "EUR",
			"status":       "delivered",
			"order_date":   "2025-05-28",
			"region":       "Bavaria",
		},
	}
}

func TestRender_Deterministic(t *testing.T) {
	row := orderRow()

	first, typ, err := Render(row)
	require.NoError(t, err)
	assert.Equal(t, TypeOrder, typ)

	for i := 0; i < 10; i++ {
		again, _, err := Render(row)
		require.NoError(t, err)
		assert.Equal(t, first, again, "render must be byte-identical across invocations")
		assert.Equal(t, Hash(first), Hash(again))
	}
}

func TestRender_AllTables(t *testing.T) {
	tests := []struct {
		table    string
		wantType Type
		fields   map[string]string
		contains []string
	}{
		{
			table:    source.TableOrders,
			wantType: TypeOrder,
			fields:   orderRow().Fields,
			contains: []string{"Order #7", "Ceramic Mug", "status delivered"},
		},
		{
			table:    source.TableProducts,
			wantType: TypeProduct,
			fields: map[string]string{
				"sku": "MUG-01", "name": "Ceramic Mug", "category": "kitchen",
				"brand": "Acme", "price": "12.00", "currency": "EUR",
				"rating": "4.5", "description": "Stoneware mug, 350ml.",
			},
			contains: []string{`Product MUG-01 "Ceramic Mug"`, "price 12.00 EUR", "Stoneware mug"},
		},
		{
			table:    source.TableStocks,
			wantType: TypeStock,
			fields: map[string]string{
				"sku": "MUG-01", "product_name": "Ceramic Mug",
				"warehouse": "WH-3", "quantity": "140", "reserved": "12",
			},
			contains: []string{"warehouse WH-3", "140 units available", "12 reserved"},
		},
		{
			table:    source.TableReviews,
			wantType: TypeReview,
			fields: map[string]string{
				"sku": "MUG-01", "product_name": "Ceramic Mug",
				"rating": "5", "review_date": "2025-05-30", "text": "Great mug.",
			},
			contains: []string{"rating 5/5", "Great mug."},
		},
		{
			table:    source.TableSales,
			wantType: TypeSale,
			fields: map[string]string{
				"sale_date": "2025-05-29", "product_name": "Ceramic Mug",
				"sku": "MUG-01", "quantity": "3", "revenue": "36.00",
				"currency": "EUR", "channel": "marketplace",
			},
			contains: []string{"Sale on 2025-05-29", "revenue 36.00 EUR", "channel marketplace"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			row := source.Row{Table: tt.table, ID: 7, TenantID: "42", Fields: tt.fields}
			text, typ, err := Render(row)
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, typ)
			for _, want := range tt.contains {
				assert.Contains(t, text, want)
			}
		})
	}
}

func TestRender_UnknownTable(t *testing.T) {
	_, _, err := Render(source.Row{Table: "invoices", ID: 1})
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestPointID_Deterministic(t *testing.T) {
	a := PointID("42", source.TableOrders, 101)
	b := PointID("42", source.TableOrders, 101)
	c := PointID("43", source.TableOrders, 101)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "point IDs must differ across tenants")
}
