package chunk

import (
	"fmt"
	"strings"

	"github.com/sellerdesk/indexd/internal/source"
)

// Renderer produces the normalized text for one source category.
//
// Implementations must be deterministic and side-effect-free: they read
// named row fields in a fixed order and never depend on map iteration,
// clocks or randomness.
type Renderer interface {
	Type() Type
	Render(row source.Row) string
}

// renderers maps source tables to their renderer. New source categories
// are added here without touching callers.
var renderers = map[string]Renderer{
	source.TableOrders:   orderRenderer{},
	source.TableProducts: productRenderer{},
	source.TableStocks:   stockRenderer{},
	source.TableReviews:  reviewRenderer{},
	source.TableSales:    saleRenderer{},
}

// Render renders a source row into its chunk text and type.
func Render(row source.Row) (string, Type, error) {
	r, ok := renderers[row.Table]
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrUnknownTable, row.Table)
	}
	return r.Render(row), r.Type(), nil
}

type orderRenderer struct{}

func (orderRenderer) Type() Type { return TypeOrder }

func (orderRenderer) Render(row source.Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Order #%d: %s", row.ID, row.Field("product_name"))
	fmt.Fprintf(&b, ", quantity %s", row.Field("quantity"))
	fmt.Fprintf(&b, ", total %s %s", row.Field("total_price"), row.Field("currency"))
	fmt.Fprintf(&b, ", status %s", row.Field("status"))
	fmt.Fprintf(&b, ", placed %s", row.Field("order_date"))
	if region := row.Field("region"); region != "" {
		fmt.Fprintf(&b, ", region %s", region)
	}
	b.WriteString(".")
	return b.String()
}

type productRenderer struct{}

func (productRenderer) Type() Type { return TypeProduct }

func (productRenderer) Render(row source.Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Product %s %q", row.Field("sku"), row.Field("name"))
	fmt.Fprintf(&b, ": category %s", row.Field("category"))
	fmt.Fprintf(&b, ", brand %s", row.Field("brand"))
	fmt.Fprintf(&b, ", price %s %s", row.Field("price"), row.Field("currency"))
	if rating := row.Field("rating"); rating != "" {
		fmt.Fprintf(&b, ", rating %s", rating)
	}
	b.WriteString(".")
	if desc := row.Field("description"); desc != "" {
		b.WriteString(" ")
		b.WriteString(desc)
	}
	return b.String()
}

type stockRenderer struct{}

func (stockRenderer) Type() Type { return TypeStock }

func (stockRenderer) Render(row source.Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Stock for %s %q at warehouse %s",
		row.Field("sku"), row.Field("product_name"), row.Field("warehouse"))
	fmt.Fprintf(&b, ": %s units available", row.Field("quantity"))
	if reserved := row.Field("reserved"); reserved != "" {
		fmt.Fprintf(&b, ", %s reserved", reserved)
	}
	b.WriteString(".")
	return b.String()
}

type reviewRenderer struct{}

func (reviewRenderer) Type() Type { return TypeReview }

func (reviewRenderer) Render(row source.Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Review for %s %q: rating %s/5 on %s.",
		row.Field("sku"), row.Field("product_name"),
		row.Field("rating"), row.Field("review_date"))
	if text := row.Field("text"); text != "" {
		b.WriteString(" ")
		b.WriteString(text)
	}
	return b.String()
}

type saleRenderer struct{}

func (saleRenderer) Type() Type { return TypeSale }

func (saleRenderer) Render(row source.Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sale on %s: %s (%s)",
		row.Field("sale_date"), row.Field("product_name"), row.Field("sku"))
	fmt.Fprintf(&b, ", %s units", row.Field("quantity"))
	fmt.Fprintf(&b, ", revenue %s %s", row.Field("revenue"), row.Field("currency"))
	if channel := row.Field("channel"); channel != "" {
		fmt.Fprintf(&b, ", channel %s", channel)
	}
	b.WriteString(".")
	return b.String()
}
