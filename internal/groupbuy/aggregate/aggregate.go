// Package aggregate computes the two read-only reports the Action
// Router can produce without touching state: the shopping list (by
// item) and the per-buyer subtotal. Both render as ephemeral Markdown
// tables; ported from handle_shopping_list_action/handle_subtotal_action.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy"
)

// ItemLine is one row of a ShoppingList report.
type ItemLine struct {
	ItemName  string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// ShoppingList is the aggregated per-item view of a session's orders.
type ShoppingList struct {
	Lines      []ItemLine
	NumItems   int
	NumBuyers  int
	GrandTotal decimal.Decimal
}

// BuildShoppingList groups orders by item name, sorted alphabetically.
// Returns ok=false when there are no orders (caller renders "尚無登記資料").
func BuildShoppingList(sess *groupbuy.Session, orders []*groupbuy.Order) (ShoppingList, bool) {
	if len(orders) == 0 {
		return ShoppingList{}, false
	}

	qtyByItem := make(map[string]int)
	buyers := make(map[string]struct{})
	grandTotal := decimal.Zero

	for _, o := range orders {
		qtyByItem[o.ItemName] += o.Quantity
		buyers[o.BuyerID] = struct{}{}
		grandTotal = grandTotal.Add(o.Subtotal())
	}

	names := make([]string, 0, len(qtyByItem))
	for name := range qtyByItem {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]ItemLine, 0, len(names))
	for _, name := range names {
		price, ok := sess.Items[name]
		if !ok {
			price = decimal.Zero
		}
		qty := qtyByItem[name]
		lines = append(lines, ItemLine{
			ItemName:  name,
			Quantity:  qty,
			UnitPrice: price,
			Subtotal:  price.Mul(decimal.NewFromInt(int64(qty))),
		})
	}

	return ShoppingList{
		Lines:      lines,
		NumItems:   len(lines),
		NumBuyers:  len(buyers),
		GrandTotal: grandTotal,
	}, true
}

// Render produces the Markdown table the original posts as an
// ephemeral reply to the ShoppingList action.
func (l ShoppingList) Render(merchantName string) string {
	var b strings.Builder
	b.WriteString("### 🛍️ 採購列表\n\n")
	fmt.Fprintf(&b, "**商家：%s  •  品項：%d  •  人數：%d**\n\n", merchantName, l.NumItems, l.NumBuyers)
	b.WriteString("| 商品 | 數量 | 單價 | 小計 |\n")
	b.WriteString("|------|-----:|-----:|-----:|\n")
	for _, line := range l.Lines {
		fmt.Fprintf(&b, "| %s | %d | $%s | $%s |\n", line.ItemName, line.Quantity, line.UnitPrice.String(), line.Subtotal.String())
	}
	fmt.Fprintf(&b, "\n**💰 總金額：NT$%s**", l.GrandTotal.String())
	return b.String()
}

// BuyerSubtotal is one row of a Subtotal report.
type BuyerSubtotal struct {
	BuyerUsername string
	Amount        decimal.Decimal
}

// SubtotalReport is the aggregated per-buyer view of a session's orders.
type SubtotalReport struct {
	Rows       []BuyerSubtotal
	NumBuyers  int
	GrandTotal decimal.Decimal
}

// BuildSubtotalReport groups orders by buyer username, sorted by
// amount descending. Returns ok=false when there are no orders.
func BuildSubtotalReport(orders []*groupbuy.Order) (SubtotalReport, bool) {
	if len(orders) == 0 {
		return SubtotalReport{}, false
	}

	amountByBuyer := make(map[string]decimal.Decimal)
	grandTotal := decimal.Zero

	for _, o := range orders {
		amount := o.Subtotal()
		amountByBuyer[o.BuyerUsername] = amountByBuyer[o.BuyerUsername].Add(amount)
		grandTotal = grandTotal.Add(amount)
	}

	rows := make([]BuyerSubtotal, 0, len(amountByBuyer))
	for buyer, amount := range amountByBuyer {
		rows = append(rows, BuyerSubtotal{BuyerUsername: buyer, Amount: amount})
	}
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Amount.Equal(rows[j].Amount) {
			return rows[i].Amount.GreaterThan(rows[j].Amount)
		}
		return rows[i].BuyerUsername < rows[j].BuyerUsername
	})

	return SubtotalReport{
		Rows:       rows,
		NumBuyers:  len(rows),
		GrandTotal: grandTotal,
	}, true
}

// Render produces the Markdown table the original posts as an
// ephemeral reply to the Subtotal action.
func (r SubtotalReport) Render(merchantName string) string {
	var b strings.Builder
	b.WriteString("### 💰 個人小計\n\n")
	fmt.Fprintf(&b, "**商家：%s  •  人數：%d**\n\n", merchantName, r.NumBuyers)
	b.WriteString("| 訂購人 | 金額 |\n")
	b.WriteString("|--------|-----:|\n")
	for _, row := range r.Rows {
		fmt.Fprintf(&b, "| @%s | $%s |\n", row.BuyerUsername, row.Amount.String())
	}
	fmt.Fprintf(&b, "\n**🧮 總計：NT$%s**", r.GrandTotal.String())
	return b.String()
}
