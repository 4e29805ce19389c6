package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy"
)

func sampleSession() *groupbuy.Session {
	return &groupbuy.Session{
		ID:           "sess-1",
		MerchantName: "測試商家",
		Items: map[string]decimal.Decimal{
			"珍珠奶茶": decimal.NewFromInt(60),
			"紅茶":   decimal.NewFromInt(30),
		},
	}
}

func sampleOrders() []*groupbuy.Order {
	return []*groupbuy.Order{
		{ItemName: "珍珠奶茶", BuyerID: "u1", BuyerUsername: "alice", Quantity: 2, UnitPrice: decimal.NewFromInt(60)},
		{ItemName: "珍珠奶茶", BuyerID: "u2", BuyerUsername: "bob", Quantity: 1, UnitPrice: decimal.NewFromInt(60)},
		{ItemName: "紅茶", BuyerID: "u1", BuyerUsername: "alice", Quantity: 3, UnitPrice: decimal.NewFromInt(30)},
	}
}

func TestBuildShoppingList(t *testing.T) {
	sess := sampleSession()
	orders := sampleOrders()

	list, ok := BuildShoppingList(sess, orders)
	require.True(t, ok)
	assert.Equal(t, 2, list.NumItems)
	assert.Equal(t, 2, list.NumBuyers)
	assert.True(t, list.GrandTotal.Equal(decimal.NewFromInt(270)))

	require.Len(t, list.Lines, 2)
	assert.Equal(t, "珍珠奶茶", list.Lines[0].ItemName)
	assert.Equal(t, 3, list.Lines[0].Quantity)
	assert.True(t, list.Lines[0].Subtotal.Equal(decimal.NewFromInt(180)))
}

func TestBuildShoppingList_Empty(t *testing.T) {
	_, ok := BuildShoppingList(sampleSession(), nil)
	assert.False(t, ok)
}

func TestBuildSubtotalReport_SortedDescending(t *testing.T) {
	report, ok := BuildSubtotalReport(sampleOrders())
	require.True(t, ok)
	assert.Equal(t, 2, report.NumBuyers)
	assert.True(t, report.GrandTotal.Equal(decimal.NewFromInt(270)))

	require.Len(t, report.Rows, 2)
	assert.Equal(t, "alice", report.Rows[0].BuyerUsername)
	assert.True(t, report.Rows[0].Amount.Equal(decimal.NewFromInt(210)))
	assert.Equal(t, "bob", report.Rows[1].BuyerUsername)
}

func TestShoppingListRender_ContainsTableAndTotal(t *testing.T) {
	list, _ := BuildShoppingList(sampleSession(), sampleOrders())
	out := list.Render("測試商家")
	assert.Contains(t, out, "採購列表")
	assert.Contains(t, out, "測試商家")
	assert.Contains(t, out, "NT$270")
}
