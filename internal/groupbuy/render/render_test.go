package render

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy"
)

func sampleSession() *groupbuy.Session {
	desc := "限時開團"
	return &groupbuy.Session{
		ID:           "abcd-1234-efgh",
		MerchantName: "清心福全",
		Description:  &desc,
		Metadata:     map[string]string{"取貨地點": "一樓大廳"},
		Items:        map[string]decimal.Decimal{"珍珠奶茶": decimal.NewFromInt(60)},
		Status:       groupbuy.StatusActive,
	}
}

func TestPanelBody_ActiveSession(t *testing.T) {
	body := PanelBody(sampleSession())
	assert.Contains(t, body, "清心福全")
	assert.Contains(t, body, "限時開團")
	assert.Contains(t, body, "取貨地點: 一樓大廳")
	assert.Contains(t, body, "珍珠奶茶 - NT$60")
	assert.NotContains(t, body, "已截止")
}

func TestPanelBody_ClosedSession(t *testing.T) {
	sess := sampleSession()
	sess.Status = groupbuy.StatusClosed
	body := PanelBody(sess)
	assert.Contains(t, body, "已截止")
}

func TestPanelBody_PlaceholderItemsOmitted(t *testing.T) {
	sess := sampleSession()
	sess.Items = map[string]decimal.Decimal{groupbuy.PlaceholderItemName: decimal.NewFromInt(10)}
	body := PanelBody(sess)
	assert.NotContains(t, body, "商品列表")
}

func TestPanelBodyWithOrders_GroupsByItemAndNotesRegistrar(t *testing.T) {
	sess := sampleSession()
	orders := []*groupbuy.Order{
		{ItemName: "珍珠奶茶", BuyerID: "u1", BuyerUsername: "alice", RegistrarID: "u1", RegistrarUsername: "alice", Quantity: 1},
		{ItemName: "珍珠奶茶", BuyerID: "u2", BuyerUsername: "bob", RegistrarID: "u1", RegistrarUsername: "alice", Quantity: 2},
	}
	body := PanelBodyWithOrders(sess, orders)
	assert.Contains(t, body, "登記名單")
	assert.Contains(t, body, "珍珠奶茶** (共 3 份)")
	assert.Contains(t, body, "@alice x1")
	assert.Contains(t, body, "@bob x2 (由 @alice 登記)")
}

func TestActionButtons_ActiveStatus(t *testing.T) {
	atts := ActionButtons("abcd-1234-efgh", groupbuy.StatusActive, "https://bot.example.com/")
	require.Len(t, atts, 1)
	names := make([]string, 0)
	for _, a := range atts[0].Actions {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"編輯商品", "登記", "取消登記", "截止", "採購列表", "小計"}, names)
	assert.Equal(t, "edititemsabcd1234efgh", atts[0].Actions[0].ID)
	assert.Equal(t, "https://bot.example.com/api/v1/group_buy/action/edit_items", atts[0].Actions[0].Integration.URL)
}

func TestActionButtons_ClosedStatus(t *testing.T) {
	atts := ActionButtons("abcd-1234-efgh", groupbuy.StatusClosed, "https://bot.example.com")
	names := make([]string, 0)
	for _, a := range atts[0].Actions {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"重新開放", "調整缺貨", "採購列表", "小計"}, names)
}
