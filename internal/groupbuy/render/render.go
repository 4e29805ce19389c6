// Package render turns a Session Aggregate into the chat platform's
// wire shapes: the panel message body and its attached action
// buttons. Ported from messages.rs's generate_group_buy_message /
// generate_action_buttons / generate_group_buy_message_with_orders.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lekoOwO/groupbuy-bot/internal/chatplatform"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy"
)

// PanelBody renders the title/description/metadata/items block common
// to both the bare panel and the orders-annotated panel.
func PanelBody(sess *groupbuy.Session) string {
	var b strings.Builder

	if sess.Status == groupbuy.StatusClosed {
		b.WriteString("🔒 **【已截止】** ")
	}
	fmt.Fprintf(&b, "🛒 **【團購】%s**\n\n", sess.MerchantName)

	if sess.Description != nil && *sess.Description != "" {
		fmt.Fprintf(&b, "📝 **描述:**\n%s\n\n", *sess.Description)
	}

	if len(sess.Metadata) > 0 {
		b.WriteString("ℹ️ **其他資訊:**\n")
		keys := make([]string, 0, len(sess.Metadata))
		for k := range sess.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "• %s: %s\n", k, sess.Metadata[k])
		}
		b.WriteString("\n")
	}

	if sess.HasOrderableItems() {
		b.WriteString("🍱 **商品列表:**\n")
		names := make([]string, 0, len(sess.Items))
		for name := range sess.Items {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(&b, "• %s - NT$%s\n", name, sess.Items[name].String())
		}
		b.WriteString("\n")
	}

	b.WriteString("━━━━━━━━━━━━━━━━━━━━\n")
	return b.String()
}

// PanelBodyWithOrders appends a grouped-by-item registration list to
// PanelBody's output.
func PanelBodyWithOrders(sess *groupbuy.Session, orders []*groupbuy.Order) string {
	msg := PanelBody(sess)
	if len(orders) == 0 {
		return msg
	}

	var b strings.Builder
	b.WriteString(msg)
	b.WriteString("\n📋 **登記名單:**\n")

	byItem := make(map[string][]*groupbuy.Order)
	itemOrder := make([]string, 0)
	for _, o := range orders {
		if _, ok := byItem[o.ItemName]; !ok {
			itemOrder = append(itemOrder, o.ItemName)
		}
		byItem[o.ItemName] = append(byItem[o.ItemName], o)
	}

	for _, itemName := range itemOrder {
		itemOrders := byItem[itemName]
		totalQty := 0
		for _, o := range itemOrders {
			totalQty += o.Quantity
		}
		fmt.Fprintf(&b, "\n**%s** (共 %d 份):\n", itemName, totalQty)
		for _, o := range itemOrders {
			note := ""
			if o.RegistrarID != o.BuyerID {
				note = fmt.Sprintf(" (由 @%s 登記)", o.RegistrarUsername)
			}
			fmt.Fprintf(&b, "• @%s x%d%s\n", o.BuyerUsername, o.Quantity, note)
		}
	}
	b.WriteString("\n")
	return b.String()
}

// ActionButtons produces the status-dependent button row(s) attached
// to the panel. callbackBaseURL is the bot's externally reachable
// base URL, with a trailing slash trimmed.
func ActionButtons(sessionID string, status groupbuy.Status, callbackBaseURL string) []chatplatform.Attachment {
	callbackBaseURL = strings.TrimRight(callbackBaseURL, "/")
	cleanID := strings.ReplaceAll(sessionID, "-", "")

	button := func(idPrefix, name, action string) chatplatform.Action {
		return chatplatform.Action{
			ID:   idPrefix + cleanID,
			Name: name,
			Type: "button",
			Integration: chatplatform.Integration{
				URL: fmt.Sprintf("%s/api/v1/group_buy/action/%s", callbackBaseURL, action),
				Context: map[string]any{
					"action":       action,
					"group_buy_id": sessionID,
				},
			},
		}
	}

	var actions []chatplatform.Action
	switch status {
	case groupbuy.StatusActive:
		actions = append(actions,
			button("edititems", "編輯商品", "edit_items"),
			button("register", "登記", "register"),
			button("cancelregister", "取消登記", "cancel_register"),
			button("close", "截止", "close"),
		)
	case groupbuy.StatusClosed:
		actions = append(actions,
			button("reopen", "重新開放", "reopen"),
			button("adjustshortage", "調整缺貨", "adjust_shortage"),
		)
	}

	actions = append(actions,
		button("shoppinglist", "採購列表", "shopping_list"),
		button("subtotal", "小計", "subtotal"),
	)

	return []chatplatform.Attachment{{Actions: actions}}
}
