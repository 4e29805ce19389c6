// Package dialog drives the five interactive-dialog flows the bot
// opens in response to a slash command or a panel button click:
// Create, EditItems, Register, CancelRegister, AdjustShortage. Each
// flow has an Open* method (builds and sends the dialog definition)
// and a Submit* method (validates the submission against the signed
// state token and the session's current state, then mutates through
// Store). Ported from handlers/group_buy/dialogs.rs.
package dialog

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lekoOwO/groupbuy-bot/internal/chatplatform"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy/statemachine"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy/store"
)

// Orchestrator holds everything the dialog flows need: persistence,
// the chat platform client, the state-token signer, and the bot's
// externally reachable base URL for building dialog_url/response
// callbacks.
type Orchestrator struct {
	Store           store.Store
	Chat            *chatplatform.Client
	Signer          *groupbuy.Signer
	CallbackBaseURL string
}

func (o *Orchestrator) dialogURL(flow string) string {
	return strings.TrimRight(o.CallbackBaseURL, "/") + "/api/v1/group_buy/dialog/" + flow
}

// errorResponse turns a *groupbuy.Error into the field-scoped or
// generic shape the still-open dialog renders. Any other error is
// left to the caller (transport/internal failure, not user-facing).
func errorResponse(err error) (*chatplatform.DialogSubmissionResponse, error) {
	gbErr, ok := err.(*groupbuy.Error)
	if !ok {
		return nil, err
	}
	if gbErr.Field != "" {
		return &chatplatform.DialogSubmissionResponse{Errors: map[string]string{gbErr.Field: gbErr.Message}}, nil
	}
	return &chatplatform.DialogSubmissionResponse{Error: gbErr.Message}, nil
}

func stringField(sub map[string]any, name string) string {
	v, ok := sub[name]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// parseQuantity accepts a dialog text submission value as either a
// JSON string or number — Mattermost's "number" subtype text element
// still rounds-trips as a string in most clients, but some send a
// bare number.
func parseQuantity(v any) (int, error) {
	switch t := v.(type) {
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, groupbuy.ValidationErrorf("quantity", "數量必須是整數")
		}
		return n, nil
	case float64:
		return int(t), nil
	default:
		return 0, groupbuy.ValidationErrorf("quantity", "數量必須是整數")
	}
}

// --- Create -----------------------------------------------------------

// OpenCreate presents the new group-buy form in response to the
// /group_buy slash command.
func (o *Orchestrator) OpenCreate(ctx context.Context, cmd chatplatform.SlashCommand, triggerID string) error {
	tok := groupbuy.StateToken{
		ResponseURL: cmd.ResponseURL,
		ChannelID:   cmd.ChannelID,
		UserID:      cmd.UserID,
		UserName:    cmd.UserName,
	}
	state, err := o.Signer.Encode(tok)
	if err != nil {
		return fmt.Errorf("建立 state token 失敗: %w", err)
	}

	dlg := &chatplatform.Dialog{
		TriggerID: triggerID,
		URL:       o.dialogURL("create"),
		State:     state,
		Dialog: chatplatform.DialogDefinition{
			CallbackID:       "create_group_buy",
			Title:            "開新團購",
			IntroductionText: "請填寫團購的基本資訊",
			SubmitLabel:      "建立",
			Elements: []chatplatform.DialogElement{
				{DisplayName: "商家名稱", Name: "merchant_name", Type: "text", Placeholder: "例如：麥當勞"},
				{DisplayName: "描述", Name: "description", Type: "textarea", Optional: true, Placeholder: "團購備註"},
				{DisplayName: "其他資訊", Name: "metadata", Type: "textarea", Optional: true, Placeholder: "key: value"},
			},
		},
	}
	return o.Chat.OpenDialog(ctx, dlg)
}

// SubmitCreate validates the Create submission, creates the session,
// and posts the panel message itself (via response_url, since there is
// no post yet for a reply to target).
func (o *Orchestrator) SubmitCreate(ctx context.Context, sub chatplatform.DialogSubmission, renderPanel func(*groupbuy.Session) (string, []chatplatform.Attachment)) (*chatplatform.DialogSubmissionResponse, error) {
	tok, err := o.Signer.Decode(sub.State)
	if err != nil {
		return errorResponse(err)
	}

	merchantName := strings.TrimSpace(stringField(sub.Submission, "merchant_name"))
	if merchantName == "" {
		return errorResponse(groupbuy.ValidationErrorf("merchant_name", "商家名稱不能為空"))
	}
	var description *string
	if d := strings.TrimSpace(stringField(sub.Submission, "description")); d != "" {
		description = &d
	}
	metadata, err := groupbuy.ParseMetadataYAML(stringField(sub.Submission, "metadata"))
	if err != nil {
		return errorResponse(err)
	}

	creator, err := o.Chat.GetUser(ctx, tok.UserID)
	if err != nil {
		return nil, err
	}

	sess := &groupbuy.Session{
		ID:              uuid.New().String(),
		CreatorID:       tok.UserID,
		CreatorUsername: creator.Username,
		ChannelID:       tok.ChannelID,
		MerchantName:    merchantName,
		Description:     description,
		Metadata:        metadata,
		Items:           map[string]decimal.Decimal{},
		Status:          groupbuy.StatusActive,
		Version:         1,
	}
	if err := o.Store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}

	message, attachments := renderPanel(sess)
	resp := &chatplatform.SlashCommandResponse{
		ResponseType: "in_channel",
		Text:         message,
		Username:     creator.Username,
		Attachments:  attachments,
	}
	if tok.ResponseURL != "" {
		if err := chatplatform.PostToResponseURL(ctx, tok.ResponseURL, resp); err != nil {
			return nil, err
		}
	}

	return nil, nil
}

// --- EditItems ----------------------------------------------------------

// OpenEditItems presents the menu textarea pre-filled with the
// session's current items.
func (o *Orchestrator) OpenEditItems(ctx context.Context, sess *groupbuy.Session, postID, triggerID string) error {
	tok := groupbuy.StateToken{
		SessionID:       sess.ID,
		ExpectedVersion: sess.Version,
		PostID:          postID,
	}
	state, err := o.Signer.Encode(tok)
	if err != nil {
		return fmt.Errorf("建立 state token 失敗: %w", err)
	}

	dlg := &chatplatform.Dialog{
		TriggerID: triggerID,
		URL:       o.dialogURL("edit_items"),
		State:     state,
		Dialog: chatplatform.DialogDefinition{
			CallbackID:       "edit_items",
			Title:            "編輯商品",
			IntroductionText: "一行一個商品，格式：商品名稱: 價格",
			SubmitLabel:      "儲存",
			Elements: []chatplatform.DialogElement{
				{DisplayName: "商品列表", Name: "items", Type: "textarea", Default: groupbuy.ItemsToYAML(sess.Items)},
			},
		},
	}
	return o.Chat.OpenDialog(ctx, dlg)
}

// SubmitEditItems parses the menu, applies it under optimistic
// locking, and posts a thread-reply confirmation under the panel
// post.
func (o *Orchestrator) SubmitEditItems(ctx context.Context, sub chatplatform.DialogSubmission) (*chatplatform.DialogSubmissionResponse, error) {
	tok, err := o.Signer.Decode(sub.State)
	if err != nil {
		return errorResponse(err)
	}

	sess, err := o.Store.GetSession(ctx, tok.SessionID)
	if err != nil {
		return errorResponse(err)
	}
	if err := statemachine.CanUpdateItems(sess, sub.UserID); err != nil {
		return errorResponse(err)
	}

	items, err := groupbuy.ParseItemsYAML(stringField(sub.Submission, "items"))
	if err != nil {
		return errorResponse(err)
	}
	if len(items) == 0 {
		return errorResponse(groupbuy.ValidationErrorf("items", "商品列表不能為空"))
	}

	if err := o.Store.UpdateItems(ctx, tok.SessionID, items, tok.ExpectedVersion, sub.UserID, sub.Username); err != nil {
		return errorResponse(err)
	}

	updated, err := o.Store.GetSession(ctx, tok.SessionID)
	if err != nil {
		return nil, err
	}

	if tok.PostID != "" {
		confirmation := buildItemsConfirmation(updated, sub.Username)
		if err := o.Chat.CreatePost(ctx, &chatplatform.Post{
			ChannelID: sub.ChannelID,
			Message:   confirmation,
			RootID:    tok.PostID,
		}); err != nil {
			return nil, err
		}
	}

	return nil, nil
}

func buildItemsConfirmation(sess *groupbuy.Session, actorUsername string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ @%s 已更新商品列表\n\n", actorUsername)
	b.WriteString("| 商品 | 價格 |\n|------|-----:|\n")

	names := make([]string, 0, len(sess.Items))
	for name := range sess.Items {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "| %s | $%s |\n", name, sess.Items[name].String())
	}
	return b.String()
}

// --- Register -------------------------------------------------------

// OpenRegister presents the buyer/item/quantity form. introText, when
// non-empty, is rendered above the form — the action router uses it to
// show the acting user's current registrations.
func (o *Orchestrator) OpenRegister(ctx context.Context, sess *groupbuy.Session, postID, triggerID, introText string) error {
	tok := groupbuy.StateToken{
		SessionID:       sess.ID,
		ExpectedVersion: sess.Version,
		PostID:          postID,
	}
	state, err := o.Signer.Encode(tok)
	if err != nil {
		return fmt.Errorf("建立 state token 失敗: %w", err)
	}

	names := make([]string, 0, len(sess.Items))
	for name := range sess.Items {
		names = append(names, name)
	}
	sort.Strings(names)
	options := make([]chatplatform.DialogOption, 0, len(names))
	for _, name := range names {
		options = append(options, chatplatform.DialogOption{
			Text:  fmt.Sprintf("%s (NT$%s)", name, sess.Items[name].String()),
			Value: name,
		})
	}

	dlg := &chatplatform.Dialog{
		TriggerID: triggerID,
		URL:       o.dialogURL("register"),
		State:     state,
		Dialog: chatplatform.DialogDefinition{
			CallbackID:       "register",
			Title:            "登記",
			IntroductionText: introText,
			SubmitLabel:      "送出",
			Elements: []chatplatform.DialogElement{
				{DisplayName: "登記人", Name: "buyer_id", Type: "select", DataSource: "users"},
				{DisplayName: "商品", Name: "item_name", Type: "select", Options: options},
				{DisplayName: "數量", Name: "quantity", Type: "text", SubType: "number", Default: "1", Placeholder: "0 表示取消登記"},
			},
		},
	}
	return o.Chat.OpenDialog(ctx, dlg)
}

// SubmitRegister validates the submission and either creates an Order
// or, when quantity is 0, deletes the buyer's existing orders for that
// item.
func (o *Orchestrator) SubmitRegister(ctx context.Context, sub chatplatform.DialogSubmission) (*chatplatform.DialogSubmissionResponse, error) {
	tok, err := o.Signer.Decode(sub.State)
	if err != nil {
		return errorResponse(err)
	}

	sess, err := o.Store.GetSession(ctx, tok.SessionID)
	if err != nil {
		return errorResponse(err)
	}
	if err := statemachine.CanCreateOrder(sess); err != nil {
		return errorResponse(err)
	}

	buyerID := stringField(sub.Submission, "buyer_id")
	if buyerID == "" {
		return errorResponse(groupbuy.ValidationErrorf("buyer_id", "請選擇登記人"))
	}
	itemName := stringField(sub.Submission, "item_name")
	unitPrice, ok := sess.Items[itemName]
	if !ok {
		return errorResponse(groupbuy.ValidationErrorf("item_name", "商品不存在"))
	}
	quantity, err := parseQuantity(sub.Submission["quantity"])
	if err != nil {
		return errorResponse(err)
	}
	if quantity < 0 {
		return errorResponse(groupbuy.ValidationErrorf("quantity", "數量不能為負數"))
	}

	if quantity == 0 {
		if _, err := o.Store.DeleteBuyerItemOrders(ctx, tok.SessionID, buyerID, itemName, sub.UserID, sub.Username); err != nil {
			return nil, err
		}
		return nil, nil
	}

	buyer, err := o.Chat.GetUser(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	order := &groupbuy.Order{
		ID:                uuid.New().String(),
		SessionID:         tok.SessionID,
		RegistrarID:       sub.UserID,
		RegistrarUsername: sub.Username,
		BuyerID:           buyerID,
		BuyerUsername:     buyer.Username,
		ItemName:          itemName,
		Quantity:          quantity,
		UnitPrice:         unitPrice,
	}
	if err := o.Store.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	return nil, nil
}

// --- CancelRegister ---------------------------------------------------

// OpenCancelRegister presents a select of every distinct buyer
// currently registered against the session. introText, when non-empty,
// replaces the default static instruction with a table of every
// current registration.
func (o *Orchestrator) OpenCancelRegister(ctx context.Context, sess *groupbuy.Session, orders []*groupbuy.Order, postID, triggerID, introText string) error {
	tok := groupbuy.StateToken{
		SessionID:       sess.ID,
		ExpectedVersion: sess.Version,
		PostID:          postID,
	}
	state, err := o.Signer.Encode(tok)
	if err != nil {
		return fmt.Errorf("建立 state token 失敗: %w", err)
	}

	seen := make(map[string]bool)
	options := make([]chatplatform.DialogOption, 0)
	for _, ord := range orders {
		if seen[ord.BuyerID] {
			continue
		}
		seen[ord.BuyerID] = true
		options = append(options, chatplatform.DialogOption{Text: "@" + ord.BuyerUsername, Value: ord.BuyerID})
	}
	sort.Slice(options, func(i, j int) bool { return options[i].Text < options[j].Text })

	if introText == "" {
		introText = "將清除該登記人在本團購的所有登記"
	}

	dlg := &chatplatform.Dialog{
		TriggerID: triggerID,
		URL:       o.dialogURL("cancel_register"),
		State:     state,
		Dialog: chatplatform.DialogDefinition{
			CallbackID:       "cancel_register",
			Title:            "取消登記",
			IntroductionText: introText,
			SubmitLabel:      "取消登記",
			Elements: []chatplatform.DialogElement{
				{DisplayName: "登記人", Name: "target_buyer", Type: "select", Options: options},
			},
		},
	}
	return o.Chat.OpenDialog(ctx, dlg)
}

// SubmitCancelRegister clears every order of the selected buyer.
func (o *Orchestrator) SubmitCancelRegister(ctx context.Context, sub chatplatform.DialogSubmission) (*chatplatform.DialogSubmissionResponse, error) {
	tok, err := o.Signer.Decode(sub.State)
	if err != nil {
		return errorResponse(err)
	}

	sess, err := o.Store.GetSession(ctx, tok.SessionID)
	if err != nil {
		return errorResponse(err)
	}

	targetBuyer := stringField(sub.Submission, "target_buyer")
	if targetBuyer == "" {
		return errorResponse(groupbuy.ValidationErrorf("target_buyer", "請選擇登記人"))
	}
	if err := statemachine.CanCancelAllForBuyer(sess, targetBuyer, sub.UserID); err != nil {
		return errorResponse(err)
	}

	if _, err := o.Store.DeleteOrdersForBuyer(ctx, tok.SessionID, targetBuyer, sub.UserID, sub.Username); err != nil {
		return nil, err
	}
	return nil, nil
}

// --- AdjustShortage -----------------------------------------------------

// OpenAdjustShortage presents a textarea pre-filled with every current
// order's "order_id: quantity" line, commented with its buyer/item for
// reference.
func (o *Orchestrator) OpenAdjustShortage(ctx context.Context, sess *groupbuy.Session, orders []*groupbuy.Order, triggerID string) error {
	tok := groupbuy.StateToken{
		SessionID:       sess.ID,
		ExpectedVersion: sess.Version,
	}
	state, err := o.Signer.Encode(tok)
	if err != nil {
		return fmt.Errorf("建立 state token 失敗: %w", err)
	}

	var b strings.Builder
	b.WriteString("# 格式：order_id: 新數量\n")
	b.WriteString("# 修改數量即可調整缺貨，0 表示完全缺貨\n\n")
	for _, ord := range orders {
		fmt.Fprintf(&b, "# @%s - %s x%d\n%s: %d\n\n", ord.BuyerUsername, ord.ItemName, ord.Quantity, ord.ID, ord.Quantity)
	}

	dlg := &chatplatform.Dialog{
		TriggerID: triggerID,
		URL:       o.dialogURL("adjust_shortage"),
		State:     state,
		Dialog: chatplatform.DialogDefinition{
			CallbackID:       "adjust_shortage",
			Title:            "調整缺貨",
			IntroductionText: "逐筆調整訂單的到貨數量",
			SubmitLabel:      "套用",
			Elements: []chatplatform.DialogElement{
				{DisplayName: "調整項目", Name: "adjustments", Type: "textarea", Default: b.String()},
			},
		},
	}
	return o.Chat.OpenDialog(ctx, dlg)
}

// SubmitAdjustShortage parses the textarea and applies each
// (order_id, new_quantity) entry as its own adjustment — mirroring the
// per-order loop of the source rather than the atomic batch Store
// method, which serves a different caller.
func (o *Orchestrator) SubmitAdjustShortage(ctx context.Context, sub chatplatform.DialogSubmission) (*chatplatform.DialogSubmissionResponse, error) {
	tok, err := o.Signer.Decode(sub.State)
	if err != nil {
		return errorResponse(err)
	}

	sess, err := o.Store.GetSession(ctx, tok.SessionID)
	if err != nil {
		return errorResponse(err)
	}
	if err := statemachine.CanAdjustShortage(sess, sub.UserID); err != nil {
		return errorResponse(err)
	}

	adjustments, err := groupbuy.ParseAdjustmentsYAML(stringField(sub.Submission, "adjustments"))
	if err != nil {
		return errorResponse(err)
	}

	for orderID, newQuantity := range adjustments {
		if err := o.Store.AdjustSingleOrder(ctx, orderID, newQuantity, sub.UserID, sub.Username); err != nil {
			return nil, err
		}
	}

	return nil, nil
}
