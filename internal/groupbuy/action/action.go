// Package action routes an interactive button click against a
// group-buy panel to one of its eight operations. Ported from
// handlers/group_buy/actions.rs's handle_group_buy_action and its
// per-action handlers.
package action

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/lekoOwO/groupbuy-bot/internal/chatplatform"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy/aggregate"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy/dialog"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy/render"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy/statemachine"
	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy/store"
)

// Response is the JSON body a button click handler returns. At most
// one of its fields is set; an entirely empty Response ("{}") tells
// the client the dialog/click was accepted with nothing further to
// render.
type Response struct {
	EphemeralText string           `json:"ephemeral_text,omitempty"`
	Update        *UpdateDirective `json:"update,omitempty"`
}

// UpdateDirective re-renders the panel post in place, used by
// Close/Reopen.
type UpdateDirective struct {
	Message string               `json:"message"`
	Props   UpdateDirectiveProps `json:"props"`
}

type UpdateDirectiveProps struct {
	Attachments []chatplatform.Attachment `json:"attachments"`
}

func ephemeral(text string) *Response { return &Response{EphemeralText: text} }

// Router dispatches interactive-button clicks.
type Router struct {
	Store           store.Store
	Dialog          *dialog.Orchestrator
	CallbackBaseURL string
}

// Handle processes one click. A non-nil error is a transport/store
// failure the caller should log and answer generically; a non-nil
// Response (with nil error) is always a complete, renderable answer.
func (r *Router) Handle(ctx context.Context, req chatplatform.ActionRequest) (*Response, error) {
	groupBuyID, _ := req.Context["group_buy_id"].(string)
	if groupBuyID == "" {
		return ephemeral("缺少揪團識別碼"), nil
	}
	action, _ := req.Context["action"].(string)

	// Best-effort bind-if-null of the panel's post id, so a button
	// clicked before the post-create response lands can still
	// self-heal the reference. Failure here is logged, never surfaced.
	if sess, err := r.Store.GetSession(ctx, groupBuyID); err == nil {
		if sess.PostID == nil && req.PostID != "" {
			if err := r.Store.UpdatePostID(ctx, groupBuyID, req.PostID); err != nil {
				log.Warn().Err(err).Str("group_buy_id", groupBuyID).Msg("綁定訊息編號失敗")
			}
		}
	}

	switch action {
	case "edit_items":
		return r.handleEditItems(ctx, req, groupBuyID)
	case "register":
		return r.handleRegister(ctx, req, groupBuyID)
	case "cancel_register":
		return r.handleCancelRegister(ctx, req, groupBuyID)
	case "close":
		return r.handleTransition(ctx, req, groupBuyID, groupbuy.StatusClosed)
	case "reopen":
		return r.handleTransition(ctx, req, groupBuyID, groupbuy.StatusActive)
	case "adjust_shortage":
		return r.handleAdjustShortage(ctx, req, groupBuyID)
	case "shopping_list":
		return r.handleShoppingList(ctx, req, groupBuyID)
	case "subtotal":
		return r.handleSubtotal(ctx, req, groupBuyID)
	default:
		return ephemeral("未知的操作"), nil
	}
}

func (r *Router) fetchSession(ctx context.Context, id string) (*groupbuy.Session, *Response, error) {
	sess, err := r.Store.GetSession(ctx, id)
	if err != nil {
		if kind, ok := groupbuy.KindOf(err); ok && kind == groupbuy.KindNotFound {
			return nil, ephemeral("揪團不存在"), nil
		}
		return nil, nil, err
	}
	return sess, nil, nil
}

func guardResponse(err error) *Response {
	if gbErr, ok := err.(*groupbuy.Error); ok {
		return ephemeral(gbErr.Message)
	}
	return ephemeral(err.Error())
}

func (r *Router) handleEditItems(ctx context.Context, req chatplatform.ActionRequest, groupBuyID string) (*Response, error) {
	sess, resp, err := r.fetchSession(ctx, groupBuyID)
	if resp != nil || err != nil {
		return resp, err
	}
	if err := statemachine.CanUpdateItems(sess, req.UserID); err != nil {
		return guardResponse(err), nil
	}
	if err := r.Dialog.OpenEditItems(ctx, sess, req.PostID, req.TriggerID); err != nil {
		return nil, err
	}
	return &Response{}, nil
}

func (r *Router) handleRegister(ctx context.Context, req chatplatform.ActionRequest, groupBuyID string) (*Response, error) {
	sess, resp, err := r.fetchSession(ctx, groupBuyID)
	if resp != nil || err != nil {
		return resp, err
	}
	if err := statemachine.CanCreateOrder(sess); err != nil {
		return guardResponse(err), nil
	}

	buyerOrders, err := r.Store.GetBuyerOrders(ctx, groupBuyID, req.UserID)
	if err != nil {
		return nil, err
	}
	introText := ""
	if report, ok := aggregate.BuildShoppingList(sess, buyerOrders); ok {
		introText = "**您目前的登記：**\n\n" + report.Render(sess.MerchantName)
	}

	if err := r.Dialog.OpenRegister(ctx, sess, req.PostID, req.TriggerID, introText); err != nil {
		return nil, err
	}
	return &Response{}, nil
}

func (r *Router) handleCancelRegister(ctx context.Context, req chatplatform.ActionRequest, groupBuyID string) (*Response, error) {
	sess, resp, err := r.fetchSession(ctx, groupBuyID)
	if resp != nil || err != nil {
		return resp, err
	}

	orders, err := r.Store.GetOrdersBySession(ctx, groupBuyID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return ephemeral("目前沒有任何登記"), nil
	}

	introText := "**目前登記名單：**\n\n" + render.PanelBodyWithOrders(sess, orders)
	if err := r.Dialog.OpenCancelRegister(ctx, sess, orders, req.PostID, req.TriggerID, introText); err != nil {
		return nil, err
	}
	return &Response{}, nil
}

func (r *Router) handleTransition(ctx context.Context, req chatplatform.ActionRequest, groupBuyID string, target groupbuy.Status) (*Response, error) {
	sess, resp, err := r.fetchSession(ctx, groupBuyID)
	if resp != nil || err != nil {
		return resp, err
	}
	if err := statemachine.CanTransitionStatus(sess, req.UserID, target); err != nil {
		return guardResponse(err), nil
	}

	if err := r.Store.UpdateStatus(ctx, groupBuyID, target, sess.Version, req.UserID, req.Username); err != nil {
		if kind, ok := groupbuy.KindOf(err); ok && kind == groupbuy.KindVersionConflict {
			return ephemeral("揪團狀態已被其他操作變更，請重新整理"), nil
		}
		return nil, err
	}

	updated, resp, err := r.fetchSession(ctx, groupBuyID)
	if resp != nil || err != nil {
		return resp, err
	}
	orders, err := r.Store.GetOrdersBySession(ctx, groupBuyID)
	if err != nil {
		return nil, err
	}

	message := render.PanelBodyWithOrders(updated, orders)
	attachments := render.ActionButtons(updated.ID, updated.Status, r.CallbackBaseURL)

	return &Response{
		Update: &UpdateDirective{
			Message: message,
			Props:   UpdateDirectiveProps{Attachments: attachments},
		},
	}, nil
}

func (r *Router) handleAdjustShortage(ctx context.Context, req chatplatform.ActionRequest, groupBuyID string) (*Response, error) {
	sess, resp, err := r.fetchSession(ctx, groupBuyID)
	if resp != nil || err != nil {
		return resp, err
	}
	if err := statemachine.CanAdjustShortage(sess, req.UserID); err != nil {
		return guardResponse(err), nil
	}

	orders, err := r.Store.GetOrdersBySession(ctx, groupBuyID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return ephemeral("目前沒有任何登記可供調整"), nil
	}

	if err := r.Dialog.OpenAdjustShortage(ctx, sess, orders, req.TriggerID); err != nil {
		return nil, err
	}
	return &Response{}, nil
}

func (r *Router) handleShoppingList(ctx context.Context, req chatplatform.ActionRequest, groupBuyID string) (*Response, error) {
	sess, resp, err := r.fetchSession(ctx, groupBuyID)
	if resp != nil || err != nil {
		return resp, err
	}
	orders, err := r.Store.GetOrdersBySession(ctx, groupBuyID)
	if err != nil {
		return nil, err
	}
	report, ok := aggregate.BuildShoppingList(sess, orders)
	if !ok {
		return ephemeral("尚無登記資料"), nil
	}
	return ephemeral(report.Render(sess.MerchantName)), nil
}

func (r *Router) handleSubtotal(ctx context.Context, req chatplatform.ActionRequest, groupBuyID string) (*Response, error) {
	sess, resp, err := r.fetchSession(ctx, groupBuyID)
	if resp != nil || err != nil {
		return resp, err
	}
	orders, err := r.Store.GetOrdersBySession(ctx, groupBuyID)
	if err != nil {
		return nil, err
	}
	report, ok := aggregate.BuildSubtotalReport(orders)
	if !ok {
		return ephemeral("尚無登記資料"), nil
	}
	return ephemeral(report.Render(sess.MerchantName)), nil
}
