// Package statemachine centralizes the Session lifecycle guards:
// which operations are legal against a session in a given status, and
// who is authorized to invoke them. Every guard returns a
// *groupbuy.Error of the appropriate kind so the dialog/action layers
// never have to construct these responses themselves.
package statemachine

import "github.com/lekoOwO/groupbuy-bot/internal/groupbuy"

// CanUpdateItems guards EditItems: only the organizer, only while the
// session is active.
func CanUpdateItems(sess *groupbuy.Session, actorID string) error {
	if actorID != sess.CreatorID {
		return groupbuy.AuthorizationDeniedError("只有團主可以修改品項")
	}
	if sess.Status != groupbuy.StatusActive {
		return groupbuy.PreconditionFailedError("只有進行中的揪團可以修改品項")
	}
	return nil
}

// CanCreateOrder guards Register: the session must be active and must
// carry at least one real (non-placeholder) menu item.
func CanCreateOrder(sess *groupbuy.Session) error {
	if sess.Status != groupbuy.StatusActive {
		return groupbuy.PreconditionFailedError("揪團已截止，無法登記")
	}
	if !sess.HasOrderableItems() {
		return groupbuy.PreconditionFailedError("揪團尚未設定品項")
	}
	return nil
}

// CanCancelRegister guards CancelRegister. Cancellation is allowed in
// any session state, not just Active. The source allowed any
// authenticated user to cancel any order; SPEC_FULL tightens the
// authorization (not the state gate) to the session organizer or the
// order's own buyer (see DESIGN.md).
func CanCancelRegister(sess *groupbuy.Session, order *groupbuy.Order, actorID string) error {
	if actorID != sess.CreatorID && actorID != order.BuyerID {
		return groupbuy.AuthorizationDeniedError("只有團主或登記者本人可以取消登記")
	}
	return nil
}

// CanCancelAllForBuyer guards the CancelRegister dialog, which clears
// every order of one target buyer at once rather than a single Order:
// the same organizer-or-own-buyer rule as CanCancelRegister, applied
// to the targeted buyer id instead of one order's BuyerID. Allowed in
// any session state.
func CanCancelAllForBuyer(sess *groupbuy.Session, targetBuyerID, actorID string) error {
	if actorID != sess.CreatorID && actorID != targetBuyerID {
		return groupbuy.AuthorizationDeniedError("只有團主或登記者本人可以取消登記")
	}
	return nil
}

// CanAdjustShortage guards AdjustShortage: only after the session has
// closed, and only the organizer may perform it.
func CanAdjustShortage(sess *groupbuy.Session, actorID string) error {
	if sess.Status != groupbuy.StatusClosed {
		return groupbuy.PreconditionFailedError("只有已截止的揪團可以調整缺貨")
	}
	if actorID != sess.CreatorID {
		return groupbuy.AuthorizationDeniedError("只有團主可以調整缺貨數量")
	}
	return nil
}

// CanTransitionStatus guards Close/Reopen: only the organizer, and
// only into the opposite status of the one it's currently in.
func CanTransitionStatus(sess *groupbuy.Session, actorID string, target groupbuy.Status) error {
	if actorID != sess.CreatorID {
		return groupbuy.AuthorizationDeniedError("只有團主可以變更揪團狀態")
	}
	if sess.Status == target {
		return groupbuy.PreconditionFailedError("揪團已經是該狀態")
	}
	return nil
}
