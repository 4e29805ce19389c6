package statemachine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy"
)

func activeSession() *groupbuy.Session {
	return &groupbuy.Session{
		ID:        "sess-1",
		CreatorID: "organizer",
		Status:    groupbuy.StatusActive,
		Items:     map[string]decimal.Decimal{},
	}
}

func TestCanUpdateItems_RequiresOrganizer(t *testing.T) {
	sess := activeSession()
	err := CanUpdateItems(sess, "someone-else")
	require.Error(t, err)
	kind, ok := groupbuy.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, groupbuy.KindAuthorizationDenied, kind)
}

func TestCanUpdateItems_RequiresActive(t *testing.T) {
	sess := activeSession()
	sess.Status = groupbuy.StatusClosed
	err := CanUpdateItems(sess, sess.CreatorID)
	require.Error(t, err)
	kind, _ := groupbuy.KindOf(err)
	assert.Equal(t, groupbuy.KindPreconditionFailed, kind)
}

func TestCanUpdateItems_OK(t *testing.T) {
	sess := activeSession()
	assert.NoError(t, CanUpdateItems(sess, sess.CreatorID))
}

func TestCanCreateOrder_RejectsClosed(t *testing.T) {
	sess := activeSession()
	sess.Status = groupbuy.StatusClosed
	err := CanCreateOrder(sess)
	require.Error(t, err)
	kind, _ := groupbuy.KindOf(err)
	assert.Equal(t, groupbuy.KindPreconditionFailed, kind)
}

func TestCanCancelRegister_OrganizerOrBuyerOnly(t *testing.T) {
	sess := activeSession()
	order := &groupbuy.Order{BuyerID: "buyer-1"}

	assert.NoError(t, CanCancelRegister(sess, order, sess.CreatorID))
	assert.NoError(t, CanCancelRegister(sess, order, order.BuyerID))

	err := CanCancelRegister(sess, order, "stranger")
	require.Error(t, err)
	kind, _ := groupbuy.KindOf(err)
	assert.Equal(t, groupbuy.KindAuthorizationDenied, kind)
}

func TestCanCancelAllForBuyer_OrganizerOrSelfOnly(t *testing.T) {
	sess := activeSession()

	assert.NoError(t, CanCancelAllForBuyer(sess, "buyer-1", sess.CreatorID))
	assert.NoError(t, CanCancelAllForBuyer(sess, "buyer-1", "buyer-1"))

	err := CanCancelAllForBuyer(sess, "buyer-1", "stranger")
	require.Error(t, err)
	kind, _ := groupbuy.KindOf(err)
	assert.Equal(t, groupbuy.KindAuthorizationDenied, kind)
}

func TestCanCancelAllForBuyer_AllowedWhenClosed(t *testing.T) {
	sess := activeSession()
	sess.Status = groupbuy.StatusClosed

	assert.NoError(t, CanCancelAllForBuyer(sess, "buyer-1", sess.CreatorID))
}

func TestCanCancelRegister_AllowedWhenClosed(t *testing.T) {
	sess := activeSession()
	sess.Status = groupbuy.StatusClosed
	order := &groupbuy.Order{BuyerID: "buyer-1"}

	assert.NoError(t, CanCancelRegister(sess, order, order.BuyerID))
}

func TestCanAdjustShortage_RequiresClosedAndOrganizer(t *testing.T) {
	sess := activeSession()

	err := CanAdjustShortage(sess, sess.CreatorID)
	require.Error(t, err)
	kind, _ := groupbuy.KindOf(err)
	assert.Equal(t, groupbuy.KindPreconditionFailed, kind)

	sess.Status = groupbuy.StatusClosed
	assert.NoError(t, CanAdjustShortage(sess, sess.CreatorID))

	err = CanAdjustShortage(sess, "stranger")
	require.Error(t, err)
	kind, _ = groupbuy.KindOf(err)
	assert.Equal(t, groupbuy.KindAuthorizationDenied, kind)
}

func TestCanTransitionStatus(t *testing.T) {
	sess := activeSession()

	assert.NoError(t, CanTransitionStatus(sess, sess.CreatorID, groupbuy.StatusClosed))

	err := CanTransitionStatus(sess, sess.CreatorID, groupbuy.StatusActive)
	require.Error(t, err)
	kind, _ := groupbuy.KindOf(err)
	assert.Equal(t, groupbuy.KindPreconditionFailed, kind)

	err = CanTransitionStatus(sess, "stranger", groupbuy.StatusClosed)
	require.Error(t, err)
	kind, _ = groupbuy.KindOf(err)
	assert.Equal(t, groupbuy.KindAuthorizationDenied, kind)
}
