// Package store is the persistence layer for the group-buy engine.
// It issues raw SQL through gorm's connection rather than gorm's model
// CRUD, because optimistic locking needs the exact affected-row count
// of a conditional UPDATE — ported operation-for-operation from
// database.rs, with sqlx's query! macros replaced by gorm's Exec/Raw.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/lekoOwO/groupbuy-bot/internal/groupbuy"
)

// Store is the full persistence contract the dialog/action layers
// depend on. Every mutating method that touches both a state row and
// an audit row runs in a single transaction.
type Store interface {
	CreateSession(ctx context.Context, sess *groupbuy.Session) error
	GetSession(ctx context.Context, id string) (*groupbuy.Session, error)
	UpdateItems(ctx context.Context, id string, items map[string]decimal.Decimal, expectedVersion int, actorID, actorUsername string) error
	UpdatePostID(ctx context.Context, id, postID string) error
	UpdateStatus(ctx context.Context, id string, status groupbuy.Status, expectedVersion int, actorID, actorUsername string) error

	CreateOrder(ctx context.Context, order *groupbuy.Order) error
	GetOrdersBySession(ctx context.Context, sessionID string) ([]*groupbuy.Order, error)
	GetBuyerOrders(ctx context.Context, sessionID, buyerID string) ([]*groupbuy.Order, error)
	DeleteBuyerItemOrders(ctx context.Context, sessionID, buyerID, itemName, actorID, actorUsername string) (int64, error)
	DeleteOrdersForBuyer(ctx context.Context, sessionID, buyerID, actorID, actorUsername string) (int64, error)

	AdjustSingleOrder(ctx context.Context, orderID string, newQuantity int, adjusterID, adjusterUsername string) error
	AdjustOrdersBatch(ctx context.Context, sessionID, itemName string, adjustments map[string]int, adjusterID, adjusterUsername string) ([]groupbuy.AdjustmentRecord, error)

	LogAction(ctx context.Context, sessionID, userID, username, action, detailsJSON string) error

	Close() error
}
