// Package groupbuy holds the group-buy coordination engine: the data
// model, the error taxonomy, the opaque dialog-state token, and the
// line-scoped YAML-ish parsers the dialog flows submit through.
package groupbuy

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

func (s Status) String() string { return string(s) }

// ParseStatus maps a stored string back to a Status, defaulting to
// Active for anything unrecognized (mirrors the original's
// from_string fallback).
func ParseStatus(s string) Status {
	if s == string(StatusClosed) {
		return StatusClosed
	}
	return StatusActive
}

// Session is the group-buy aggregate root.
type Session struct {
	ID              string
	CreatorID       string
	CreatorUsername string
	ChannelID       string
	PostID          *string
	MerchantName    string
	Description     *string
	Metadata        map[string]string
	Items           map[string]decimal.Decimal
	Status          Status
	Version         int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasOrderableItems reports whether the session's menu can accept
// orders: non-empty and not just the placeholder sample item.
func (s *Session) HasOrderableItems() bool {
	if len(s.Items) == 0 {
		return false
	}
	if len(s.Items) == 1 {
		if _, ok := s.Items[PlaceholderItemName]; ok {
			return false
		}
	}
	return true
}

// PlaceholderItemName is a sample menu entry name; a session carrying
// only this entry is treated as having no real menu. New sessions
// start with an empty menu, not with this entry.
const PlaceholderItemName = "範例商品"

// Order is one buyer's commitment to one item at a snapshot price.
type Order struct {
	ID                string
	SessionID         string
	RegistrarID       string
	RegistrarUsername string
	BuyerID           string
	BuyerUsername     string
	ItemName          string
	Quantity          int
	OriginalQuantity  *int
	UnitPrice         decimal.Decimal
	CreatedAt         time.Time
}

// Subtotal returns quantity * unit price for this order.
func (o *Order) Subtotal() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Quantity)))
}

// ShortageAdjustment is one immutable row recording a post-close
// quantity reduction of a single Order.
type ShortageAdjustment struct {
	ID               int64
	SessionID        string
	OrderID          string
	AdjusterID       string
	AdjusterUsername string
	ItemName         string
	BuyerID          string
	BuyerUsername    string
	OldQuantity      int
	NewQuantity      int
	CreatedAt        time.Time
}

// AuditEntry is one immutable record of a state-mutating operation.
type AuditEntry struct {
	ID        int64
	SessionID string
	UserID    string
	Username  string
	Action    string
	Details   string // minified JSON, always contains "version"
	CreatedAt time.Time
}

// AdjustmentRecord summarizes one applied batch adjustment, returned
// by Store.AdjustOrdersBatch for the caller to render a confirmation.
type AdjustmentRecord struct {
	BuyerUsername string
	OldQuantity   int
	NewQuantity   int
}
