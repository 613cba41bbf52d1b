package services

import (
	"context"
	"time"

	domain "github.com/shelfwise/acquisitions/internal/domain"
)

// ReceivingService processes receive and check-in batches and serves the
// receiving history.
type ReceivingService interface {
	Receive(ctx context.Context, batch domain.ReceivingBatch) (domain.ReceivingResults, error)
	CheckIn(ctx context.Context, batch domain.CheckInBatch) (domain.ReceivingResults, error)
	History(ctx context.Context, query HistoryQuery) (domain.HistoryPage, error)
}

// HistoryQuery narrows and pages a receiving history listing.
type HistoryQuery struct {
	OrderLineID string
	Title       string
	Limit       int
	Offset      int
}

// InventoryResolver locates or creates the catalog records a piece needs
// before an item can be attached to it.
type InventoryResolver interface {
	// GetOrCreateInstance returns the instance ID for the order line, creating
	// a minimal instance from the line details when none exists.
	GetOrCreateInstance(ctx context.Context, line domain.OrderLine) (string, error)
	// GetOrCreateHolding returns the holding ID for the (instance, location)
	// pair, creating the holding when none exists.
	GetOrCreateHolding(ctx context.Context, instanceID string, locationID string) (string, error)
	// GetOrCreateItem returns an item of the piece format's material type
	// within the holding, creating one with the given status and barcode when
	// every existing candidate is already assigned to another piece of the
	// batch.
	GetOrCreateItem(ctx context.Context, line domain.OrderLine, format domain.PieceFormat, holdingID string, status string, barcode string) (string, error)
}

// OrderStatusCheckMessage asks the order workflow to re-evaluate one order
// after its lines' receipt statuses changed.
type OrderStatusCheckMessage struct {
	OrderID      string    `json:"orderId"`
	OrderLineIDs []string  `json:"orderLineIds,omitempty"`
	Source       string    `json:"source,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// OrderStatusEventPublisher emits order status check events, one message per
// distinct order.
type OrderStatusEventPublisher interface {
	PublishOrderStatusCheck(ctx context.Context, message OrderStatusCheckMessage) (string, error)
}
