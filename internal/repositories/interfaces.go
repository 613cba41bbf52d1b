package repositories

import (
	"context"
	"time"

	domain "github.com/shelfwise/acquisitions/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Pieces() PieceRepository
	OrderLines() OrderLineRepository
	Catalog() CatalogRepository
	ReceivingHistory() ReceivingHistoryRepository
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// PieceRepository persists piece records tracking expected and received units.
type PieceRepository interface {
	// FindByIDs returns the pieces matching the given IDs that belong to the
	// order line. IDs without a matching document are simply absent from the
	// result, the caller decides how to report them.
	FindByIDs(ctx context.Context, orderLineID string, pieceIDs []string) ([]domain.Piece, error)
	ListByOrderLine(ctx context.Context, orderLineID string) ([]domain.Piece, error)
	UpdateBatch(ctx context.Context, pieces []domain.Piece) (PieceBatchResult, error)
}

// PieceBatchResult reports the per-piece outcome of a batch write.
type PieceBatchResult struct {
	Succeeded []string
	Failed    map[string]error
}

// OrderLineRepository persists purchase order lines.
type OrderLineRepository interface {
	FindByID(ctx context.Context, orderLineID string) (domain.OrderLine, error)
	FindByIDs(ctx context.Context, orderLineIDs []string) ([]domain.OrderLine, error)
	UpdateReceiptStatus(ctx context.Context, orderLineID string, status domain.ReceiptStatus, updatedAt time.Time) error
}

// HoldingQuery identifies a holding by its owning instance and location.
type HoldingQuery struct {
	InstanceID string
	LocationID string
}

// ItemQuery scopes item searches to an order line within a holding.
type ItemQuery struct {
	OrderLineID string
	HoldingID   string
}

// CatalogRepository provides access to bibliographic and item storage.
type CatalogRepository interface {
	FindInstanceByProductIDs(ctx context.Context, productIDs []domain.ProductIdentifier) (domain.Instance, error)
	CreateInstance(ctx context.Context, instance domain.Instance) error

	FindHolding(ctx context.Context, query HoldingQuery) (domain.Holding, error)
	CreateHolding(ctx context.Context, holding domain.Holding) error

	FindItems(ctx context.Context, query ItemQuery) ([]domain.Item, error)
	FindItemsByIDs(ctx context.Context, itemIDs []string) ([]domain.Item, error)
	CreateItem(ctx context.Context, item domain.Item) error
	UpdateItem(ctx context.Context, item domain.Item) error

	LookupReferenceID(ctx context.Context, kind ReferenceKind, name string) (string, error)
}

// ReferenceKind enumerates the catalog reference tables consulted during
// instance and item creation.
type ReferenceKind string

const (
	ReferenceInstanceType        ReferenceKind = "instance-types"
	ReferenceInstanceStatus      ReferenceKind = "instance-statuses"
	ReferenceContributorNameType ReferenceKind = "contributor-name-types"
	ReferenceIdentifierType      ReferenceKind = "identifier-types"
	ReferenceLoanType            ReferenceKind = "loan-types"
)

// HistoryFilter narrows receiving history searches.
type HistoryFilter struct {
	OrderLineID string
	Title       string
	Limit       int
	Offset      int
}

// ReceivingHistoryRepository owns the denormalised receiving history view.
// Append is best effort from the caller's point of view, history writes never
// fail a receive batch.
type ReceivingHistoryRepository interface {
	Append(ctx context.Context, entries []domain.ReceivingHistoryEntry) error
	Search(ctx context.Context, filter HistoryFilter) (domain.HistoryPage, error)
}
