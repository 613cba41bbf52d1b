package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/shelfwise/acquisitions/internal/platform/firestore"
	"github.com/shelfwise/acquisitions/internal/repositories"
)

// Registry implements repositories.Registry backed by a shared Firestore provider.
type Registry struct {
	provider *pfirestore.Provider

	pieces     *PieceRepository
	orderLines *OrderLineRepository
	catalog    *CatalogRepository
	history    *ReceivingHistoryRepository
}

// NewRegistry wires the Firestore repository set against one provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("registry: firestore provider is required")
	}

	pieces, err := NewPieceRepository(provider)
	if err != nil {
		return nil, err
	}
	orderLines, err := NewOrderLineRepository(provider)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, err
	}
	history, err := NewReceivingHistoryRepository(provider)
	if err != nil {
		return nil, err
	}

	return &Registry{
		provider:   provider,
		pieces:     pieces,
		orderLines: orderLines,
		catalog:    catalog,
		history:    history,
	}, nil
}

// Close releases the underlying Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	if r == nil || r.provider == nil {
		return nil
	}
	return r.provider.Close(ctx)
}

// Pieces returns the piece repository.
func (r *Registry) Pieces() repositories.PieceRepository { return r.pieces }

// OrderLines returns the order line repository.
func (r *Registry) OrderLines() repositories.OrderLineRepository { return r.orderLines }

// Catalog returns the catalog repository.
func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }

// ReceivingHistory returns the receiving history repository.
func (r *Registry) ReceivingHistory() repositories.ReceivingHistoryRepository { return r.history }
