package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/shelfwise/acquisitions/internal/domain"
	pfirestore "github.com/shelfwise/acquisitions/internal/platform/firestore"
)

const orderLinesCollection = "orderLines"

// OrderLineRepository persists purchase order lines in Firestore.
type OrderLineRepository struct {
	base *pfirestore.BaseRepository[orderLineDocument]
}

// NewOrderLineRepository constructs a Firestore-backed order line repository.
func NewOrderLineRepository(provider *pfirestore.Provider) (*OrderLineRepository, error) {
	if provider == nil {
		return nil, errors.New("order line repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[orderLineDocument](provider, orderLinesCollection, nil, nil)
	return &OrderLineRepository{base: base}, nil
}

// FindByID fetches a single order line.
func (r *OrderLineRepository) FindByID(ctx context.Context, orderLineID string) (domain.OrderLine, error) {
	if r == nil || r.base == nil {
		return domain.OrderLine{}, errors.New("order line repository not initialised")
	}
	orderLineID = strings.TrimSpace(orderLineID)
	if orderLineID == "" {
		return domain.OrderLine{}, errors.New("order line repository: order line id is required")
	}
	doc, err := r.base.Get(ctx, orderLineID)
	if err != nil {
		return domain.OrderLine{}, err
	}
	return decodeOrderLineDocument(orderLineID, doc.Data), nil
}

// FindByIDs fetches the order lines matching the ID set. Unknown IDs are omitted.
func (r *OrderLineRepository) FindByIDs(ctx context.Context, orderLineIDs []string) ([]domain.OrderLine, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("order line repository not initialised")
	}

	ids := uniqueNonEmpty(orderLineIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	var lines []domain.OrderLine
	for start := 0; start < len(ids); start += maxInClauseValues {
		end := min(start+maxInClauseValues, len(ids))
		chunk := ids[start:end]

		docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
			return q.Where(firestore.DocumentID, "in", chunk)
		})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			lines = append(lines, decodeOrderLineDocument(doc.ID, doc.Data))
		}
	}
	return lines, nil
}

// UpdateReceiptStatus persists a recalculated receipt status for the order line.
func (r *OrderLineRepository) UpdateReceiptStatus(ctx context.Context, orderLineID string, status domain.ReceiptStatus, updatedAt time.Time) error {
	if r == nil || r.base == nil {
		return errors.New("order line repository not initialised")
	}
	orderLineID = strings.TrimSpace(orderLineID)
	if orderLineID == "" {
		return errors.New("order line repository: order line id is required")
	}

	updates := []firestore.Update{
		{Path: "receiptStatus", Value: string(status)},
		{Path: "updatedAt", Value: updatedAt.UTC()},
	}
	if _, err := r.base.Update(ctx, orderLineID, updates); err != nil {
		return err
	}
	return nil
}

type orderLineDocument struct {
	OrderID       string              `firestore:"orderId"`
	PaymentStatus string              `firestore:"paymentStatus"`
	ReceiptStatus string              `firestore:"receiptStatus"`
	InstanceID    string              `firestore:"instanceId,omitempty"`
	Details       orderLineDetailsDoc `firestore:"details"`
	UpdatedAt     time.Time           `firestore:"updatedAt"`
}

type orderLineDetailsDoc struct {
	Title           string           `firestore:"title,omitempty"`
	Edition         string           `firestore:"edition,omitempty"`
	Publisher       string           `firestore:"publisher,omitempty"`
	PublicationDate string           `firestore:"publicationDate,omitempty"`
	Contributors    []contributorDoc `firestore:"contributors,omitempty"`
	ProductIDs      []productIDDoc   `firestore:"productIds,omitempty"`
	// MaterialTypes maps piece formats to catalog material type IDs.
	MaterialTypes map[string]string `firestore:"materialTypes,omitempty"`
}

type contributorDoc struct {
	Name string `firestore:"name"`
}

type productIDDoc struct {
	Value    string `firestore:"value"`
	TypeName string `firestore:"typeName"`
}

func decodeOrderLineDocument(id string, doc orderLineDocument) domain.OrderLine {
	contributors := make([]domain.Contributor, 0, len(doc.Details.Contributors))
	for _, c := range doc.Details.Contributors {
		contributors = append(contributors, domain.Contributor{Name: strings.TrimSpace(c.Name)})
	}
	productIDs := make([]domain.ProductIdentifier, 0, len(doc.Details.ProductIDs))
	for _, p := range doc.Details.ProductIDs {
		productIDs = append(productIDs, domain.ProductIdentifier{
			Value:    strings.TrimSpace(p.Value),
			TypeName: strings.TrimSpace(p.TypeName),
		})
	}
	var materialTypes map[domain.PieceFormat]string
	if len(doc.Details.MaterialTypes) > 0 {
		materialTypes = make(map[domain.PieceFormat]string, len(doc.Details.MaterialTypes))
		for format, id := range doc.Details.MaterialTypes {
			materialTypes[domain.PieceFormat(strings.TrimSpace(format))] = strings.TrimSpace(id)
		}
	}
	return domain.OrderLine{
		ID:            strings.TrimSpace(id),
		OrderID:       strings.TrimSpace(doc.OrderID),
		PaymentStatus: domain.PaymentStatus(strings.TrimSpace(doc.PaymentStatus)),
		ReceiptStatus: domain.ReceiptStatus(strings.TrimSpace(doc.ReceiptStatus)),
		InstanceID:    strings.TrimSpace(doc.InstanceID),
		Details: domain.OrderLineDetails{
			Title:           strings.TrimSpace(doc.Details.Title),
			Edition:         strings.TrimSpace(doc.Details.Edition),
			Publisher:       strings.TrimSpace(doc.Details.Publisher),
			PublicationDate: strings.TrimSpace(doc.Details.PublicationDate),
			Contributors:    contributors,
			ProductIDs:      productIDs,
			MaterialTypes:   materialTypes,
		},
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
}
