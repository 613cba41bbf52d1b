package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/shelfwise/acquisitions/internal/domain"
	pfirestore "github.com/shelfwise/acquisitions/internal/platform/firestore"
	"github.com/shelfwise/acquisitions/internal/repositories"
)

const piecesCollection = "pieces"

// Firestore in clauses accept at most 10 values per query.
const maxInClauseValues = 10

// PieceRepository persists piece records in Firestore.
type PieceRepository struct {
	base *pfirestore.BaseRepository[pieceDocument]
}

// NewPieceRepository constructs a Firestore-backed piece repository.
func NewPieceRepository(provider *pfirestore.Provider) (*PieceRepository, error) {
	if provider == nil {
		return nil, errors.New("piece repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[pieceDocument](provider, piecesCollection, nil, nil)
	return &PieceRepository{base: base}, nil
}

// FindByIDs returns pieces from the given ID set that belong to the order line.
// Unknown IDs are omitted from the result.
func (r *PieceRepository) FindByIDs(ctx context.Context, orderLineID string, pieceIDs []string) ([]domain.Piece, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("piece repository not initialised")
	}
	orderLineID = strings.TrimSpace(orderLineID)
	if orderLineID == "" {
		return nil, errors.New("piece repository: order line id is required")
	}

	ids := uniqueNonEmpty(pieceIDs)
	if len(ids) == 0 {
		return nil, nil
	}

	var pieces []domain.Piece
	for start := 0; start < len(ids); start += maxInClauseValues {
		end := min(start+maxInClauseValues, len(ids))
		chunk := ids[start:end]

		docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
			return q.
				Where("orderLineId", "==", orderLineID).
				Where(firestore.DocumentID, "in", chunk)
		})
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			pieces = append(pieces, decodePieceDocument(doc.ID, doc.Data))
		}
	}
	return pieces, nil
}

// ListByOrderLine returns every piece attached to the order line.
func (r *PieceRepository) ListByOrderLine(ctx context.Context, orderLineID string) ([]domain.Piece, error) {
	if r == nil || r.base == nil {
		return nil, errors.New("piece repository not initialised")
	}
	orderLineID = strings.TrimSpace(orderLineID)
	if orderLineID == "" {
		return nil, errors.New("piece repository: order line id is required")
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderLineId", "==", orderLineID)
	})
	if err != nil {
		return nil, err
	}

	pieces := make([]domain.Piece, 0, len(docs))
	for _, doc := range docs {
		pieces = append(pieces, decodePieceDocument(doc.ID, doc.Data))
	}
	return pieces, nil
}

// UpdateBatch writes the given pieces with a bulk writer and reports the
// outcome per piece. A write failure for one piece does not abort the rest.
func (r *PieceRepository) UpdateBatch(ctx context.Context, pieces []domain.Piece) (repositories.PieceBatchResult, error) {
	result := repositories.PieceBatchResult{Failed: map[string]error{}}
	if r == nil || r.base == nil {
		return result, errors.New("piece repository not initialised")
	}
	if len(pieces) == 0 {
		return result, nil
	}

	writer, err := r.base.BulkWriter(ctx)
	if err != nil {
		return result, err
	}

	type pendingWrite struct {
		pieceID string
		job     *firestore.BulkWriterJob
	}

	pending := make([]pendingWrite, 0, len(pieces))
	for _, piece := range pieces {
		pieceID := strings.TrimSpace(piece.ID)
		if pieceID == "" {
			continue
		}
		docRef, err := r.base.DocumentRef(ctx, pieceID)
		if err != nil {
			result.Failed[pieceID] = err
			continue
		}
		job, err := writer.Set(docRef, encodePieceDocument(piece))
		if err != nil {
			result.Failed[pieceID] = pfirestore.WrapError("pieces.update_batch", err)
			continue
		}
		pending = append(pending, pendingWrite{pieceID: pieceID, job: job})
	}
	writer.End()

	for _, write := range pending {
		if _, err := write.job.Results(); err != nil {
			result.Failed[write.pieceID] = pfirestore.WrapError("pieces.update_batch", err)
			continue
		}
		result.Succeeded = append(result.Succeeded, write.pieceID)
	}
	return result, nil
}

type pieceDocument struct {
	OrderLineID     string     `firestore:"orderLineId"`
	Format          string     `firestore:"format"`
	ItemID          string     `firestore:"itemId,omitempty"`
	LocationID      string     `firestore:"locationId,omitempty"`
	HoldingID       string     `firestore:"holdingId,omitempty"`
	Caption         string     `firestore:"caption,omitempty"`
	Comment         string     `firestore:"comment,omitempty"`
	ReceivingStatus string     `firestore:"receivingStatus"`
	ReceivedDate    *time.Time `firestore:"receivedDate,omitempty"`
	UpdatedAt       time.Time  `firestore:"updatedAt"`
}

func encodePieceDocument(piece domain.Piece) pieceDocument {
	return pieceDocument{
		OrderLineID:     strings.TrimSpace(piece.OrderLineID),
		Format:          strings.TrimSpace(string(piece.Format)),
		ItemID:          strings.TrimSpace(piece.ItemID),
		LocationID:      strings.TrimSpace(piece.LocationID),
		HoldingID:       strings.TrimSpace(piece.HoldingID),
		Caption:         strings.TrimSpace(piece.Caption),
		Comment:         strings.TrimSpace(piece.Comment),
		ReceivingStatus: strings.TrimSpace(string(piece.ReceivingStatus)),
		ReceivedDate:    normalizeTimePointer(piece.ReceivedDate),
		UpdatedAt:       piece.UpdatedAt.UTC(),
	}
}

func decodePieceDocument(id string, doc pieceDocument) domain.Piece {
	return domain.Piece{
		ID:              strings.TrimSpace(id),
		OrderLineID:     strings.TrimSpace(doc.OrderLineID),
		Format:          domain.PieceFormat(strings.TrimSpace(doc.Format)),
		ItemID:          strings.TrimSpace(doc.ItemID),
		LocationID:      strings.TrimSpace(doc.LocationID),
		HoldingID:       strings.TrimSpace(doc.HoldingID),
		Caption:         strings.TrimSpace(doc.Caption),
		Comment:         strings.TrimSpace(doc.Comment),
		ReceivingStatus: domain.ReceivingStatus(strings.TrimSpace(doc.ReceivingStatus)),
		ReceivedDate:    normalizeTimePointer(doc.ReceivedDate),
		UpdatedAt:       doc.UpdatedAt.UTC(),
	}
}

func uniqueNonEmpty(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

func normalizeTimePointer(value *time.Time) *time.Time {
	if value == nil || value.IsZero() {
		return nil
	}
	ts := value.UTC()
	return &ts
}
