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

const receivingHistoryCollection = "receivingHistory"

// ReceivingHistoryRepository persists the denormalised receiving history view.
type ReceivingHistoryRepository struct {
	base *pfirestore.BaseRepository[historyDocument]
}

// NewReceivingHistoryRepository constructs a Firestore-backed history repository.
func NewReceivingHistoryRepository(provider *pfirestore.Provider) (*ReceivingHistoryRepository, error) {
	if provider == nil {
		return nil, errors.New("receiving history repository: firestore provider is required")
	}
	base := pfirestore.NewBaseRepository[historyDocument](provider, receivingHistoryCollection, nil, nil)
	return &ReceivingHistoryRepository{base: base}, nil
}

// Append writes history entries with a bulk writer. Entries without an ID are skipped.
func (r *ReceivingHistoryRepository) Append(ctx context.Context, entries []domain.ReceivingHistoryEntry) error {
	if r == nil || r.base == nil {
		return errors.New("receiving history repository not initialised")
	}
	if len(entries) == 0 {
		return nil
	}

	writer, err := r.base.BulkWriter(ctx)
	if err != nil {
		return err
	}

	jobs := make([]*firestore.BulkWriterJob, 0, len(entries))
	for _, entry := range entries {
		entryID := strings.TrimSpace(entry.ID)
		if entryID == "" {
			continue
		}
		docRef, err := r.base.DocumentRef(ctx, entryID)
		if err != nil {
			return err
		}
		job, err := writer.Set(docRef, encodeHistoryDocument(entry))
		if err != nil {
			return pfirestore.WrapError("receiving_history.append", err)
		}
		jobs = append(jobs, job)
	}
	writer.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return pfirestore.WrapError("receiving_history.append", err)
		}
	}
	return nil
}

// Search lists history entries matching the filter, most recent first, with
// the total count across all pages.
func (r *ReceivingHistoryRepository) Search(ctx context.Context, filter repositories.HistoryFilter) (domain.HistoryPage, error) {
	if r == nil || r.base == nil {
		return domain.HistoryPage{}, errors.New("receiving history repository not initialised")
	}

	orderLineID := strings.TrimSpace(filter.OrderLineID)
	title := strings.TrimSpace(filter.Title)

	match := func(q firestore.Query) firestore.Query {
		if orderLineID != "" {
			q = q.Where("orderLineId", "==", orderLineID)
		}
		if title != "" {
			q = q.Where("title", "==", title)
		}
		return q
	}

	total, err := r.base.Count(ctx, match)
	if err != nil {
		return domain.HistoryPage{}, err
	}

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		q = match(q)
		q = q.OrderBy("receivedDate", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return domain.HistoryPage{}, err
	}

	entries := make([]domain.ReceivingHistoryEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, decodeHistoryDocument(doc.ID, doc.Data))
	}
	return domain.HistoryPage{
		TotalRecords: total,
		Entries:      entries,
	}, nil
}

type historyDocument struct {
	PieceID         string     `firestore:"pieceId"`
	OrderLineID     string     `firestore:"orderLineId"`
	OrderID         string     `firestore:"orderId"`
	Title           string     `firestore:"title,omitempty"`
	Format          string     `firestore:"format"`
	ReceivingStatus string     `firestore:"receivingStatus"`
	ReceivedDate    *time.Time `firestore:"receivedDate,omitempty"`
	Comment         string     `firestore:"comment,omitempty"`
}

func encodeHistoryDocument(entry domain.ReceivingHistoryEntry) historyDocument {
	return historyDocument{
		PieceID:         strings.TrimSpace(entry.PieceID),
		OrderLineID:     strings.TrimSpace(entry.OrderLineID),
		OrderID:         strings.TrimSpace(entry.OrderID),
		Title:           strings.TrimSpace(entry.Title),
		Format:          strings.TrimSpace(string(entry.Format)),
		ReceivingStatus: strings.TrimSpace(string(entry.ReceivingStatus)),
		ReceivedDate:    normalizeTimePointer(entry.ReceivedDate),
		Comment:         strings.TrimSpace(entry.Comment),
	}
}

func decodeHistoryDocument(id string, doc historyDocument) domain.ReceivingHistoryEntry {
	return domain.ReceivingHistoryEntry{
		ID:              strings.TrimSpace(id),
		PieceID:         strings.TrimSpace(doc.PieceID),
		OrderLineID:     strings.TrimSpace(doc.OrderLineID),
		OrderID:         strings.TrimSpace(doc.OrderID),
		Title:           strings.TrimSpace(doc.Title),
		Format:          domain.PieceFormat(strings.TrimSpace(doc.Format)),
		ReceivingStatus: domain.ReceivingStatus(strings.TrimSpace(doc.ReceivingStatus)),
		ReceivedDate:    normalizeTimePointer(doc.ReceivedDate),
		Comment:         strings.TrimSpace(doc.Comment),
	}
}
