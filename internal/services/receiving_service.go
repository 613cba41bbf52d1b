package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/shelfwise/acquisitions/internal/domain"
	"github.com/shelfwise/acquisitions/internal/repositories"
)

const (
	eventBatchProcessed     = "receiving.batch_processed"
	eventLineFailed         = "receiving.line_failed"
	eventRollUpFailed       = "receiving.roll_up_failed"
	eventHistoryWriteFailed = "receiving.history_write_failed"
	eventOrderPublishFailed = "receiving.order_event_failed"

	sourceReceive = "receive"
	sourceCheckIn = "check-in"

	defaultHistoryLimit    = 20
	defaultHistoryMaxLimit = 100
)

// errLineResolution marks instance or holding resolution failures. They fail
// every piece of the affected order line, not just the piece being processed.
var errLineResolution = errors.New("receiving: inventory resolution failed for order line")

// ReceivingServiceDeps bundles the collaborators required to construct a receiving service.
type ReceivingServiceDeps struct {
	Pieces     repositories.PieceRepository
	OrderLines repositories.OrderLineRepository
	Catalog    repositories.CatalogRepository
	History    repositories.ReceivingHistoryRepository
	Resolver   InventoryResolver
	Events     OrderStatusEventPublisher

	MaxBatchPieces  int
	HistoryLimit    int
	HistoryMaxLimit int

	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type receivingService struct {
	pieces     repositories.PieceRepository
	orderLines repositories.OrderLineRepository
	catalog    repositories.CatalogRepository
	history    repositories.ReceivingHistoryRepository
	resolver   InventoryResolver
	events     OrderStatusEventPublisher

	maxBatchPieces  int
	historyLimit    int
	historyMaxLimit int

	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewReceivingService wires dependencies into a concrete ReceivingService implementation.
func NewReceivingService(deps ReceivingServiceDeps) (ReceivingService, error) {
	if deps.Pieces == nil {
		return nil, errors.New("receiving service: piece repository is required")
	}
	if deps.OrderLines == nil {
		return nil, errors.New("receiving service: order line repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("receiving service: catalog repository is required")
	}
	if deps.History == nil {
		return nil, errors.New("receiving service: history repository is required")
	}
	if deps.Resolver == nil {
		return nil, errors.New("receiving service: inventory resolver is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	historyLimit := deps.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	historyMaxLimit := deps.HistoryMaxLimit
	if historyMaxLimit <= 0 {
		historyMaxLimit = defaultHistoryMaxLimit
	}
	if historyMaxLimit < historyLimit {
		historyMaxLimit = historyLimit
	}

	return &receivingService{
		pieces:          deps.Pieces,
		orderLines:      deps.OrderLines,
		catalog:         deps.Catalog,
		history:         deps.History,
		resolver:        deps.Resolver,
		events:          deps.Events,
		maxBatchPieces:  deps.MaxBatchPieces,
		historyLimit:    historyLimit,
		historyMaxLimit: historyMaxLimit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *receivingService) Receive(ctx context.Context, batch domain.ReceivingBatch) (domain.ReceivingResults, error) {
	groups, total, err := groupReceivingBatch(batch)
	if err != nil {
		return domain.ReceivingResults{}, err
	}
	if err := s.validateBatchSize(total); err != nil {
		return domain.ReceivingResults{}, err
	}
	return s.process(ctx, groups, sourceReceive)
}

func (s *receivingService) CheckIn(ctx context.Context, batch domain.CheckInBatch) (domain.ReceivingResults, error) {
	groups, total, err := groupCheckInBatch(batch)
	if err != nil {
		return domain.ReceivingResults{}, err
	}
	if err := s.validateBatchSize(total); err != nil {
		return domain.ReceivingResults{}, err
	}
	return s.process(ctx, groups, sourceCheckIn)
}

func (s *receivingService) History(ctx context.Context, query HistoryQuery) (domain.HistoryPage, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = s.historyLimit
	}
	if limit > s.historyMaxLimit {
		limit = s.historyMaxLimit
	}
	offset := query.Offset
	if offset < 0 {
		offset = 0
	}

	page, err := s.history.Search(ctx, repositories.HistoryFilter{
		OrderLineID: strings.TrimSpace(query.OrderLineID),
		Title:       strings.TrimSpace(query.Title),
		Limit:       limit,
		Offset:      offset,
	})
	if err != nil {
		return domain.HistoryPage{}, err
	}
	return page, nil
}

func (s *receivingService) validateBatchSize(total int) error {
	if total == 0 {
		return fmt.Errorf("%w: batch contains no pieces", ErrReceivingInvalidInput)
	}
	if s.maxBatchPieces > 0 && total > s.maxBatchPieces {
		return fmt.Errorf("%w: batch exceeds %d pieces", ErrReceivingInvalidInput, s.maxBatchPieces)
	}
	return nil
}

// process runs the shared receive/check-in pipeline: fetch lines, fan out per
// line, store pieces, roll up receipt statuses, emit order events, and write
// history.
func (s *receivingService) process(ctx context.Context, groups map[string]map[string]pieceUpdate, source string) (domain.ReceivingResults, error) {
	ctx = withLookupCache(ctx)
	ctx = withItemClaims(ctx)

	lineIDs := make([]string, 0, len(groups))
	for lineID := range groups {
		lineIDs = append(lineIDs, lineID)
	}
	sort.Strings(lineIDs)

	lines, err := s.orderLines.FindByIDs(ctx, lineIDs)
	if err != nil {
		return domain.ReceivingResults{}, err
	}
	lineByID := make(map[string]domain.OrderLine, len(lines))
	for _, line := range lines {
		lineByID[line.ID] = line
	}

	acc := newBatchAccumulator()

	var wg sync.WaitGroup
	for _, lineID := range lineIDs {
		wg.Add(1)
		go func(lineID string) {
			defer wg.Done()
			line, found := lineByID[lineID]
			s.processLine(ctx, lineID, line, found, groups[lineID], acc)
		}(lineID)
	}
	wg.Wait()

	if err := acc.abortError(); err != nil {
		return domain.ReceivingResults{}, err
	}

	changedByOrder := s.rollUpReceiptStatuses(ctx, lineByID, acc)
	s.publishOrderEvents(ctx, changedByOrder, source)
	s.appendHistory(ctx, lineByID, acc)

	results := acc.assemble(lineIDs)
	s.logger(ctx, eventBatchProcessed, map[string]any{
		"source":      source,
		"order_lines": len(lineIDs),
		"pieces":      countPieces(groups),
	})
	return results, nil
}

func (s *receivingService) processLine(ctx context.Context, lineID string, line domain.OrderLine, lineFound bool, updates map[string]pieceUpdate, acc *batchAccumulator) {
	if !lineFound {
		for pieceID := range updates {
			acc.fail(lineID, pieceID, errorCodePieceNotFound)
		}
		return
	}

	pieceIDs := make([]string, 0, len(updates))
	for pieceID := range updates {
		pieceIDs = append(pieceIDs, pieceID)
	}

	pieces, err := s.pieces.FindByIDs(ctx, lineID, pieceIDs)
	if err != nil {
		s.logger(ctx, eventLineFailed, map[string]any{
			"order_line_id": lineID,
			"error":         err.Error(),
		})
		for pieceID := range updates {
			acc.fail(lineID, pieceID, errorCodePieceUpdateFailed)
		}
		return
	}

	pieceByID := make(map[string]domain.Piece, len(pieces))
	for _, piece := range pieces {
		pieceByID[piece.ID] = piece
	}

	recorded := map[string]bool{}
	fail := func(pieceID string, code string) {
		acc.fail(lineID, pieceID, code)
		recorded[pieceID] = true
	}

	for pieceID := range updates {
		if _, ok := pieceByID[pieceID]; !ok {
			fail(pieceID, errorCodePieceNotFound)
		}
	}

	itemByID, itemFetchErr := s.fetchItems(ctx, pieceByID)

	now := s.clock()
	var toStore []domain.Piece
	for pieceID, piece := range pieceByID {
		update := updates[pieceID]

		locationID, holdingID := targetLocation(piece, update)
		if locationID == "" && holdingID == "" {
			fail(pieceID, errorCodeLocationMissing)
			continue
		}

		rollback := isOnOrderStatus(update.itemStatus)

		switch {
		case piece.ItemID == "" && update.createItem:
			itemID, resolvedHoldingID, err := s.createItemForPiece(ctx, line, piece, locationID, holdingID, update)
			if err != nil {
				if isAbortError(err) {
					acc.setAbort(err)
					return
				}
				s.logger(ctx, eventLineFailed, map[string]any{
					"order_line_id": lineID,
					"piece_id":      pieceID,
					"error":         err.Error(),
				})
				if errors.Is(err, errLineResolution) {
					for id := range updates {
						if !recorded[id] {
							fail(id, errorCodeItemCreationFailed)
						}
					}
					return
				}
				fail(pieceID, errorCodeItemCreationFailed)
				continue
			}
			piece.ItemID = itemID
			piece.HoldingID = resolvedHoldingID

		case piece.ItemID != "" && update.itemStatus != "":
			if itemFetchErr != nil {
				fail(pieceID, errorCodeItemNotRetrieved)
				continue
			}
			item, ok := itemByID[piece.ItemID]
			if !ok {
				fail(pieceID, errorCodeItemNotRetrieved)
				continue
			}
			item.Status = update.itemStatus
			if update.barcode != "" {
				item.Barcode = update.barcode
			}
			if err := s.catalog.UpdateItem(ctx, item); err != nil {
				s.logger(ctx, eventLineFailed, map[string]any{
					"order_line_id": lineID,
					"piece_id":      pieceID,
					"item_id":       item.ID,
					"error":         err.Error(),
				})
				fail(pieceID, errorCodeItemUpdateFailed)
				continue
			}
		}

		toStore = append(toStore, applyPieceUpdate(piece, update, rollback, now))
	}

	if len(toStore) == 0 {
		return
	}

	result, err := s.pieces.UpdateBatch(ctx, toStore)
	if err != nil {
		s.logger(ctx, eventLineFailed, map[string]any{
			"order_line_id": lineID,
			"error":         err.Error(),
		})
		for _, piece := range toStore {
			acc.fail(lineID, piece.ID, errorCodePieceUpdateFailed)
		}
		return
	}
	for _, piece := range toStore {
		if writeErr, failed := result.Failed[piece.ID]; failed {
			s.logger(ctx, eventLineFailed, map[string]any{
				"order_line_id": lineID,
				"piece_id":      piece.ID,
				"error":         writeErr.Error(),
			})
			acc.fail(lineID, piece.ID, errorCodePieceUpdateFailed)
			continue
		}
		acc.succeed(lineID, piece)
	}
}

func (s *receivingService) fetchItems(ctx context.Context, pieceByID map[string]domain.Piece) (map[string]domain.Item, error) {
	itemIDs := make([]string, 0, len(pieceByID))
	for _, piece := range pieceByID {
		if piece.ItemID != "" {
			itemIDs = append(itemIDs, piece.ItemID)
		}
	}
	if len(itemIDs) == 0 {
		return nil, nil
	}

	items, err := s.catalog.FindItemsByIDs(ctx, itemIDs)
	if err != nil {
		return nil, err
	}
	itemByID := make(map[string]domain.Item, len(items))
	for _, item := range items {
		itemByID[item.ID] = item
	}
	return itemByID, nil
}

// targetLocation resolves the location and holding a piece is processed
// against, preferring caller-supplied values over the stored piece fields.
func targetLocation(piece domain.Piece, update pieceUpdate) (string, string) {
	locationID := update.locationID
	if locationID == "" {
		locationID = piece.LocationID
	}
	holdingID := update.holdingID
	if holdingID == "" {
		holdingID = piece.HoldingID
	}
	return locationID, holdingID
}

// createItemForPiece resolves the instance and holding chain for a piece and
// creates (or reuses) the catalog item. It returns the item and holding IDs.
// Instance and holding resolution failures are wrapped in errLineResolution.
func (s *receivingService) createItemForPiece(ctx context.Context, line domain.OrderLine, piece domain.Piece, locationID string, holdingID string, update pieceUpdate) (string, string, error) {
	if holdingID == "" {
		instanceID, err := s.resolver.GetOrCreateInstance(ctx, line)
		if err != nil {
			return "", "", wrapLineResolutionError(err)
		}
		holdingID, err = s.resolver.GetOrCreateHolding(ctx, instanceID, locationID)
		if err != nil {
			return "", "", wrapLineResolutionError(err)
		}
	}

	itemID, err := s.resolver.GetOrCreateItem(ctx, line, piece.Format, holdingID, update.itemStatus, update.barcode)
	if err != nil {
		return "", "", err
	}
	return itemID, holdingID, nil
}

func wrapLineResolutionError(err error) error {
	if isAbortError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", errLineResolution, err)
}

// rollUpReceiptStatuses recomputes the receipt status of every line with at
// least one stored piece, skipping ongoing lines, and returns the changed
// line IDs grouped by order.
func (s *receivingService) rollUpReceiptStatuses(ctx context.Context, lineByID map[string]domain.OrderLine, acc *batchAccumulator) map[string][]string {
	changedByOrder := map[string][]string{}
	for _, lineID := range acc.lineIDsWithStoredPieces() {
		line, ok := lineByID[lineID]
		if !ok {
			continue
		}
		if line.PaymentStatus == domain.PaymentStatusOngoing {
			continue
		}

		pieces, err := s.pieces.ListByOrderLine(ctx, lineID)
		if err != nil {
			s.logger(ctx, eventRollUpFailed, map[string]any{
				"order_line_id": lineID,
				"error":         err.Error(),
			})
			continue
		}

		next := deriveReceiptStatus(pieces)
		if next == line.ReceiptStatus {
			continue
		}
		if err := s.orderLines.UpdateReceiptStatus(ctx, lineID, next, s.clock()); err != nil {
			s.logger(ctx, eventRollUpFailed, map[string]any{
				"order_line_id": lineID,
				"error":         err.Error(),
			})
			continue
		}
		if orderID := strings.TrimSpace(line.OrderID); orderID != "" {
			changedByOrder[orderID] = append(changedByOrder[orderID], lineID)
		}
	}
	return changedByOrder
}

// publishOrderEvents emits one status check message per distinct order whose
// lines changed receipt status. Publish failures are logged, never surfaced.
func (s *receivingService) publishOrderEvents(ctx context.Context, changedByOrder map[string][]string, source string) {
	if s.events == nil || len(changedByOrder) == 0 {
		return
	}

	orderIDs := make([]string, 0, len(changedByOrder))
	for orderID := range changedByOrder {
		orderIDs = append(orderIDs, orderID)
	}
	sort.Strings(orderIDs)

	for _, orderID := range orderIDs {
		lineIDs := changedByOrder[orderID]
		sort.Strings(lineIDs)
		_, err := s.events.PublishOrderStatusCheck(ctx, OrderStatusCheckMessage{
			OrderID:      orderID,
			OrderLineIDs: lineIDs,
			Source:       source,
			OccurredAt:   s.clock(),
		})
		if err != nil {
			s.logger(ctx, eventOrderPublishFailed, map[string]any{
				"order_id": orderID,
				"error":    err.Error(),
			})
		}
	}
}

// appendHistory writes one history entry per stored piece. History is a read
// model, write failures are logged and do not fail the batch.
func (s *receivingService) appendHistory(ctx context.Context, lineByID map[string]domain.OrderLine, acc *batchAccumulator) {
	stored := acc.storedPieces()
	if len(stored) == 0 {
		return
	}

	entries := make([]domain.ReceivingHistoryEntry, 0, len(stored))
	for _, piece := range stored {
		line := lineByID[piece.OrderLineID]
		entries = append(entries, domain.ReceivingHistoryEntry{
			ID:              s.newID(),
			PieceID:         piece.ID,
			OrderLineID:     piece.OrderLineID,
			OrderID:         line.OrderID,
			Title:           line.Details.Title,
			Format:          piece.Format,
			ReceivingStatus: piece.ReceivingStatus,
			ReceivedDate:    piece.ReceivedDate,
			Comment:         piece.Comment,
		})
	}

	if err := s.history.Append(ctx, entries); err != nil {
		s.logger(ctx, eventHistoryWriteFailed, map[string]any{
			"entries": len(entries),
			"error":   err.Error(),
		})
	}
}

func applyPieceUpdate(piece domain.Piece, update pieceUpdate, rollback bool, now time.Time) domain.Piece {
	if update.caption != "" {
		piece.Caption = update.caption
	}
	if update.comment != "" {
		piece.Comment = update.comment
	}
	if update.locationID != "" {
		piece.LocationID = update.locationID
	}
	if update.holdingID != "" {
		piece.HoldingID = update.holdingID
	}
	if rollback {
		piece.ReceivingStatus = domain.ReceivingStatusExpected
		piece.ReceivedDate = nil
	} else {
		piece.ReceivingStatus = domain.ReceivingStatusReceived
		receivedAt := now
		piece.ReceivedDate = &receivedAt
	}
	piece.UpdatedAt = now
	return piece
}

// deriveReceiptStatus maps the piece set of a line onto its aggregate receipt
// status.
func deriveReceiptStatus(pieces []domain.Piece) domain.ReceiptStatus {
	if len(pieces) == 0 {
		return domain.ReceiptStatusAwaiting
	}
	received := 0
	for _, piece := range pieces {
		if piece.ReceivingStatus == domain.ReceivingStatusReceived {
			received++
		}
	}
	switch {
	case received == 0:
		return domain.ReceiptStatusAwaiting
	case received == len(pieces):
		return domain.ReceiptStatusFullyReceived
	default:
		return domain.ReceiptStatusPartiallyReceived
	}
}

func isAbortError(err error) bool {
	return errors.Is(err, ErrInvalidProductType) ||
		errors.Is(err, ErrMissingMaterialType) ||
		errors.Is(err, ErrMissingLookupEntry)
}

// batchAccumulator gathers per-piece outcomes from concurrent line workers.
type batchAccumulator struct {
	mu       sync.Mutex
	statuses map[string][]domain.PieceProcessingStatus
	stored   map[string][]domain.Piece
	abort    error
}

func newBatchAccumulator() *batchAccumulator {
	return &batchAccumulator{
		statuses: map[string][]domain.PieceProcessingStatus{},
		stored:   map[string][]domain.Piece{},
	}
}

func (a *batchAccumulator) fail(lineID string, pieceID string, code string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statuses[lineID] = append(a.statuses[lineID], domain.PieceProcessingStatus{
		PieceID:   pieceID,
		Succeeded: false,
		ErrorCode: code,
	})
}

func (a *batchAccumulator) succeed(lineID string, piece domain.Piece) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.statuses[lineID] = append(a.statuses[lineID], domain.PieceProcessingStatus{
		PieceID:   piece.ID,
		Succeeded: true,
	})
	a.stored[lineID] = append(a.stored[lineID], piece)
}

func (a *batchAccumulator) setAbort(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.abort == nil {
		a.abort = err
	}
}

func (a *batchAccumulator) abortError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.abort
}

func (a *batchAccumulator) lineIDsWithStoredPieces() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	lineIDs := make([]string, 0, len(a.stored))
	for lineID := range a.stored {
		lineIDs = append(lineIDs, lineID)
	}
	sort.Strings(lineIDs)
	return lineIDs
}

func (a *batchAccumulator) storedPieces() []domain.Piece {
	a.mu.Lock()
	defer a.mu.Unlock()
	var pieces []domain.Piece
	for _, lineID := range sortedKeys(a.stored) {
		pieces = append(pieces, a.stored[lineID]...)
	}
	return pieces
}

// assemble builds the caller-facing results in the given line order. Piece
// statuses are sorted by piece ID so responses are deterministic.
func (a *batchAccumulator) assemble(lineIDs []string) domain.ReceivingResults {
	a.mu.Lock()
	defer a.mu.Unlock()

	results := make([]domain.ReceivingResult, 0, len(lineIDs))
	for _, lineID := range lineIDs {
		statuses := append([]domain.PieceProcessingStatus(nil), a.statuses[lineID]...)
		sort.Slice(statuses, func(i, j int) bool {
			return statuses[i].PieceID < statuses[j].PieceID
		})

		succeeded := 0
		for _, status := range statuses {
			if status.Succeeded {
				succeeded++
			}
		}
		results = append(results, domain.ReceivingResult{
			OrderLineID:           lineID,
			ProcessedSuccessfully: succeeded,
			ProcessedWithError:    len(statuses) - succeeded,
			Pieces:                statuses,
		})
	}
	return domain.ReceivingResults{
		TotalRecords: len(results),
		Results:      results,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
