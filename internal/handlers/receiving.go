package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/shelfwise/acquisitions/internal/domain"
	"github.com/shelfwise/acquisitions/internal/platform/httpx"
	"github.com/shelfwise/acquisitions/internal/services"
)

const maxReceivingBodySize = 1 << 20

// ReceivingHandlers exposes the receive, check-in, and history endpoints.
type ReceivingHandlers struct {
	receiving services.ReceivingService
}

// NewReceivingHandlers constructs a new ReceivingHandlers instance.
func NewReceivingHandlers(receiving services.ReceivingService) *ReceivingHandlers {
	return &ReceivingHandlers{receiving: receiving}
}

// Routes registers the /receiving endpoints.
func (h *ReceivingHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/receive", h.receive)
	r.Post("/check-in", h.checkIn)
	r.Get("/history", h.history)
}

type receivedItemPayload struct {
	PieceID    string `json:"pieceId"`
	ItemStatus string `json:"itemStatus,omitempty"`
	Barcode    string `json:"barcode,omitempty"`
	Caption    string `json:"caption,omitempty"`
	Comment    string `json:"comment,omitempty"`
	LocationID string `json:"locationId,omitempty"`
	HoldingID  string `json:"holdingId,omitempty"`
}

type toBeReceivedPayload struct {
	OrderLineID   string                `json:"orderLineId"`
	ReceivedItems []receivedItemPayload `json:"receivedItems"`
}

type receiveRequest struct {
	ToBeReceived []toBeReceivedPayload `json:"toBeReceived"`
}

type checkInPiecePayload struct {
	PieceID    string `json:"pieceId"`
	ItemStatus string `json:"itemStatus,omitempty"`
	Barcode    string `json:"barcode,omitempty"`
	Caption    string `json:"caption,omitempty"`
	Comment    string `json:"comment,omitempty"`
	LocationID string `json:"locationId,omitempty"`
	HoldingID  string `json:"holdingId,omitempty"`
	CreateItem bool   `json:"createItem,omitempty"`
}

type toBeCheckedInPayload struct {
	OrderLineID   string                `json:"orderLineId"`
	CheckInPieces []checkInPiecePayload `json:"checkInPieces"`
}

type checkInRequest struct {
	ToBeCheckedIn []toBeCheckedInPayload `json:"toBeCheckedIn"`
}

type pieceStatusPayload struct {
	PieceID   string `json:"pieceId"`
	Succeeded bool   `json:"succeeded"`
	ErrorCode string `json:"errorCode,omitempty"`
}

type receivingResultPayload struct {
	OrderLineID           string               `json:"orderLineId"`
	ProcessedSuccessfully int                  `json:"processedSuccessfully"`
	ProcessedWithError    int                  `json:"processedWithError"`
	Pieces                []pieceStatusPayload `json:"pieces"`
}

type receivingResultsResponse struct {
	TotalRecords int                      `json:"totalRecords"`
	Results      []receivingResultPayload `json:"results"`
}

type historyEntryPayload struct {
	ID              string `json:"id"`
	PieceID         string `json:"pieceId"`
	OrderLineID     string `json:"orderLineId"`
	OrderID         string `json:"orderId"`
	Title           string `json:"title,omitempty"`
	Format          string `json:"format"`
	ReceivingStatus string `json:"receivingStatus"`
	ReceivedDate    string `json:"receivedDate,omitempty"`
	Comment         string `json:"comment,omitempty"`
}

type historyResponse struct {
	TotalRecords int                   `json:"totalRecords"`
	Entries      []historyEntryPayload `json:"entries"`
}

func (h *ReceivingHandlers) receive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.receiving == nil {
		httpx.WriteError(ctx, w, httpx.NewError("receiving_service_unavailable", "receiving service unavailable", http.StatusServiceUnavailable))
		return
	}

	var payload receiveRequest
	if !decodeRequestBody(ctx, w, r, &payload) {
		return
	}

	batch := domain.ReceivingBatch{ToBeReceived: make([]domain.ToBeReceived, 0, len(payload.ToBeReceived))}
	for _, line := range payload.ToBeReceived {
		items := make([]domain.ReceivedItem, 0, len(line.ReceivedItems))
		for _, item := range line.ReceivedItems {
			items = append(items, domain.ReceivedItem{
				PieceID:    item.PieceID,
				ItemStatus: item.ItemStatus,
				Barcode:    item.Barcode,
				Caption:    item.Caption,
				Comment:    item.Comment,
				LocationID: item.LocationID,
				HoldingID:  item.HoldingID,
			})
		}
		batch.ToBeReceived = append(batch.ToBeReceived, domain.ToBeReceived{
			OrderLineID:   line.OrderLineID,
			ReceivedItems: items,
		})
	}

	results, err := h.receiving.Receive(ctx, batch)
	if err != nil {
		writeReceivingError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildReceivingResults(results))
}

func (h *ReceivingHandlers) checkIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.receiving == nil {
		httpx.WriteError(ctx, w, httpx.NewError("receiving_service_unavailable", "receiving service unavailable", http.StatusServiceUnavailable))
		return
	}

	var payload checkInRequest
	if !decodeRequestBody(ctx, w, r, &payload) {
		return
	}

	batch := domain.CheckInBatch{ToBeCheckedIn: make([]domain.ToBeCheckedIn, 0, len(payload.ToBeCheckedIn))}
	for _, line := range payload.ToBeCheckedIn {
		pieces := make([]domain.CheckInPiece, 0, len(line.CheckInPieces))
		for _, piece := range line.CheckInPieces {
			pieces = append(pieces, domain.CheckInPiece{
				PieceID:    piece.PieceID,
				ItemStatus: piece.ItemStatus,
				Barcode:    piece.Barcode,
				Caption:    piece.Caption,
				Comment:    piece.Comment,
				LocationID: piece.LocationID,
				HoldingID:  piece.HoldingID,
				CreateItem: piece.CreateItem,
			})
		}
		batch.ToBeCheckedIn = append(batch.ToBeCheckedIn, domain.ToBeCheckedIn{
			OrderLineID:   line.OrderLineID,
			CheckInPieces: pieces,
		})
	}

	results, err := h.receiving.CheckIn(ctx, batch)
	if err != nil {
		writeReceivingError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildReceivingResults(results))
}

func (h *ReceivingHandlers) history(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.receiving == nil {
		httpx.WriteError(ctx, w, httpx.NewError("receiving_service_unavailable", "receiving service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	historyQuery := services.HistoryQuery{
		OrderLineID: strings.TrimSpace(query.Get("orderLineId")),
		Title:       strings.TrimSpace(query.Get("title")),
	}

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be a non-negative integer", http.StatusBadRequest))
			return
		}
		historyQuery.Limit = limit
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "offset must be a non-negative integer", http.StatusBadRequest))
			return
		}
		historyQuery.Offset = offset
	}

	page, err := h.receiving.History(ctx, historyQuery)
	if err != nil {
		writeReceivingError(ctx, w, err)
		return
	}

	entries := make([]historyEntryPayload, 0, len(page.Entries))
	for _, entry := range page.Entries {
		entries = append(entries, historyEntryPayload{
			ID:              entry.ID,
			PieceID:         entry.PieceID,
			OrderLineID:     entry.OrderLineID,
			OrderID:         entry.OrderID,
			Title:           entry.Title,
			Format:          string(entry.Format),
			ReceivingStatus: string(entry.ReceivingStatus),
			ReceivedDate:    formatTimePointer(entry.ReceivedDate),
			Comment:         entry.Comment,
		})
	}
	writeJSONResponse(w, http.StatusOK, historyResponse{
		TotalRecords: page.TotalRecords,
		Entries:      entries,
	})
}

func buildReceivingResults(results domain.ReceivingResults) receivingResultsResponse {
	payload := receivingResultsResponse{
		TotalRecords: results.TotalRecords,
		Results:      make([]receivingResultPayload, 0, len(results.Results)),
	}
	for _, result := range results.Results {
		pieces := make([]pieceStatusPayload, 0, len(result.Pieces))
		for _, piece := range result.Pieces {
			pieces = append(pieces, pieceStatusPayload{
				PieceID:   piece.PieceID,
				Succeeded: piece.Succeeded,
				ErrorCode: piece.ErrorCode,
			})
		}
		payload.Results = append(payload.Results, receivingResultPayload{
			OrderLineID:           result.OrderLineID,
			ProcessedSuccessfully: result.ProcessedSuccessfully,
			ProcessedWithError:    result.ProcessedWithError,
			Pieces:                pieces,
		})
	}
	return payload
}

func decodeRequestBody(ctx context.Context, w http.ResponseWriter, r *http.Request, target any) bool {
	body := http.MaxBytesReader(w, r.Body, maxReceivingBodySize)
	defer func() {
		_, _ = io.Copy(io.Discard, body)
		_ = body.Close()
	}()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func writeReceivingError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrReceivingInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrInvalidProductType):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_product_type", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrMissingMaterialType):
		httpx.WriteError(ctx, w, httpx.NewError("missing_material_type", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrMissingLookupEntry):
		httpx.WriteError(ctx, w, httpx.NewError("missing_reference_entry", err.Error(), http.StatusUnprocessableEntity))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("receiving_error", "failed to process receiving request", http.StatusInternalServerError))
	}
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTimePointer(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
