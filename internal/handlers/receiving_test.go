package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/shelfwise/acquisitions/internal/domain"
	"github.com/shelfwise/acquisitions/internal/services"
)

type stubReceivingService struct {
	receiveFn func(ctx context.Context, batch domain.ReceivingBatch) (domain.ReceivingResults, error)
	checkInFn func(ctx context.Context, batch domain.CheckInBatch) (domain.ReceivingResults, error)
	historyFn func(ctx context.Context, query services.HistoryQuery) (domain.HistoryPage, error)
}

func (s *stubReceivingService) Receive(ctx context.Context, batch domain.ReceivingBatch) (domain.ReceivingResults, error) {
	if s.receiveFn != nil {
		return s.receiveFn(ctx, batch)
	}
	return domain.ReceivingResults{}, nil
}

func (s *stubReceivingService) CheckIn(ctx context.Context, batch domain.CheckInBatch) (domain.ReceivingResults, error) {
	if s.checkInFn != nil {
		return s.checkInFn(ctx, batch)
	}
	return domain.ReceivingResults{}, nil
}

func (s *stubReceivingService) History(ctx context.Context, query services.HistoryQuery) (domain.HistoryPage, error) {
	if s.historyFn != nil {
		return s.historyFn(ctx, query)
	}
	return domain.HistoryPage{}, nil
}

func newTestServer(svc services.ReceivingService) http.Handler {
	return NewRouter(WithReceivingRoutes(NewReceivingHandlers(svc).Routes))
}

func TestReceiveEndpointReturnsResults(t *testing.T) {
	svc := &stubReceivingService{
		receiveFn: func(_ context.Context, batch domain.ReceivingBatch) (domain.ReceivingResults, error) {
			if len(batch.ToBeReceived) != 1 || batch.ToBeReceived[0].OrderLineID != "line-1" {
				t.Fatalf("unexpected batch %#v", batch)
			}
			if batch.ToBeReceived[0].ReceivedItems[0].ItemStatus != "In process" {
				t.Fatalf("item status not forwarded: %#v", batch.ToBeReceived[0].ReceivedItems[0])
			}
			return domain.ReceivingResults{
				TotalRecords: 1,
				Results: []domain.ReceivingResult{{
					OrderLineID:           "line-1",
					ProcessedSuccessfully: 1,
					Pieces: []domain.PieceProcessingStatus{
						{PieceID: "piece-1", Succeeded: true},
					},
				}},
			}, nil
		},
	}

	body := `{"toBeReceived":[{"orderLineId":"line-1","receivedItems":[{"pieceId":"piece-1","itemStatus":"In process"}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/receiving/receive", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload receivingResultsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.TotalRecords != 1 || payload.Results[0].ProcessedSuccessfully != 1 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if payload.Results[0].Pieces[0].PieceID != "piece-1" || !payload.Results[0].Pieces[0].Succeeded {
		t.Fatalf("unexpected piece status %#v", payload.Results[0].Pieces)
	}
}

func TestReceiveEndpointRejectsMalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/receiving/receive", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	newTestServer(&stubReceivingService{}).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestReceiveEndpointMapsServiceErrors(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"invalid input", services.ErrReceivingInvalidInput, http.StatusBadRequest, "invalid_request"},
		{"invalid product type", services.ErrInvalidProductType, http.StatusUnprocessableEntity, "invalid_product_type"},
		{"missing material type", services.ErrMissingMaterialType, http.StatusUnprocessableEntity, "missing_material_type"},
		{"missing reference entry", services.ErrMissingLookupEntry, http.StatusUnprocessableEntity, "missing_reference_entry"},
		{"backend failure", errors.New("firestore unavailable"), http.StatusInternalServerError, "receiving_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubReceivingService{
				receiveFn: func(context.Context, domain.ReceivingBatch) (domain.ReceivingResults, error) {
					return domain.ReceivingResults{}, tc.err
				},
			}
			body := `{"toBeReceived":[{"orderLineId":"line-1","receivedItems":[{"pieceId":"p"}]}]}`
			req := httptest.NewRequest(http.MethodPost, "/api/v1/receiving/receive", strings.NewReader(body))
			rec := httptest.NewRecorder()
			newTestServer(svc).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d", tc.wantStatus, rec.Code)
			}
			var envelope map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("unmarshal error envelope: %v", err)
			}
			if envelope["error"] != tc.wantCode {
				t.Fatalf("expected code %q, got %v", tc.wantCode, envelope["error"])
			}
		})
	}
}

func TestCheckInEndpointForwardsCreateItem(t *testing.T) {
	var captured domain.CheckInBatch
	svc := &stubReceivingService{
		checkInFn: func(_ context.Context, batch domain.CheckInBatch) (domain.ReceivingResults, error) {
			captured = batch
			return domain.ReceivingResults{TotalRecords: 1}, nil
		},
	}

	body := `{"toBeCheckedIn":[{"orderLineId":"line-1","checkInPieces":[{"pieceId":"piece-1","locationId":"loc-1","createItem":true}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/receiving/check-in", strings.NewReader(body))
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	piece := captured.ToBeCheckedIn[0].CheckInPieces[0]
	if !piece.CreateItem || piece.LocationID != "loc-1" {
		t.Fatalf("check-in piece not forwarded: %#v", piece)
	}
}

func TestHistoryEndpointParsesQuery(t *testing.T) {
	receivedAt := time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)
	var captured services.HistoryQuery
	svc := &stubReceivingService{
		historyFn: func(_ context.Context, query services.HistoryQuery) (domain.HistoryPage, error) {
			captured = query
			return domain.HistoryPage{
				TotalRecords: 1,
				Entries: []domain.ReceivingHistoryEntry{{
					ID:              "hist-1",
					PieceID:         "piece-1",
					OrderLineID:     "line-1",
					OrderID:         "order-1",
					Format:          domain.PieceFormatPhysical,
					ReceivingStatus: domain.ReceivingStatusReceived,
					ReceivedDate:    &receivedAt,
				}},
			}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/receiving/history?orderLineId=line-1&title=Dune&limit=5&offset=10", nil)
	rec := httptest.NewRecorder()
	newTestServer(svc).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if captured.OrderLineID != "line-1" || captured.Title != "Dune" || captured.Limit != 5 || captured.Offset != 10 {
		t.Fatalf("unexpected query %#v", captured)
	}

	var payload historyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if payload.TotalRecords != 1 || payload.Entries[0].ReceivedDate == "" {
		t.Fatalf("unexpected payload %#v", payload)
	}
}

func TestHistoryEndpointRejectsInvalidPaging(t *testing.T) {
	for _, target := range []string{
		"/api/v1/receiving/history?limit=abc",
		"/api/v1/receiving/history?offset=-1",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		newTestServer(&stubReceivingService{}).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", target, rec.Code)
		}
	}
}

func TestRouterServesHealthAndUnknownRoutes(t *testing.T) {
	handler := newTestServer(&stubReceivingService{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected healthz 200, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/unknown", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	var envelope map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal error envelope: %v", err)
	}
	if envelope["error"] != "route_not_found" {
		t.Fatalf("unexpected envelope %#v", envelope)
	}
}
