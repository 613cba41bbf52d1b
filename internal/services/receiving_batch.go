package services

import (
	"fmt"
	"strings"

	domain "github.com/shelfwise/acquisitions/internal/domain"
)

// pieceUpdate is the normalised per-piece instruction shared by the receive
// and check-in flows.
type pieceUpdate struct {
	pieceID    string
	itemStatus string
	barcode    string
	caption    string
	comment    string
	locationID string
	holdingID  string
	createItem bool
}

// groupReceivingBatch indexes received items by order line and piece. When the
// same piece appears more than once under a line, the last entry wins.
func groupReceivingBatch(batch domain.ReceivingBatch) (map[string]map[string]pieceUpdate, int, error) {
	groups := make(map[string]map[string]pieceUpdate, len(batch.ToBeReceived))
	for _, line := range batch.ToBeReceived {
		lineID := strings.TrimSpace(line.OrderLineID)
		if lineID == "" {
			return nil, 0, fmt.Errorf("%w: order line id is required", ErrReceivingInvalidInput)
		}
		for _, item := range line.ReceivedItems {
			pieceID := strings.TrimSpace(item.PieceID)
			if pieceID == "" {
				return nil, 0, fmt.Errorf("%w: piece id is required on line %s", ErrReceivingInvalidInput, lineID)
			}
			if groups[lineID] == nil {
				groups[lineID] = map[string]pieceUpdate{}
			}
			groups[lineID][pieceID] = pieceUpdate{
				pieceID:    pieceID,
				itemStatus: strings.TrimSpace(item.ItemStatus),
				barcode:    strings.TrimSpace(item.Barcode),
				caption:    strings.TrimSpace(item.Caption),
				comment:    strings.TrimSpace(item.Comment),
				locationID: strings.TrimSpace(item.LocationID),
				holdingID:  strings.TrimSpace(item.HoldingID),
			}
		}
	}
	return groups, countPieces(groups), nil
}

// groupCheckInBatch indexes check-in pieces by order line and piece with the
// same last-write-wins rule as groupReceivingBatch.
func groupCheckInBatch(batch domain.CheckInBatch) (map[string]map[string]pieceUpdate, int, error) {
	groups := make(map[string]map[string]pieceUpdate, len(batch.ToBeCheckedIn))
	for _, line := range batch.ToBeCheckedIn {
		lineID := strings.TrimSpace(line.OrderLineID)
		if lineID == "" {
			return nil, 0, fmt.Errorf("%w: order line id is required", ErrReceivingInvalidInput)
		}
		for _, piece := range line.CheckInPieces {
			pieceID := strings.TrimSpace(piece.PieceID)
			if pieceID == "" {
				return nil, 0, fmt.Errorf("%w: piece id is required on line %s", ErrReceivingInvalidInput, lineID)
			}
			if groups[lineID] == nil {
				groups[lineID] = map[string]pieceUpdate{}
			}
			groups[lineID][pieceID] = pieceUpdate{
				pieceID:    pieceID,
				itemStatus: strings.TrimSpace(piece.ItemStatus),
				barcode:    strings.TrimSpace(piece.Barcode),
				caption:    strings.TrimSpace(piece.Caption),
				comment:    strings.TrimSpace(piece.Comment),
				locationID: strings.TrimSpace(piece.LocationID),
				holdingID:  strings.TrimSpace(piece.HoldingID),
				createItem: piece.CreateItem,
			}
		}
	}
	return groups, countPieces(groups), nil
}

func countPieces(groups map[string]map[string]pieceUpdate) int {
	total := 0
	for _, pieces := range groups {
		total += len(pieces)
	}
	return total
}

// isOnOrderStatus reports whether the requested item status asks for a
// rollback to the expected receiving state. The comparison ignores case.
func isOnOrderStatus(status string) bool {
	return strings.EqualFold(strings.TrimSpace(status), domain.ItemStatusOnOrder)
}
