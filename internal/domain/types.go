package domain

import (
	"time"
)

// PieceFormat distinguishes physical and electronic copies tracked through receiving.
type PieceFormat string

const (
	// PieceFormatPhysical marks a physical copy.
	PieceFormatPhysical PieceFormat = "physical"
	// PieceFormatElectronic marks an electronic copy.
	PieceFormatElectronic PieceFormat = "electronic"
)

// ReceivingStatus is the piece-level receiving state.
type ReceivingStatus string

const (
	// ReceivingStatusExpected marks a piece that has not been received yet,
	// or has been rolled back to the expected state.
	ReceivingStatusExpected ReceivingStatus = "expected"
	// ReceivingStatusReceived marks a piece that has been received or checked in.
	ReceivingStatusReceived ReceivingStatus = "received"
)

// PaymentStatus is the order-line payment state. Lines with an ongoing
// payment status never auto-transition their receipt status.
type PaymentStatus string

const (
	// PaymentStatusPending indicates payment has not started.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusPartiallyPaid indicates partial payment.
	PaymentStatusPartiallyPaid PaymentStatus = "partially-paid"
	// PaymentStatusFullyPaid indicates complete payment.
	PaymentStatusFullyPaid PaymentStatus = "fully-paid"
	// PaymentStatusOngoing marks subscription-like lines whose receipt status
	// is managed manually and must never be rewritten by the roll-up.
	PaymentStatusOngoing PaymentStatus = "ongoing"
)

// ReceiptStatus is the derived aggregate receiving state of an order line.
type ReceiptStatus string

const (
	// ReceiptStatusAwaiting indicates no piece of the line has been received.
	ReceiptStatusAwaiting ReceiptStatus = "awaiting-receipt"
	// ReceiptStatusPartiallyReceived indicates some but not all pieces are received.
	ReceiptStatusPartiallyReceived ReceiptStatus = "partially-received"
	// ReceiptStatusFullyReceived indicates every piece of the line is received.
	ReceiptStatusFullyReceived ReceiptStatus = "fully-received"
)

// Piece is a single physical or electronic copy tracked through receiving.
// A piece belongs to exactly one order line. ItemID is empty when no catalog
// item is tracked for the piece.
type Piece struct {
	ID              string
	OrderLineID     string
	Format          PieceFormat
	ItemID          string
	LocationID      string
	HoldingID       string
	Caption         string
	Comment         string
	ReceivingStatus ReceivingStatus
	ReceivedDate    *time.Time
	UpdatedAt       time.Time
}

// Contributor names a bibliographic contributor on an order line.
type Contributor struct {
	Name string
}

// ProductIdentifier couples a product identifier value with its identifier
// type name (ISBN, ISSN, ...). The type name is resolved against the catalog
// identifier-type table during instance resolution.
type ProductIdentifier struct {
	Value    string
	TypeName string
}

// OrderLineDetails carries bibliographic and material metadata used when
// catalog records have to be created on the fly. Material types are keyed by
// piece format: a mixed line names one material type for its physical copies
// and another for its electronic ones.
type OrderLineDetails struct {
	Title           string
	Edition         string
	Publisher       string
	PublicationDate string
	Contributors    []Contributor
	ProductIDs      []ProductIdentifier
	MaterialTypes   map[PieceFormat]string
}

// OrderLine is a purchase-order line item. Receipt status is derived by the
// receiving roll-up; payment status is owned by an external workflow.
type OrderLine struct {
	ID            string
	OrderID       string
	PaymentStatus PaymentStatus
	ReceiptStatus ReceiptStatus
	InstanceID    string
	Details       OrderLineDetails
	UpdatedAt     time.Time
}

// Location pairs the target location and/or holding a piece's item belongs
// to. Either field may be empty; a piece with neither cannot be processed.
type Location struct {
	LocationID string
	HoldingID  string
}

// ReceivedItem is the caller-supplied detail for one piece in a receive batch.
type ReceivedItem struct {
	PieceID    string
	ItemStatus string
	Barcode    string
	Caption    string
	Comment    string
	LocationID string
	HoldingID  string
}

// CheckInPiece is the caller-supplied detail for one piece in a check-in
// batch. CreateItem requests on-the-fly catalog item creation for pieces
// that do not track an item yet.
type CheckInPiece struct {
	PieceID    string
	ItemStatus string
	Barcode    string
	Caption    string
	Comment    string
	LocationID string
	HoldingID  string
	CreateItem bool
}

// ToBeReceived groups the received-item details submitted for one order line.
type ToBeReceived struct {
	OrderLineID   string
	ReceivedItems []ReceivedItem
}

// ReceivingBatch is the payload of a receive request.
type ReceivingBatch struct {
	ToBeReceived []ToBeReceived
}

// ToBeCheckedIn groups the check-in details submitted for one order line.
type ToBeCheckedIn struct {
	OrderLineID   string
	CheckInPieces []CheckInPiece
}

// CheckInBatch is the payload of a check-in request.
type CheckInBatch struct {
	ToBeCheckedIn []ToBeCheckedIn
}

// PieceProcessingStatus reports the outcome for one submitted piece.
type PieceProcessingStatus struct {
	PieceID   string
	Succeeded bool
	ErrorCode string
}

// ReceivingResult aggregates per-line outcome counts. The counts always sum
// to the number of pieces submitted for the line.
type ReceivingResult struct {
	OrderLineID           string
	ProcessedSuccessfully int
	ProcessedWithError    int
	Pieces                []PieceProcessingStatus
}

// ReceivingResults is the caller-facing response of a receive or check-in batch.
type ReceivingResults struct {
	TotalRecords int
	Results      []ReceivingResult
}

// Instance is a title-level catalog bibliographic record.
type Instance struct {
	ID              string
	Title           string
	Editions        []string
	Publisher       string
	PublicationDate string
	InstanceTypeID  string
	StatusID        string
	Contributors    []InstanceContributor
	Identifiers     []InstanceIdentifier
	Source          string
}

// InstanceContributor is a contributor entry on a catalog instance.
type InstanceContributor struct {
	Name                  string
	ContributorNameTypeID string
}

// InstanceIdentifier is a typed product identifier on a catalog instance.
// TypeName keeps the human-readable identifier type alongside the resolved ID.
type InstanceIdentifier struct {
	IdentifierTypeID string
	TypeName         string
	Value            string
}

// Holding groups items of one instance at one location. At most one holding
// exists per (instance, location) pair.
type Holding struct {
	ID         string
	InstanceID string
	LocationID string
}

// ItemStatusOnOrder is the literal item-status value that signals a rollback
// to the expected receiving state instead of a forward transition.
const ItemStatusOnOrder = "On order"

// Item is a catalog record for one physical or electronic copy.
type Item struct {
	ID             string
	HoldingID      string
	OrderLineID    string
	MaterialTypeID string
	LoanTypeID     string
	Barcode        string
	Status         string
}

// ReceivingHistoryEntry is the denormalised read model written per received
// piece and served by the receiving-history endpoint.
type ReceivingHistoryEntry struct {
	ID              string
	PieceID         string
	OrderLineID     string
	OrderID         string
	Title           string
	Format          PieceFormat
	ReceivingStatus ReceivingStatus
	ReceivedDate    *time.Time
	Comment         string
}

// HistoryPage wraps a receiving-history listing with the total record count
// reported by storage.
type HistoryPage struct {
	TotalRecords int
	Entries      []ReceivingHistoryEntry
}
