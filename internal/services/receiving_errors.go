package services

import "errors"

// Piece-level processing error codes reported in receiving results.
const (
	errorCodePieceNotFound      = "pieceNotFound"
	errorCodeItemNotRetrieved   = "itemNotRetrieved"
	errorCodeItemUpdateFailed   = "itemUpdateFailed"
	errorCodeItemCreationFailed = "itemCreationFailed"
	errorCodePieceUpdateFailed  = "pieceUpdateFailed"
	errorCodeLocationMissing    = "locationMissing"
)

var (
	// ErrReceivingInvalidInput signals the caller provided an empty or oversized batch.
	ErrReceivingInvalidInput = errors.New("receiving: invalid input")
	// ErrInvalidProductType indicates an order line carries product identifiers
	// whose types are unknown to the catalog, so no instance can be created.
	ErrInvalidProductType = errors.New("receiving: invalid product identifier type")
	// ErrMissingMaterialType indicates the order line has no material type, so
	// no item can be created for it.
	ErrMissingMaterialType = errors.New("receiving: order line has no material type")
	// ErrMissingLookupEntry indicates a required catalog reference entry does not exist.
	ErrMissingLookupEntry = errors.New("receiving: catalog reference entry not found")
)
