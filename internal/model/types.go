// Package model defines domain types shared across the application.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPayload indicates scanned text that cannot be decoded into a
// scan payload or is missing the product identifier.
var ErrMalformedPayload = errors.New("malformed scan payload")

// ErrProductNotFound indicates a valid identifier with no matching record
// in the remote store.
var ErrProductNotFound = errors.New("product not found")

// OperationKind identifies the direction of a stock adjustment.
type OperationKind string

const (
	// KindWriteoff removes quantity from stock.
	KindWriteoff OperationKind = "writeoff"
	// KindSupply adds quantity to stock.
	KindSupply OperationKind = "supply"
)

// Valid reports whether the kind is one of the supported adjustment kinds.
func (k OperationKind) Valid() bool {
	return k == KindWriteoff || k == KindSupply
}

// Product is the current state of a product as owned by the remote store.
// Stock always comes from the store at fetch time, never from scanned data.
type Product struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Stock int64  `json:"stock"`
}

// ScanPayload is the transient structure decoded from raw scanned text.
// Name, when present, overrides the store's product name for display.
type ScanPayload struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// ParseScanPayload decodes raw scanned text into a ScanPayload.
// The text is untrusted; anything that is not a JSON object carrying a
// non-empty id fails with ErrMalformedPayload.
func ParseScanPayload(raw string) (ScanPayload, error) {
	var p ScanPayload
	if err := json.NewDecoder(strings.NewReader(raw)).Decode(&p); err != nil {
		return ScanPayload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.ID == "" {
		return ScanPayload{}, fmt.Errorf("%w: missing id", ErrMalformedPayload)
	}
	return p, nil
}

// PendingOperation is a stock adjustment about to be submitted.
type PendingOperation struct {
	Kind      OperationKind
	ProductID string
	Quantity  int64
}

// Fingerprint derives the coarse duplicate-detection key for the operation.
// It deliberately excludes any timestamp so identical operations collide
// within the cooldown window regardless of when each was initiated.
func (op PendingOperation) Fingerprint() string {
	return fmt.Sprintf("%s-%s-%d", op.Kind, op.ProductID, op.Quantity)
}
