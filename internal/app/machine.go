// Package app implements the scan/review state machine driving the
// inventory-tracking session.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stockscan/stockscan/internal/clock"
	"github.com/stockscan/stockscan/internal/config"
	"github.com/stockscan/stockscan/internal/cooldown"
	"github.com/stockscan/stockscan/internal/model"
	"github.com/stockscan/stockscan/internal/obs"
)

// ErrDuplicateBlocked indicates the local replay guard tripped: the same
// operation was resubmitted within the debounce window of its acceptance.
var ErrDuplicateBlocked = errors.New("duplicate operation blocked")

// ErrInsufficientStock indicates a write-off larger than current stock.
var ErrInsufficientStock = errors.New("insufficient stock for write-off")

// View enumerates the machine's states.
type View string

const (
	// ViewScanning is the initial state, waiting for a decoded QR payload.
	ViewScanning View = "scanning"
	// ViewReviewing shows a loaded product awaiting an adjustment.
	ViewReviewing View = "reviewing"
)

// User-visible messages for the error banner.
const (
	msgMalformedPayload  = "QR code is not a valid product label"
	msgProductNotFound   = "product not found"
	msgDuplicateBlocked  = "duplicate operation blocked"
	msgCooldownActive    = "identical operation was just recorded, wait before repeating it"
	msgInsufficientStock = "write-off exceeds current stock"
	msgScanFailed        = "scan failed, try again"
	msgOperationFailed   = "operation failed, try again"
)

// Store is the remote store boundary the machine submits to.
type Store interface {
	FetchProduct(ctx context.Context, id string) (model.Product, error)
	CreateOperation(ctx context.Context, kind model.OperationKind, productID string, qty int64) error
}

// State is an immutable snapshot of the machine for rendering and tests.
type State struct {
	View     View           `json:"view"`
	Product  *model.Product `json:"product,omitempty"`
	Quantity int64          `json:"quantity"`
	Error    string         `json:"error,omitempty"`
	Busy     bool           `json:"busy"`
}

// Metrics are cumulative counters exposed on the metrics endpoint.
type Metrics struct {
	ScansAccepted      uint64 `json:"scans_accepted"`
	ScansIgnored       uint64 `json:"scans_ignored"`
	ScansFailed        uint64 `json:"scans_failed"`
	OperationsAccepted uint64 `json:"operations_accepted"`
	OperationsBlocked  uint64 `json:"operations_blocked"`
}

// Machine orchestrates scan -> review -> commit. All remote calls happen
// with the busy flag set, so at most one mutating transition is in flight
// per session at a time.
type Machine struct {
	store    Store
	clk      clock.Clock
	debounce time.Duration
	errTTL   time.Duration

	mu       sync.Mutex
	view     View
	product  *model.Product
	quantity int64
	errMsg   string
	errSeq   uint64
	errTimer clock.Timer
	busy     bool
	lastFP   string
	lastAt   time.Time

	scansAccepted atomic.Uint64
	scansIgnored  atomic.Uint64
	scansFailed   atomic.Uint64
	opsAccepted   atomic.Uint64
	opsBlocked    atomic.Uint64
}

// NewMachine constructs a Machine in the scanning view.
func NewMachine(cfg config.Config, store Store, clk clock.Clock) *Machine {
	return &Machine{
		store:    store,
		clk:      clk,
		debounce: cfg.DebounceWindow,
		errTTL:   cfg.ErrorDisplayTTL,
		view:     ViewScanning,
	}
}

// HandleScan consumes one decoded payload from the scanner feed. Scans
// arriving outside the scanning view, or while a remote call is in flight,
// are ignored.
func (m *Machine) HandleScan(ctx context.Context, raw string) error {
	m.mu.Lock()
	if m.view != ViewScanning || m.busy {
		view := m.view
		m.mu.Unlock()
		m.scansIgnored.Add(1)
		obs.Logger.Debug("scan_ignored", "view", string(view))
		return nil
	}
	m.busy = true
	m.mu.Unlock()

	payload, err := model.ParseScanPayload(raw)
	if err != nil {
		return m.failScan(err, msgMalformedPayload)
	}

	product, err := m.store.FetchProduct(ctx, payload.ID)
	if err != nil {
		msg := msgScanFailed
		if errors.Is(err, model.ErrProductNotFound) {
			msg = msgProductNotFound
		}
		return m.failScan(err, msg)
	}
	if payload.Name != "" {
		product.Name = payload.Name
	}

	m.mu.Lock()
	m.busy = false
	m.product = &product
	m.quantity = 0
	m.view = ViewReviewing
	m.clearErrorLocked()
	m.mu.Unlock()

	m.scansAccepted.Add(1)
	obs.Logger.Info("scan_accepted", "product_id", product.ID, "stock", product.Stock)
	return nil
}

// failScan reverts to the scanning view and raises the error banner.
func (m *Machine) failScan(err error, msg string) error {
	m.mu.Lock()
	m.busy = false
	m.product = nil
	m.quantity = 0
	m.view = ViewScanning
	m.setErrorLocked(msg)
	m.mu.Unlock()

	m.scansFailed.Add(1)
	obs.Logger.Warn("scan_failed", "error", err.Error())
	return err
}

// SetQuantity stores the pending quantity. Zero clears the field; negative
// values are rejected. Changes are ignored while an operation is in flight.
func (m *Machine) SetQuantity(qty int64) error {
	if qty < 0 {
		return fmt.Errorf("quantity must be positive, got %d", qty)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return nil
	}
	m.quantity = qty
	return nil
}

// Back discards the current product and returns to scanning. It is a no-op
// while an operation is in flight, and idempotent otherwise.
func (m *Machine) Back() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.busy {
		return
	}
	m.product = nil
	m.quantity = 0
	m.view = ViewScanning
}

// Submit commits a stock adjustment of the given kind for the loaded
// product. Missing preconditions (no product, empty quantity, operation in
// flight) return silently: the corresponding action should have been
// disabled.
func (m *Machine) Submit(ctx context.Context, kind model.OperationKind) error {
	if !kind.Valid() {
		return fmt.Errorf("unsupported operation kind %q", kind)
	}

	m.mu.Lock()
	if m.product == nil || m.quantity <= 0 || m.busy {
		m.mu.Unlock()
		return nil
	}
	if kind == model.KindWriteoff && m.quantity > m.product.Stock {
		m.setErrorLocked(msgInsufficientStock)
		m.mu.Unlock()
		m.opsBlocked.Add(1)
		return ErrInsufficientStock
	}

	op := model.PendingOperation{Kind: kind, ProductID: m.product.ID, Quantity: m.quantity}
	fp := op.Fingerprint()
	if fp == m.lastFP && m.clk.Now().Sub(m.lastAt) < m.debounce {
		m.setErrorLocked(msgDuplicateBlocked)
		m.mu.Unlock()
		m.opsBlocked.Add(1)
		obs.Logger.Warn("operation_debounced", "fingerprint", fp)
		return ErrDuplicateBlocked
	}

	m.busy = true
	m.clearErrorLocked()
	m.mu.Unlock()

	err := m.store.CreateOperation(ctx, op.Kind, op.ProductID, op.Quantity)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false
	if err != nil {
		msg := msgOperationFailed
		if errors.Is(err, cooldown.ErrCooldownActive) {
			msg = msgCooldownActive
			m.opsBlocked.Add(1)
		}
		m.setErrorLocked(msg)
		obs.Logger.Warn("operation_failed", "fingerprint", fp, "error", err.Error())
		return err
	}

	// Optimistic projection; the store's post-write value is not re-read.
	if m.product != nil && m.product.ID == op.ProductID {
		if kind == model.KindSupply {
			m.product.Stock += op.Quantity
		} else {
			m.product.Stock -= op.Quantity
		}
	}
	m.lastFP = fp
	m.lastAt = m.clk.Now()
	m.quantity = 0
	m.opsAccepted.Add(1)
	obs.Logger.Info("operation_accepted", "kind", string(kind), "product_id", op.ProductID, "quantity", op.Quantity)
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := State{
		View:     m.view,
		Quantity: m.quantity,
		Error:    m.errMsg,
		Busy:     m.busy,
	}
	if m.product != nil {
		p := *m.product
		st.Product = &p
	}
	return st
}

// Metrics returns cumulative counters.
func (m *Machine) Metrics() Metrics {
	return Metrics{
		ScansAccepted:      m.scansAccepted.Load(),
		ScansIgnored:       m.scansIgnored.Load(),
		ScansFailed:        m.scansFailed.Load(),
		OperationsAccepted: m.opsAccepted.Load(),
		OperationsBlocked:  m.opsBlocked.Load(),
	}
}

// Close cancels the pending error-clear timer, if any.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errTimer != nil {
		m.errTimer.Stop()
		m.errTimer = nil
	}
}

// setErrorLocked raises the banner and restarts the auto-clear timer. The
// sequence number keeps a superseded timer from clearing a fresher error.
func (m *Machine) setErrorLocked(msg string) {
	m.errMsg = msg
	m.errSeq++
	seq := m.errSeq
	if m.errTimer != nil {
		m.errTimer.Stop()
	}
	m.errTimer = m.clk.AfterFunc(m.errTTL, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.errSeq == seq {
			m.errMsg = ""
			m.errTimer = nil
		}
	})
}

func (m *Machine) clearErrorLocked() {
	m.errMsg = ""
	m.errSeq++
	if m.errTimer != nil {
		m.errTimer.Stop()
		m.errTimer = nil
	}
}
