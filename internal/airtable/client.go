// Package airtable implements the remote store client against the Airtable
// REST API. Products are read from one table; accepted adjustments are filed
// into a write-off or supply table depending on the operation kind.
package airtable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/sync/singleflight"

	"github.com/stockscan/stockscan/internal/clock"
	"github.com/stockscan/stockscan/internal/config"
	"github.com/stockscan/stockscan/internal/cooldown"
	"github.com/stockscan/stockscan/internal/model"
	"github.com/stockscan/stockscan/internal/obs"
)

// Field names of the store schema. Fixed for compatibility with the base
// the client was built against; only table names are configurable.
const (
	fieldName     = "Название"
	fieldStock    = "Текущий остаток"
	fieldProduct  = "Товар"
	fieldQuantity = "Количество"
	fieldDate     = "Дата"
)

const dateLayout = "2006-01-02"

// Client talks to the Airtable REST API. CreateOperation consults the
// cooldown cache before issuing the remote write and records acceptance
// after a successful one.
type Client struct {
	hc      *http.Client
	baseURL string
	apiKey  string
	baseID  string

	productsTable  string
	writeoffsTable string
	suppliesTable  string

	cache cooldown.Cache
	clk   clock.Clock
	fetch singleflight.Group
}

// New constructs a Client from configuration.
func New(cfg config.Config, cache cooldown.Cache, clk clock.Clock) *Client {
	return &Client{
		hc:             &http.Client{Timeout: cfg.AirtableTimeout},
		baseURL:        cfg.AirtableBaseURL,
		apiKey:         cfg.AirtableKey,
		baseID:         cfg.AirtableBase,
		productsTable:  cfg.ProductsTable,
		writeoffsTable: cfg.WriteoffsTable,
		suppliesTable:  cfg.SuppliesTable,
		cache:          cache,
		clk:            clk,
	}
}

type productFields struct {
	Name  string `json:"Название"`
	Stock int64  `json:"Текущий остаток"`
}

type productRecord struct {
	ID     string        `json:"id"`
	Fields productFields `json:"fields"`
}

type adjustmentFields struct {
	Product  []string `json:"Товар"`
	Quantity int64    `json:"Количество"`
	Date     string   `json:"Дата"`
}

type createRecord struct {
	Fields adjustmentFields `json:"fields"`
}

type createRequest struct {
	Records []createRecord `json:"records"`
}

// FetchProduct loads a product record by identifier. Concurrent fetches of
// the same identifier share a single remote call.
func (c *Client) FetchProduct(ctx context.Context, id string) (model.Product, error) {
	v, err, _ := c.fetch.Do(id, func() (any, error) {
		return c.fetchProduct(ctx, id)
	})
	if err != nil {
		return model.Product{}, err
	}
	return v.(model.Product), nil
}

func (c *Client) fetchProduct(ctx context.Context, id string) (model.Product, error) {
	u := c.tableURL(c.productsTable) + "/" + url.PathEscape(id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Product{}, fmt.Errorf("airtable: build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.hc.Do(req)
	if err != nil {
		return model.Product{}, fmt.Errorf("airtable: fetch product: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return model.Product{}, model.ErrProductNotFound
	case resp.StatusCode != http.StatusOK:
		return model.Product{}, fmt.Errorf("airtable: fetch product: unexpected status %d", resp.StatusCode)
	}

	var rec productRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return model.Product{}, fmt.Errorf("airtable: decode product: %w", err)
	}
	return model.Product{ID: rec.ID, Name: rec.Fields.Name, Stock: rec.Fields.Stock}, nil
}

// CreateOperation files an adjustment record for the product. An identical
// operation accepted within the cooldown window fails with
// cooldown.ErrCooldownActive without touching the remote store.
func (c *Client) CreateOperation(ctx context.Context, kind model.OperationKind, productID string, qty int64) error {
	if !kind.Valid() {
		return fmt.Errorf("airtable: unsupported operation kind %q", kind)
	}
	if qty <= 0 {
		return fmt.Errorf("airtable: quantity must be positive, got %d", qty)
	}

	op := model.PendingOperation{Kind: kind, ProductID: productID, Quantity: qty}
	fp := op.Fingerprint()
	if err := c.cache.Check(ctx, fp); err != nil {
		obs.Logger.Warn("operation_cooldown_rejected", "fingerprint", fp)
		return err
	}

	table := c.suppliesTable
	if kind == model.KindWriteoff {
		table = c.writeoffsTable
	}

	body := createRequest{Records: []createRecord{{Fields: adjustmentFields{
		Product:  []string{productID},
		Quantity: qty,
		Date:     c.clk.Now().Format(dateLayout),
	}}}}
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("airtable: encode adjustment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tableURL(table), bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("airtable: build request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("airtable: create operation: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("airtable: create operation: unexpected status %d: %s", resp.StatusCode, msg)
	}

	if err := c.cache.Record(ctx, fp); err != nil {
		// The write already landed; a failed cache record only weakens
		// the window, so log and report success.
		obs.Logger.Error("cooldown_record_failed", "fingerprint", fp, "error", err)
	}
	obs.Logger.Info("operation_created", "kind", string(kind), "product_id", productID, "quantity", qty)
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func (c *Client) tableURL(table string) string {
	return c.baseURL + "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(table)
}
