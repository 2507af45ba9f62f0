package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockscan/stockscan/internal/app"
	"github.com/stockscan/stockscan/internal/clock"
	"github.com/stockscan/stockscan/internal/config"
	"github.com/stockscan/stockscan/internal/model"
	"github.com/stockscan/stockscan/internal/scanner"
)

type stubStore struct {
	products map[string]model.Product
	creates  int
}

func (s *stubStore) FetchProduct(_ context.Context, id string) (model.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return model.Product{}, model.ErrProductNotFound
	}
	return p, nil
}

func (s *stubStore) CreateOperation(context.Context, model.OperationKind, string, int64) error {
	s.creates++
	return nil
}

func setupApp(t *testing.T) (*clock.Mock, *stubStore, http.Handler) {
	t.Helper()
	st := &stubStore{products: map[string]model.Product{
		"rec123": {ID: "rec123", Name: "Widget", Stock: 10},
	}}
	clk := clock.NewMock(time.Unix(1_700_000_000, 0))
	cfg := config.Config{
		DebounceWindow:  2 * time.Second,
		ErrorDisplayTTL: 5 * time.Second,
	}
	m := app.NewMachine(cfg, st, clk)
	t.Cleanup(m.Close)

	scans := scanner.NewChannelSource(16)
	pump := scanner.NewPump(scans, func(ctx context.Context, raw string) {
		_ = m.HandleScan(ctx, raw)
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = pump.Run(ctx) }()

	return clk, st, NewRouter(NewApp(cfg, m, scans))
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func getState(t *testing.T, h http.Handler) app.State {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/state", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	var st app.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	return st
}

func scanAndWait(t *testing.T, h http.Handler, payload string) {
	t.Helper()
	w := postJSON(t, h, "/scans", `{"data":"`+payload+`"}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Eventually(t, func() bool {
		return getState(t, h).View == app.ViewReviewing
	}, 2*time.Second, 10*time.Millisecond, "scan should reach the reviewing view")
}

func TestScanFlowOverHTTP(t *testing.T) {
	_, _, h := setupApp(t)

	st := getState(t, h)
	require.Equal(t, app.ViewScanning, st.View)

	scanAndWait(t, h, `{\"id\":\"rec123\"}`)
	st = getState(t, h)
	require.NotNil(t, st.Product)
	require.Equal(t, "Widget", st.Product.Name)
	require.Equal(t, int64(10), st.Product.Stock)
}

func TestScanValidation(t *testing.T) {
	_, _, h := setupApp(t)

	w := postJSON(t, h, "/scans", `{"data":""}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/scans", bytes.NewBufferString("data"))
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestOperationOverHTTP(t *testing.T) {
	_, st, h := setupApp(t)
	scanAndWait(t, h, `{\"id\":\"rec123\"}`)

	w := postJSON(t, h, "/quantity", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, h, "/operations", `{"kind":"writeoff"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var snap app.State
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	require.Equal(t, int64(7), snap.Product.Stock)
	require.Zero(t, snap.Quantity)
	require.Equal(t, 1, st.creates)
}

func TestOperationDuplicateBlockedOverHTTP(t *testing.T) {
	_, st, h := setupApp(t)
	scanAndWait(t, h, `{\"id\":\"rec123\"}`)

	require.Equal(t, http.StatusOK, postJSON(t, h, "/quantity", `{"quantity":3}`).Code)
	require.Equal(t, http.StatusOK, postJSON(t, h, "/operations", `{"kind":"writeoff"}`).Code)

	require.Equal(t, http.StatusOK, postJSON(t, h, "/quantity", `{"quantity":3}`).Code)
	w := postJSON(t, h, "/operations", `{"kind":"writeoff"}`)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	var je jsonError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &je))
	require.Equal(t, "duplicate_blocked", je.Error)
	require.Equal(t, 1, st.creates)
	require.Equal(t, int64(7), getState(t, h).Product.Stock)
}

func TestOperationInsufficientStockOverHTTP(t *testing.T) {
	_, st, h := setupApp(t)
	scanAndWait(t, h, `{\"id\":\"rec123\"}`)

	require.Equal(t, http.StatusOK, postJSON(t, h, "/quantity", `{"quantity":11}`).Code)
	w := postJSON(t, h, "/operations", `{"kind":"writeoff"}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	require.Zero(t, st.creates)
}

func TestOperationKindValidation(t *testing.T) {
	_, _, h := setupApp(t)
	w := postJSON(t, h, "/operations", `{"kind":"transfer"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBackOverHTTP(t *testing.T) {
	_, _, h := setupApp(t)
	scanAndWait(t, h, `{\"id\":\"rec123\"}`)

	w := postJSON(t, h, "/back", ``)
	require.Equal(t, http.StatusOK, w.Code)
	st := getState(t, h)
	require.Equal(t, app.ViewScanning, st.View)
	require.Nil(t, st.Product)
}

func TestHealthAndMetrics(t *testing.T) {
	_, _, h := setupApp(t)

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	r = httptest.NewRequest(http.MethodGet, "/debug/metrics", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "operations_accepted")
}

func TestOpenAPIServed(t *testing.T) {
	_, _, h := setupApp(t)
	r := httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "openapi:")
}

func TestDocsServed(t *testing.T) {
	_, _, h := setupApp(t)
	r := httptest.NewRequest(http.MethodGet, "/docs", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "swagger-ui")
}
