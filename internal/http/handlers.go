// Package httpapi exposes the scan/review surface as a small JSON API.
// A browser-side QR decoder posts its callback output to the scan intake;
// everything else reads or mutates the state machine.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/stockscan/stockscan/internal/app"
	"github.com/stockscan/stockscan/internal/config"
	httpopenapi "github.com/stockscan/stockscan/internal/http/openapi"
	"github.com/stockscan/stockscan/internal/model"
	"github.com/stockscan/stockscan/internal/obs"
	"github.com/stockscan/stockscan/internal/scanner"
)

// App holds the HTTP surface's collaborators.
type App struct {
	Cfg     config.Config
	Machine *app.Machine
	Scans   *scanner.ChannelSource
	started time.Time
}

// NewApp constructs the HTTP application.
func NewApp(cfg config.Config, m *app.Machine, scans *scanner.ChannelSource) *App {
	return &App{Cfg: cfg, Machine: m, Scans: scans, started: time.Now()}
}

type scanRequest struct {
	Data string `json:"data"`
}

type scanAck struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
}

type quantityRequest struct {
	Quantity int64 `json:"quantity"`
}

type operationRequest struct {
	Kind model.OperationKind `json:"kind"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

func (a *App) writeState(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(a.Machine.Snapshot())
}

// postScanHandler is the decoder-adapter intake: the external QR decoder
// delivers its callback output here. The payload is forwarded to the scan
// pump; the caller polls /state for the outcome.
func (a *App) postScanHandler(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Data == "" {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "data is required")
		return
	}
	if !a.Scans.Push(req.Data) {
		WriteJSONError(w, http.StatusTooManyRequests, "scanner_backpressure", "decoded frames arriving faster than they are consumed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(scanAck{Status: "accepted", RequestID: RequestIDFromContext(r.Context())})
}

func (a *App) getStateHandler(w http.ResponseWriter, _ *http.Request) {
	a.writeState(w)
}

func (a *App) postQuantityHandler(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Machine.SetQuantity(req.Quantity); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	a.writeState(w)
}

func (a *App) postOperationHandler(w http.ResponseWriter, r *http.Request) {
	var req operationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Kind.Valid() {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "kind must be writeoff or supply")
		return
	}
	if err := a.Machine.Submit(r.Context(), req.Kind); err != nil {
		writeOperationError(w, err)
		return
	}
	a.writeState(w)
}

func (a *App) postBackHandler(w http.ResponseWriter, _ *http.Request) {
	a.Machine.Back()
	a.writeState(w)
}

func (a *App) healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, _ *http.Request) {
	mm := a.Machine.Metrics()
	m := map[string]any{
		"scans_accepted":      mm.ScansAccepted,
		"scans_ignored":       mm.ScansIgnored,
		"scans_failed":        mm.ScansFailed,
		"operations_accepted": mm.OperationsAccepted,
		"operations_blocked":  mm.OperationsBlocked,
		"uptime_sec":          time.Since(a.started).Seconds(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(m); err != nil {
		obs.Logger.Error("metrics_encode_failed", "error", err)
	}
}

func (a *App) openapiHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
