package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rawblock/evm-risk-engine/internal/collector"
	"github.com/rawblock/evm-risk-engine/internal/indexer"
	"github.com/rawblock/evm-risk-engine/internal/lists"
	"github.com/rawblock/evm-risk-engine/internal/rules"
	"github.com/rawblock/evm-risk-engine/internal/scoring"
	"github.com/rawblock/evm-risk-engine/pkg/models"
)

type fakeIndexer struct{}

func (fakeIndexer) NormalTransactions(ctx context.Context, chainID int, address string, startBlock, endBlock uint64, sort string) ([]indexer.RawTx, error) {
	return nil, nil
}

func (fakeIndexer) ERC20Transfers(ctx context.Context, chainID int, address string, startBlock, endBlock uint64, sort string) ([]indexer.RawTx, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	t.Setenv("API_AUTH_TOKEN", "")

	loader := rules.NewLoader("../rules/ruleset.yaml")
	if err := loader.Load(); err != nil {
		t.Fatalf("loading ruleset: %v", err)
	}
	listLoader := lists.NewLoader("../lists/data")
	coll := collector.New(fakeIndexer{})
	cfg := scoring.DefaultConfig()
	cfg.Workers = 2
	engine := scoring.New(cfg, coll, listLoader, loader)

	return SetupRouter(nil, engine, listLoader, NewHub())
}

func TestSetupRouter_HealthEndpoint(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["db"] != "disabled" {
		t.Fatalf("expected db status 'disabled' with a nil store, got %v", body["db"])
	}
}

func TestSetupRouter_CORSPreflightIsHandled(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for an OPTIONS preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Fatal("expected a CORS origin header on the preflight response")
	}
}

func TestSetupRouter_ListSizesEndpoint(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/lists", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if _, ok := body["sdn"]; !ok {
		t.Fatalf("expected an 'sdn' count in the response, got %v", body)
	}
}

func TestSetupRouter_AnalyzeRejectsBadAddress(t *testing.T) {
	r := newTestRouter(t)
	payload, _ := json.Marshal(map[string]interface{}{"address": "not-hex", "chain_id": 1})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a non-0x address, got %d", w.Code)
	}
}

func TestSetupRouter_AnalyzeRunsEndToEnd(t *testing.T) {
	r := newTestRouter(t)
	payload, _ := json.Marshal(map[string]interface{}{
		"address": "0x1111111111111111111111111111111111111a", "chain_id": 1,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var result models.AddressAnalysisResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if result.Address == "" {
		t.Fatal("expected a populated analysis result")
	}
}

func TestSetupRouter_ScoreTxEndpoint(t *testing.T) {
	r := newTestRouter(t)
	tx := models.Transaction{
		TxHash: "0xabc", ChainID: 1,
		FromAddress: "0x1111111111111111111111111111111111111a",
		ToAddress:   "0x2222222222222222222222222222222222222b",
		TxType:      models.TxNative, USDValue: 10,
	}
	payload, _ := json.Marshal(tx)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/score-tx", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestSetupRouter_RecentAnalysesWithoutDBStoreIsEmpty(t *testing.T) {
	r := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyses", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["total"] != float64(0) {
		t.Fatalf("expected a total of 0 with no db store, got %v", body["total"])
	}
}

func TestSetupRouter_ProtectedRoutesRequireAuthWhenConfigured(t *testing.T) {
	t.Setenv("API_AUTH_TOKEN", "secret")

	loader := rules.NewLoader("../rules/ruleset.yaml")
	if err := loader.Load(); err != nil {
		t.Fatalf("loading ruleset: %v", err)
	}
	listLoader := lists.NewLoader("../lists/data")
	coll := collector.New(fakeIndexer{})
	engine := scoring.New(scoring.DefaultConfig(), coll, listLoader, loader)
	r := SetupRouter(nil, engine, listLoader, NewHub())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/score-tx", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a protected route with no bearer token, got %d", w.Code)
	}
}
