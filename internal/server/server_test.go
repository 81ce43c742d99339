package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mbd888/fraudsight/internal/config"
	"github.com/mbd888/fraudsight/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing
func testConfig() *config.Config {
	return &config.Config{
		Port:                 "0",
		Env:                  "development",
		LogLevel:             "error",
		ReasonerModel:        config.DefaultReasonerModel,
		ReasonerMaxChars:     4000,
		FraudAmountThreshold: "50000",
		ProgressInterval:     10,
		ProgressDelayMS:      0,
		MaxReportErrors:      10,
	}
}

// newTestServer creates a server backed by in-memory storage
func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig(), WithStore(storage.NewMemory()))
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

// uploadCSV posts a CSV body as a multipart upload to /v1/ingest
func uploadCSV(t *testing.T, s *Server, csv string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "upload.csv")
	if err != nil {
		t.Fatalf("Failed to build multipart body: %v", err)
	}
	if _, err := part.Write([]byte(csv)); err != nil {
		t.Fatalf("Failed to write multipart body: %v", err)
	}
	_ = mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/ingest", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	s.router.ServeHTTP(w, req)
	return w
}

const csvHeader = "TRX,mls,TRX_TYPE,MONTANT,CLIENT_I,CLIENT_B,BANK_I,BANK_B,ETAT,TRX_TIME"

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/live", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/health/ready", nil)
	s.router.ServeHTTP(w, req)

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func TestCoreRoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	routes := s.router.Routes()
	expected := []string{
		"GET:/health",
		"GET:/metrics",
		"POST:/v1/ingest",
		"GET:/v1/sessions",
		"GET:/v1/transactions",
		"GET:/v1/transactions/:id",
		"POST:/v1/transactions/:id/explain",
		"GET:/v1/transactions/:id/notes",
		"POST:/v1/transactions/:id/notes",
		"GET:/v1/clients/:partyId",
		"POST:/v1/clients/:partyId/assess",
		"GET:/v1/banks/:code",
		"POST:/v1/profiles/refresh",
		"GET:/v1/analytics/summary",
		"POST:/v1/insights/generate",
		"GET:/v1/predictor/status",
	}

	routeSet := make(map[string]bool)
	for _, route := range routes {
		routeSet[route.Method+":"+route.Path] = true
	}

	for _, e := range expected {
		if !routeSet[e] {
			t.Errorf("Core route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// Ingestion flow
// ---------------------------------------------------------------------------

func TestIngestEndToEnd(t *testing.T) {
	s := newTestServer(t)

	csv := csvHeader + "\n" +
		"TRX-1,100,RT,60000.00,C1,C2,B01,B02,OK,3/15/2024 14:30\n" +
		"TRX-2,50,TRF,150.00,C3,C4,B01,B03,OK,3/15/2024 10:00\n"

	w := uploadCSV(t, s, csv)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Expected SSE content type, got %q", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, `"completed":true`) {
		t.Errorf("Expected a terminal event in stream, got: %s", body)
	}
	if !strings.Contains(body, `"frauds":1`) {
		t.Errorf("Expected 1 fraud in terminal event, got: %s", body)
	}

	// The committed records are queryable afterwards
	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/transactions?fraud=true", nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var resp struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp.Total != 1 {
		t.Errorf("Expected 1 fraud transaction, got %d", resp.Total)
	}

	// Profiles were staged with the commit
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/clients/C1", nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected client profile for C1, got %d", w.Code)
	}
}

func TestIngestGeneratesDailyInsight(t *testing.T) {
	s := newTestServer(t)

	csv := csvHeader + "\n" +
		"TRX-1,100,RT,60000.00,C1,C2,B01,B02,OK,3/15/2024 14:30\n"
	w := uploadCSV(t, s, csv)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// The day's digest exists without an explicit generate call.
	today := time.Now().UTC().Format("2006-01-02")
	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/insights/"+today, nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected insight for %s after upload, got %d: %s", today, w.Code, w.Body.String())
	}

	var ins struct {
		Date       string `json:"date"`
		FraudCount int    `json:"fraudCount"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ins); err != nil {
		t.Fatalf("Failed to parse insight: %v", err)
	}
	if ins.Date != today || ins.FraudCount != 1 {
		t.Errorf("Unexpected insight contents: %+v", ins)
	}
}

func TestIngestMissingFile(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/ingest", strings.NewReader("not multipart"))
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestIngestMissingColumnFails(t *testing.T) {
	s := newTestServer(t)

	// Header without the mls column
	csv := "TRX,TRX_TYPE,MONTANT,CLIENT_I,CLIENT_B,BANK_I,BANK_B,ETAT\n" +
		"TRX-1,TRF,100.00,C1,C2,B01,B02,OK\n"

	w := uploadCSV(t, s, csv)
	body := w.Body.String()
	if !strings.Contains(body, "mls") {
		t.Errorf("Expected failure event naming the missing column, got: %s", body)
	}
}

// ---------------------------------------------------------------------------
// Read API
// ---------------------------------------------------------------------------

func TestGetTransactionNotFound(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/transactions/TRX-404", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestListTransactionsRejectsBadFilter(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/transactions?type=XX", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad type filter, got %d", w.Code)
	}
}

func TestExplainNotFlagged(t *testing.T) {
	s := newTestServer(t)

	csv := csvHeader + "\n" +
		"TRX-10,50,TRF,150.00,C1,C2,B01,B02,OK,\n"
	uploadCSV(t, s, csv)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/transactions/TRX-10/explain", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409 for clean transaction, got %d", w.Code)
	}
}

func TestTransactionNotes(t *testing.T) {
	s := newTestServer(t)

	csv := csvHeader + "\n" +
		"TRX-40,50,RT,60000.00,C1,C2,B01,B02,OK,\n"
	uploadCSV(t, s, csv)

	// Unknown transaction
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/transactions/TRX-404/notes",
		strings.NewReader(`{"note":"missing"}`))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown transaction, got %d", w.Code)
	}

	// Empty note body
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/transactions/TRX-40/notes",
		strings.NewReader(`{"note":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty note, got %d", w.Code)
	}

	// Create a note
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/v1/transactions/TRX-40/notes",
		strings.NewReader(`{"note":"client disputes the withdrawal","createdBy":"analyst"}`))
	req.Header.Set("Content-Type", "application/json")
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var created struct {
		ID        string `json:"id"`
		CreatedBy string `json:"createdBy"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if !strings.HasPrefix(created.ID, "note_") || created.CreatedBy != "analyst" {
		t.Errorf("Unexpected note: %+v", created)
	}

	// Listed back
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/transactions/TRX-40/notes", nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var listed struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if listed.Count != 1 {
		t.Errorf("Expected 1 note, got %d", listed.Count)
	}
}

func TestAssessClient(t *testing.T) {
	s := newTestServer(t)

	csv := csvHeader + "\n" +
		"TRX-20,50,RT,60000.00,C9,C2,B01,B02,OK,\n"
	uploadCSV(t, s, csv)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/clients/C9/assess", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["assessment"] == nil {
		t.Error("Expected assessment in response")
	}
}

func TestStatsEndpoint(t *testing.T) {
	s := newTestServer(t)

	csv := csvHeader + "\n" +
		"TRX-30,50,RT,60000.00,C1,C2,B01,B02,OK,\n" +
		"TRX-31,50,TRF,100.00,C3,C4,B01,B02,OK,\n"
	uploadCSV(t, s, csv)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/stats", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["totalTransactions"].(float64) != 2 {
		t.Errorf("Expected 2 transactions, got %v", resp["totalTransactions"])
	}
	if resp["fraudCount"].(float64) != 1 {
		t.Errorf("Expected 1 fraud, got %v", resp["fraudCount"])
	}
}

func TestPredictorStatusEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/predictor/status", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if resp["modelVersion"] != "rules-1.0.0" {
		t.Errorf("Expected rules-1.0.0, got %v", resp["modelVersion"])
	}
	if resp["reasoner"] != "heuristic" {
		t.Errorf("Expected heuristic reasoner without API key, got %v", resp["reasoner"])
	}
}

func TestInsightGenerateAndGet(t *testing.T) {
	s := newTestServer(t)

	csv := csvHeader + "\n" +
		"TRX-40,50,RT,60000.00,C1,C2,B01,B02,OK,\n"
	uploadCSV(t, s, csv)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/v1/insights/generate", nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var ins struct {
		Date       string `json:"date"`
		FraudCount int    `json:"fraudCount"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ins); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if ins.FraudCount != 1 {
		t.Errorf("Expected 1 fraud in digest, got %d", ins.FraudCount)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/v1/insights/"+ins.Date, nil)
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 fetching the digest, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// 404 test
// ---------------------------------------------------------------------------

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/v1/nonexistent", nil)
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
