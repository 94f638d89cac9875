package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/reqtrail/reqtrail/internal/config"
	"github.com/reqtrail/reqtrail/internal/middleware"
	"github.com/reqtrail/reqtrail/internal/model"
	"github.com/reqtrail/reqtrail/internal/service"
)

func newHistoryRouter(t *testing.T, view config.ViewConfig) (*gin.Engine, *service.HistoryService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, err := service.NewHistoryService(t.TempDir(), 100, nil)
	if err != nil {
		t.Fatalf("failed to build history service: %v", err)
	}
	t.Cleanup(svc.Close)

	h := NewHistoryHandler(svc, view)
	r := gin.New()
	r.Use(middleware.ErrorHandler())
	r.GET("/v1/history", h.List)
	r.DELETE("/v1/history", h.Clear)
	return r, svc
}

func seedRecords(t *testing.T, svc *service.HistoryService, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := svc.Record(context.Background(), &model.RequestRecord{
			ID: "id", Method: "POST", Path: "/v1/commands", StatusCode: 200,
		})
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
}

func TestListHistory(t *testing.T) {
	r, svc := newHistoryRouter(t, config.ViewConfig{Columns: []string{"*"}})
	seedRecords(t, svc, 3)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var records []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0]["method"] != "POST" {
		t.Fatalf("unexpected record %+v", records[0])
	}
}

func TestListHistorySinceID(t *testing.T) {
	r, svc := newHistoryRouter(t, config.ViewConfig{})
	seedRecords(t, svc, 3)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history?since_id=3", nil))

	var records []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
}

func TestListHistoryInvalidSinceID(t *testing.T) {
	r, _ := newHistoryRouter(t, config.ViewConfig{})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history?since_id=abc", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid since_id, got %d", rec.Code)
	}
}

func TestListHistoryColumnProjection(t *testing.T) {
	r, svc := newHistoryRouter(t, config.ViewConfig{Columns: []string{"method", "path"}})
	seedRecords(t, svc, 1)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history", nil))

	var records []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	row := records[0]
	if len(row) != 2 || row["method"] != "POST" || row["path"] != "/v1/commands" {
		t.Fatalf("unexpected projection %+v", row)
	}
}

func TestListHistoryViewFilter(t *testing.T) {
	r, svc := newHistoryRouter(t, config.ViewConfig{Filter: map[string]string{"method": "DELETE"}})
	seedRecords(t, svc, 2)
	_ = svc.Record(context.Background(), &model.RequestRecord{
		ID: "id", Method: "DELETE", Path: "/v1/commands", StatusCode: 200,
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history", nil))

	var records []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(records) != 1 || records[0]["method"] != "DELETE" {
		t.Fatalf("view filter not applied: %+v", records)
	}
}

func TestClearHistory(t *testing.T) {
	r, svc := newHistoryRouter(t, config.ViewConfig{})
	seedRecords(t, svc, 2)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/history", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["status"] != "history deleted" || resp["records_removed"] != float64(2) {
		t.Fatalf("unexpected response %+v", resp)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/history", nil))
	var records []map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &records)
	if len(records) != 0 {
		t.Fatalf("expected empty history after clear, got %d", len(records))
	}
}
