package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"folio/internal/models"
	"folio/internal/pagination"
	"folio/internal/services"
)

type mockSystemLogService struct {
	listLogsFn func(component *string, page pagination.PageRequest) (*pagination.PageResponse[models.SystemLog], error)
}

func (m *mockSystemLogService) Record(string, string, string, map[string]any) {}

func (m *mockSystemLogService) ListLogs(component *string, page pagination.PageRequest) (*pagination.PageResponse[models.SystemLog], error) {
	if m.listLogsFn != nil {
		return m.listLogsFn(component, page)
	}
	resp := pagination.NewPageResponse([]models.SystemLog{}, 1, 20, 0)
	return &resp, nil
}

var _ services.SystemLogServicer = (*mockSystemLogService)(nil)

func TestSystemLogHandler_ListLogs(t *testing.T) {
	var gotComponent *string
	var gotPage pagination.PageRequest
	svc := &mockSystemLogService{
		listLogsFn: func(component *string, page pagination.PageRequest) (*pagination.PageResponse[models.SystemLog], error) {
			gotComponent, gotPage = component, page
			resp := pagination.NewPageResponse([]models.SystemLog{{Level: "WARNING", Component: "snapshot", Message: "unpriced"}}, 1, 5, 1)
			return &resp, nil
		},
	}
	r := gin.New()
	r.GET("/system-logs", NewSystemLogHandler(svc).ListLogs)

	rec := doRequest(r, "GET", "/system-logs?component=snapshot&page_size=5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotComponent == nil || *gotComponent != "snapshot" {
		t.Errorf("expected component filter, got %v", gotComponent)
	}
	if gotPage.PageSize != 5 {
		t.Errorf("expected page size 5, got %d", gotPage.PageSize)
	}
	data := parseJSON(t, rec)["data"].([]interface{})
	if len(data) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(data))
	}

	rec = doRequest(r, "GET", "/system-logs?page=-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 on negative page, got %d", rec.Code)
	}
}
