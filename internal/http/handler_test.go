package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nurpe/procurement-ipc/internal/auth"
	"github.com/nurpe/procurement-ipc/internal/cache"
	"github.com/nurpe/procurement-ipc/internal/config"
	"github.com/nurpe/procurement-ipc/internal/excel"
	"github.com/nurpe/procurement-ipc/internal/http/middleware"
	"github.com/nurpe/procurement-ipc/internal/model"
	"github.com/nurpe/procurement-ipc/internal/notify"
	"github.com/nurpe/procurement-ipc/internal/pdf"
	"github.com/nurpe/procurement-ipc/internal/repository"
	"github.com/nurpe/procurement-ipc/internal/service"
)

type apiClient struct {
	t      *testing.T
	router *gin.Engine
	parser *auth.Parser
}

func newAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(
		&model.Vendor{},
		&model.RFQ{},
		&model.Contract{},
		&model.IPC{},
		&model.TimelineEntry{},
		&model.VariationOrder{},
	))

	cfg := &config.Config{
		Environment: "test",
		DB:          config.DBConfig{MaxOpenConns: 2},
		Ledger: config.LedgerConfig{
			OnTimePaymentDays:   14,
			OverClaimPolicy:     config.OverClaimWarn,
			ReviewReminderHours: 72,
		},
	}
	log := zerolog.Nop()
	contractRepo := repository.NewContractRepository(db)
	ipcRepo := repository.NewIPCRepository(db)
	vendorRepo := repository.NewVendorRepository(db)
	summaries := cache.NoopSummaryCache{}
	dispatcher := notify.NewDispatcher(notify.LogSink{Log: log}, 16, log)
	t.Cleanup(dispatcher.Close)

	handler := NewHandler(
		service.NewContractService(contractRepo, vendorRepo, summaries, log),
		service.NewIPCService(contractRepo, ipcRepo, vendorRepo, summaries, dispatcher, pdf.NewGenerator(), cfg, log),
		service.NewReportService(contractRepo, ipcRepo, vendorRepo, summaries, excel.NewGenerator(), cfg, log),
		log,
	)
	parser := auth.NewParser("handler-test-secret")
	router := NewRouter(handler, middleware.Auth(parser), RouterOptions{Environment: "test", Log: log})
	return &apiClient{t: t, router: router, parser: parser}
}

func (a *apiClient) token(principal model.Principal) string {
	a.t.Helper()
	token, err := a.parser.Issue(principal, time.Hour)
	require.NoError(a.t, err)
	return token
}

func (a *apiClient) do(principal *model.Principal, method, path string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if principal != nil {
		req.Header.Set("Authorization", "Bearer "+a.token(*principal))
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data                 json.RawMessage `json:"data"`
	Error                string          `json:"error"`
	Code                 string          `json:"code"`
	AvailableTransitions []string        `json:"available_transitions"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(decode(t, w).Data, out))
}

func principalFor(role model.Role) *model.Principal {
	return &model.Principal{UserID: uuid.New(), Name: string(role), Role: role}
}

func TestRouter_HealthAndAuth(t *testing.T) {
	api := newAPI(t)

	w := api.do(nil, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = api.do(nil, http.MethodGet, "/vendors", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHandler_IPCLifecycle(t *testing.T) {
	api := newAPI(t)
	procurement := principalFor(model.RoleProcurementReviewer)

	w := api.do(procurement, http.MethodPost, "/vendors", gin.H{"company_name": "Acme Builders", "email": "ops@acme.test"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var vendor model.Vendor
	decodeData(t, w, &vendor)

	w = api.do(procurement, http.MethodPost, "/contracts", gin.H{
		"contract_number": "CN-100",
		"vendor_id":       vendor.ID.String(),
		"project":         "Harbour Wall",
		"currency":        "USD",
		"contract_value":  "1000000",
		"start_date":      "2025-01-01",
		"end_date":        "2030-12-31",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var contract model.Contract
	decodeData(t, w, &contract)
	assert.Equal(t, model.ContractStatusDraft, contract.Status)

	vendorID := vendor.ID
	vendorUser := &model.Principal{UserID: uuid.New(), Name: "Vera", Role: model.RoleVendor, VendorID: &vendorID}
	ipcsPath := "/contracts/" + contract.ID.String() + "/ipcs"

	w = api.do(vendorUser, http.MethodPost, ipcsPath, gin.H{"current_value": "300000", "deductions": "10000"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ContractNotActive", decode(t, w).Code)

	w = api.do(procurement, http.MethodPost, "/contracts/"+contract.ID.String()+"/issue", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = api.do(vendorUser, http.MethodPost, ipcsPath, gin.H{"current_value": "0"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidAmount", decode(t, w).Code)

	w = api.do(vendorUser, http.MethodPost, ipcsPath, gin.H{"current_value": "300000", "deductions": "10000"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ipc model.IPC
	decodeData(t, w, &ipc)
	assert.Equal(t, "IPC-001", ipc.IPCNumber)
	assert.Equal(t, "290000", ipc.NetPayable.String())

	ipcPath := "/ipcs/" + ipc.ID.String()
	w = api.do(procurement, http.MethodGet, ipcPath, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []string{"PROCUREMENT_REVIEW", "REJECTED"}, decode(t, w).AvailableTransitions)

	w = api.do(vendorUser, http.MethodPost, ipcPath+"/transitions", gin.H{"status": "PROCUREMENT_REVIEW"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "PermissionDenied", decode(t, w).Code)

	w = api.do(procurement, http.MethodPost, ipcPath+"/transitions", gin.H{"status": "APPROVED"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "IllegalTransition", decode(t, w).Code)

	w = api.do(procurement, http.MethodPost, ipcPath+"/transitions", gin.H{"status": "REJECTED"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "MissingReviewNotes", decode(t, w).Code)

	w = api.do(procurement, http.MethodPost, ipcPath+"/transitions", gin.H{"status": "PROCUREMENT_REVIEW", "expected_version": 9})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ConcurrentModification", decode(t, w).Code)

	steps := []struct {
		status string
		actor  *model.Principal
	}{
		{"procurement_review", procurement},
		{"TECHNICAL_APPROVED", principalFor(model.RoleTechnicalReviewer)},
		{"FINANCE_REVIEW", procurement},
		{"APPROVED", principalFor(model.RoleFinanceReviewer)},
		{"PAID", principalFor(model.RoleTreasury)},
	}
	for _, step := range steps {
		w = api.do(step.actor, http.MethodPost, ipcPath+"/transitions", gin.H{"status": step.status})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	decodeData(t, w, &ipc)
	assert.Equal(t, model.IPCStatusPaid, ipc.Status)
	assert.Equal(t, 6, ipc.Version)
	assert.Len(t, ipc.Timeline, 6)

	w = api.do(vendorUser, http.MethodGet, "/contracts/"+contract.ID.String()+"/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var summary model.ContractSummary
	decodeData(t, w, &summary)
	assert.Equal(t, "300000", summary.TotalPaid.String())
	assert.Equal(t, "700000", summary.RemainingValue.String())
	require.NotNil(t, summary.ProgressPercent)
	assert.Equal(t, "30", summary.ProgressPercent.String())

	w = api.do(vendorUser, http.MethodGet, ipcPath+"/certificate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "ipc-CN-100-IPC-001.pdf")

	w = api.do(procurement, http.MethodGet, "/reports/projects/export?project=Harbour+Wall", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, contentTypeXLSX, w.Header().Get("Content-Type"))
}

func TestHandler_ReportsAndValidation(t *testing.T) {
	api := newAPI(t)
	procurement := principalFor(model.RoleProcurementReviewer)

	w := api.do(procurement, http.MethodGet, "/contracts/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "InvalidInput", decode(t, w).Code)

	w = api.do(procurement, http.MethodGet, "/contracts/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NotFound", decode(t, w).Code)

	w = api.do(procurement, http.MethodPost, "/contracts", gin.H{"vendor_id": uuid.NewString(), "currency": "EURO"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var invalid struct {
		Details []middleware.FieldError `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &invalid))
	assert.Equal(t, []middleware.FieldError{
		{Field: "contract_number", Message: "is required"},
		{Field: "currency", Message: "must be 3 characters long"},
	}, invalid.Details)

	w = api.do(procurement, http.MethodPost, "/ipcs/"+uuid.NewString()+"/transitions", gin.H{"status": "DONE"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(procurement, http.MethodGet, "/reports/projects?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(procurement, http.MethodGet, "/reports/projects?from=2025-02-01&to=2025-01-01", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(procurement, http.MethodGet, "/reports/dashboard", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dash model.Dashboard
	decodeData(t, w, &dash)
	assert.Nil(t, dash.UtilizationRate)
	assert.Zero(t, dash.ActiveProjectCount)

	w = api.do(procurement, http.MethodGet, "/vendors/ranking", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(procurement, http.MethodPost, "/ipcs/reminders", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"reminded":0}`, string(decode(t, w).Data))

	vendorID := uuid.New()
	vendorUser := &model.Principal{UserID: uuid.New(), Role: model.RoleVendor, VendorID: &vendorID}
	w = api.do(vendorUser, http.MethodGet, "/vendors/ranking", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestParseRangeEnd(t *testing.T) {
	end, err := parseRangeEnd("2025-01-31")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 31, 23, 59, 59, 999999999, time.UTC), end)

	_, err = parseRangeEnd("31/01/2025")
	assert.Error(t, err)
}
