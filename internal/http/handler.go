package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/procurement-ipc/internal/http/middleware"
	"github.com/nurpe/procurement-ipc/internal/ledger"
	"github.com/nurpe/procurement-ipc/internal/model"
	"github.com/nurpe/procurement-ipc/internal/service"
	"github.com/nurpe/procurement-ipc/internal/workflow"
)

const (
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type Handler struct {
	contracts *service.ContractService
	ipcs      *service.IPCService
	reports   *service.ReportService
	log       zerolog.Logger
}

func NewHandler(
	contracts *service.ContractService,
	ipcs *service.IPCService,
	reports *service.ReportService,
	log zerolog.Logger,
) *Handler {
	return &Handler{contracts: contracts, ipcs: ipcs, reports: reports, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.POST("/vendors", h.createVendor)
	protected.GET("/vendors", h.listVendors)
	protected.GET("/vendors/ranking", h.rankVendors)
	protected.GET("/vendors/:id", h.getVendor)
	protected.GET("/vendors/:id/performance", h.getVendorPerformance)

	protected.POST("/rfqs", h.createRFQ)

	protected.POST("/contracts", h.createContract)
	protected.GET("/contracts/:id", h.getContract)
	protected.POST("/contracts/:id/issue", h.changeContractStatus(model.ContractStatusActive))
	protected.POST("/contracts/:id/close", h.changeContractStatus(model.ContractStatusClosed))
	protected.POST("/contracts/:id/terminate", h.changeContractStatus(model.ContractStatusTerminated))
	protected.POST("/contracts/:id/expire", h.changeContractStatus(model.ContractStatusExpired))
	protected.GET("/contracts/:id/summary", h.getContractSummary)
	protected.GET("/contracts/:id/ipcs", h.listContractIPCs)
	protected.POST("/contracts/:id/ipcs", h.submitIPC)
	protected.GET("/contracts/:id/variation-orders", h.listVariationOrders)
	protected.POST("/contracts/:id/variation-orders", h.createVariationOrder)

	protected.POST("/ipcs/reminders", h.remindOverdueReviews)
	protected.GET("/ipcs/:id", h.getIPC)
	protected.POST("/ipcs/:id/transitions", h.transitionIPC)
	protected.GET("/ipcs/:id/certificate", h.downloadCertificate)

	protected.GET("/reports/projects", h.getProjectSpend)
	protected.GET("/reports/projects/export", h.exportProjectSpend)
	protected.GET("/reports/dashboard", h.getDashboard)
}

type createVendorRequest struct {
	CompanyName        string          `json:"company_name" binding:"required"`
	ContactName        string          `json:"contact_name"`
	Email              string          `json:"email" binding:"omitempty,email"`
	Phone              string          `json:"phone"`
	Address            string          `json:"address"`
	QualificationScore decimal.Decimal `json:"qualification_score"`
	VendorClass        string          `json:"vendor_class"`
}

func (h *Handler) createVendor(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req createVendorRequest
	if !h.bind(c, &req) {
		return
	}

	vendor, err := h.contracts.CreateVendor(c.Request.Context(), service.CreateVendorInput{
		CompanyName:        req.CompanyName,
		ContactName:        req.ContactName,
		Email:              req.Email,
		Phone:              req.Phone,
		Address:            req.Address,
		QualificationScore: req.QualificationScore,
		VendorClass:        req.VendorClass,
		Principal:          principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": vendor})
}

func (h *Handler) listVendors(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	vendors, err := h.contracts.ListVendors(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": vendors})
}

func (h *Handler) getVendor(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	vendor, err := h.contracts.GetVendor(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": vendor})
}

func (h *Handler) getVendorPerformance(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	perf, err := h.reports.GetVendorPerformance(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": perf})
}

func (h *Handler) rankVendors(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	ranking, err := h.reports.RankVendors(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ranking})
}

type createRFQRequest struct {
	RFQNumber          string          `json:"rfq_number" binding:"required"`
	Title              string          `json:"title"`
	EstimatedUnitPrice decimal.Decimal `json:"estimated_unit_price"`
	Currency           string          `json:"currency"`
}

func (h *Handler) createRFQ(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req createRFQRequest
	if !h.bind(c, &req) {
		return
	}
	rfq, err := h.contracts.CreateRFQ(c.Request.Context(), service.CreateRFQInput{
		RFQNumber:          req.RFQNumber,
		Title:              req.Title,
		EstimatedUnitPrice: req.EstimatedUnitPrice,
		Currency:           req.Currency,
		Principal:          principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": rfq})
}

type createContractRequest struct {
	ContractNumber string          `json:"contract_number" binding:"required"`
	VendorID       string          `json:"vendor_id" binding:"required"`
	RFQID          string          `json:"rfq_id"`
	Project        string          `json:"project"`
	Title          string          `json:"title"`
	Currency       string          `json:"currency" binding:"required,len=3"`
	ContractValue  decimal.Decimal `json:"contract_value"`
	StartDate      string          `json:"start_date"`
	EndDate        string          `json:"end_date"`
	PaymentTerms   string          `json:"payment_terms"`
	WarrantyMonths int             `json:"warranty_months"`
}

func (h *Handler) createContract(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	var req createContractRequest
	if !h.bind(c, &req) {
		return
	}

	vendorID, err := uuid.Parse(strings.TrimSpace(req.VendorID))
	if err != nil {
		h.badRequest(c, "invalid vendor_id")
		return
	}
	var rfqID *uuid.UUID
	if raw := strings.TrimSpace(req.RFQID); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			h.badRequest(c, "invalid rfq_id")
			return
		}
		rfqID = &parsed
	}
	start, err := parseOptionalDate(req.StartDate)
	if err != nil {
		h.badRequest(c, "invalid start_date")
		return
	}
	end, err := parseOptionalDate(req.EndDate)
	if err != nil {
		h.badRequest(c, "invalid end_date")
		return
	}

	contract, err := h.contracts.CreateContract(c.Request.Context(), service.CreateContractInput{
		ContractNumber: req.ContractNumber,
		VendorID:       vendorID,
		RFQID:          rfqID,
		Project:        req.Project,
		Title:          req.Title,
		Currency:       req.Currency,
		ContractValue:  req.ContractValue,
		StartDate:      start,
		EndDate:        end,
		PaymentTerms:   req.PaymentTerms,
		WarrantyMonths: req.WarrantyMonths,
		Principal:      principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": contract})
}

func (h *Handler) getContract(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	contract, err := h.contracts.GetContract(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": contract})
}

func (h *Handler) changeContractStatus(target model.ContractStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := h.principal(c)
		if !ok {
			return
		}
		id, ok := h.pathID(c)
		if !ok {
			return
		}
		contract, err := h.contracts.ChangeContractStatus(c.Request.Context(), id, target, principal)
		if err != nil {
			h.handleError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": contract})
	}
}

func (h *Handler) getContractSummary(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	summary, err := h.reports.GetContractSummary(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (h *Handler) listContractIPCs(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	ipcs, err := h.ipcs.ListContractIPCs(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ipcs})
}

type submitIPCRequest struct {
	IPCNumber       string          `json:"ipc_number"`
	PeriodFrom      string          `json:"period_from"`
	PeriodTo        string          `json:"period_to"`
	CurrentValue    decimal.Decimal `json:"current_value"`
	Deductions      decimal.Decimal `json:"deductions"`
	Description     string          `json:"description"`
	WorkDescription string          `json:"work_description"`
}

func (h *Handler) submitIPC(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}
	var req submitIPCRequest
	if !h.bind(c, &req) {
		return
	}
	periodFrom, err := parseOptionalDate(req.PeriodFrom)
	if err != nil {
		h.badRequest(c, "invalid period_from")
		return
	}
	periodTo, err := parseOptionalDate(req.PeriodTo)
	if err != nil {
		h.badRequest(c, "invalid period_to")
		return
	}

	ipc, err := h.ipcs.SubmitIPC(c.Request.Context(), service.SubmitIPCInput{
		ContractID: contractID,
		Draft: model.IPCDraft{
			IPCNumber:       req.IPCNumber,
			PeriodFrom:      periodFrom,
			PeriodTo:        periodTo,
			CurrentValue:    req.CurrentValue,
			Deductions:      req.Deductions,
			Description:     req.Description,
			WorkDescription: req.WorkDescription,
		},
		Principal: principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": ipc})
}

type createVariationOrderRequest struct {
	VONumber       string          `json:"vo_number" binding:"required"`
	Description    string          `json:"description"`
	CostImpact     decimal.Decimal `json:"cost_impact"`
	TimeImpactDays int             `json:"time_impact_days"`
}

func (h *Handler) createVariationOrder(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}
	var req createVariationOrderRequest
	if !h.bind(c, &req) {
		return
	}
	vo, err := h.contracts.CreateVariationOrder(c.Request.Context(), service.CreateVariationOrderInput{
		ContractID:     contractID,
		VONumber:       req.VONumber,
		Description:    req.Description,
		CostImpact:     req.CostImpact,
		TimeImpactDays: req.TimeImpactDays,
		Principal:      principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": vo})
}

func (h *Handler) listVariationOrders(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	contractID, ok := h.pathID(c)
	if !ok {
		return
	}
	orders, err := h.contracts.ListVariationOrders(c.Request.Context(), contractID, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders})
}

func (h *Handler) getIPC(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	ipc, err := h.ipcs.GetIPC(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	available := workflow.AvailableTransitions(ipc.Status, principal.Role)
	if available == nil {
		available = []model.IPCStatus{}
	}
	c.JSON(http.StatusOK, gin.H{"data": ipc, "available_transitions": available})
}

type transitionIPCRequest struct {
	Status          string `json:"status" binding:"required,ipc_status"`
	Notes           string `json:"notes"`
	ExpectedVersion *int   `json:"expected_version"`
}

func (h *Handler) transitionIPC(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req transitionIPCRequest
	if !h.bind(c, &req) {
		return
	}

	ipc, err := h.ipcs.TransitionIPC(c.Request.Context(), service.TransitionIPCInput{
		IPCID:           id,
		Target:          model.IPCStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		Principal:       principal,
		Notes:           req.Notes,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ipc})
}

func (h *Handler) downloadCertificate(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	result, err := h.ipcs.GenerateCertificate(c.Request.Context(), id, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, contentTypePDF, result.Content)
}

func (h *Handler) remindOverdueReviews(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	count, err := h.ipcs.RemindOverdueReviews(c.Request.Context(), principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"reminded": count}})
}

func (h *Handler) getProjectSpend(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.projectFilter(c)
	if !ok {
		return
	}
	projects, err := h.reports.GetProjectSpend(c.Request.Context(), filter, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": projects})
}

func (h *Handler) exportProjectSpend(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.projectFilter(c)
	if !ok {
		return
	}
	result, err := h.reports.ExportSpendReport(c.Request.Context(), filter, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, contentTypeXLSX, result.Content)
}

func (h *Handler) getDashboard(c *gin.Context) {
	principal, ok := h.principal(c)
	if !ok {
		return
	}
	filter, ok := h.projectFilter(c)
	if !ok {
		return
	}
	dash, err := h.reports.GetDashboard(c.Request.Context(), filter, principal)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": dash})
}

func (h *Handler) projectFilter(c *gin.Context) (model.ProjectFilter, bool) {
	filter := model.ProjectFilter{Project: strings.TrimSpace(c.Query("project"))}
	if raw := strings.TrimSpace(c.Query("vendor_id")); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			h.badRequest(c, "invalid vendor_id")
			return filter, false
		}
		filter.VendorID = &id
	}
	if raw := c.Query("from"); raw != "" {
		from, err := parseDate(raw)
		if err != nil {
			h.badRequest(c, "invalid from")
			return filter, false
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := parseRangeEnd(raw)
		if err != nil {
			h.badRequest(c, "invalid to")
			return filter, false
		}
		filter.To = &to
	}
	return filter, true
}

func (h *Handler) principal(c *gin.Context) (model.Principal, bool) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal", "code": "Unauthorized"})
	}
	return principal, ok
}

func (h *Handler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.badRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if details := middleware.ValidationDetails(err); details != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "request validation failed", "code": "InvalidInput", "details": details})
			return false
		}
		h.badRequest(c, err.Error())
		return false
	}
	return true
}

func (h *Handler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "code": "InvalidInput"})
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status, code := classifyError(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error", "code": code})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden, "PermissionDenied"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, "InvalidAmount"
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "InvalidInput"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, workflow.ErrIllegalTransition):
		return http.StatusConflict, "IllegalTransition"
	case errors.Is(err, service.ErrConcurrentModification):
		return http.StatusConflict, "ConcurrentModification"
	case errors.Is(err, service.ErrContractNotActive):
		return http.StatusConflict, "ContractNotActive"
	case errors.Is(err, service.ErrInvalidContractState):
		return http.StatusConflict, "InvalidContractState"
	case errors.Is(err, service.ErrAlreadyExists):
		return http.StatusConflict, "AlreadyExists"
	case errors.Is(err, workflow.ErrMissingReviewNotes):
		return http.StatusUnprocessableEntity, "MissingReviewNotes"
	default:
		return http.StatusInternalServerError, "InternalError"
	}
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}

func parseOptionalDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return parseDate(raw)
}

// parseRangeEnd treats a bare date as the whole day.
func parseRangeEnd(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if day, err := time.Parse("2006-01-02", raw); err == nil {
		return day.Add(24*time.Hour - time.Nanosecond), nil
	}
	return parseDate(raw)
}
