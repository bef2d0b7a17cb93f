package http

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-approval/internal/application/workflow"
	"github.com/garyjia/invoice-approval/internal/domain/entity"
	domainwf "github.com/garyjia/invoice-approval/internal/domain/workflow"
)

const pdfMIME = "application/pdf"

// Handlers contains all HTTP request handlers
type Handlers struct {
	services    Services
	maxFiles    int
	maxFileSize int64
	logger      *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(services Services, cfg ServerConfig, logger *zap.Logger) *Handlers {
	defaults := DefaultServerConfig()
	if cfg.MaxFiles < 1 {
		cfg.MaxFiles = defaults.MaxFiles
	}
	if cfg.MaxFileSize < 1 {
		cfg.MaxFileSize = defaults.MaxFileSize
	}
	return &Handlers{
		services:    services,
		maxFiles:    cfg.MaxFiles,
		maxFileSize: cfg.MaxFileSize,
		logger:      logger,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status     string      `json:"status"`
	Timestamp  string      `json:"timestamp"`
	Components interface{} `json:"components,omitempty"`
}

// StatusRequest is the body of PATCH /api/invoices/:id/status
type StatusRequest struct {
	Status  entity.InvoiceStatus `json:"status"`
	Comment string               `json:"comment"`
}

// BulkActionRequest is the body of POST /api/invoices/bulk-action
type BulkActionRequest struct {
	InvoiceIDs []string             `json:"invoice_ids"`
	Action     entity.InvoiceStatus `json:"action"`
	Comment    string               `json:"comment"`
}

// ReprocessResponse reports a manual extraction retry
type ReprocessResponse struct {
	InvoiceID        string                  `json:"invoice_id"`
	ExtractionStatus entity.ExtractionStatus `json:"extraction_status,omitempty"`
	Skipped          bool                    `json:"skipped"`
	DuplicateOf      string                  `json:"duplicate_of,omitempty"`
	Error            string                  `json:"error,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if h.services.Health == nil {
		respond(c, http.StatusOK, resp)
		return
	}

	healthy, details := h.services.Health(c.Request.Context())
	resp.Components = details
	if !healthy {
		resp.Status = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Data: resp, Error: "one or more components are unhealthy"})
		return
	}
	respond(c, http.StatusOK, resp)
}

// UploadInvoices handles POST /api/invoices. Every file is checked before any is stored.
func (h *Handlers) UploadInvoices(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "Request must be multipart/form-data")
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		badRequest(c, "At least one PDF file is required")
		return
	}
	if len(files) > h.maxFiles {
		badRequest(c, fmt.Sprintf("At most %d files can be uploaded at once", h.maxFiles))
		return
	}

	category := entity.Category(c.PostForm("category"))
	if !category.IsValid() {
		badRequest(c, "Valid category is required (VENDOR_PAYMENT or REIMBURSEMENT)")
		return
	}

	contents := make([][]byte, len(files))
	for i, fh := range files {
		content, err := h.readPDF(fh)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		contents[i] = content
	}

	p := principalFrom(c)
	invoices := make([]*entity.Invoice, 0, len(files))
	for i, fh := range files {
		inv, err := h.services.Engine.SubmitInvoice(c.Request.Context(), workflow.SubmitRequest{
			SubmitterID: p.UserID,
			Category:    category,
			Filename:    fh.Filename,
			Content:     contents[i],
			Notes:       c.PostForm("notes"),
		})
		if err != nil {
			h.logger.Error("Failed to submit invoice", zap.String("filename", fh.Filename), zap.Error(err))
			fail(c, err)
			return
		}
		invoices = append(invoices, inv)
	}

	respond(c, http.StatusCreated, gin.H{"invoices": invoices})
}

func (h *Handlers) readPDF(fh *multipart.FileHeader) ([]byte, error) {
	if fh.Size > h.maxFileSize {
		return nil, fmt.Errorf("%s exceeds the %d byte limit", fh.Filename, h.maxFileSize)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("%s could not be read", fh.Filename)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("%s could not be read", fh.Filename)
	}
	if int64(len(content)) > h.maxFileSize {
		return nil, fmt.Errorf("%s exceeds the %d byte limit", fh.Filename, h.maxFileSize)
	}
	if !mimetype.Detect(content).Is(pdfMIME) {
		return nil, fmt.Errorf("only PDF files are allowed: %s", fh.Filename)
	}
	return content, nil
}

// ListInvoices handles GET /api/invoices
func (h *Handlers) ListInvoices(c *gin.Context) {
	filter, err := parseInvoiceFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	filter.Page = queryInt(c, "page", 1)
	filter.Limit = queryInt(c, "limit", entity.DefaultPageLimit)

	page, err := h.services.Invoices.List(c.Request.Context(), principalFrom(c), filter)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, page)
}

// ExportInvoices handles GET /api/invoices/export?format=csv|xlsx
func (h *Handlers) ExportInvoices(c *gin.Context) {
	filter, err := parseInvoiceFilter(c)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	format := c.DefaultQuery("format", "csv")
	exporter, err := h.services.Invoices.ExporterFor(format)
	if err != nil {
		fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.services.Invoices.Export(c.Request.Context(), principalFrom(c), filter, format, &buf); err != nil {
		fail(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=invoices-export."+exporter.FileExtension())
	c.Data(http.StatusOK, exporter.ContentType(), buf.Bytes())
}

// GetInvoice handles GET /api/invoices/:id
func (h *Handlers) GetInvoice(c *gin.Context) {
	detail, err := h.services.Invoices.Get(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, detail)
}

// DownloadPDF handles GET /api/invoices/:id/pdf
func (h *Handlers) DownloadPDF(c *gin.Context) {
	content, inv, err := h.services.Invoices.OpenFile(c.Request.Context(), principalFrom(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", inv.OriginalFilename))
	c.Data(http.StatusOK, pdfMIME, content)
}

// AuditLog handles GET /api/invoices/:id/actions
func (h *Handlers) AuditLog(c *gin.Context) {
	actions, err := h.services.Audit.GetAuditLog(c.Request.Context(), c.Param("id"), principalFrom(c))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"actions": actions})
}

// ChangeStatus handles PATCH /api/invoices/:id/status
func (h *Handlers) ChangeStatus(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	inv, err := h.services.Engine.ChangeStatus(c.Request.Context(), c.Param("id"), principalFrom(c), req.Status, req.Comment)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, inv)
}

// BulkAction handles POST /api/invoices/bulk-action
func (h *Handlers) BulkAction(c *gin.Context) {
	var req BulkActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	if len(req.InvoiceIDs) == 0 {
		badRequest(c, "invoice_ids array is required")
		return
	}

	updated, err := h.services.Engine.BulkChangeStatus(c.Request.Context(), req.InvoiceIDs, principalFrom(c), req.Action, req.Comment)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"updated_count": updated})
}

// EditExtractedData handles PATCH /api/invoices/:id/extracted-data
func (h *Handlers) EditExtractedData(c *gin.Context) {
	var patch entity.ExtractedDataPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	data, err := h.services.Engine.EditExtractedData(c.Request.Context(), c.Param("id"), principalFrom(c), patch)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, data)
}

// Reprocess handles POST /api/invoices/:id/reprocess
func (h *Handlers) Reprocess(c *gin.Context) {
	if err := domainwf.RequireApprover(principalFrom(c).Role); err != nil {
		fail(c, err)
		return
	}

	out, err := h.services.Engine.ReprocessExtraction(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	resp := ReprocessResponse{
		InvoiceID:        out.InvoiceID,
		ExtractionStatus: out.Status,
		Skipped:          out.Skipped,
		DuplicateOf:      out.DuplicateOf,
	}
	if out.Err != nil {
		h.logger.Warn("Reprocess did not complete", zap.String("invoice_id", out.InvoiceID), zap.Error(out.Err))
		resp.Error = out.Err.Error()
	}
	respond(c, http.StatusOK, resp)
}

// ListNotifications handles GET /api/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	page, err := h.services.Notifications.List(c.Request.Context(), principalFrom(c).UserID,
		queryInt(c, "page", 1), queryInt(c, "limit", entity.DefaultPageLimit))
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, page)
}

// MarkNotificationRead handles PATCH /api/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	n, err := h.services.Notifications.MarkRead(c.Request.Context(), c.Param("id"), principalFrom(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, n)
}

// MarkAllNotificationsRead handles PATCH /api/notifications/read-all
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	updated, err := h.services.Notifications.MarkAllRead(c.Request.Context(), principalFrom(c).UserID)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"updated_count": updated})
}

// AnalyticsStats handles GET /api/analytics/stats
func (h *Handlers) AnalyticsStats(c *gin.Context) {
	var filter entity.AnalyticsFilter
	var err error
	if filter.StartDate, err = queryTime(c, "startDate"); err != nil {
		badRequest(c, err.Error())
		return
	}
	if filter.EndDate, err = queryTime(c, "endDate"); err != nil {
		badRequest(c, err.Error())
		return
	}
	filter.Category = entity.Category(c.Query("category"))

	stats, err := h.services.Analytics.Stats(c.Request.Context(), principalFrom(c), filter)
	if err != nil {
		fail(c, err)
		return
	}
	respond(c, http.StatusOK, stats)
}

func parseInvoiceFilter(c *gin.Context) (entity.InvoiceFilter, error) {
	f := entity.InvoiceFilter{
		Category:    entity.Category(c.Query("category")),
		SubmittedBy: c.Query("submittedBy"),
		Search:      strings.TrimSpace(c.Query("search")),
		SortBy:      c.Query("sortBy"),
		SortOrder:   c.Query("sortOrder"),
	}

	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			status := entity.InvoiceStatus(strings.TrimSpace(s))
			if !status.IsValid() {
				return f, fmt.Errorf("unknown status: %s", s)
			}
			f.Statuses = append(f.Statuses, status)
		}
	}
	if f.Category != "" && !f.Category.IsValid() {
		return f, fmt.Errorf("unknown category: %s", f.Category)
	}

	var err error
	if f.DateFrom, err = queryTime(c, "dateFrom"); err != nil {
		return f, err
	}
	if f.DateTo, err = queryTime(c, "dateTo"); err != nil {
		return f, err
	}
	if f.AmountMin, err = queryDecimal(c, "amountMin"); err != nil {
		return f, err
	}
	if f.AmountMax, err = queryDecimal(c, "amountMax"); err != nil {
		return f, err
	}
	return f, nil
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}

// queryTime accepts RFC3339 timestamps and plain dates (midnight UTC)
func queryTime(c *gin.Context, key string) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%s must be a date (YYYY-MM-DD) or RFC3339 timestamp", key)
}

func queryDecimal(c *gin.Context, key string) (decimal.NullDecimal, error) {
	raw := c.Query(key)
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%s must be a number", key)
	}
	return decimal.NewNullDecimal(d), nil
}
