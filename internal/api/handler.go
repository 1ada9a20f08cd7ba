// Package api exposes the analyzer's REST surface: message queries,
// order-flow reconstruction, monitoring stats, session summaries and
// file ingestion.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fixtools/fix-log-analyzer/internal/fix"
	"github.com/fixtools/fix-log-analyzer/internal/ingest"
	"github.com/fixtools/fix-log-analyzer/internal/monitor"
	"github.com/fixtools/fix-log-analyzer/internal/observability"
	"github.com/fixtools/fix-log-analyzer/internal/orderflow"
	"github.com/fixtools/fix-log-analyzer/internal/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 1000
)

// Handler holds the HTTP handler dependencies.
type Handler struct {
	store             *store.Store
	ingester          *ingest.Service
	metrics           *observability.Metrics
	latencySampleSize int
	logger            *zap.Logger
}

// NewHandler creates a new Handler.
func NewHandler(st *store.Store, ingester *ingest.Service, metrics *observability.Metrics,
	latencySampleSize int, logger *zap.Logger) *Handler {
	return &Handler{
		store:             st,
		ingester:          ingester,
		metrics:           metrics,
		latencySampleSize: latencySampleSize,
		logger:            logger,
	}
}

// RegisterRoutes sets up the Gin routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := r.Group("/api")
	{
		api.POST("/files", h.UploadFile)
		api.GET("/messages", h.GetMessages)
		api.GET("/orders/flow", h.GetOrderFlow)
		api.GET("/monitoring/stats", h.GetMonitoringStats)
		api.GET("/sessions/:id", h.GetSession)
		api.GET("/analytics/symbols", h.GetSymbolDistribution)
	}
}

// Health returns a health check response.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "fix-log-analyzer",
	})
}

// UploadFile handles POST /api/files: multipart log file ingestion.
func (h *Handler) UploadFile(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file upload"})
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer src.Close()

	versionHint := c.Query("fixVersion")

	result, err := h.ingester.ProcessReader(c.Request.Context(), src, versionHint)
	if err != nil {
		h.logger.Error("file ingestion failed",
			zap.String("filename", file.Filename),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process file"})
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetMessages handles GET /api/messages with msgTypes, orderId, start,
// end, page and pageSize query filters.
func (h *Handler) GetMessages(c *gin.Context) {
	filter := store.Filter{
		OrderID: c.Query("orderId"),
		Symbol:  c.Query("symbol"),
		Sender:  c.Query("sender"),
	}
	if msgTypes := c.Query("msgTypes"); msgTypes != "" {
		filter.MsgTypes = strings.Split(msgTypes, ",")
	}

	var ok bool
	if filter.Start, ok = parseTimeParam(c, "start"); !ok {
		return
	}
	if filter.End, ok = parseTimeParam(c, "end"); !ok {
		return
	}

	page, pageSize := paging(c, 100)
	filter.Limit = pageSize
	filter.Offset = (page - 1) * pageSize

	messages, err := h.store.Scan(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("message scan failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query messages"})
		return
	}

	total, err := h.store.Count(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("message count failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query messages"})
		return
	}

	if messages == nil {
		messages = []*fix.Message{}
	}
	c.JSON(http.StatusOK, gin.H{
		"messages":    messages,
		"totalCount":  total,
		"pageSize":    pageSize,
		"currentPage": page,
	})
}

// orderFlowResponse is the paged reconstruction result.
type orderFlowResponse struct {
	Orders      []*orderflow.OrderFlow `json:"orders"`
	TotalCount  int                    `json:"totalCount"`
	PageSize    int                    `json:"pageSize"`
	CurrentPage int                    `json:"currentPage"`
}

// GetOrderFlow handles GET /api/orders/flow. Symbol, identifier and time
// filters are pushed down to the store scan; reconstruction runs over
// the full filtered batch and pagination applies to the flows last.
func (h *Handler) GetOrderFlow(c *gin.Context) {
	filter := store.Filter{
		MsgTypes: []string{fix.MsgTypeNewOrderSingle, fix.MsgTypeExecutionReport, fix.MsgTypeOrderCancelReject},
		OrderID:  c.Query("orderId"),
		ClOrdID:  c.Query("clOrdId"),
		Symbol:   c.Query("symbol"),
	}

	var ok bool
	if filter.Start, ok = parseTimeParam(c, "start"); !ok {
		return
	}
	if filter.End, ok = parseTimeParam(c, "end"); !ok {
		return
	}

	mode := orderflow.TrackClOrdID
	switch c.Query("trackingMode") {
	case "", string(orderflow.TrackClOrdID):
	case string(orderflow.TrackOrderID):
		mode = orderflow.TrackOrderID
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "trackingMode must be OrderId or ClOrdId"})
		return
	}

	messages, err := h.store.Scan(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("order flow scan failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query messages"})
		return
	}

	flows := orderflow.Reconstruct(messages, mode)

	page, pageSize := paging(c, defaultPageSize)
	total := len(flows)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	c.JSON(http.StatusOK, orderFlowResponse{
		Orders:      flows[start:end],
		TotalCount:  total,
		PageSize:    pageSize,
		CurrentPage: page,
	})
}

// GetMonitoringStats handles GET /api/monitoring/stats, optionally
// scoped to one principal via ?sender=.
func (h *Handler) GetMonitoringStats(c *gin.Context) {
	filter := store.Filter{Sender: c.Query("sender")}

	messages, err := h.store.Scan(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("monitoring scan failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query messages"})
		return
	}

	c.JSON(http.StatusOK, monitor.ComputeStats(messages, h.latencySampleSize))
}

// GetSession handles GET /api/sessions/:id.
func (h *Handler) GetSession(c *gin.Context) {
	summary, err := h.store.SessionSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		h.logger.Error("session summary failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query session"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// GetSymbolDistribution handles GET /api/analytics/symbols.
func (h *Handler) GetSymbolDistribution(c *gin.Context) {
	distribution, err := h.store.SymbolDistribution(c.Request.Context())
	if err != nil {
		h.logger.Error("symbol distribution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query symbols"})
		return
	}

	c.JSON(http.StatusOK, distribution)
}

func paging(c *gin.Context, defaultSize int) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.DefaultQuery("pageSize", strconv.Itoa(defaultSize)))
	if pageSize < 1 {
		pageSize = defaultSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func parseTimeParam(c *gin.Context, name string) (*time.Time, bool) {
	value := c.Query(name)
	if value == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + " format, use RFC3339"})
		return nil, false
	}
	return &t, true
}
