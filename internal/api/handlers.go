package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"StockAgent/internal/domain"
	"StockAgent/internal/ports"
)

const defaultContentsLimit = 20

// Handler serves the stored analyses read-only.
type Handler struct {
	sources   ports.SourceRegistry
	contents  ports.ContentRepository
	summaries ports.SummaryRepository
	logger    *slog.Logger
}

// NewHandler wires the repositories.
func NewHandler(sources ports.SourceRegistry, contents ports.ContentRepository,
	summaries ports.SummaryRepository, logger *slog.Logger) *Handler {
	return &Handler{
		sources:   sources,
		contents:  contents,
		summaries: summaries,
		logger:    logger,
	}
}

// GetStatus answers the service health probe.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "Stock Agent API"})
}

// GetContents returns the most recent analyses, newest first.
func (h *Handler) GetContents(c *gin.Context) {
	limit := defaultContentsLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	items, err := h.contents.Recent(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, "load contents", err)
		return
	}

	out := make([]contentResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toContentResponse(item))
	}
	c.JSON(http.StatusOK, out)
}

// GetChannels lists the monitored youtube sources.
func (h *Handler) GetChannels(c *gin.Context) {
	sources, err := h.sources.ListActive(c.Request.Context(), domain.PlatformYouTube)
	if err != nil {
		h.fail(c, "load channels", err)
		return
	}

	out := make([]sourceResponse, 0, len(sources))
	for _, src := range sources {
		out = append(out, toSourceResponse(src))
	}
	c.JSON(http.StatusOK, out)
}

// GetDailySummary returns the latest digest row, or null when none
// exists yet.
func (h *Handler) GetDailySummary(c *gin.Context) {
	summary, err := h.summaries.LatestSummary(c.Request.Context())
	if err != nil {
		h.fail(c, "load daily summary", err)
		return
	}
	if summary == nil {
		c.JSON(http.StatusOK, nil)
		return
	}
	c.JSON(http.StatusOK, toSummaryResponse(*summary))
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	if h.logger != nil {
		h.logger.Error(op+" failed", "error", err)
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
