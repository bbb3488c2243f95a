package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/crossretail/retail-intel-go/internal/models"
	"github.com/crossretail/retail-intel-go/internal/services"
)

// ArbitrageHandler serves the ranked cross-retailer opportunity
// listing.
type ArbitrageHandler struct {
	facade *services.QueryFacade
	logger *logrus.Logger
}

func NewArbitrageHandler(facade *services.QueryFacade, logger *logrus.Logger) *ArbitrageHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &ArbitrageHandler{facade: facade, logger: logger}
}

// GetOpportunities returns arbitrage opportunities clearing both
// caller-supplied thresholds.
func (h *ArbitrageHandler) GetOpportunities(c *gin.Context) {
	minMargin, err := strconv.ParseFloat(c.DefaultQuery("min_margin_pct", "5.0"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_margin_pct parameter"})
		return
	}
	minDiff, err := strconv.ParseFloat(c.DefaultQuery("min_price_diff", "1.0"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_price_diff parameter"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
		return
	}
	page, perPage, ok := parsePaging(c)
	if !ok {
		return
	}

	resp, err := h.facade.GetArbitrageOpportunities(c.Request.Context(), models.ArbitrageRequest{
		MinMarginPct: minMargin,
		MinPriceDiff: minDiff,
		Limit:        limit,
		Page:         page,
		PerPage:      perPage,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func parsePaging(c *gin.Context) (int, int, bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page parameter"})
		return 0, 0, false
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid per_page parameter"})
		return 0, 0, false
	}
	return page, perPage, true
}
