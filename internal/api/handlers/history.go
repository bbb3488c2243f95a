package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/crossretail/retail-intel-go/internal/models"
	"github.com/crossretail/retail-intel-go/internal/services"
)

// HistoryHandler serves day-bucketed price history series.
type HistoryHandler struct {
	facade *services.QueryFacade
	logger *logrus.Logger
}

func NewHistoryHandler(facade *services.QueryFacade, logger *logrus.Logger) *HistoryHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &HistoryHandler{facade: facade, logger: logger}
}

// GetPriceHistory returns the price trend for one product, optionally
// restricted to one retailer.
func (h *HistoryHandler) GetPriceHistory(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "30"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days parameter"})
		return
	}

	resp, err := h.facade.GetPriceHistory(c.Request.Context(), models.HistoryRequest{
		ProductID: c.Param("product_id"),
		Site:      c.Query("site"),
		Days:      days,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
