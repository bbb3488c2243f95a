package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/crossretail/retail-intel-go/internal/models"
	"github.com/crossretail/retail-intel-go/internal/services"
)

// BrandHandler serves per-brand aggregates over the latest-price view.
type BrandHandler struct {
	facade *services.QueryFacade
	logger *logrus.Logger
}

func NewBrandHandler(facade *services.QueryFacade, logger *logrus.Logger) *BrandHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &BrandHandler{facade: facade, logger: logger}
}

// GetBrandStats returns brand statistics ranked by product coverage.
func (h *BrandHandler) GetBrandStats(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
		return
	}
	page, perPage, ok := parsePaging(c)
	if !ok {
		return
	}

	resp, err := h.facade.GetBrandStats(c.Request.Context(), models.BrandStatsRequest{
		Limit:   limit,
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
