package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/crossretail/retail-intel-go/internal/models"
	"github.com/crossretail/retail-intel-go/internal/services"
)

// PriceHandler serves latest-price lookups and cross-retailer
// comparisons.
type PriceHandler struct {
	facade *services.QueryFacade
	logger *logrus.Logger
}

func NewPriceHandler(facade *services.QueryFacade, logger *logrus.Logger) *PriceHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &PriceHandler{facade: facade, logger: logger}
}

// GetLatestPrice returns the current price for one product at one
// retailer.
func (h *PriceHandler) GetLatestPrice(c *gin.Context) {
	productID := c.Param("product_id")
	site := c.Param("site")

	latest, err := h.facade.GetLatestPrice(c.Request.Context(), productID, site)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, latest)
}

// CompareProducts lines up latest prices for a set of products.
func (h *PriceHandler) CompareProducts(c *gin.Context) {
	var req models.CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: product_ids is required"})
		return
	}

	resp, err := h.facade.CompareProducts(c.Request.Context(), req.ProductIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
