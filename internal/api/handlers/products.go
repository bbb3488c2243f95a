package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/crossretail/retail-intel-go/internal/models"
	"github.com/crossretail/retail-intel-go/internal/services"
)

// ProductHandler serves the product listing and single-product lookup.
type ProductHandler struct {
	facade *services.QueryFacade
	logger *logrus.Logger
}

func NewProductHandler(facade *services.QueryFacade, logger *logrus.Logger) *ProductHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &ProductHandler{facade: facade, logger: logger}
}

// Search filters the latest-price listing. brands and retailers are
// comma-separated lists; the price bounds are inclusive.
func (h *ProductHandler) Search(c *gin.Context) {
	req := models.ProductSearchRequest{
		Query:     c.Query("query"),
		Brands:    splitList(c.Query("brands")),
		Retailers: splitList(c.Query("retailers")),
	}

	if raw := c.Query("min_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid min_price parameter"})
			return
		}
		req.MinPrice = &v
	}
	if raw := c.Query("max_price"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_price parameter"})
			return
		}
		req.MaxPrice = &v
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page parameter"})
		return
	}
	perPage, err := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid per_page parameter"})
		return
	}
	req.Page, req.PerPage = page, perPage

	resp, err := h.facade.SearchProducts(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetProduct returns the freshest observation of one product across all
// retailers.
func (h *ProductHandler) GetProduct(c *gin.Context) {
	product, err := h.facade.GetProduct(c.Request.Context(), c.Param("product_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
