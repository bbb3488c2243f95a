package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/crossretail/retail-intel-go/internal/models"
	"github.com/crossretail/retail-intel-go/internal/services"
)

// ObservationHandler is the ingest boundary consumed by the scraping
// collaborator.
type ObservationHandler struct {
	facade *services.QueryFacade
	logger *logrus.Logger
}

func NewObservationHandler(facade *services.QueryFacade, logger *logrus.Logger) *ObservationHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &ObservationHandler{facade: facade, logger: logger}
}

// Ingest accepts one price observation. Schema violations come back as
// a rejected receipt with a 400; duplicates are acknowledged, not
// errored.
func (h *ObservationHandler) Ingest(c *gin.Context) {
	var obs models.PriceObservation
	if err := c.ShouldBindJSON(&obs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid observation payload"})
		return
	}

	receipt, err := h.facade.Ingest(c.Request.Context(), obs)
	if err != nil {
		respondError(c, err)
		return
	}

	switch receipt.Status {
	case models.IngestRejected:
		c.JSON(http.StatusBadRequest, receipt)
	case models.IngestAccepted:
		c.JSON(http.StatusCreated, receipt)
	default:
		c.JSON(http.StatusOK, receipt)
	}
}
