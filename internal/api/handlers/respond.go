package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/crossretail/retail-intel-go/internal/utils"
)

// respondError maps the engine error taxonomy onto HTTP status codes.
// NotFound is a normal outcome (404), StoreUnavailable and a blown
// refresh budget are service failures (503), parameter problems are the
// caller's (400).
func respondError(c *gin.Context, err error) {
	var vErr *utils.ValidationError
	var rangeErr *utils.OutOfRangeError
	var nfErr *utils.NotFoundError
	var storeErr *utils.StoreUnavailableError
	var timeoutErr *utils.ComputationTimeoutError

	switch {
	case errors.As(err, &vErr), errors.As(err, &rangeErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &nfErr):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &storeErr), errors.As(err, &timeoutErr):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
