package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/crossretail/retail-intel-go/internal/api/handlers"
	"github.com/crossretail/retail-intel-go/internal/services"
)

// HealthChecker is implemented by the database and Redis clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Services  Services  `json:"services"`
}

type Services struct {
	Database string `json:"database"`
	Redis    string `json:"redis"`
}

// SetupRoutes wires the engine's read operations and the ingest
// boundary under /api/v1.
func SetupRoutes(router *gin.Engine, facade *services.QueryFacade, db, redis HealthChecker, logger *logrus.Logger) {
	router.GET("/health", healthCheck(db, redis))

	priceHandler := handlers.NewPriceHandler(facade, logger)
	productHandler := handlers.NewProductHandler(facade, logger)
	arbitrageHandler := handlers.NewArbitrageHandler(facade, logger)
	historyHandler := handlers.NewHistoryHandler(facade, logger)
	brandHandler := handlers.NewBrandHandler(facade, logger)
	observationHandler := handlers.NewObservationHandler(facade, logger)

	v1 := router.Group("/api/v1")
	{
		prices := v1.Group("/prices")
		{
			prices.GET("/:product_id/:site", priceHandler.GetLatestPrice)
			prices.POST("/compare", priceHandler.CompareProducts)
		}

		products := v1.Group("/products")
		{
			products.GET("/search", productHandler.Search)
			products.GET("/:product_id", productHandler.GetProduct)
		}

		arbitrage := v1.Group("/arbitrage")
		{
			arbitrage.GET("/opportunities", arbitrageHandler.GetOpportunities)
		}

		history := v1.Group("/history")
		{
			history.GET("/:product_id", historyHandler.GetPriceHistory)
		}

		brands := v1.Group("/brands")
		{
			brands.GET("/stats", brandHandler.GetBrandStats)
		}

		v1.POST("/observations", observationHandler.Ingest)
	}
}

func healthCheck(db, redis HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Version:   "1.0.0",
			Services: Services{
				Database: "ok",
				Redis:    "ok",
			},
		}

		if db != nil {
			if err := db.HealthCheck(c.Request.Context()); err != nil {
				response.Services.Database = "error"
				response.Status = "degraded"
			}
		}

		if redis != nil {
			if err := redis.HealthCheck(c.Request.Context()); err != nil {
				response.Services.Redis = "error"
				response.Status = "degraded"
			}
		}

		statusCode := http.StatusOK
		if response.Status == "degraded" {
			statusCode = http.StatusServiceUnavailable
		}

		c.JSON(statusCode, response)
	}
}
