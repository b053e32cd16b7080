package rest

import (
	"context"
	"net/http"
	"reflect"
	"sync"
	"time"

	"github.com/dfryer1193/gocatalog/api"
	"github.com/dfryer1193/gocatalog/internal/middleware"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

var registerValidators sync.Once

// NewRouter assembles the engine with logging, recovery, metrics and CORS
// middleware and registers every route.
func NewRouter(products *ProductHandler, db Pinger, metrics *middleware.Metrics, gatherer prometheus.Gatherer, allowedOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(middleware.LoggingMiddleware())
	router.Use(gin.CustomRecovery(middleware.HandlePanics()))
	router.Use(metrics.MetricsMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	NewApi(router, products)
	NewOpsApi(router, db, gatherer)

	return router
}

func NewApi(router *gin.Engine, products *ProductHandler) {
	registerValidators.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			v.RegisterCustomTypeFunc(nullDecimalValue, decimal.NullDecimal{})
		}
	})

	productsAPI := router.Group("/api/products")
	{
		productsAPI.GET("", products.ListProducts)
		productsAPI.POST("", products.CreateProduct)
		productsAPI.POST("/import", products.ImportProducts)
		productsAPI.GET("/images/:name", products.ServeImage)
		productsAPI.GET("/:id", products.GetProduct)
		productsAPI.PUT("/:id", products.UpdateProduct)
		productsAPI.DELETE("/:id", products.DeleteProduct)
		productsAPI.DELETE("/:id/images/:imageId", products.RemoveImage)
	}
}

// nullDecimalValue exposes a price to the validator as a float so numeric
// tags apply; an absent price validates as missing.
func nullDecimalValue(field reflect.Value) any {
	if d, ok := field.Interface().(decimal.NullDecimal); ok && d.Valid {
		f, _ := d.Decimal.Float64()
		return f
	}
	return nil
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// NewOpsApi registers the health and metrics endpoints.
func NewOpsApi(router *gin.Engine, db Pinger, gatherer prometheus.Gatherer) {
	router.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, api.HealthResponse{Status: "unavailable", Database: err.Error()})
			return
		}
		c.JSON(http.StatusOK, api.HealthResponse{Status: "ok", Database: "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}
