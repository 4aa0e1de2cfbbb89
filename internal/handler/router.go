package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter assembles the echo server: storefront routes, admin routes
// behind the authorizer, health, and metrics.
func NewRouter(
	storefront *StorefrontHandler,
	admin *AdminHandler,
	registry *prometheus.Registry,
	logger zerolog.Logger,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = NewRequestValidator()

	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(requestLogger(logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	if registry != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")

	api.GET("/products", storefront.ListProducts)
	api.GET("/products/:id", storefront.GetProduct)
	api.GET("/specials", storefront.ListSpecials)

	api.GET("/cart", storefront.GetCart)
	api.POST("/cart/items", storefront.AddProduct)
	api.POST("/cart/specials", storefront.AddSpecial)
	api.PATCH("/cart/items/:id", storefront.UpdateItemQuantity)
	api.DELETE("/cart/items/:id", storefront.RemoveItem)
	api.POST("/cart/merge", storefront.MergeCart)
	api.POST("/checkout", storefront.Checkout)

	adm := api.Group("/admin", admin.RequireAdmin)
	adm.GET("/orders", admin.ListOrders)
	adm.GET("/orders/:id", admin.GetOrder)
	adm.POST("/orders/:id/status", admin.UpdateOrderStatus)
	adm.POST("/orders/:id/items", admin.AddOrderLineItem)
	adm.POST("/products", admin.CreateProduct)
	adm.POST("/products/:id/availability", admin.SetProductAvailability)
	adm.POST("/products/:id/groups", admin.AttachParameterGroup)
	adm.POST("/parameter-groups", admin.CreateParameterGroup)
	adm.POST("/specials/:id/status", admin.UpdateSpecialStatus)
	adm.GET("/history/:entity_type/:id", admin.GetHistory)

	return e
}

// requestLogger emits one structured line per request.
func requestLogger(logger zerolog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			evt := logger.Info()
			if v.Status >= http.StatusInternalServerError {
				evt = logger.Error()
			}
			evt.
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Err(v.Error).
				Msg("request")
			return nil
		},
	})
}
