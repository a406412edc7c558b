package http

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	custommiddleware "paperledger/internal/middleware"
)

// RouterConfig holds all dependencies for routing
type RouterConfig struct {
	PositionHandler *PositionHandler
	JWTSecret       string
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(e *echo.Echo, config *RouterConfig) {
	e.HTTPErrorHandler = HTTPErrorHandler

	// Middleware
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Skipper: func(c echo.Context) bool {
			// Dashboard polls these every 10s
			path := c.Request().URL.Path
			if strings.HasSuffix(path, "/positions/open/with-pnl") {
				return true
			}
			if strings.HasSuffix(path, "/portfolio/stats") {
				return true
			}
			return path == "/health"
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
	e.Use(middleware.Secure())

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return SuccessResponse(c, map[string]interface{}{
			"status":  "healthy",
			"service": "paperledger-api",
		})
	})

	h := config.PositionHandler
	guard := custommiddleware.JWTGuard(config.JWTSecret)

	trading := e.Group("/api/trading")
	{
		// Reads (public)
		trading.GET("/positions", h.ListPositions)
		trading.GET("/positions/open/with-pnl", h.ListOpenWithPnL)
		trading.GET("/positions/:id", h.GetPosition)
		trading.GET("/portfolio/stats", h.GetPortfolioStats)

		// Mutations (guarded when JWT_SECRET is set)
		trading.POST("/positions", h.OpenPosition, guard)
		trading.PUT("/positions/:id", h.UpdateNotes, guard)
		trading.POST("/positions/:id/close", h.ClosePosition, guard)
		trading.DELETE("/positions/:id", h.DeletePosition, guard)
	}
}
