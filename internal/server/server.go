package server

import (
	"context"
	"net/http"
	"time"

	mid "github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"github.com/go-playground/validator"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return err
	}
	return nil
}

type NewServerParams struct {
	App *mid.App
	// BodyLimit caps request bodies, e.g. "32M". Empty selects 32M.
	BodyLimit string
}

// New builds the echo instance with middleware and routes registered.
func New(params NewServerParams) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = &CustomValidator{validator: validator.New()}

	limit := params.BodyLimit
	if limit == "" {
		limit = "32M"
	}

	e.Use(mid.AppContextMiddleware(params.App))
	e.Use(middleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(limit))

	RegisterRoutes(e)
	return e
}

// Run serves on port until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, e *echo.Echo, port string) {
	if port == "" {
		port = "8080"
	}

	go func() {
		logger.Info("Starting server", "port", port)
		if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed shutting down server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shutdown server", "err", err)
	}
}
