package middleware

import (
	"github.com/OFFIS-RIT/kgraph/internal/queue"
	"github.com/OFFIS-RIT/kgraph/pkg/community"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/query"
	"github.com/OFFIS-RIT/kgraph/pkg/store"

	"github.com/labstack/echo/v4"
)

// App is shared by every request. Queue is nil when no broker is
// configured, which disables asynchronous URL ingestion.
type App struct {
	Graph     *graph.GraphClient
	Composer  *query.Composer
	Storage   store.GraphStorage
	Detector  *community.Detector
	Scheduler *community.Scheduler
	Queue     queue.Publisher
}

type AppContext struct {
	echo.Context
	App *App
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app}
			return next(cc)
		}
	}
}

// GetApp returns the App attached by AppContextMiddleware.
func GetApp(c echo.Context) *App {
	if cc, ok := c.(*AppContext); ok {
		return cc.App
	}
	return nil
}
