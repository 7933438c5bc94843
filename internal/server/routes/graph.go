package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"

	"github.com/labstack/echo/v4"
)

func GetGraphHandler(c echo.Context) error {
	app := middleware.GetApp(c)

	g, err := app.Storage.GetGraph(c.Request().Context())
	if err != nil {
		return handleError(c, "graph", err)
	}
	if g.Nodes == nil {
		g.Nodes = []common.Concept{}
	}
	if g.Edges == nil {
		g.Edges = []common.CoOccurrence{}
	}
	return c.JSON(http.StatusOK, g)
}

func GetNodeHandler(c echo.Context) error {
	type getNodeParams struct {
		ID string `param:"id" validate:"required"`
	}

	params := new(getNodeParams)
	if err := c.Bind(params); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request params")
	}
	if err := c.Validate(params); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request params")
	}

	app := middleware.GetApp(c)
	node, err := app.Storage.GetConcept(c.Request().Context(), params.ID)
	if err != nil {
		return handleError(c, "node", err)
	}
	if node.Snippets == nil {
		node.Snippets = []common.Snippet{}
	}
	return c.JSON(http.StatusOK, node)
}

func GetStatsHandler(c echo.Context) error {
	app := middleware.GetApp(c)

	st, usage, err := app.Graph.Budget().Usage(c.Request().Context())
	if err != nil {
		return handleError(c, "stats", err)
	}
	return c.JSON(http.StatusOK, struct {
		common.Stats
		graph.BudgetUsage
	}{st, usage})
}

func GetCommunitiesHandler(c echo.Context) error {
	app := middleware.GetApp(c)
	return c.JSON(http.StatusOK, app.Detector.LastRun())
}

// RunCommunitiesHandler queues a detector run. With wait=true the run happens
// within the request; a failed run or a lease held elsewhere yields 503.
func RunCommunitiesHandler(c echo.Context) error {
	type runParams struct {
		Wait bool `query:"wait"`
	}
	params := new(runParams)
	if err := (&echo.DefaultBinder{}).BindQueryParams(c, params); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request params")
	}

	app := middleware.GetApp(c)
	if !params.Wait {
		app.Scheduler.Trigger()
		return c.JSON(http.StatusAccepted, map[string]string{"status": "scheduled"})
	}

	if !app.Scheduler.RunNow(c.Request().Context()) {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status":   "not_completed",
			"last_run": app.Detector.LastRun(),
		})
	}
	return c.JSON(http.StatusOK, app.Detector.LastRun())
}
