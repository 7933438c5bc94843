package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/query"

	"github.com/labstack/echo/v4"
)

func SearchHandler(c echo.Context) error {
	type searchParams struct {
		Q string `query:"q" validate:"required"`
		K int    `query:"k" validate:"omitempty,min=1,max=100"`
	}

	params := new(searchParams)
	if err := c.Bind(params); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request params")
	}
	if err := c.Validate(params); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request params")
	}
	if params.K == 0 {
		params.K = query.DefaultK
	}

	app := middleware.GetApp(c)
	results, err := app.Composer.Search(c.Request().Context(), params.Q, params.K)
	if err != nil {
		return handleError(c, "search", err)
	}
	if results == nil {
		results = []common.ChunkResult{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"query":   params.Q,
		"results": results,
	})
}

func QAHandler(c echo.Context) error {
	type qaParams struct {
		Question string `json:"question" validate:"required"`
		K        int    `json:"k" validate:"omitempty,min=1,max=100"`
	}
	type qaResponse struct {
		common.Answer
		Trace *query.QueryTraceSnapshot `json:"trace,omitempty"`
	}

	params := new(qaParams)
	if err := c.Bind(params); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(params); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}

	var opts []query.AnswerOption
	var trace *query.QueryTrace
	if c.QueryParam("trace") == "true" {
		trace = query.NewQueryTrace()
		opts = append(opts, query.WithTracer(trace))
	}

	app := middleware.GetApp(c)
	answer, err := app.Composer.Answer(c.Request().Context(), params.Question, params.K, opts...)
	if err != nil {
		return handleError(c, "qa", err)
	}

	res := qaResponse{Answer: answer}
	if trace != nil {
		snapshot := trace.Snapshot()
		res.Trace = &snapshot
	}
	return c.JSON(http.StatusOK, res)
}
