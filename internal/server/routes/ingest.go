package routes

import (
	"io"
	"net/http"
	"strconv"

	"github.com/OFFIS-RIT/kgraph/internal/queue"
	"github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"github.com/labstack/echo/v4"
)

type ingestResponse struct {
	Status string `json:"status"`
	graph.IngestResult
}

func UploadFileHandler(c echo.Context) error {
	app := middleware.GetApp(c)

	fh, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "Missing file")
	}
	f, err := fh.Open()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "Could not read file")
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "Could not read file")
	}

	res, err := app.Graph.IngestFile(c.Request().Context(), fh.Filename, content)
	if err != nil {
		return handleError(c, "upload", err)
	}
	afterIngest(app, res)

	return c.JSON(http.StatusOK, ingestResponse{Status: "success", IngestResult: res})
}

func IngestURLHandler(c echo.Context) error {
	type ingestURLParams struct {
		URL string `json:"url" validate:"required"`
	}

	params := new(ingestURLParams)
	if err := c.Bind(params); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(params); err != nil {
		return errorJSON(c, http.StatusBadRequest, "Invalid request body")
	}

	app := middleware.GetApp(c)

	if async, _ := strconv.ParseBool(c.QueryParam("async")); async {
		if app.Queue == nil {
			return errorJSON(c, http.StatusServiceUnavailable, "Asynchronous ingestion is not configured")
		}
		jobID, err := queue.EnqueueURL(app.Queue, params.URL)
		if err != nil {
			return handleError(c, "enqueue", err)
		}
		return c.JSON(http.StatusAccepted, map[string]string{"status": "queued", "job_id": jobID})
	}

	res, err := app.Graph.IngestURL(c.Request().Context(), params.URL)
	if err != nil {
		return handleError(c, "ingest url", err)
	}
	afterIngest(app, res)

	return c.JSON(http.StatusOK, ingestResponse{Status: "success", IngestResult: res})
}

func afterIngest(app *middleware.App, res graph.IngestResult) {
	if res.Unchanged || app.Scheduler == nil {
		return
	}
	logger.Debug("[Server] Requesting community update", "doc_id", res.DocumentID)
	app.Scheduler.Trigger()
}
