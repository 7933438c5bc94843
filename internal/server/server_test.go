package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mid "github.com/OFFIS-RIT/kgraph/internal/server/middleware"
	"github.com/OFFIS-RIT/kgraph/pkg/ai"
	"github.com/OFFIS-RIT/kgraph/pkg/ai/hashing"
	"github.com/OFFIS-RIT/kgraph/pkg/ai/phrase"
	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/community"
	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/leaselock"
	"github.com/OFFIS-RIT/kgraph/pkg/loader/web"
	"github.com/OFFIS-RIT/kgraph/pkg/query"
	"github.com/OFFIS-RIT/kgraph/pkg/store/memory"

	"github.com/labstack/echo/v4"
	"github.com/rabbitmq/amqp091-go"
)

const mlText = "Machine learning is a field of artificial intelligence. " +
	"Python is the most popular language for machine learning projects. " +
	"Neural networks learn patterns from training data. " +
	"Data scientists use Python libraries for machine learning. "

type recordingPublisher struct {
	keys []string
}

func (p *recordingPublisher) Publish(exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	p.keys = append(p.keys, key)
	return nil
}

func newTestApp(t *testing.T) *mid.App {
	t.Helper()
	st := memory.New()
	emb, err := ai.NewEmbeddingClient(hashing.NewEmbedder(64), ai.NewEmbeddingClientParams{Dimension: 64})
	if err != nil {
		t.Fatal(err)
	}
	gc, err := graph.NewGraphClient(graph.NewGraphClientParams{
		Storage:  st,
		Tagger:   phrase.NewTagger(5),
		Embedder: emb,
		Budget:   graph.NewBudgetGuardMB(st, 100),
		Fetcher:  web.NewWebFetcher(web.NewWebFetcherParams{}),
	})
	if err != nil {
		t.Fatal(err)
	}
	composer, err := query.NewComposer(query.NewComposerParams{
		Retriever: query.NewRetriever(st, emb),
		Expander:  query.NewExpander(st),
		Documents: st,
		Alpha:     query.DefaultAlpha,
	})
	if err != nil {
		t.Fatal(err)
	}
	detector := community.NewDetector(st, community.NewLouvainPartitioner())
	return &mid.App{
		Graph:    gc,
		Composer: composer,
		Storage:  st,
		Detector: detector,
		Scheduler: community.NewScheduler(detector, community.NewSchedulerParams{
			Locker:       leaselock.NewLocal(),
			StartupDelay: -1,
		}),
	}
}

func do(t *testing.T, e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func upload(t *testing.T, e *echo.Echo, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("file", name)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/ingest/upload", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return do(t, e, req)
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	e := New(NewServerParams{App: newTestApp(t)})
	rec := do(t, e, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "healthy") {
		t.Fatalf("unexpected health response %d %s", rec.Code, rec.Body.String())
	}
}

func TestUploadAndQuery(t *testing.T) {
	app := newTestApp(t)
	e := New(NewServerParams{App: app})

	rec := upload(t, e, "ml.txt", mlText)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body.String())
	}
	var ingest struct {
		Status   string `json:"status"`
		DocID    string `json:"doc_id"`
		Filename string `json:"filename"`
		Chunks   int    `json:"chunks_created"`
	}
	decode(t, rec, &ingest)
	if ingest.Status != "success" || ingest.DocID == "" || ingest.Filename != "ml.txt" || ingest.Chunks != 1 {
		t.Fatalf("unexpected ingest response %+v", ingest)
	}

	rec = do(t, e, httptest.NewRequest(http.MethodGet, "/graph", nil))
	var g common.Graph
	decode(t, rec, &g)
	if rec.Code != http.StatusOK || len(g.Nodes) == 0 {
		t.Fatalf("expected graph nodes, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, e, httptest.NewRequest(http.MethodGet, "/node/"+g.Nodes[0].ID, nil))
	var node common.ConceptDetails
	decode(t, rec, &node)
	if rec.Code != http.StatusOK || node.Label != g.Nodes[0].Label || len(node.Snippets) == 0 {
		t.Fatalf("unexpected node response %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, e, httptest.NewRequest(http.MethodGet, "/search?q=python+machine+learning&k=3", nil))
	var search struct {
		Query   string               `json:"query"`
		Results []common.ChunkResult `json:"results"`
	}
	decode(t, rec, &search)
	if rec.Code != http.StatusOK || search.Query != "python machine learning" || len(search.Results) != 1 {
		t.Fatalf("unexpected search response %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, e, jsonRequest(http.MethodPost, "/qa", `{"question":"What is machine learning?","k":5}`))
	var answer common.Answer
	decode(t, rec, &answer)
	if rec.Code != http.StatusOK || answer.Answer == "" || len(answer.Sources) == 0 {
		t.Fatalf("unexpected qa response %d %s", rec.Code, rec.Body.String())
	}
	if answer.Sources[0].DocName != "ml.txt" {
		t.Fatalf("expected source enriched with document name, got %+v", answer.Sources[0])
	}

	rec = do(t, e, jsonRequest(http.MethodPost, "/qa?trace=true", `{"question":"What is machine learning?"}`))
	var traced struct {
		Trace *query.QueryTraceSnapshot `json:"trace"`
	}
	decode(t, rec, &traced)
	if traced.Trace == nil || traced.Trace.Mode != query.AnswerModeExtractive || len(traced.Trace.RetrievedChunkIDs) == 0 {
		t.Fatalf("unexpected traced qa response %s", rec.Body.String())
	}

	rec = do(t, e, httptest.NewRequest(http.MethodGet, "/stats", nil))
	var stats map[string]float64
	decode(t, rec, &stats)
	if stats["docs"] != 1 || stats["budget_mb"] != 100 || stats["total_bytes"] != float64(len(mlText)) {
		t.Fatalf("unexpected stats %v", stats)
	}
}

func TestEmptyStoreQuestion(t *testing.T) {
	e := New(NewServerParams{App: newTestApp(t)})
	rec := do(t, e, jsonRequest(http.MethodPost, "/qa", `{"question":"anything?"}`))
	var answer common.Answer
	decode(t, rec, &answer)
	if rec.Code != http.StatusOK || answer.Answer != query.EmptyAnswer().Answer || len(answer.Sources) != 0 {
		t.Fatalf("unexpected empty-store answer %d %s", rec.Code, rec.Body.String())
	}
}

func TestErrorMapping(t *testing.T) {
	e := New(NewServerParams{App: newTestApp(t)})

	tests := []struct {
		name string
		req  func() *httptest.ResponseRecorder
		code int
	}{
		{"unsupported upload", func() *httptest.ResponseRecorder { return upload(t, e, "paper.pdf", "%PDF") }, http.StatusBadRequest},
		{"invalid utf8", func() *httptest.ResponseRecorder { return upload(t, e, "bad.txt", "\xff\xfe\xfd") }, http.StatusBadRequest},
		{"missing file", func() *httptest.ResponseRecorder {
			return do(t, e, httptest.NewRequest(http.MethodPost, "/ingest/upload", nil))
		}, http.StatusBadRequest},
		{"unsupported scheme", func() *httptest.ResponseRecorder {
			return do(t, e, jsonRequest(http.MethodPost, "/ingest/url", `{"url":"ftp://example.com/a.txt"}`))
		}, http.StatusBadRequest},
		{"missing url", func() *httptest.ResponseRecorder {
			return do(t, e, jsonRequest(http.MethodPost, "/ingest/url", `{}`))
		}, http.StatusBadRequest},
		{"async without queue", func() *httptest.ResponseRecorder {
			return do(t, e, jsonRequest(http.MethodPost, "/ingest/url?async=true", `{"url":"https://example.com"}`))
		}, http.StatusServiceUnavailable},
		{"unknown node", func() *httptest.ResponseRecorder {
			return do(t, e, httptest.NewRequest(http.MethodGet, "/node/nope", nil))
		}, http.StatusNotFound},
		{"empty question", func() *httptest.ResponseRecorder {
			return do(t, e, jsonRequest(http.MethodPost, "/qa", `{"question":""}`))
		}, http.StatusBadRequest},
		{"search without query", func() *httptest.ResponseRecorder {
			return do(t, e, httptest.NewRequest(http.MethodGet, "/search", nil))
		}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tt.req()
			if rec.Code != tt.code {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.code, rec.Body.String())
			}
			var body map[string]string
			decode(t, rec, &body)
			if body["error"] == "" {
				t.Fatalf("expected error message, got %s", rec.Body.String())
			}
		})
	}
}

func TestAsyncIngestURL(t *testing.T) {
	app := newTestApp(t)
	pub := &recordingPublisher{}
	app.Queue = pub
	e := New(NewServerParams{App: app})

	rec := do(t, e, jsonRequest(http.MethodPost, "/ingest/url?async=true", `{"url":"https://example.com"}`))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	decode(t, rec, &body)
	if body["status"] != "queued" || body["job_id"] == "" {
		t.Fatalf("unexpected body %v", body)
	}
	if len(pub.keys) != 1 || pub.keys[0] != "ingest_queue" {
		t.Fatalf("unexpected publishes %v", pub.keys)
	}
}

func TestCommunities(t *testing.T) {
	app := newTestApp(t)
	e := New(NewServerParams{App: app})
	if rec := upload(t, e, "ml.txt", mlText); rec.Code != http.StatusOK {
		t.Fatalf("upload status %d", rec.Code)
	}

	rec := do(t, e, httptest.NewRequest(http.MethodPost, "/communities?wait=true", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(t, e, httptest.NewRequest(http.MethodGet, "/communities", nil))
	var info community.RunInfo
	decode(t, rec, &info)
	if !info.Success || info.Concepts == 0 || info.Communities == 0 {
		t.Fatalf("unexpected run info %+v", info)
	}

	g, err := app.Storage.GetGraph(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range g.Nodes {
		if n.Community == nil {
			t.Fatalf("concept %q has no community", n.Label)
		}
	}

	rec = do(t, e, httptest.NewRequest(http.MethodPost, "/communities", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
}
