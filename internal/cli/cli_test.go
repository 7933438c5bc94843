package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/kgraph/internal/app"
	"github.com/OFFIS-RIT/kgraph/pkg/query"
)

const mlText = "Machine learning is a field of artificial intelligence. " +
	"Python is the most popular language for machine learning projects. " +
	"Neural networks learn patterns from training data. "

func setupTestApp(t *testing.T) {
	t.Helper()
	a, err := app.New(context.Background(), app.Config{
		StoreAdapter:   "memory",
		AIAdapter:      "local",
		Tagger:         "phrase",
		EmbedDim:       64,
		BudgetMB:       100,
		ChunkSize:      700,
		ChunkOverlap:   100,
		RetrievalAlpha: query.DefaultAlpha,
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	prev := newApp
	newApp = func(ctx context.Context) (*app.App, error) { return a, nil }
	t.Cleanup(func() { newApp = prev })
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	jsonOutput = false
	ingestNoCommunities = false

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIngestAskAndStats(t *testing.T) {
	setupTestApp(t)
	path := writeFile(t, "ml.txt", mlText)

	out, err := run(t, "ingest", path)
	if err != nil {
		t.Fatalf("ingest: %v (%s)", err, out)
	}
	if !strings.Contains(out, "OK    ml.txt") {
		t.Fatalf("unexpected ingest output %q", out)
	}

	out, err = run(t, "ingest", path)
	if err != nil || !strings.Contains(out, "SAME  ml.txt") {
		t.Fatalf("expected unchanged re-ingest, got %q (%v)", out, err)
	}

	out, err = run(t, "stats", "--json")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	var stats map[string]float64
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("stats output %q: %v", out, err)
	}
	if stats["docs"] != 1 || stats["budget_mb"] != 100 {
		t.Fatalf("unexpected stats %v", stats)
	}

	out, err = run(t, "ask", "what", "is", "machine", "learning?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if !strings.Contains(out, "Sources:") || !strings.Contains(out, "ml.txt") {
		t.Fatalf("unexpected ask output %q", out)
	}

	out, err = run(t, "search", "-k", "3", "neural networks")
	if err != nil || !strings.Contains(out, "[1]") {
		t.Fatalf("unexpected search output %q (%v)", out, err)
	}

	out, err = run(t, "communities")
	if err != nil || !strings.Contains(out, "communities over") {
		t.Fatalf("unexpected communities output %q (%v)", out, err)
	}
}

func TestIngestFailures(t *testing.T) {
	setupTestApp(t)

	if _, err := run(t, "ingest", filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	pdf := writeFile(t, "paper.pdf", "%PDF-1.4")
	out, err := run(t, "ingest", pdf)
	if err == nil || !strings.Contains(out, "FAIL") || !strings.Contains(out, "only .txt files") {
		t.Fatalf("expected unsupported source failure, got %q (%v)", out, err)
	}

	out, err = run(t, "ingest", "s3://docs/a.txt")
	if err == nil || !strings.Contains(out, "S3 is not configured") {
		t.Fatalf("expected unconfigured S3 failure, got %q (%v)", out, err)
	}
}

func TestArgs(t *testing.T) {
	setupTestApp(t)
	for _, args := range [][]string{{"ingest"}, {"ask"}, {"search"}, {"stats", "extra"}} {
		if _, err := run(t, args...); err == nil {
			t.Fatalf("expected argument error for %v", args)
		}
	}
}
