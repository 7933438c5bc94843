package graph

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgraph/pkg/common"
	"github.com/OFFIS-RIT/kgraph/pkg/loader"
	"github.com/OFFIS-RIT/kgraph/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// BatchItem is one source of a batch ingestion: either a URL or an uploaded
// file given by name and content.
type BatchItem struct {
	Type    loader.SourceType
	Name    string
	URL     string
	Content []byte
}

// BatchResult pairs an item's result with its error. Every document is
// written atomically on its own, so a failed item never affects the others.
type BatchResult struct {
	Item   BatchItem
	Result IngestResult
	Err    error
}

// IngestBatch ingests items with up to parallelFiles documents in flight.
// Results are returned in item order.
func (g *GraphClient) IngestBatch(ctx context.Context, items []BatchItem, parallelFiles int) []BatchResult {
	if parallelFiles <= 0 {
		parallelFiles = 2
	}

	logger.Info("[Ingest] Processing batch", "total", len(items), "parallel", parallelFiles)

	out := make([]BatchResult, len(items))
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallelFiles)

	for i, item := range items {
		eg.Go(func() error {
			var (
				res IngestResult
				err error
			)
			switch item.Type {
			case loader.SourceTypeURL:
				res, err = g.IngestURL(gCtx, item.URL)
			case loader.SourceTypeFile:
				res, err = g.IngestFile(gCtx, item.Name, item.Content)
			default:
				err = fmt.Errorf("%w: source type %q", common.ErrUnsupportedSource, item.Type)
			}
			if err != nil {
				logger.Warn("[Ingest] Batch item failed", "name", item.Name, "url", item.URL, "err", err)
			}
			out[i] = BatchResult{Item: item, Result: res, Err: err}
			return nil
		})
	}
	_ = eg.Wait()

	failed := 0
	for _, r := range out {
		if r.Err != nil {
			failed++
		}
	}
	logger.Info("[Ingest] Batch completed", "total", len(items), "failed", failed)
	return out
}
