package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kgraph/pkg/graph"
	"github.com/OFFIS-RIT/kgraph/pkg/loader"
	loaderio "github.com/OFFIS-RIT/kgraph/pkg/loader/io"
	loaders3 "github.com/OFFIS-RIT/kgraph/pkg/loader/s3"

	"github.com/spf13/cobra"
)

const maxFileBytes = 100 * 1024 * 1024

var (
	ingestParallel      int
	ingestNoCommunities bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file|url]...",
	Short: "Ingest text files and web pages",
	Long: `Ingests each argument into the graph. Arguments starting with http:// or
https:// are fetched, s3://bucket/key objects are read from S3 and anything
else is read as a local .txt file. Communities are recomputed afterwards
unless --no-communities is set.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().IntVarP(&ingestParallel, "parallel", "p", 2, "documents ingested concurrently")
	ingestCmd.Flags().BoolVar(&ingestNoCommunities, "no-communities", false, "skip community detection")
	rootCmd.AddCommand(ingestCmd)
}

// loadItems turns arguments into batch items. Arguments that cannot be
// loaded are returned as failed results.
func loadItems(ctx context.Context, args []string) ([]graph.BatchItem, []graph.BatchResult) {
	files := loaderio.NewIOTextFileLoader(maxFileBytes)
	var objects *loaders3.S3TextFileLoader
	if application.S3 != nil {
		objects = loaders3.NewS3TextFileLoader(application.S3, maxFileBytes)
	}

	items := make([]graph.BatchItem, 0, len(args))
	failed := make([]graph.BatchResult, 0)
	for _, arg := range args {
		if strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://") {
			items = append(items, graph.BatchItem{Type: loader.SourceTypeURL, Name: arg, URL: arg})
			continue
		}

		var fl loader.FileLoader = files
		if loaders3.IsURI(arg) {
			if objects == nil {
				failed = append(failed, graph.BatchResult{
					Item: graph.BatchItem{Name: arg},
					Err:  errors.New("S3 is not configured, set AWS_BUCKET"),
				})
				continue
			}
			fl = objects
		}

		name, content, err := fl.Load(ctx, arg)
		if err != nil {
			failed = append(failed, graph.BatchResult{Item: graph.BatchItem{Name: arg}, Err: err})
			continue
		}
		items = append(items, graph.BatchItem{Type: loader.SourceTypeFile, Name: name, Content: content})
	}
	return items, failed
}

func runIngest(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	items, results := loadItems(ctx, args)
	if len(items) > 0 {
		results = append(results, application.Graph.IngestBatch(ctx, items, ingestParallel)...)
	}

	changed, failed := 0, 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		if !r.Result.Unchanged {
			changed++
		}
	}
	if changed > 0 && !ingestNoCommunities {
		application.Scheduler.RunNow(ctx)
	}

	if jsonOutput {
		type row struct {
			Source string              `json:"source"`
			Result *graph.IngestResult `json:"result,omitempty"`
			Error  string              `json:"error,omitempty"`
		}
		rows := make([]row, len(results))
		for i, r := range results {
			rows[i] = row{Source: r.Item.Name}
			if r.Err != nil {
				rows[i].Error = r.Err.Error()
			} else {
				res := r.Result
				rows[i].Result = &res
			}
		}
		if err := printJSON(cmd, rows); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			switch {
			case r.Err != nil:
				fmt.Fprintf(out, "FAIL  %s: %v\n", r.Item.Name, r.Err)
			case r.Result.Unchanged:
				fmt.Fprintf(out, "SAME  %s\n", r.Item.Name)
			default:
				fmt.Fprintf(out, "OK    %s (%d chunks, %d concepts, %d edges)\n",
					r.Item.Name, r.Result.ChunksCreated, r.Result.ConceptsExtracted, r.Result.CooccurrencesCreated)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(results))
	}
	return nil
}
