package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"govrag/src/core/ingestion"
	"govrag/src/infrastructure/job"
	"govrag/src/infrastructure/log"
)

// ingestOptions holds the flags shared by ingest and enqueue-ingest
type ingestOptions struct {
	input      string
	batchSize  int
	maxRetries int
	clear      bool
}

func (o *ingestOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.input, "input", "", "document file, directory or s3:// location")
	cmd.Flags().IntVar(&o.batchSize, "batch-size", 0, "documents per upload batch (default from ingest.batch_size)")
	cmd.Flags().IntVar(&o.maxRetries, "max-retries", 0, "retries per failed batch (default from ingest.max_retries)")
	cmd.Flags().BoolVar(&o.clear, "clear", false, "delete every indexed document before uploading")
	_ = cmd.MarkFlagRequired("input")
}

// payload applies only the flags the user set
func (o *ingestOptions) payload(cmd *cobra.Command) job.IngestPayload {
	p := job.IngestPayload{
		Input:     o.input,
		BatchSize: o.batchSize,
		Clear:     o.clear,
	}
	if cmd.Flags().Changed("max-retries") {
		retries := o.maxRetries
		p.MaxRetries = &retries
	}
	return p
}

var ingestFlags ingestOptions

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Load a document set into the search index",
	Long: `The ingest command provisions the index schema, optionally clears it, and
uploads documents from a JSON or YAML file, a directory of such files, or an
s3://bucket/object location. Transient store failures are retried with
exponential backoff.`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestFlags.bind(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A one-shot run has no scrape target, so nothing is recorded
	task, err := newIngestTask(nil)
	if err != nil {
		return fmt.Errorf("failed to initialize ingestion: %w", err)
	}

	payload := ingestFlags.payload(cmd)
	docs, err := task.Load(ctx, payload)
	if err != nil {
		return err
	}
	log.Info("documents loaded", "input", payload.Input, "documents", len(docs))

	bar := progressbar.Default(int64(len(docs)), "uploading")
	pipeline := task.Pipeline(payload, ingestion.WithBatchObserver(func(r ingestion.BatchReport) {
		_ = bar.Add(r.Size)
	}))

	result, err := pipeline.Run(ctx, docs, ingestion.RunOptions{Clear: payload.Clear})
	_ = bar.Finish()
	if result != nil {
		fmt.Printf("\nUploaded %d of %d documents in %s\n", result.SuccessCount, result.Total(), result.Duration)
		for _, e := range result.Errors {
			fmt.Printf("  - %s\n", e)
		}
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	if result.FailureCount > 0 {
		return fmt.Errorf("ingestion finished with %d failed documents", result.FailureCount)
	}
	return nil
}
