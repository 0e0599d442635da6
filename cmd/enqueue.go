package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"govrag/src/infrastructure/job"
	"govrag/src/infrastructure/log"
	"govrag/src/storage/minioctrl"
)

var enqueueFlags ingestOptions

var enqueueIngestCmd = &cobra.Command{
	Use:   "enqueue-ingest",
	Short: "Queue an ingestion job for the worker",
	Long: `The enqueue-ingest command records an ingestion job and publishes it to the
job queue. A local file is first uploaded to the ingest bucket so that the
worker can read it; s3:// locations are passed through unchanged.`,
	RunE: runEnqueueIngest,
}

func init() {
	rootCmd.AddCommand(enqueueIngestCmd)
	enqueueFlags.bind(enqueueIngestCmd)
}

// stageInput uploads a local file and returns its s3:// location
func stageInput(ctx context.Context, input string) (string, error) {
	if _, _, ok := minioctrl.ParseObjectURL(input); ok {
		return input, nil
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", input, err)
	}

	objects, err := newMinio()
	if err != nil {
		return "", fmt.Errorf("failed to initialize minio service: %w", err)
	}
	bucket := viper.GetString("minio.ingest_bucket")
	if err := objects.EnsureBucketExists(ctx, bucket); err != nil {
		return "", err
	}

	object := fmt.Sprintf("%d-%s", time.Now().Unix(), filepath.Base(input))
	contentType := "application/json"
	if ext := filepath.Ext(input); ext == ".yaml" || ext == ".yml" {
		contentType = "application/yaml"
	}
	if err := objects.PutObject(ctx, bucket, object, data, contentType); err != nil {
		return "", err
	}
	return minioctrl.ObjectURL(bucket, object), nil
}

func runEnqueueIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := log.NewWatermillAdapter(log.WithName("enqueue"))

	payload := enqueueFlags.payload(cmd)
	location, err := stageInput(ctx, payload.Input)
	if err != nil {
		return err
	}
	payload.Input = location

	db, err := newDB()
	if err != nil {
		return err
	}
	defer closeDB(db)

	jobRepo := job.NewPostgresJobRepository(db)
	if err := jobRepo.Migrate(ctx); err != nil {
		return err
	}

	publisher, err := job.NewAMQPPublisher(viper.GetString("amqp.url"), logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	jobService := job.NewJobService(publisher, jobRepo, logger, nil)
	queued, err := jobService.EnqueueIngest(ctx, payload)
	if err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}

	fmt.Printf("Successfully enqueued ingestion job %d for %s\n", queued.ID, location)
	return nil
}
