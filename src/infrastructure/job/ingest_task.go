package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"govrag/src/core/ingestion"
	"govrag/src/core/knowledgebase"
	"govrag/src/infrastructure/log"
)

var ErrMissingInput = errors.New("ingest payload has no input")

// DocumentLoader reads a document set from a location
type DocumentLoader interface {
	Load(ctx context.Context, location string) ([]knowledgebase.Document, error)
}

// IngestTask runs the ingestion pipeline for a payload
type IngestTask struct {
	loader DocumentLoader
	store  knowledgebase.DocumentStore
	cfg    ingestion.Config
	opts   []ingestion.Option
}

func NewIngestTask(
	loader DocumentLoader,
	store knowledgebase.DocumentStore,
	cfg ingestion.Config,
	opts ...ingestion.Option,
) *IngestTask {
	return &IngestTask{
		loader: loader,
		store:  store,
		cfg:    cfg,
		opts:   opts,
	}
}

// Load reads the documents named by the payload input
func (t *IngestTask) Load(ctx context.Context, p IngestPayload) ([]knowledgebase.Document, error) {
	input := strings.TrimSpace(p.Input)
	if input == "" {
		return nil, ErrMissingInput
	}
	docs, err := t.loader.Load(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}
	return docs, nil
}

// Pipeline builds a pipeline with the payload's overrides applied
func (t *IngestTask) Pipeline(p IngestPayload, extra ...ingestion.Option) *ingestion.Pipeline {
	cfg := t.cfg
	if p.BatchSize > 0 {
		cfg.BatchSize = p.BatchSize
	}
	if p.MaxRetries != nil {
		cfg.Retry.MaxRetries = *p.MaxRetries
	}
	opts := append(append([]ingestion.Option{}, t.opts...), extra...)
	return ingestion.NewPipeline(t.store, cfg, opts...)
}

// Run loads and uploads the payload's documents
func (t *IngestTask) Run(ctx context.Context, p IngestPayload) (*knowledgebase.IngestionBatchResult, error) {
	docs, err := t.Load(ctx, p)
	if err != nil {
		return nil, err
	}
	result, err := t.Pipeline(p).Run(ctx, docs, ingestion.RunOptions{Clear: p.Clear})
	if result != nil {
		log.Info("ingestion finished",
			"input", p.Input,
			"succeeded", result.SuccessCount,
			"failed", result.FailureCount,
			"duration", result.Duration)
	}
	return result, err
}

// HandleIngestTask decodes a job payload and runs it
func (t *IngestTask) HandleIngestTask(ctx context.Context, payload json.RawMessage) (*knowledgebase.IngestionBatchResult, error) {
	var p IngestPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ingest payload: %w", err)
	}
	return t.Run(ctx, p)
}
