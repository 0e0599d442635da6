package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"govrag/src/core/knowledgebase"
	"govrag/src/infrastructure/log"
	"govrag/src/infrastructure/metrics"
)

// DocState tracks a batch of documents through submission
type DocState string

const (
	StatePending         DocState = "pending"
	StateSubmitted       DocState = "submitted"
	StateSucceeded       DocState = "succeeded"
	StateFailedRetryable DocState = "failed_retryable"
	StateRetried         DocState = "retried"
	StateFailedTerminal  DocState = "failed_terminal"
)

// Config controls batching and retries of an upload
type Config struct {
	IndexName string
	BatchSize int
	// Concurrency bounds the number of batches submitted at once
	Concurrency int
	// RequestTimeout bounds each submission attempt when positive
	RequestTimeout time.Duration
	ClearPageSize  int
	Retry          RetryPolicy
}

func DefaultConfig() Config {
	return Config{
		IndexName:      DefaultIndexName,
		BatchSize:      100,
		Concurrency:    1,
		RequestTimeout: 30 * time.Second,
		ClearPageSize:  1000,
		Retry:          DefaultRetryPolicy(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.IndexName == "" {
		c.IndexName = d.IndexName
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.ClearPageSize <= 0 {
		c.ClearPageSize = d.ClearPageSize
	}
	c.Retry = c.Retry.withDefaults()
	return c
}

// BatchReport describes one finished batch
type BatchReport struct {
	Index     int
	Size      int
	Succeeded int
	Failed    int
	Attempts  int
	State     DocState
	Err       error
}

type batchOutcome struct {
	succeeded int
	failed    int
	errors    []string
}

// Pipeline provisions the index and loads documents into it
type Pipeline struct {
	store   knowledgebase.DocumentStore
	cfg     Config
	metrics *metrics.Metrics

	mu      sync.Mutex
	onBatch func(BatchReport)
}

type Option func(*Pipeline)

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithBatchObserver registers fn to be called once per finished batch.
// Calls are serialized.
func WithBatchObserver(fn func(BatchReport)) Option {
	return func(p *Pipeline) {
		p.onBatch = fn
	}
}

func NewPipeline(store knowledgebase.DocumentStore, cfg Config, opts ...Option) *Pipeline {
	p := &Pipeline{
		store: store,
		cfg:   cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProvisionSchema creates the index or updates it in place
func (p *Pipeline) ProvisionSchema(ctx context.Context) error {
	schema := DefaultSchema(p.cfg.IndexName)
	if err := p.store.ProvisionSchema(ctx, schema); err != nil {
		return fmt.Errorf("failed to provision index %s: %w", schema.Name, err)
	}
	log.Info("index provisioned", "index", schema.Name, "fields", len(schema.Fields))
	return nil
}

// ClearAll deletes every document page by page and returns the number removed.
// It stops when the index is empty or a page makes no progress.
func (p *Pipeline) ClearAll(ctx context.Context) (int, error) {
	deleted := 0
	for {
		ids, err := p.store.ListIDs(ctx, p.cfg.ClearPageSize)
		if err != nil {
			return deleted, fmt.Errorf("failed to list documents: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		items, err := p.store.Delete(ctx, ids)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete documents: %w", err)
		}
		n := 0
		for _, it := range items {
			if it.Succeeded {
				n++
			}
		}
		if n == 0 {
			return deleted, fmt.Errorf("failed to clear index: no progress on a page of %d documents", len(ids))
		}
		deleted += n
		log.Debug("cleared page", "deleted", n, "total", deleted)
	}

	log.Info("index cleared", "deleted", deleted)
	return deleted, nil
}

// Upload validates docs and submits them in batches. The returned result
// always accounts for every input document. When ctx is cancelled, batches
// already submitted run to completion, the rest are reported as failed and
// ctx's error is returned with the result.
func (p *Pipeline) Upload(ctx context.Context, docs []knowledgebase.Document) (*knowledgebase.IngestionBatchResult, error) {
	start := time.Now()
	result := &knowledgebase.IngestionBatchResult{Errors: []string{}}

	valid := make([]knowledgebase.Document, 0, len(docs))
	for _, d := range docs {
		if err := d.Validate(); err != nil {
			result.FailureCount++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		valid = append(valid, d)
	}

	batches := split(valid, p.cfg.BatchSize)
	outcomes := make([]batchOutcome, len(batches))

	var g errgroup.Group
	slots := make(chan struct{}, p.cfg.Concurrency)
	for i, batch := range batches {
		slots <- struct{}{}
		if err := ctx.Err(); err != nil {
			<-slots
			outcomes[i] = batchOutcome{
				failed: len(batch),
				errors: []string{fmt.Sprintf("batch %d (%d documents) not submitted: %v", i+1, len(batch), err)},
			}
			p.report(BatchReport{Index: i, Size: len(batch), Failed: len(batch), State: StatePending, Err: err})
			continue
		}
		g.Go(func() error {
			defer func() { <-slots }()
			outcomes[i] = p.uploadBatch(ctx, i, batch)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		result.SuccessCount += o.succeeded
		result.FailureCount += o.failed
		result.Errors = append(result.Errors, o.errors...)
	}
	result.Duration = time.Since(start)
	p.metrics.CountIngested(result.SuccessCount, result.FailureCount)

	log.Info("upload finished",
		"documents", len(docs),
		"batches", len(batches),
		"succeeded", result.SuccessCount,
		"failed", result.FailureCount,
		"duration", result.Duration)
	return result, ctx.Err()
}

// uploadBatch lets a submitted request finish after ctx is cancelled, but
// cancellation still cuts a backoff wait short.
func (p *Pipeline) uploadBatch(ctx context.Context, index int, batch []knowledgebase.Document) batchOutcome {
	start := time.Now()
	work := context.WithoutCancel(ctx)
	policy := p.cfg.Retry.withDefaults()
	sleep := policy.Sleep
	policy.Sleep = func(_ context.Context, d time.Duration) error {
		return sleep(ctx, d)
	}
	logger := log.WithValues("batch", index+1, "documents", len(batch))
	logger.V(1).Info("batch state", "state", StatePending)

	var items []knowledgebase.ItemResult
	attempts, err := policy.Do(work, func(ctx context.Context) error {
		logger.V(1).Info("batch state", "state", StateSubmitted)
		if p.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.cfg.RequestTimeout)
			defer cancel()
		}
		res, err := p.store.Upsert(ctx, batch)
		if err != nil {
			return err
		}
		items = res
		return nil
	}, func(attempt int, delay time.Duration, err error) {
		p.metrics.CountRetry()
		logger.Info("batch failed, retrying",
			"state", StateFailedRetryable,
			"attempt", attempt,
			"delay", delay,
			"error", err.Error())
		logger.V(1).Info("batch state", "state", StateRetried)
	})
	p.metrics.ObserveBatch(time.Since(start))

	if err != nil {
		logger.Error(err, "batch failed", "state", StateFailedTerminal, "attempts", attempts)
		outcome := batchOutcome{
			failed: len(batch),
			errors: []string{fmt.Sprintf("batch %d (%d documents) failed after %d attempts: %v", index+1, len(batch), attempts, err)},
		}
		p.report(BatchReport{Index: index, Size: len(batch), Failed: len(batch), Attempts: attempts, State: StateFailedTerminal, Err: err})
		return outcome
	}

	outcome := aggregate(batch, items)
	state := StateSucceeded
	if outcome.failed > 0 {
		state = StateFailedTerminal
	}
	logger.V(1).Info("batch state",
		"state", state,
		"attempts", attempts,
		"succeeded", outcome.succeeded,
		"failed", outcome.failed)
	p.report(BatchReport{
		Index:     index,
		Size:      len(batch),
		Succeeded: outcome.succeeded,
		Failed:    outcome.failed,
		Attempts:  attempts,
		State:     state,
	})
	return outcome
}

// aggregate counts per-item results. Documents the store did not report on are failures.
func aggregate(batch []knowledgebase.Document, items []knowledgebase.ItemResult) batchOutcome {
	byID := make(map[string]knowledgebase.ItemResult, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	var o batchOutcome
	for _, d := range batch {
		it, ok := byID[d.ID]
		switch {
		case !ok:
			o.failed++
			o.errors = append(o.errors, fmt.Sprintf("document %s: no result reported by store", d.ID))
		case it.Succeeded:
			o.succeeded++
		default:
			o.failed++
			o.errors = append(o.errors, fmt.Sprintf("document %s: %d %s", d.ID, it.StatusCode, it.Message))
		}
	}
	return o
}

func (p *Pipeline) report(r BatchReport) {
	if p.onBatch == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onBatch(r)
}

// Verify runs a one-result query to check the index answers searches
func (p *Pipeline) Verify(ctx context.Context) error {
	results, err := p.store.Search(ctx, knowledgebase.SearchRequest{
		Query: "*",
		Mode:  knowledgebase.SearchModeKeyword,
		Top:   1,
	})
	if err != nil {
		return fmt.Errorf("failed to verify index: %w", err)
	}
	log.Info("index verified", "sampleResults", len(results))
	return nil
}

// Count returns the number of documents in the index
func (p *Pipeline) Count(ctx context.Context) (int64, error) {
	n, err := p.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// RunOptions selects the optional steps of Run
type RunOptions struct {
	Clear bool
}

// Run provisions the schema, optionally clears the index, uploads docs and
// verifies the result. A failed verification is logged and never undoes the upload.
func (p *Pipeline) Run(ctx context.Context, docs []knowledgebase.Document, opts RunOptions) (*knowledgebase.IngestionBatchResult, error) {
	if err := p.ProvisionSchema(ctx); err != nil {
		return nil, err
	}
	if opts.Clear {
		if _, err := p.ClearAll(ctx); err != nil {
			return nil, err
		}
	}

	result, err := p.Upload(ctx, docs)
	if err != nil {
		return result, err
	}

	if verr := p.Verify(ctx); verr != nil {
		log.Error(verr, "verification failed")
	}
	return result, nil
}

func split(docs []knowledgebase.Document, size int) [][]knowledgebase.Document {
	var batches [][]knowledgebase.Document
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		batches = append(batches, docs[start:end])
	}
	return batches
}
