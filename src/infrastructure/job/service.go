package job

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"govrag/src/core/knowledgebase"
)

// IngestHandler runs an ingestion job payload
type IngestHandler interface {
	HandleIngestTask(ctx context.Context, payload json.RawMessage) (*knowledgebase.IngestionBatchResult, error)
}

type JobService struct {
	publisher message.Publisher
	repo      JobRepository
	logger    watermill.LoggerAdapter
	ingest    IngestHandler
}

type JobMessage struct {
	JobID    int             `json:"job_id"`
	TaskType string          `json:"task_type"`
	Payload  json.RawMessage `json:"payload"`
}

// NewJobService accepts a nil publisher for consumers and a nil ingest
// handler for producers.
func NewJobService(
	publisher message.Publisher,
	repo JobRepository,
	logger watermill.LoggerAdapter,
	ingest IngestHandler,
) *JobService {
	return &JobService{
		publisher: publisher,
		repo:      repo,
		logger:    logger,
		ingest:    ingest,
	}
}

// EnqueueJob creates a new job and publishes it to the message queue
func (s *JobService) EnqueueJob(ctx context.Context, taskType string, payload json.RawMessage) (*Job, error) {
	job, err := s.repo.Create(ctx, taskType, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	msgPayload, err := json.Marshal(JobMessage{
		JobID:    job.ID,
		TaskType: job.TaskType,
		Payload:  job.Payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job message: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), msgPayload)
	msg.SetContext(ctx)
	if err := s.publisher.Publish(Topic, msg); err != nil {
		return nil, fmt.Errorf("failed to publish job message: %w", err)
	}

	s.logger.Info("Job enqueued", watermill.LogFields{
		"job_id":    job.ID,
		"task_type": taskType,
	})
	return job, nil
}

// EnqueueIngest publishes an ingestion job for p
func (s *JobService) EnqueueIngest(ctx context.Context, p IngestPayload) (*Job, error) {
	if p.Input == "" {
		return nil, ErrMissingInput
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ingest payload: %w", err)
	}
	return s.EnqueueJob(ctx, TaskTypeIngest, payload)
}

// ProcessJobMessage processes a job message from the queue
func (s *JobService) ProcessJobMessage(msg *message.Message) error {
	var jobMsg JobMessage
	if err := json.Unmarshal(msg.Payload, &jobMsg); err != nil {
		return fmt.Errorf("failed to unmarshal job message: %w", err)
	}

	ctx := msg.Context()

	job, err := s.repo.Get(ctx, jobMsg.JobID)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}
	if job == nil {
		return fmt.Errorf("job %d: %w", jobMsg.JobID, ErrJobNotFound)
	}
	// A job reaches a final status once. Redeliveries, including the retry
	// middleware re-running a failed job, are acked without running it again.
	if job.Status == JobStatusCompleted || job.Status == JobStatusFailed {
		s.logger.Info("Skipping finished job", watermill.LogFields{
			"job_id": job.ID,
			"status": job.Status,
		})
		return nil
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, JobStatusRunning, nil); err != nil {
		return fmt.Errorf("failed to update job status to running: %w", err)
	}

	report, err := s.processJob(ctx, job)
	if report != nil {
		if saveErr := s.repo.SaveReport(ctx, job.ID, report); saveErr != nil {
			s.logger.Error("Failed to save job report", saveErr, watermill.LogFields{
				"job_id": job.ID,
			})
		}
	}

	if err != nil {
		errStr := err.Error()
		if updateErr := s.repo.UpdateStatus(ctx, job.ID, JobStatusFailed, &errStr); updateErr != nil {
			s.logger.Error("Failed to update job status to failed", updateErr, watermill.LogFields{
				"job_id": job.ID,
			})
		}
		return fmt.Errorf("failed to process job: %w", err)
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, JobStatusCompleted, nil); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}
	return nil
}

// processJob returns the JSON report of the run, when one was produced
func (s *JobService) processJob(ctx context.Context, job *Job) (json.RawMessage, error) {
	switch job.TaskType {
	case TaskTypeIngest:
		if s.ingest == nil {
			return nil, fmt.Errorf("no handler for task type: %s", job.TaskType)
		}
		result, err := s.ingest.HandleIngestTask(ctx, job.Payload)
		if result == nil {
			return nil, err
		}
		report, mErr := json.Marshal(result)
		if mErr != nil {
			return nil, fmt.Errorf("failed to marshal ingest report: %w", mErr)
		}
		s.logger.Info("Ingest job finished", watermill.LogFields{
			"job_id":    job.ID,
			"succeeded": result.SuccessCount,
			"failed":    result.FailureCount,
		})
		return report, err
	default:
		return nil, fmt.Errorf("unknown task type: %s", job.TaskType)
	}
}
