package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrJobNotFound = errors.New("job not found")

type PostgresJobRepository struct {
	db *gorm.DB
}

func NewPostgresJobRepository(db *gorm.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

// Migrate creates or updates the jobs table
func (r *PostgresJobRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&Job{}); err != nil {
		return fmt.Errorf("failed to migrate jobs table: %w", err)
	}
	return nil
}

func (r *PostgresJobRepository) Create(ctx context.Context, taskType string, payload json.RawMessage) (*Job, error) {
	job := &Job{
		TaskType: taskType,
		Payload:  payload,
		Status:   JobStatusPending,
	}

	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		return nil, fmt.Errorf("failed to insert job: %w", err)
	}
	return job, nil
}

// Get returns nil without error when the job does not exist
func (r *PostgresJobRepository) Get(ctx context.Context, id int) (*Job, error) {
	var job Job
	result := r.db.WithContext(ctx).First(&job, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &job, nil
}

func (r *PostgresJobRepository) UpdateStatus(ctx context.Context, id int, status JobStatus, err *string) error {
	return r.update(ctx, id, map[string]interface{}{
		"status": status,
		"error":  err,
	})
}

func (r *PostgresJobRepository) SaveReport(ctx context.Context, id int, report json.RawMessage) error {
	return r.update(ctx, id, map[string]interface{}{
		"report": report,
	})
}

func (r *PostgresJobRepository) update(ctx context.Context, id int, values map[string]interface{}) error {
	result := r.db.WithContext(ctx).Model(&Job{}).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("job %d: %w", id, ErrJobNotFound)
	}
	return nil
}
