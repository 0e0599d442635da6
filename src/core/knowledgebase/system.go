package knowledgebase

import (
	"context"
)

// ComponentStatus represents the status of system components
type ComponentStatus string

const (
	StatusUp       ComponentStatus = "up"
	StatusDown     ComponentStatus = "down"
	StatusDegraded ComponentStatus = "degraded"
)

// HealthStatus represents system health status
type HealthStatus struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
}

// HealthCheck checks a single dependency
type HealthCheck func(ctx context.Context) ComponentStatus

type systemService struct {
	checks map[string]HealthCheck
}

// SystemService defines the interface for system operations
type SystemService interface {
	CheckHealth(ctx context.Context) (*HealthStatus, error)
}

func NewSystemService(checks map[string]HealthCheck) SystemService {
	return &systemService{
		checks: checks,
	}
}

func (s *systemService) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Status:     "healthy",
		Components: make(map[string]ComponentStatus, len(s.checks)),
	}

	for name, check := range s.checks {
		c := check(ctx)
		status.Components[name] = c
		// A degraded dependency still serves traffic
		if c == StatusDown {
			status.Status = "unhealthy"
		}
	}

	return status, nil
}

// StoreHealthCheck reports a document store as up when it can count its documents.
func StoreHealthCheck(store DocumentStore) HealthCheck {
	return func(ctx context.Context) ComponentStatus {
		if store == nil {
			return StatusDegraded
		}
		if _, err := store.Count(ctx); err != nil {
			return StatusDown
		}
		return StatusUp
	}
}

// StaticHealthCheck always reports status.
func StaticHealthCheck(status ComponentStatus) HealthCheck {
	return func(context.Context) ComponentStatus {
		return status
	}
}
