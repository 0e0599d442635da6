package job

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"govrag/src/core/knowledgebase"
)

type fakeRepo struct {
	mu     sync.Mutex
	jobs   map[int]*Job
	nextID int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{jobs: map[int]*Job{}}
}

func (r *fakeRepo) Create(_ context.Context, taskType string, payload json.RawMessage) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	j := &Job{ID: r.nextID, TaskType: taskType, Payload: payload, Status: JobStatusPending}
	r.jobs[j.ID] = j
	out := *j
	return &out, nil
}

func (r *fakeRepo) Get(_ context.Context, id int) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	out := *j
	return &out, nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id int, status JobStatus, err *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	j.Status = status
	j.Error = err
	return nil
}

func (r *fakeRepo) SaveReport(_ context.Context, id int, report json.RawMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	j.Report = report
	return nil
}

func (r *fakeRepo) job(id int) Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.jobs[id]
}

type fakeIngest struct {
	mu      sync.Mutex
	result  *knowledgebase.IngestionBatchResult
	err     error
	payload IngestPayload
	calls   int
}

func (f *fakeIngest) HandleIngestTask(_ context.Context, payload json.RawMessage) (*knowledgebase.IngestionBatchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := json.Unmarshal(payload, &f.payload); err != nil {
		return nil, err
	}
	return f.result, f.err
}

func jobMessage(t *testing.T, id int, taskType string, payload string) *message.Message {
	t.Helper()
	b, err := json.Marshal(JobMessage{JobID: id, TaskType: taskType, Payload: json.RawMessage(payload)})
	if err != nil {
		t.Fatal(err)
	}
	return message.NewMessage(watermill.NewUUID(), b)
}

func TestEnqueueIngestPublishes(t *testing.T) {
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()

	messages, err := pubSub.Subscribe(context.Background(), Topic)
	if err != nil {
		t.Fatal(err)
	}

	repo := newFakeRepo()
	svc := NewJobService(pubSub, repo, watermill.NopLogger{}, nil)

	job, err := svc.EnqueueIngest(context.Background(), IngestPayload{Input: "s3://ingest/docs.json", BatchSize: 50, Clear: true})
	if err != nil {
		t.Fatalf("EnqueueIngest() error = %v", err)
	}
	if job.Status != JobStatusPending || job.TaskType != TaskTypeIngest {
		t.Errorf("EnqueueIngest() job = %+v, want pending ingest job", job)
	}

	select {
	case msg := <-messages:
		msg.Ack()
		var jm JobMessage
		if err := json.Unmarshal(msg.Payload, &jm); err != nil {
			t.Fatalf("published payload: %v", err)
		}
		if jm.JobID != job.ID || jm.TaskType != TaskTypeIngest {
			t.Errorf("published message = %+v, want job %d", jm, job.ID)
		}
		var p IngestPayload
		if err := json.Unmarshal(jm.Payload, &p); err != nil {
			t.Fatal(err)
		}
		if p.Input != "s3://ingest/docs.json" || p.BatchSize != 50 || !p.Clear || p.MaxRetries != nil {
			t.Errorf("published payload = %+v", p)
		}
	case <-time.After(time.Second):
		t.Fatal("no message published")
	}
}

func TestEnqueueIngestRequiresInput(t *testing.T) {
	svc := NewJobService(nil, newFakeRepo(), watermill.NopLogger{}, nil)
	if _, err := svc.EnqueueIngest(context.Background(), IngestPayload{}); !errors.Is(err, ErrMissingInput) {
		t.Errorf("EnqueueIngest() error = %v, want ErrMissingInput", err)
	}
}

func TestProcessJobMessage(t *testing.T) {
	partial := &knowledgebase.IngestionBatchResult{SuccessCount: 2, FailureCount: 1, Errors: []string{"document 3: 400 bad"}}

	tests := []struct {
		name       string
		taskType   string
		ingest     *fakeIngest
		wantErr    bool
		wantStatus JobStatus
		wantReport bool
	}{
		{
			name:       "completed with report",
			taskType:   TaskTypeIngest,
			ingest:     &fakeIngest{result: partial},
			wantStatus: JobStatusCompleted,
			wantReport: true,
		},
		{
			name:       "failed keeps partial report",
			taskType:   TaskTypeIngest,
			ingest:     &fakeIngest{result: partial, err: context.Canceled},
			wantErr:    true,
			wantStatus: JobStatusFailed,
			wantReport: true,
		},
		{
			name:       "failed without report",
			taskType:   TaskTypeIngest,
			ingest:     &fakeIngest{err: errors.New("load failed")},
			wantErr:    true,
			wantStatus: JobStatusFailed,
		},
		{
			name:       "unknown task type",
			taskType:   "translate",
			ingest:     &fakeIngest{},
			wantErr:    true,
			wantStatus: JobStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo()
			job, _ := repo.Create(context.Background(), tt.taskType, json.RawMessage(`{"input":"docs.json"}`))
			svc := NewJobService(nil, repo, watermill.NopLogger{}, tt.ingest)

			err := svc.ProcessJobMessage(jobMessage(t, job.ID, tt.taskType, `{"input":"docs.json"}`))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ProcessJobMessage() error = %v, wantErr %v", err, tt.wantErr)
			}

			got := repo.job(job.ID)
			if got.Status != tt.wantStatus {
				t.Errorf("status = %v, want %v", got.Status, tt.wantStatus)
			}
			if tt.wantErr && got.Error == nil {
				t.Errorf("error not recorded on failed job")
			}
			if (got.Report != nil) != tt.wantReport {
				t.Fatalf("report = %s, wantReport %v", got.Report, tt.wantReport)
			}
			if tt.wantReport {
				var r knowledgebase.IngestionBatchResult
				if err := json.Unmarshal(got.Report, &r); err != nil {
					t.Fatal(err)
				}
				if r.SuccessCount != 2 || r.FailureCount != 1 {
					t.Errorf("report = %+v, want 2 ok / 1 failed", r)
				}
			}
		})
	}
}

func TestProcessJobMessageSkipsFinishedJobs(t *testing.T) {
	for _, status := range []JobStatus{JobStatusCompleted, JobStatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			repo := newFakeRepo()
			job, _ := repo.Create(context.Background(), TaskTypeIngest, json.RawMessage(`{"input":"docs.json"}`))
			_ = repo.UpdateStatus(context.Background(), job.ID, status, nil)
			ingest := &fakeIngest{result: &knowledgebase.IngestionBatchResult{}}
			svc := NewJobService(nil, repo, watermill.NopLogger{}, ingest)

			if err := svc.ProcessJobMessage(jobMessage(t, job.ID, TaskTypeIngest, `{"input":"docs.json"}`)); err != nil {
				t.Fatalf("ProcessJobMessage() error = %v, want nil", err)
			}
			if ingest.calls != 0 {
				t.Errorf("ingest handler calls = %d, want 0", ingest.calls)
			}
			if got := repo.job(job.ID).Status; got != status {
				t.Errorf("status = %v, want %v", got, status)
			}
		})
	}
}

func TestProcessJobMessageUnknownJob(t *testing.T) {
	svc := NewJobService(nil, newFakeRepo(), watermill.NopLogger{}, &fakeIngest{})

	err := svc.ProcessJobMessage(jobMessage(t, 42, TaskTypeIngest, `{}`))
	if !errors.Is(err, ErrJobNotFound) {
		t.Errorf("ProcessJobMessage() error = %v, want ErrJobNotFound", err)
	}

	bad := message.NewMessage(watermill.NewUUID(), []byte("not json"))
	if err := svc.ProcessJobMessage(bad); err == nil {
		t.Errorf("ProcessJobMessage() with malformed message error = nil, want error")
	}
}

func TestRouterRunsEnqueuedJob(t *testing.T) {
	logger := watermill.NopLogger{}
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, logger)
	defer pubSub.Close()

	repo := newFakeRepo()
	ingest := &fakeIngest{result: &knowledgebase.IngestionBatchResult{SuccessCount: 3, Errors: []string{}}}
	svc := NewJobService(pubSub, repo, logger, ingest)

	router, err := NewRouter(RouterConfig{MaxRetries: 1, InitialInterval: time.Millisecond}, pubSub, svc, logger)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = router.Run(ctx)
	}()
	<-router.Running()
	defer router.Close()

	job, err := svc.EnqueueIngest(ctx, IngestPayload{Input: "docs.json"})
	if err != nil {
		t.Fatalf("EnqueueIngest() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for repo.job(job.ID).Status != JobStatusCompleted {
		if time.Now().After(deadline) {
			t.Fatalf("job status = %v, want %v", repo.job(job.ID).Status, JobStatusCompleted)
		}
		time.Sleep(10 * time.Millisecond)
	}

	ingest.mu.Lock()
	defer ingest.mu.Unlock()
	if ingest.calls != 1 || ingest.payload.Input != "docs.json" {
		t.Errorf("ingest handler calls = %d payload = %+v", ingest.calls, ingest.payload)
	}
}

func TestRouterDoesNotRerunFailedJob(t *testing.T) {
	logger := watermill.NopLogger{}
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, logger)
	defer pubSub.Close()

	repo := newFakeRepo()
	ingest := &fakeIngest{err: errors.New("store unreachable")}
	svc := NewJobService(pubSub, repo, logger, ingest)

	router, err := NewRouter(RouterConfig{MaxRetries: 3, InitialInterval: time.Millisecond}, pubSub, svc, logger)
	if err != nil {
		t.Fatalf("NewRouter() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = router.Run(ctx)
	}()
	<-router.Running()
	defer router.Close()

	job, err := svc.EnqueueIngest(ctx, IngestPayload{Input: "docs.json"})
	if err != nil {
		t.Fatalf("EnqueueIngest() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for repo.job(job.ID).Status != JobStatusFailed {
		if time.Now().After(deadline) {
			t.Fatalf("job status = %v, want %v", repo.job(job.ID).Status, JobStatusFailed)
		}
		time.Sleep(10 * time.Millisecond)
	}
	// leave room for the retry middleware to redeliver
	time.Sleep(100 * time.Millisecond)

	ingest.mu.Lock()
	defer ingest.mu.Unlock()
	if ingest.calls != 1 {
		t.Errorf("ingest handler calls = %d, want 1", ingest.calls)
	}
}
