package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shiurlab/shiur-core/internal/core/domain"
)

// fakeQueue is a channel-backed TaskQueue for worker tests.
type fakeQueue struct {
	mu     sync.Mutex
	tasks  chan *domain.Task
	acked  []string
	nacked []string
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{tasks: make(chan *domain.Task, 16)}
}

func (q *fakeQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	q.tasks <- task
	return nil
}

func (q *fakeQueue) Dequeue(ctx context.Context, timeout time.Duration) (*domain.Task, error) {
	select {
	case task := <-q.tasks:
		return task, nil
	case <-time.After(timeout):
		return nil, nil
	case <-ctx.Done():
		return nil, nil
	}
}

func (q *fakeQueue) Ack(ctx context.Context, taskID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, taskID)
	return nil
}

func (q *fakeQueue) Nack(ctx context.Context, taskID string, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nacked = append(q.nacked, taskID)
	return nil
}

func (q *fakeQueue) Ping(ctx context.Context) error { return nil }

// fakeGuideService records generation calls.
type fakeGuideService struct {
	mu     sync.Mutex
	calls  []domain.GuideRequest
	result *domain.GuideResult
	err    error
	done   chan struct{}
}

func (s *fakeGuideService) Generate(ctx context.Context, req domain.GuideRequest) (*domain.GuideResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	s.mu.Unlock()
	if s.done != nil {
		close(s.done)
	}
	return s.result, s.err
}

func (s *fakeGuideService) Get(ctx context.Context, fingerprint string) (*domain.CanonicalGuideRecord, []domain.GuideChunk, error) {
	return nil, nil, domain.ErrNotFound
}

func (s *fakeGuideService) Progress(ctx context.Context, fingerprint string) (int, int, error) {
	return 0, 0, nil
}

func (s *fakeGuideService) Cancel(ctx context.Context, fingerprint string) error { return nil }

func waitOrFail(t *testing.T, ch chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
	}
}

func testTask() *domain.Task {
	return &domain.Task{
		ID:   "task-1",
		Type: domain.TaskTypeGuideGenerate,
		Request: domain.GuideRequest{
			Section:   domain.SectionOrachChayim,
			Chapter:   24,
			Paragraph: 1,
			Corpora:   []domain.CorpusID{domain.CorpusShulchanArukh},
		},
	}
}

func TestWorker_ProcessesGuideTask(t *testing.T) {
	queue := newFakeQueue()
	svc := &fakeGuideService{
		result: &domain.GuideResult{Success: true},
		done:   make(chan struct{}),
	}

	w := NewWorker(WorkerConfig{
		TaskQueue:      queue,
		GuideService:   svc,
		Concurrency:    1,
		DequeueTimeout: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	_ = queue.Enqueue(ctx, testTask())
	waitOrFail(t, svc.done, "task processing")

	// Give the ack a moment to land.
	deadline := time.Now().Add(2 * time.Second)
	for {
		queue.mu.Lock()
		acked := len(queue.acked)
		queue.mu.Unlock()
		if acked == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("task was never acked")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWorker_NacksFailedTask(t *testing.T) {
	queue := newFakeQueue()
	svc := &fakeGuideService{
		err:  errors.New("provider down"),
		done: make(chan struct{}),
	}

	w := NewWorker(WorkerConfig{
		TaskQueue:      queue,
		GuideService:   svc,
		Concurrency:    1,
		DequeueTimeout: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start worker: %v", err)
	}
	defer w.Stop()

	_ = queue.Enqueue(ctx, testTask())
	waitOrFail(t, svc.done, "task processing")

	deadline := time.Now().Add(2 * time.Second)
	for {
		queue.mu.Lock()
		nacked := len(queue.nacked)
		queue.mu.Unlock()
		if nacked == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("failed task was never nacked")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestWorker_StopIsIdempotent(t *testing.T) {
	w := NewWorker(WorkerConfig{
		TaskQueue:      newFakeQueue(),
		GuideService:   &fakeGuideService{result: &domain.GuideResult{Success: true}},
		DequeueTimeout: 10 * time.Millisecond,
	})

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("failed to start: %v", err)
	}
	w.Stop()
	w.Stop() // second stop must not panic
}
