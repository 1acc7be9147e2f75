package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	queue "github.com/trustfabric/equilibrate/internal/adapters/mq/queue"
	worker "github.com/trustfabric/equilibrate/internal/adapters/mq/worker"
	model "github.com/trustfabric/equilibrate/internal/domain/model"
	"github.com/trustfabric/equilibrate/internal/engine"
	"github.com/trustfabric/equilibrate/pkg/logger"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// Mock implementations for testing.
type mockQueue struct {
	eventChan chan queue.Event
	closed    bool
	mu        sync.Mutex
}

func newMockQueue() *mockQueue {
	return &mockQueue{
		eventChan: make(chan queue.Event, 10),
	}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan queue.Event {
	return mq.eventChan
}

func (mq *mockQueue) Close() error {
	mq.mu.Lock()
	defer mq.mu.Unlock()
	if !mq.closed {
		close(mq.eventChan)
		mq.closed = true
	}
	return nil
}

func (mq *mockQueue) addEvent(event queue.Event) {
	mq.eventChan <- event
}

type mockProcessor struct {
	mu        sync.Mutex
	processed []string
	errors    map[string]error
}

func newMockProcessor() *mockProcessor {
	return &mockProcessor{errors: make(map[string]error)}
}

func (mp *mockProcessor) Process(_ context.Context, ev model.RatingEvent) (engine.Result, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	if err, exists := mp.errors[ev.EventID]; exists {
		return engine.Result{Event: ev}, err
	}
	mp.processed = append(mp.processed, ev.EventID)
	ev.State = model.StateApplied
	return engine.Result{Event: ev}, nil
}

func (mp *mockProcessor) setError(eventID string, err error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.errors[eventID] = err
}

func (mp *mockProcessor) processedCount() int {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return len(mp.processed)
}

func waitFor(cond func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestWorkerProcessesEvents(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		mq := newMockQueue()
		mp := newMockProcessor()
		w := worker.NewInMemoryWorker(mq, mp, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("Queued events reach the processor", func() {
			mq.addEvent(model.RatingEvent{EventID: "ev-1", RaterID: "bob", TargetID: "alice", Stars: 5})
			mq.addEvent(model.RatingEvent{EventID: "ev-2", RaterID: "carol", TargetID: "alice", Stars: 4})

			ok := waitFor(func() bool { return mp.processedCount() == 2 }, 2*time.Second)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("A processor error does not stop the worker", func() {
			mp.setError("ev-bad", errors.New("store down"))
			mq.addEvent(model.RatingEvent{EventID: "ev-bad", RaterID: "bob", TargetID: "alice", Stars: 5})
			mq.addEvent(model.RatingEvent{EventID: "ev-good", RaterID: "carol", TargetID: "alice", Stars: 4})

			ok := waitFor(func() bool { return mp.processedCount() == 1 }, 2*time.Second)
			convey.So(ok, convey.ShouldBeTrue)
		})

		convey.Convey("Shutdown stops the worker", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})
}

func TestPoolDrainsQueueOnShutdown(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		mp := newMockProcessor()
		pool := worker.NewPool(4, q, mp)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		for i := 0; i < 20; i++ {
			ok := q.Enqueue(ctx, model.RatingEvent{
				EventID:  "ev-" + string(rune('a'+i)),
				RaterID:  "bob",
				TargetID: "alice",
				Stars:    3,
			})
			convey.So(ok, convey.ShouldBeTrue)
		}

		convey.Convey("All buffered events are processed before the pool stops", func() {
			convey.So(pool.Shutdown(context.Background()), convey.ShouldBeNil)
			convey.So(mp.processedCount(), convey.ShouldEqual, 20)
			convey.So(q.IsClosed(), convey.ShouldBeTrue)
		})
	})
}
