package worker_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/okian/reviewlens/internal/adapters/mq/queue"
	"github.com/okian/reviewlens/internal/adapters/mq/worker"
	"github.com/okian/reviewlens/internal/domain/record"
	logging "github.com/okian/reviewlens/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockAnalyzer struct {
	mu       sync.Mutex
	inFlight int
	maxSeen  int
	reviews  []string
	err      error
	delay    time.Duration
}

func (m *mockAnalyzer) Analyze(ctx context.Context, product string, rating int, review string) (record.Analysis, error) {
	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.maxSeen {
		m.maxSeen = m.inFlight
	}
	m.reviews = append(m.reviews, review)
	m.mu.Unlock()

	time.Sleep(m.delay)

	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()

	if m.err != nil {
		return record.Analysis{}, m.err
	}
	return record.Analysis{
		ID:        "a-" + review,
		Record:    record.Record{Product: product, Rating: rating, Review: review},
		Persisted: true,
	}, nil
}

func (m *mockAnalyzer) snapshot() (int, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxSeen, append([]string(nil), m.reviews...)
}

func TestWorker(t *testing.T) {
	convey.Convey("Given a worker draining a queue", t, func() {
		_ = logging.InitWithOptions(logging.Options{Writer: io.Discard})

		q := queue.NewInMemoryQueue(queue.WithCapacity(16))
		an := &mockAnalyzer{delay: 2 * time.Millisecond}
		w := worker.New(q, an, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs are submitted", func() {
			var jobs []queue.Job
			for _, review := range []string{"one", "two", "three", "four"} {
				j := queue.NewJob(context.Background(), "job-"+review, record.Input{Product: "p", Rating: 3, Review: review})
				convey.So(q.Enqueue(ctx, j), convey.ShouldBeTrue)
				jobs = append(jobs, j)
			}

			convey.Convey("Then each gets its own result in submission order", func() {
				for _, j := range jobs {
					res, err := j.Wait(context.Background())
					convey.So(err, convey.ShouldBeNil)
					convey.So(res.Err, convey.ShouldBeNil)
					convey.So(res.Analysis.ID, convey.ShouldEqual, "a-"+j.Input.Review)
				}
				maxSeen, reviews := an.snapshot()
				convey.So(reviews, convey.ShouldResemble, []string{"one", "two", "three", "four"})
				convey.So(maxSeen, convey.ShouldEqual, 1)
				convey.So(w.Processed(), convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When the analyzer fails", func() {
			an.err = errors.New("boom")
			j := queue.NewJob(context.Background(), "job-x", record.Input{Review: "x", Rating: 3})
			convey.So(q.Enqueue(ctx, j), convey.ShouldBeTrue)

			convey.Convey("Then the error is delivered with the job id", func() {
				res, err := j.Wait(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Err, convey.ShouldEqual, an.err)
				convey.So(res.Analysis.ID, convey.ShouldEqual, "job-x")
			})
		})

		convey.Convey("When the submitter has already gone", func() {
			jctx, jcancel := context.WithCancel(context.Background())
			jcancel()
			j := queue.NewJob(jctx, "job-gone", record.Input{Review: "gone", Rating: 3})
			convey.So(q.Enqueue(ctx, j), convey.ShouldBeTrue)

			convey.Convey("Then the job is skipped", func() {
				res, err := j.Wait(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(errors.Is(res.Err, context.Canceled), convey.ShouldBeTrue)
				_, reviews := an.snapshot()
				convey.So(reviews, convey.ShouldBeEmpty)
				convey.So(w.Skipped(), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When the worker is shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
		})
	})
}
