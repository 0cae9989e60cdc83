package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/reviewlens/internal/adapters/http/api"
	"github.com/okian/reviewlens/internal/adapters/repository"
	service "github.com/okian/reviewlens/internal/app"
	"github.com/okian/reviewlens/internal/domain/classifier/classifiertest"
	"github.com/okian/reviewlens/internal/domain/consistency"
	"github.com/okian/reviewlens/internal/domain/sentiment"
	"github.com/okian/reviewlens/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.InitWithOptions(logger.Options{Writer: io.Discard}); err != nil {
		panic(err)
	}
}

func TestGenerate(t *testing.T) {
	Convey("Given a request for generated reviews", t, func() {
		reviews, err := Generate(context.Background(), 200)
		So(err, ShouldBeNil)
		So(reviews, ShouldHaveLength, 200)

		Convey("Then every review is valid input", func() {
			for _, r := range reviews {
				So(consistency.ValidateRating(r.Rating), ShouldBeNil)
				So(strings.TrimSpace(r.Review), ShouldNotBeEmpty)
				So(r.Product, ShouldNotBeEmpty)
			}
		})

		Convey("Then a negative count is rejected", func() {
			_, err := Generate(context.Background(), -1)
			So(err, ShouldNotBeNil)
		})

		Convey("Then a cancelled context stops generation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err := Generate(ctx, 10)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running server backed by a CSV log", t, func() {
		dir := t.TempDir()
		svc := service.New(
			service.WithClassifier(classifiertest.NewFake(sentiment.Distribution{0.7, 0.2, 0.1})),
			service.WithStore(repository.NewCSVStore(filepath.Join(dir, "predictions.csv"))),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		mux := http.NewServeMux()
		api.NewServer(svc, svc, 1000).Register(context.Background(), mux)
		srv := httptest.NewServer(mux)
		defer srv.Close()

		out := filepath.Join(dir, "out", "reviews.json")
		cfg := &Config{
			BaseURL:    srv.URL,
			NumReviews: 40,
			Workers:    4,
			Timeout:    5 * time.Second,
			Retries:    3,
			Backoff:    time.Millisecond,
			OutputFile: out,
		}

		Convey("When a load run completes", func() {
			stats, err := Run(context.Background(), cfg)

			Convey("Then every review is saved and accounted for", func() {
				So(err, ShouldBeNil)
				So(stats.Submitted, ShouldEqual, 40)
				So(stats.Saved, ShouldEqual, 40)
				So(stats.Failed, ShouldEqual, 0)
				So(stats.After.Total-stats.Before.Total, ShouldEqual, 40)
				So(stats.After.ByLabel["Negative"], ShouldEqual, 40)
			})

			Convey("Then the generated reviews are written out", func() {
				b, err := os.ReadFile(out)
				So(err, ShouldBeNil)
				var saved []Review
				So(json.Unmarshal(b, &saved), ShouldBeNil)
				So(saved, ShouldHaveLength, 40)
			})
		})
	})

	Convey("Given a server that is not reachable", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()

		_, err := Run(context.Background(), &Config{BaseURL: srv.URL, NumReviews: 1, Workers: 1, Timeout: time.Second})
		So(err, ShouldNotBeNil)
	})
}

func TestSubmitRetriesBackpressure(t *testing.T) {
	Convey("Given a server that rejects the first two attempts", t, func() {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= 2 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"x","mismatch":true,"persisted":true}`))
		}))
		defer srv.Close()

		c := newClient(srv.URL, time.Second)
		review := Review{Rating: 5, Review: "terrible"}

		Convey("When retries are allowed", func() {
			out, res := submitOne(context.Background(), c, &Config{Retries: 3, Backoff: time.Millisecond}, review)
			So(out, ShouldEqual, outcomeSaved)
			So(res.Mismatch, ShouldBeTrue)
			So(calls.Load(), ShouldEqual, int64(3))
		})

		Convey("When retries are exhausted", func() {
			out, _ := submitOne(context.Background(), c, &Config{Retries: 1, Backoff: time.Millisecond}, review)
			So(out, ShouldEqual, outcomeRejected)
			So(calls.Load(), ShouldEqual, int64(2))
		})
	})

	Convey("Given a server that answers an unsaved analysis", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"x","persisted":false,"persist_error":"disk full"}`))
		}))
		defer srv.Close()

		out, _ := submitOne(context.Background(), newClient(srv.URL, time.Second), &Config{}, Review{Rating: 3, Review: "ok"})
		So(out, ShouldEqual, outcomeUnsaved)
	})
}

func TestVerify(t *testing.T) {
	Convey("Given run statistics", t, func() {
		stats := &Stats{Saved: 5}
		stats.Before.Total = 10

		Convey("Then growth matching the saves passes", func() {
			stats.After.Total = 15
			So(verify(stats), ShouldBeNil)
		})

		Convey("Then growth from other writers passes", func() {
			stats.After.Total = 20
			So(verify(stats), ShouldBeNil)
		})

		Convey("Then a shortfall fails", func() {
			stats.After.Total = 12
			So(errors.Is(verify(stats), ErrUnaccounted), ShouldBeTrue)
		})
	})
}
