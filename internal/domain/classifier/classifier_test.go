package classifier_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/okian/reviewlens/internal/domain/classifier"
	"github.com/okian/reviewlens/internal/domain/classifier/classifiertest"
	"github.com/okian/reviewlens/internal/domain/sentiment"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadModel(t *testing.T) {
	Convey("Given a model artifact on disk", t, func() {
		dir := classifiertest.WriteModel(t)
		ctx := context.Background()

		Convey("When loading it", func() {
			m, err := classifier.LoadModel(dir)
			So(err, ShouldBeNil)

			Convey("Then it classifies clear reviews", func() {
				cases := map[string]sentiment.Label{
					"Terrible product, broken battery!": sentiment.Negative,
					"It is ok, average phone.":          sentiment.Neutral,
					"Great phone, I love it":            sentiment.Positive,
				}
				for text, want := range cases {
					d, err := m.Classify(ctx, text)
					So(err, ShouldBeNil)
					So(sentiment.Argmax(d), ShouldEqual, want)
				}
			})

			Convey("Then every output is a valid distribution", func() {
				for _, text := range []string{"great", "the the the", "worst refund ever", "zzz unknown words"} {
					d, err := m.Classify(ctx, text)
					So(err, ShouldBeNil)
					So(len(d), ShouldEqual, 3)
					sum := 0.0
					for _, p := range d {
						So(p, ShouldBeBetweenOrEqual, 0, 1)
						sum += p
					}
					So(math.Abs(sum-1), ShouldBeLessThanOrEqualTo, 1e-6)
				}
			})

			Convey("Then classification is deterministic", func() {
				a, err := m.Classify(ctx, "Great battery but awful screen")
				So(err, ShouldBeNil)
				b, err := m.Classify(ctx, "Great battery but awful screen")
				So(err, ShouldBeNil)
				So(a, ShouldResemble, b)
			})

			Convey("Then untokenizable input fails with ErrTokenization", func() {
				for _, text := range []string{"\xff\xfe", "\x01\x02\x03"} {
					_, err := m.Classify(ctx, text)
					So(errors.Is(err, classifier.ErrTokenization), ShouldBeTrue)
				}
			})

			Convey("Then a cancelled context stops before inference", func() {
				cctx, cancel := context.WithCancel(ctx)
				cancel()
				_, err := m.Classify(cctx, "great")
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})

		Convey("When the input is longer than the sequence limit", func() {
			text := strings.Repeat("great ", 3) + strings.Repeat("terrible ", 4)

			Convey("Then the full model sees every word", func() {
				m, err := classifier.LoadModel(dir)
				So(err, ShouldBeNil)
				d, err := m.Classify(ctx, text)
				So(err, ShouldBeNil)
				So(sentiment.Argmax(d), ShouldEqual, sentiment.Negative)
			})

			Convey("Then a capped model silently ignores the tail", func() {
				m, err := classifier.LoadModel(dir, classifier.WithMaxSequenceLength(5))
				So(err, ShouldBeNil)
				d, err := m.Classify(ctx, text)
				So(err, ShouldBeNil)
				So(sentiment.Argmax(d), ShouldEqual, sentiment.Positive)
			})

			Convey("Then a cap above the model limit is ignored", func() {
				m, err := classifier.LoadModel(dir, classifier.WithMaxSequenceLength(1000))
				So(err, ShouldBeNil)
				So(m.Tokenizer().MaxLen(), ShouldEqual, classifiertest.MaxPositionEmbeddings)
			})
		})
	})
}

func TestLoadModelDistilBERTConfig(t *testing.T) {
	Convey("Given an artifact whose config.json comes from a DistilBERT checkpoint", t, func() {
		dir := classifiertest.WriteModel(t)
		classifiertest.RewriteFile(t, dir, classifier.ConfigFile, `{
			"architectures": ["DistilBertForSequenceClassification"],
			"model_type": "distilbert",
			"dim": 3,
			"n_layers": 6,
			"n_heads": 12,
			"id2label": {"0": "Negative", "1": "Neutral", "2": "Positive"},
			"label2id": {"Negative": 0, "Neutral": 1, "Positive": 2},
			"max_position_embeddings": 16
		}`)

		Convey("When loading it", func() {
			m, err := classifier.LoadModel(dir)

			Convey("Then dim is taken as the hidden size", func() {
				So(err, ShouldBeNil)
				d, err := m.Classify(context.Background(), "great product")
				So(err, ShouldBeNil)
				So(sentiment.Argmax(d), ShouldEqual, sentiment.Positive)
			})
		})
	})
}

func TestLoadModelFailures(t *testing.T) {
	Convey("Given broken artifacts", t, func() {
		Convey("When the directory does not exist", func() {
			_, err := classifier.LoadModel(filepath.Join(t.TempDir(), "missing"))
			So(errors.Is(err, classifier.ErrModelLoad), ShouldBeTrue)
		})

		Convey("When a file is missing", func() {
			dir := classifiertest.WriteModel(t)
			So(os.Remove(filepath.Join(dir, classifier.WeightsFile)), ShouldBeNil)
			_, err := classifier.LoadModel(dir)
			So(errors.Is(err, classifier.ErrModelLoad), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "must be converted first")
		})

		Convey("When the config names neither dim nor hidden_size", func() {
			dir := classifiertest.WriteModel(t)
			classifiertest.RewriteFile(t, dir, classifier.ConfigFile,
				`{"id2label":{"0":"Negative","1":"Neutral","2":"Positive"},"max_position_embeddings":16}`)
			_, err := classifier.LoadModel(dir)
			So(errors.Is(err, classifier.ErrModelLoad), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "hidden_size")
		})

		Convey("When weights are not JSON", func() {
			dir := classifiertest.WriteModel(t)
			classifiertest.RewriteFile(t, dir, classifier.WeightsFile, "{not json")
			_, err := classifier.LoadModel(dir)
			So(errors.Is(err, classifier.ErrModelLoad), ShouldBeTrue)
		})

		Convey("When labels are in alphabetical order", func() {
			dir := classifiertest.WriteModel(t)
			classifiertest.RewriteFile(t, dir, classifier.ConfigFile,
				`{"id2label":{"0":"Negative","1":"Positive","2":"Neutral"},"max_position_embeddings":16,"hidden_size":3}`)
			_, err := classifier.LoadModel(dir)
			So(errors.Is(err, classifier.ErrModelLoad), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "id2label")
		})

		Convey("When the hidden size does not match the weights", func() {
			dir := classifiertest.WriteModel(t)
			classifiertest.RewriteFile(t, dir, classifier.ConfigFile,
				`{"id2label":{"0":"Negative","1":"Neutral","2":"Positive"},"max_position_embeddings":16,"hidden_size":4}`)
			_, err := classifier.LoadModel(dir)
			So(errors.Is(err, classifier.ErrModelLoad), ShouldBeTrue)
		})

		Convey("When the vocabulary lacks special tokens", func() {
			dir := classifiertest.WriteModel(t)
			data, err := os.ReadFile(filepath.Join(dir, classifier.VocabFile))
			So(err, ShouldBeNil)
			classifiertest.RewriteFile(t, dir, classifier.VocabFile, strings.Replace(string(data), "[UNK]", "[UNKNOWN]", 1))
			_, err = classifier.LoadModel(dir)
			So(errors.Is(err, classifier.ErrModelLoad), ShouldBeTrue)
		})
	})
}

func TestLazy(t *testing.T) {
	Convey("Given a lazily loaded classifier", t, func() {
		ctx := context.Background()
		var loads int32
		fake := classifiertest.NewFake(sentiment.Distribution{0.1, 0.2, 0.7})
		lazy := classifier.NewLazy(func(context.Context) (classifier.Classifier, error) {
			atomic.AddInt32(&loads, 1)
			return fake, nil
		}, nil)

		Convey("Then nothing is loaded before first use", func() {
			So(atomic.LoadInt32(&loads), ShouldEqual, 0)
		})

		Convey("When many callers classify", func() {
			var wg sync.WaitGroup
			for i := 0; i < 8; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, _ = lazy.Classify(ctx, "great")
				}()
			}
			wg.Wait()

			Convey("Then the loader ran exactly once", func() {
				So(atomic.LoadInt32(&loads), ShouldEqual, 1)
				So(len(fake.Calls()), ShouldEqual, 8)
			})
		})

		Convey("When the loader fails", func() {
			boom := errors.New("no such file")
			failing := classifier.NewLazy(func(context.Context) (classifier.Classifier, error) {
				atomic.AddInt32(&loads, 1)
				return nil, boom
			}, nil)

			err1 := failing.Warm(ctx)
			_, err2 := failing.Classify(ctx, "great")

			Convey("Then every caller sees the memoized ErrModelLoad", func() {
				So(errors.Is(err1, classifier.ErrModelLoad), ShouldBeTrue)
				So(errors.Is(err1, boom), ShouldBeTrue)
				So(errors.Is(err2, classifier.ErrModelLoad), ShouldBeTrue)
				So(atomic.LoadInt32(&loads), ShouldEqual, 1)
			})
		})

		Convey("When loading a real artifact directory", func() {
			dir := classifiertest.WriteModel(t)
			fromDir := classifier.NewLazyFromDir(dir, nil)
			So(fromDir.Warm(ctx), ShouldBeNil)

			d, err := fromDir.Classify(ctx, "excellent")
			So(err, ShouldBeNil)
			So(sentiment.Argmax(d), ShouldEqual, sentiment.Positive)
		})
	})
}
