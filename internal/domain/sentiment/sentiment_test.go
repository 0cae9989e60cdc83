package sentiment_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/okian/reviewlens/internal/domain/sentiment"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLabelMapping(t *testing.T) {
	Convey("Given the fixed label set", t, func() {
		Convey("Then model output positions map to labels explicitly", func() {
			for index, want := range []string{"Negative", "Neutral", "Positive"} {
				l, err := sentiment.LabelAt(index)
				So(err, ShouldBeNil)
				So(l.String(), ShouldEqual, want)
				So(l.Index(), ShouldEqual, index)
			}
		})

		Convey("Then the order is not alphabetical", func() {
			So(sentiment.Labels[0], ShouldEqual, sentiment.Negative)
			So(sentiment.Labels[1], ShouldEqual, sentiment.Neutral)
			So(sentiment.Labels[2], ShouldEqual, sentiment.Positive)
		})

		Convey("When asking for an out of range index", func() {
			_, err := sentiment.LabelAt(3)

			Convey("Then it should fail with ErrUnknownLabel", func() {
				So(errors.Is(err, sentiment.ErrUnknownLabel), ShouldBeTrue)
			})
		})

		Convey("When parsing names", func() {
			l, err := sentiment.ParseLabel("Neutral")
			So(err, ShouldBeNil)
			So(l, ShouldEqual, sentiment.Neutral)

			_, err = sentiment.ParseLabel("neutral")
			So(errors.Is(err, sentiment.ErrUnknownLabel), ShouldBeTrue)
		})

		Convey("When round-tripping through JSON", func() {
			b, err := json.Marshal(map[string]sentiment.Label{"s": sentiment.Positive})
			So(err, ShouldBeNil)
			So(string(b), ShouldEqual, `{"s":"Positive"}`)

			var out map[string]sentiment.Label
			So(json.Unmarshal(b, &out), ShouldBeNil)
			So(out["s"], ShouldEqual, sentiment.Positive)
		})
	})
}

func TestArgmax(t *testing.T) {
	Convey("Given synthetic distributions", t, func() {
		Convey("Then [0.7, 0.2, 0.1] is Negative", func() {
			So(sentiment.Argmax(sentiment.Distribution{0.7, 0.2, 0.1}), ShouldEqual, sentiment.Negative)
		})

		Convey("Then the largest component wins", func() {
			So(sentiment.Argmax(sentiment.Distribution{0.1, 0.6, 0.3}), ShouldEqual, sentiment.Neutral)
			So(sentiment.Argmax(sentiment.Distribution{0.1, 0.2, 0.7}), ShouldEqual, sentiment.Positive)
		})

		Convey("Then ties resolve to the lowest index", func() {
			So(sentiment.Argmax(sentiment.Distribution{0.4, 0.4, 0.2}), ShouldEqual, sentiment.Negative)
			So(sentiment.Argmax(sentiment.Distribution{0.2, 0.4, 0.4}), ShouldEqual, sentiment.Neutral)
			third := 1.0 / 3
			So(sentiment.Argmax(sentiment.Distribution{third, third, third}), ShouldEqual, sentiment.Negative)
		})
	})
}

func TestSoftmax(t *testing.T) {
	Convey("Given raw scores", t, func() {
		cases := [][3]float64{
			{0, 0, 0},
			{2.5, -1, 0.3},
			{-1000, 0, 1000},
			{1e-9, 3, -7},
			{88, 89, 90},
		}

		Convey("Then softmax always yields a valid distribution", func() {
			for _, logits := range cases {
				d := sentiment.Softmax(logits)
				So(d.Validate(), ShouldBeNil)
				sum := d[0] + d[1] + d[2]
				So(math.Abs(sum-1), ShouldBeLessThanOrEqualTo, 1e-6)
			}
		})

		Convey("Then the ordering of scores is preserved", func() {
			d := sentiment.Softmax([3]float64{2.5, -1, 0.3})
			So(sentiment.Argmax(d), ShouldEqual, sentiment.Negative)
			So(d[0], ShouldBeGreaterThan, d[2])
			So(d[2], ShouldBeGreaterThan, d[1])
		})

		Convey("Then equal scores give a uniform distribution", func() {
			d := sentiment.Softmax([3]float64{1, 1, 1})
			for _, p := range d {
				So(p, ShouldAlmostEqual, 1.0/3, 1e-12)
			}
		})
	})
}

func TestDistributionValidate(t *testing.T) {
	Convey("Given distributions that break the invariants", t, func() {
		bad := []sentiment.Distribution{
			{0.5, 0.5, 0.5},
			{-0.1, 0.6, 0.5},
			{1.2, -0.1, -0.1},
			{math.NaN(), 0.5, 0.5},
		}

		Convey("Then Validate rejects each of them", func() {
			for _, d := range bad {
				So(errors.Is(d.Validate(), sentiment.ErrInvalidDistribution), ShouldBeTrue)
			}
		})

		Convey("Then Prob reads positionally by label", func() {
			d := sentiment.Distribution{0.7, 0.2, 0.1}
			So(d.Prob(sentiment.Negative), ShouldEqual, 0.7)
			So(d.Prob(sentiment.Neutral), ShouldEqual, 0.2)
			So(d.Prob(sentiment.Positive), ShouldEqual, 0.1)
		})
	})
}
