package repository_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/reviewlens/internal/adapters/repository"
	"github.com/okian/reviewlens/internal/domain/sentiment"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a SQLite store in an empty directory", t, func() {
		path := filepath.Join(t.TempDir(), "analysis.db")
		store := repository.NewSQLiteStore(path)
		defer store.Close()

		Convey("When nothing has been appended", func() {
			n, err := store.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
		})

		Convey("When records are appended", func() {
			for i := 0; i < 4; i++ {
				So(store.Append(ctx, sampleRecord(i)), ShouldBeNil)
			}

			Convey("Then they are listed in append order", func() {
				rs, err := store.List(ctx, 0)
				So(err, ShouldBeNil)
				So(len(rs), ShouldEqual, 4)
				So(rs[0].Product, ShouldEqual, "Product 0")
				So(rs[3].Product, ShouldEqual, "Product 3")
				So(rs[3].Sentiment, ShouldEqual, sentiment.Positive)
				So(rs[3].Confidences, ShouldResemble, sentiment.Distribution{0.1, 0.2, 0.7})
			})

			Convey("Then a limit returns the most recent records", func() {
				rs, err := store.List(ctx, 3)
				So(err, ShouldBeNil)
				So(len(rs), ShouldEqual, 3)
				So(rs[0].Product, ShouldEqual, "Product 1")
			})

			Convey("Then the mismatch flag is derived on read", func() {
				rs, err := store.List(ctx, 0)
				So(err, ShouldBeNil)
				// sampleRecord(0) has rating 1 with a Positive label.
				So(rs[0].Mismatch, ShouldBeTrue)
			})
		})

		Convey("When the database file is removed between appends", func() {
			So(store.Append(ctx, sampleRecord(1)), ShouldBeNil)
			So(os.Remove(path), ShouldBeNil)
			So(store.Append(ctx, sampleRecord(2)), ShouldBeNil)

			n, err := store.Count(ctx)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})

		Convey("When the file is not a database", func() {
			garbage := []byte("definitely not sqlite, just some text that is long enough to have a header page")
			So(os.WriteFile(path, garbage, 0o644), ShouldBeNil)
			err := store.Append(ctx, sampleRecord(1))

			Convey("Then the append fails as corrupt and the file is untouched", func() {
				So(errors.Is(err, repository.ErrStoreCorrupt), ShouldBeTrue)
				data, _ := os.ReadFile(path)
				So(data, ShouldResemble, garbage)
			})
		})
	})
}
