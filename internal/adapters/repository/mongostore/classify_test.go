package mongostore

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/okian/octofit/internal/adapters/repository"
)

func TestClassify(t *testing.T) {
	Convey("Given driver errors", t, func() {
		Convey("Then missing documents map to ErrNotFound", func() {
			So(errors.Is(classify(mongo.ErrNoDocuments), repository.ErrNotFound), ShouldBeTrue)
		})

		Convey("Then duplicate key write errors map to ErrDuplicate", func() {
			err := mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000, Message: "E11000 duplicate key"}}}
			So(errors.Is(classify(err), repository.ErrDuplicate), ShouldBeTrue)
		})

		Convey("Then cancellation is passed through", func() {
			So(classify(context.Canceled), ShouldEqual, context.Canceled)
		})

		Convey("Then anything else is a store outage", func() {
			So(errors.Is(classify(errors.New("connection reset")), repository.ErrStoreUnavailable), ShouldBeTrue)
			So(classify(nil), ShouldBeNil)
		})
	})
}
