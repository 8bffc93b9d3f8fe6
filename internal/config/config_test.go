package config_test

import (
	"runtime"
	"testing"
	"time"

	"github.com/okian/octofit/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":8000")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.MongoDatabase, convey.ShouldEqual, "octofit_db")
			convey.So(cfg.AutoRecompute, convey.ShouldBeTrue)
			convey.So(cfg.RecomputeQueueSize, convey.ShouldEqual, 1)
			convey.So(cfg.RecomputeWorkers, convey.ShouldEqual, min(runtime.NumCPU(), 2))
			convey.So(cfg.ShutdownTimeout(), convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.Brokers(), convey.ShouldBeEmpty)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})

	convey.Convey("Given a broker list with blanks", t, func() {
		cfg := config.New()
		cfg.KafkaBrokers = " a:9092, ,b:9092,"

		convey.Convey("Then Brokers trims and drops empty items", func() {
			convey.So(cfg.Brokers(), convey.ShouldResemble, []string{"a:9092", "b:9092"})
		})
	})
}
