package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInit(t *testing.T) {
	Convey("Given a log level", t, func() {
		defer log.SetOutput(os.Stderr)
		defer log.SetLevel(log.InfoLevel)
		defer log.SetReportCaller(false)
		defer log.SetReportTimestamp(false)

		Convey("It sets the level without a file", func() {
			closer, err := Init("debug", "")

			So(err, ShouldBeNil)
			So(closer.Close(), ShouldBeNil)
			So(log.GetLevel(), ShouldEqual, log.DebugLevel)
		})

		Convey("It rejects an unknown level", func() {
			_, err := Init("loud", "")
			So(err, ShouldNotBeNil)
		})

		Convey("It appends to the given file", func() {
			path := filepath.Join(t.TempDir(), "runtime.log")

			closer, err := Init("info", path)
			So(err, ShouldBeNil)

			log.Info("task finalized", "id", "t-1")
			So(closer.Close(), ShouldBeNil)

			buf, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(buf), ShouldContainSubstring, "logging initialized")
			So(string(buf), ShouldContainSubstring, "task finalized")
		})
	})
}
