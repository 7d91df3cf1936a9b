package profiles

import (
	"testing"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCatalog(t *testing.T) {
	Convey("While using profile Catalog", t, func() {
		catalog := NewCatalog()

		Convey("Built-in profiles should be resolvable", func() {
			profile1, err := catalog.Lookup("profile1")
			So(err, ShouldBeNil)
			So(profile1.BandwidthMbps, ShouldEqual, 50)
			So(profile1.DelayMs, ShouldEqual, 10)
			So(profile1.QueueBytes(), ShouldEqual, 62500)

			profile2, err := catalog.Lookup("profile2")
			So(err, ShouldBeNil)
			So(profile2.BandwidthMbps, ShouldEqual, 1)
			So(profile2.DelayMs, ShouldEqual, 200)
			So(profile2.QueueBytes(), ShouldEqual, 25000)
		})

		Convey("Queue depth should equal the bandwidth-delay product in bytes", func() {
			for _, id := range catalog.IDs() {
				profile, err := catalog.Lookup(id)
				So(err, ShouldBeNil)
				expected := int(profile.BandwidthMbps * 1000000 * profile.DelayMs / 8 / 1000)
				So(profile.QueueBytes(), ShouldEqual, expected)
			}
		})

		Convey("Lookup of unknown profile should fail with ErrNotFound", func() {
			_, err := catalog.Lookup("profile42")
			So(err, ShouldNotBeNil)
			So(errors.Cause(err), ShouldEqual, ErrNotFound)
		})

		Convey("Registration should validate parameters", func() {
			So(catalog.Register(Profile{ID: "custom", BandwidthMbps: 10, DelayMs: 0}), ShouldBeNil)
			So(catalog.Register(Profile{ID: "", BandwidthMbps: 10, DelayMs: 1}), ShouldNotBeNil)
			So(catalog.Register(Profile{ID: "bad", BandwidthMbps: 0, DelayMs: 1}), ShouldNotBeNil)
			So(catalog.Register(Profile{ID: "bad", BandwidthMbps: 10, DelayMs: -1}), ShouldNotBeNil)
		})

		Convey("The ceiling should follow the declared bandwidth", func() {
			profile2, err := catalog.Lookup("profile2")
			So(err, ShouldBeNil)
			So(profile2.CeilingMbps(), ShouldEqual, 1)
		})
	})
}
