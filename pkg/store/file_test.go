package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ccbench/ccbench/pkg/reduction"
)

func TestFileStore(t *testing.T) {
	Convey("With a file store rooted at a temporary directory", t, func() {
		root := t.TempDir()
		store, err := NewFile(root)
		So(err, ShouldBeNil)

		key := Key{Profile: "profile1", Scheme: "cubic"}
		summary := reduction.Summary{
			ProfileID:         "profile1",
			SchemeID:          "cubic",
			AvgThroughputMbps: 42.5,
			AvgRTTMs:          20,
			P95RTTMs:          25,
			LossRate:          0.01,
			LossFormula:       reduction.LossFormulaAggregateRatio,
			Valid:             true,
		}
		series := []reduction.IntervalSample{
			{TimeS: 0, ThroughputMbps: 40, RTTMs: 20, LossFraction: 0.01},
			{TimeS: 1, ThroughputMbps: 45, RTTMs: 20, LossFraction: 0.01},
		}

		Convey("A stored record should round-trip", func() {
			So(store.Put(key, summary, series), ShouldBeNil)

			records, err := store.GetAllForProfile("profile1")
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 1)
			So(records[0].Key, ShouldResemble, key)
			So(records[0].Summary, ShouldResemble, summary)
			So(records[0].Series, ShouldResemble, series)
		})

		Convey("Re-running a trial should overwrite, not duplicate", func() {
			So(store.Put(key, summary, series), ShouldBeNil)

			second := summary
			second.AvgThroughputMbps = 10
			So(store.Put(key, second, series[:1]), ShouldBeNil)

			records, err := store.GetAllForProfile("profile1")
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 1)
			So(records[0].Summary.AvgThroughputMbps, ShouldAlmostEqual, 10)
			So(records[0].Series, ShouldHaveLength, 1)
		})

		Convey("Records should be ordered by scheme", func() {
			for _, scheme := range []string{"vegas", "bbr", "cubic"} {
				s := summary
				s.SchemeID = scheme
				So(store.Put(Key{Profile: "profile1", Scheme: scheme}, s, nil), ShouldBeNil)
			}

			records, err := store.GetAllForProfile("profile1")
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 3)
			So(records[0].Key.Scheme, ShouldEqual, "bbr")
			So(records[1].Key.Scheme, ShouldEqual, "cubic")
			So(records[2].Key.Scheme, ShouldEqual, "vegas")
		})

		Convey("Other profiles' records should not leak into the listing", func() {
			So(store.Put(key, summary, nil), ShouldBeNil)
			So(store.Put(Key{Profile: "profile2", Scheme: "cubic"}, summary, nil), ShouldBeNil)

			records, err := store.GetAllForProfile("profile2")
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 1)
			So(records[0].Key.Profile, ShouldEqual, "profile2")
		})

		Convey("A record without the valid field should read as measured", func() {
			So(store.Put(key, summary, series), ShouldBeNil)

			resultPath := filepath.Join(store.TrialDir(key), "result.json")
			content, err := os.ReadFile(resultPath)
			So(err, ShouldBeNil)
			var fields map[string]interface{}
			So(json.Unmarshal(content, &fields), ShouldBeNil)
			delete(fields, "valid")
			content, err = json.Marshal(fields)
			So(err, ShouldBeNil)
			So(os.WriteFile(resultPath, content, 0644), ShouldBeNil)

			records, err := store.GetAllForProfile("profile1")
			So(err, ShouldBeNil)
			So(records[0].Summary.Valid, ShouldBeTrue)
		})

		Convey("An unreadable summary should yield an invalid record", func() {
			So(store.Put(key, summary, series), ShouldBeNil)
			resultPath := filepath.Join(store.TrialDir(key), "result.json")
			So(os.WriteFile(resultPath, []byte("not json"), 0644), ShouldBeNil)

			records, err := store.GetAllForProfile("profile1")
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 1)
			So(records[0].Summary.Valid, ShouldBeFalse)
		})
	})
}
