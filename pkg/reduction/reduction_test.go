package reduction

import (
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/ccbench/ccbench/pkg/profiles"
)

var testProfile = profiles.Profile{ID: "profile1", BandwidthMbps: 50, DelayMs: 10}

func TestReduce(t *testing.T) {
	Convey("While reducing interval-capture records", t, func() {
		Convey("One second of 125000 bytes should be 1 Mbps", func() {
			raw := Raw{Intervals: []Interval{{StartS: 0, Seconds: 1, Bytes: 125000}}}

			samples, summary := Reduce(raw, "cubic", testProfile)
			So(samples, ShouldHaveLength, 1)
			So(samples[0].ThroughputMbps, ShouldAlmostEqual, 1.0)
			So(summary.AvgThroughputMbps, ShouldAlmostEqual, 1.0)
			So(summary.Valid, ShouldBeTrue)
		})

		Convey("RTT should default to the doubled profile delay", func() {
			raw := Raw{Intervals: []Interval{{StartS: 0, Seconds: 1, Bytes: 1500}}}

			samples, summary := Reduce(raw, "cubic", testProfile)
			So(samples[0].RTTMs, ShouldAlmostEqual, 20)
			So(summary.AvgRTTMs, ShouldAlmostEqual, 20)
		})

		Convey("A direct delay value in the record should win over the profile", func() {
			raw := Raw{Intervals: []Interval{{StartS: 0, Seconds: 1, Bytes: 1500, DelayMs: 33}}}

			samples, _ := Reduce(raw, "cubic", testProfile)
			So(samples[0].RTTMs, ShouldAlmostEqual, 33)
		})

		Convey("Loss should be approximated from retransmits against estimated packets", func() {
			// 15000 bytes is 10 assumed-size packets; 1 retransmit is 10% loss.
			raw := Raw{Intervals: []Interval{{StartS: 0, Seconds: 1, Bytes: 15000, Retransmits: 1}}}

			samples, summary := Reduce(raw, "cubic", testProfile)
			So(samples[0].LossFraction, ShouldAlmostEqual, 0.1)
			So(summary.LossRate, ShouldAlmostEqual, 0.1)
			So(summary.LossFormula, ShouldEqual, LossFormulaAggregateRatio)
		})

		Convey("Zero-length intervals should reduce to zero throughput and loss", func() {
			raw := Raw{Intervals: []Interval{{StartS: 0, Seconds: 0, Bytes: 0, Retransmits: 0}}}

			samples, summary := Reduce(raw, "cubic", testProfile)
			So(samples[0].ThroughputMbps, ShouldEqual, 0)
			So(samples[0].LossFraction, ShouldEqual, 0)
			So(summary.LossRate, ShouldEqual, 0)
		})

		Convey("Samples should be ordered by timestamp", func() {
			raw := Raw{Intervals: []Interval{
				{StartS: 2, Seconds: 1, Bytes: 1500},
				{StartS: 0, Seconds: 1, Bytes: 1500},
				{StartS: 1, Seconds: 1, Bytes: 1500},
			}}

			samples, _ := Reduce(raw, "cubic", testProfile)
			So(samples[0].TimeS, ShouldEqual, 0)
			So(samples[1].TimeS, ShouldEqual, 1)
			So(samples[2].TimeS, ShouldEqual, 2)
		})
	})

	Convey("While reducing a direct tabular series", t, func() {
		raw := Raw{Table: []Row{
			{TimeS: 0, ThroughputMbps: 10, DelayMs: 20, LossFraction: 0.01},
			{TimeS: 1, ThroughputMbps: 30, DelayMs: 40, LossFraction: 0.03},
		}}

		samples, summary := Reduce(raw, "bbr", testProfile)

		Convey("Samples should carry the direct measurements", func() {
			So(samples, ShouldHaveLength, 2)
			So(samples[1].ThroughputMbps, ShouldAlmostEqual, 30)
			So(samples[1].RTTMs, ShouldAlmostEqual, 40)
		})

		Convey("Aggregates should be per-interval means", func() {
			So(summary.AvgThroughputMbps, ShouldAlmostEqual, 20)
			So(summary.AvgRTTMs, ShouldAlmostEqual, 30)
			So(summary.LossRate, ShouldAlmostEqual, 0.02)
			So(summary.LossFormula, ShouldEqual, LossFormulaPerIntervalMean)
		})
	})

	Convey("While reducing empty raw input", t, func() {
		samples, summary := Reduce(Raw{}, "cubic", testProfile)

		Convey("The result should be a defined empty series and all-zero summary", func() {
			So(samples, ShouldBeEmpty)
			So(summary.AvgThroughputMbps, ShouldEqual, 0)
			So(summary.AvgRTTMs, ShouldEqual, 0)
			So(summary.P95RTTMs, ShouldEqual, 0)
			So(summary.LossRate, ShouldEqual, 0)
			So(summary.LossFormula, ShouldEqual, LossFormulaNone)
			So(summary.Valid, ShouldBeTrue)
		})
	})

	Convey("Reduction should be idempotent", t, func() {
		raw := Raw{Intervals: []Interval{
			{StartS: 0, Seconds: 1, Bytes: 125000, Retransmits: 2},
			{StartS: 1, Seconds: 1, Bytes: 250000, Retransmits: 0},
		}}

		firstSamples, firstSummary := Reduce(raw, "cubic", testProfile)
		secondSamples, secondSummary := Reduce(raw, "cubic", testProfile)

		So(secondSamples, ShouldResemble, firstSamples)
		So(secondSummary, ShouldResemble, firstSummary)
	})
}

func TestPercentile(t *testing.T) {
	Convey("While computing percentiles", t, func() {
		Convey("Of an empty series it should be zero", func() {
			So(percentile(nil, 95), ShouldEqual, 0)
		})

		Convey("Of a single value it should be that value", func() {
			So(percentile([]float64{42}, 95), ShouldEqual, 42)
		})

		Convey("It should interpolate between closest ranks", func() {
			values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
			// rank = 0.95 * 9 = 8.55 between 9 and 10.
			So(percentile(values, 95), ShouldAlmostEqual, 9.55)
			So(percentile(values, 50), ShouldAlmostEqual, 5.5)
			So(percentile(values, 100), ShouldEqual, 10)
		})
	})
}

func TestParseGeneratorJSON(t *testing.T) {
	Convey("While parsing generator JSON reports", t, func() {
		Convey("Interval sums should become raw interval records", func() {
			report := `{"intervals": [
				{"sum": {"start": 0, "seconds": 1, "bytes": 125000, "retransmits": 3}},
				{"sum": {"start": 1, "seconds": 1, "bytes": 250000}}
			]}`

			raw, err := ParseGeneratorJSON(strings.NewReader(report))
			So(err, ShouldBeNil)
			So(raw.Intervals, ShouldHaveLength, 2)
			So(raw.Intervals[0].Retransmits, ShouldEqual, 3)
			// Absent fields default to zero.
			So(raw.Intervals[1].Retransmits, ShouldEqual, 0)
		})

		Convey("A report without intervals should yield empty raw input", func() {
			raw, err := ParseGeneratorJSON(strings.NewReader(`{"start": {}}`))
			So(err, ShouldBeNil)
			So(raw.Intervals, ShouldBeEmpty)
		})

		Convey("Malformed JSON should be rejected", func() {
			_, err := ParseGeneratorJSON(strings.NewReader(`{"intervals": [`))
			So(err, ShouldNotBeNil)
		})
	})
}

func TestParseSeriesCSV(t *testing.T) {
	Convey("While parsing tabular measurement series", t, func() {
		Convey("Header and rows should be decoded", func() {
			series := "time,throughput,delay,loss\n0,10,20,0.01\n1,30,40,0.03\n"

			raw, err := ParseSeriesCSV(strings.NewReader(series))
			So(err, ShouldBeNil)
			So(raw.Table, ShouldHaveLength, 2)
			So(raw.Table[1].ThroughputMbps, ShouldAlmostEqual, 30)
		})

		Convey("An unexpected header should be rejected", func() {
			_, err := ParseSeriesCSV(strings.NewReader("a,b,c,d\n0,1,2,3\n"))
			So(err, ShouldNotBeNil)
		})

		Convey("Non-numeric fields should be rejected", func() {
			_, err := ParseSeriesCSV(strings.NewReader("time,throughput,delay,loss\n0,x,2,3\n"))
			So(err, ShouldNotBeNil)
		})

		Convey("Empty input should yield empty raw input", func() {
			raw, err := ParseSeriesCSV(strings.NewReader(""))
			So(err, ShouldBeNil)
			So(raw.Table, ShouldBeEmpty)
		})
	})
}
