// Package reduction normalizes raw trial output into the canonical
// interval-sample series and summary every downstream consumer relies on.
// Two raw shapes are accepted: interval-capture records from the traffic
// generator and a direct tabular series as produced by synthetic data
// sources. Nothing else in the repository computes samples by hand.
package reduction

import (
	"math"
	"sort"

	"github.com/ccbench/ccbench/pkg/profiles"
)

// AssumedPacketSizeBytes is the packet size used to estimate the number of
// packets sent from transferred bytes when approximating loss from
// retransmission counts.
const AssumedPacketSizeBytes = 1500

// Loss-rate formula markers recorded in summaries for traceability.
const (
	// LossFormulaPerIntervalMean means the loss rate is the mean of the
	// per-interval loss fractions carried directly by the raw series.
	LossFormulaPerIntervalMean = "per-interval-mean"
	// LossFormulaAggregateRatio means the loss rate is total retransmits
	// over total estimated packets for the whole trial.
	LossFormulaAggregateRatio = "aggregate-ratio"
	// LossFormulaNone marks a summary reduced from empty raw input.
	LossFormulaNone = "none"
)

// IntervalSample is one time-bucketed measurement within a trial. Time is in
// seconds from trial start, throughput in Mbps, RTT in ms, loss a fraction
// in [0,1].
type IntervalSample struct {
	TimeS          float64
	ThroughputMbps float64
	RTTMs          float64
	LossFraction   float64
}

// Summary holds the aggregate statistics of one trial, derived solely from
// its interval-sample sequence.
type Summary struct {
	ProfileID         string
	SchemeID          string
	AvgThroughputMbps float64
	AvgRTTMs          float64
	P95RTTMs          float64
	LossRate          float64
	// LossFormula records which loss-rate formula produced LossRate.
	LossFormula string
	// Valid distinguishes a measured (possibly all-zero) summary from a
	// zero-substituted one stored for a failed trial.
	Valid bool
}

// Interval is a single interval-capture record from the traffic generator.
// DelayMs is optional; zero means the generator reported no delay and the
// profile's configured delay is used instead.
type Interval struct {
	StartS      float64
	Seconds     float64
	Bytes       float64
	Retransmits float64
	DelayMs     float64
}

// Row is one record of a direct tabular measurement series.
type Row struct {
	TimeS          float64
	ThroughputMbps float64
	DelayMs        float64
	LossFraction   float64
}

// Raw is trial output in one of the two accepted shapes. When both are
// present the tabular series wins, as it already carries direct
// measurements.
type Raw struct {
	Intervals []Interval
	Table     []Row
}

// Reduce converts raw trial output into the ordered canonical sample series
// and the trial summary. Empty raw input is a defined result: an empty
// series and an all-zero summary, never an error.
func Reduce(raw Raw, scheme string, profile profiles.Profile) ([]IntervalSample, Summary) {
	summary := Summary{
		ProfileID:   profile.ID,
		SchemeID:    scheme,
		LossFormula: LossFormulaNone,
		Valid:       true,
	}

	if len(raw.Table) > 0 {
		return reduceTable(raw.Table, summary)
	}
	if len(raw.Intervals) > 0 {
		return reduceIntervals(raw.Intervals, profile, summary)
	}

	return []IntervalSample{}, summary
}

// reduceIntervals derives samples from generator interval records:
// throughput from transferred bytes, loss approximated from retransmits
// against an estimated packet count, RTT as the doubled one-way profile
// delay unless the record carries a direct delay.
func reduceIntervals(intervals []Interval, profile profiles.Profile, summary Summary) ([]IntervalSample, Summary) {
	samples := make([]IntervalSample, 0, len(intervals))

	var totalRetransmits, totalEstimatedPackets float64
	for _, interval := range intervals {
		var throughput float64
		if interval.Seconds > 0 {
			throughput = interval.Bytes * 8 / (interval.Seconds * 1000000)
		}

		var estimatedPackets, loss float64
		if interval.Bytes > 0 {
			estimatedPackets = interval.Bytes / AssumedPacketSizeBytes
		}
		if estimatedPackets > 0 {
			loss = interval.Retransmits / estimatedPackets
		}

		rtt := 2 * profile.DelayMs
		if interval.DelayMs > 0 {
			rtt = interval.DelayMs
		}

		samples = append(samples, IntervalSample{
			TimeS:          interval.StartS,
			ThroughputMbps: throughput,
			RTTMs:          rtt,
			LossFraction:   loss,
		})

		totalRetransmits += interval.Retransmits
		totalEstimatedPackets += estimatedPackets
	}

	orderByTime(samples)

	summary.AvgThroughputMbps = mean(throughputs(samples))
	summary.AvgRTTMs = mean(rtts(samples))
	summary.P95RTTMs = percentile(rtts(samples), 95)
	if totalEstimatedPackets > 0 {
		summary.LossRate = totalRetransmits / totalEstimatedPackets
	}
	summary.LossFormula = LossFormulaAggregateRatio

	return samples, summary
}

// reduceTable adopts a direct tabular series as the sample sequence.
func reduceTable(rows []Row, summary Summary) ([]IntervalSample, Summary) {
	samples := make([]IntervalSample, 0, len(rows))
	for _, row := range rows {
		samples = append(samples, IntervalSample{
			TimeS:          row.TimeS,
			ThroughputMbps: row.ThroughputMbps,
			RTTMs:          row.DelayMs,
			LossFraction:   row.LossFraction,
		})
	}

	orderByTime(samples)

	summary.AvgThroughputMbps = mean(throughputs(samples))
	summary.AvgRTTMs = mean(rtts(samples))
	summary.P95RTTMs = percentile(rtts(samples), 95)
	summary.LossRate = mean(losses(samples))
	summary.LossFormula = LossFormulaPerIntervalMean

	return samples, summary
}

func orderByTime(samples []IntervalSample) {
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].TimeS < samples[j].TimeS
	})
}

func throughputs(samples []IntervalSample) []float64 {
	values := make([]float64, len(samples))
	for i, sample := range samples {
		values[i] = sample.ThroughputMbps
	}
	return values
}

func rtts(samples []IntervalSample) []float64 {
	values := make([]float64, len(samples))
	for i, sample := range samples {
		values[i] = sample.RTTMs
	}
	return values
}

func losses(samples []IntervalSample) []float64 {
	values := make([]float64, len(samples))
	for i, sample := range samples {
		values[i] = sample.LossFraction
	}
	return values
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, value := range values {
		sum += value
	}
	return sum / float64(len(values))
}

// percentile computes the p-th percentile with linear interpolation between
// closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	fraction := rank - float64(lower)

	return sorted[lower] + fraction*(sorted[lower+1]-sorted[lower])
}
