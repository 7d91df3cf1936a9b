package reduction

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

// generatorReport mirrors the JSON report of the traffic generator. Only the
// interval section is consumed; fields absent from a record default to zero.
type generatorReport struct {
	Intervals []struct {
		Sum struct {
			Start       float64 `json:"start"`
			Seconds     float64 `json:"seconds"`
			Bytes       float64 `json:"bytes"`
			Retransmits float64 `json:"retransmits"`
		} `json:"sum"`
	} `json:"intervals"`
}

// ParseGeneratorJSON decodes the traffic generator's JSON report into raw
// interval-capture records.
func ParseGeneratorJSON(r io.Reader) (Raw, error) {
	var report generatorReport
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return Raw{}, errors.Wrap(err, "could not decode generator report")
	}

	raw := Raw{}
	for _, interval := range report.Intervals {
		raw.Intervals = append(raw.Intervals, Interval{
			StartS:      interval.Sum.Start,
			Seconds:     interval.Sum.Seconds,
			Bytes:       interval.Sum.Bytes,
			Retransmits: interval.Sum.Retransmits,
		})
	}

	return raw, nil
}

// seriesHeader is the expected header of a tabular measurement series.
var seriesHeader = []string{"time", "throughput", "delay", "loss"}

// ParseSeriesCSV decodes a direct tabular measurement series with a
// `time,throughput,delay,loss` header.
func ParseSeriesCSV(r io.Reader) (Raw, error) {
	reader := csv.NewReader(r)

	records, err := reader.ReadAll()
	if err != nil {
		return Raw{}, errors.Wrap(err, "could not read measurement series")
	}
	if len(records) == 0 {
		return Raw{}, nil
	}

	header := records[0]
	if len(header) != len(seriesHeader) {
		return Raw{}, errors.Errorf("unexpected series header %v", header)
	}
	for i, name := range seriesHeader {
		if header[i] != name {
			return Raw{}, errors.Errorf("unexpected series header %v", header)
		}
	}

	raw := Raw{}
	for _, record := range records[1:] {
		row := Row{}
		fields := []*float64{&row.TimeS, &row.ThroughputMbps, &row.DelayMs, &row.LossFraction}
		for i, field := range fields {
			value, err := strconv.ParseFloat(record[i], 64)
			if err != nil {
				return Raw{}, errors.Wrapf(err, "could not parse series field %q", seriesHeader[i])
			}
			*field = value
		}
		raw.Table = append(raw.Table, row)
	}

	return raw, nil
}
