package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ccbench/ccbench/pkg/reduction"
)

// summaryRecord is the canonical on-disk summary schema. Field names follow
// the external contract consumed by table exporters and chart renderers.
type summaryRecord struct {
	CCAlgorithm   string  `json:"cc_algorithm"`
	Profile       string  `json:"profile"`
	AvgThroughput float64 `json:"avg_throughput"`
	AvgDelay      float64 `json:"avg_delay"`
	P95Delay      float64 `json:"p95_delay"`
	LossRate      float64 `json:"loss_rate"`
	LossFormula   string  `json:"loss_formula"`
	// Valid is a pointer so that records written by producers predating the
	// flag read as measured rather than missing.
	Valid *bool `json:"valid,omitempty"`
}

// File is a Store backed by a directory per key: `<root>/<profile>_<scheme>`
// holding `result.json` and `<scheme>_throughput.csv`.
type File struct {
	root string
}

// NewFile returns a file Store rooted at given data directory.
func NewFile(root string) (*File, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "could not create data directory %q", root)
	}
	return &File{root: root}, nil
}

// Root returns the data directory of the store.
func (f *File) Root() string {
	return f.root
}

// TrialDir returns the directory holding given key's record and raw logs.
func (f *File) TrialDir(key Key) string {
	return filepath.Join(f.root, key.String())
}

// Put persists the record, overwriting any prior record under the same key.
func (f *File) Put(key Key, summary reduction.Summary, series []reduction.IntervalSample) error {
	dir := f.TrialDir(key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "could not create trial directory %q", dir)
	}

	valid := summary.Valid
	record := summaryRecord{
		CCAlgorithm:   summary.SchemeID,
		Profile:       summary.ProfileID,
		AvgThroughput: summary.AvgThroughputMbps,
		AvgDelay:      summary.AvgRTTMs,
		P95Delay:      summary.P95RTTMs,
		LossRate:      summary.LossRate,
		LossFormula:   summary.LossFormula,
		Valid:         &valid,
	}

	content, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return errors.Wrap(err, "could not encode summary record")
	}
	resultPath := filepath.Join(dir, "result.json")
	if err := os.WriteFile(resultPath, content, 0644); err != nil {
		return errors.Wrapf(err, "could not write %q", resultPath)
	}

	seriesPath := filepath.Join(dir, fmt.Sprintf("%s_throughput.csv", key.Scheme))
	if err := writeSeries(seriesPath, series); err != nil {
		return err
	}

	logrus.Debugf("Stored trial record %s", key)
	return nil
}

func writeSeries(path string, series []reduction.IntervalSample) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "could not create %q", path)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"time", "throughput", "delay", "loss"}); err != nil {
		return errors.Wrapf(err, "could not write %q", path)
	}
	for _, sample := range series {
		record := []string{
			formatFloat(sample.TimeS),
			formatFloat(sample.ThroughputMbps),
			formatFloat(sample.RTTMs),
			formatFloat(sample.LossFraction),
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrapf(err, "could not write %q", path)
		}
	}
	writer.Flush()

	return errors.Wrapf(writer.Error(), "could not flush %q", path)
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}

// GetAllForProfile returns records for all trial directories of the profile,
// ordered by scheme. A directory whose summary cannot be read yields an
// invalid record so that aggregation can account for the omission.
func (f *File) GetAllForProfile(profile string) ([]Record, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read data directory %q", f.root)
	}

	prefix := profile + "_"
	var records []Record
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		scheme := strings.TrimPrefix(entry.Name(), prefix)
		records = append(records, f.load(Key{Profile: profile, Scheme: scheme}))
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Key.Scheme < records[j].Key.Scheme
	})

	return records, nil
}

func (f *File) load(key Key) Record {
	record := Record{Key: key}

	dir := f.TrialDir(key)
	content, err := os.ReadFile(filepath.Join(dir, "result.json"))
	if err != nil {
		logrus.Debugf("No summary record for %s: %v", key, err)
		return record
	}

	var stored summaryRecord
	if err := json.Unmarshal(content, &stored); err != nil {
		logrus.Debugf("Unreadable summary record for %s: %v", key, err)
		return record
	}

	record.Summary = reduction.Summary{
		ProfileID:         stored.Profile,
		SchemeID:          stored.CCAlgorithm,
		AvgThroughputMbps: stored.AvgThroughput,
		AvgRTTMs:          stored.AvgDelay,
		P95RTTMs:          stored.P95Delay,
		LossRate:          stored.LossRate,
		LossFormula:       stored.LossFormula,
		Valid:             stored.Valid == nil || *stored.Valid,
	}

	seriesFile, err := os.Open(filepath.Join(dir, fmt.Sprintf("%s_throughput.csv", key.Scheme)))
	if err != nil {
		logrus.Debugf("No series data for %s: %v", key, err)
		return record
	}
	defer seriesFile.Close()

	raw, err := reduction.ParseSeriesCSV(seriesFile)
	if err != nil {
		logrus.Debugf("Unreadable series data for %s: %v", key, err)
		return record
	}
	for _, row := range raw.Table {
		record.Series = append(record.Series, reduction.IntervalSample{
			TimeS:          row.TimeS,
			ThroughputMbps: row.ThroughputMbps,
			RTTMs:          row.DelayMs,
			LossFraction:   row.LossFraction,
		})
	}

	return record
}
