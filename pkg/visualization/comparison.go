// Package visualization builds and renders per-profile comparison tables from
// stored trial records. It is read-only: display normalization never rewrites
// stored raw data.
package visualization

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ccbench/ccbench/pkg/profiles"
	"github.com/ccbench/ccbench/pkg/store"
)

// ComparisonRow is one scheme's display-normalized entry of a comparison
// table.
type ComparisonRow struct {
	Scheme string
	// DisplayThroughputMbps is the stored average throughput clamped to the
	// profile's declared ceiling, suppressing unrealistic overshoot from
	// uncontrolled loopback-style measurement.
	DisplayThroughputMbps float64
	AvgRTTMs              float64
	P95RTTMs              float64
	LossRate              float64
}

// ComparisonTable is the per-profile comparison of all measured schemes,
// ordered by scheme.
type ComparisonTable struct {
	Profile profiles.Profile
	Rows    []ComparisonRow
	// Omitted counts stored records lacking a valid summary, silently left
	// out of the rows.
	Omitted int
}

// Aggregator builds comparison tables from a result store.
type Aggregator struct {
	results store.Store
	catalog *profiles.Catalog
}

// NewAggregator returns an Aggregator reading given store against the
// profile catalog.
func NewAggregator(results store.Store, catalog *profiles.Catalog) *Aggregator {
	return &Aggregator{results: results, catalog: catalog}
}

// BuildComparison assembles the comparison table for the profile. Records
// without a valid summary are omitted and counted; the stored records are
// never mutated.
func (a *Aggregator) BuildComparison(profileID string) (ComparisonTable, error) {
	profile, err := a.catalog.Lookup(profileID)
	if err != nil {
		return ComparisonTable{}, err
	}

	records, err := a.results.GetAllForProfile(profileID)
	if err != nil {
		return ComparisonTable{}, errors.Wrapf(err, "could not read records for profile %q", profileID)
	}

	table := ComparisonTable{Profile: profile}
	for _, record := range records {
		if !record.Summary.Valid {
			table.Omitted++
			continue
		}
		table.Rows = append(table.Rows, ComparisonRow{
			Scheme:                record.Key.Scheme,
			DisplayThroughputMbps: math.Min(record.Summary.AvgThroughputMbps, profile.CeilingMbps()),
			AvgRTTMs:              record.Summary.AvgRTTMs,
			P95RTTMs:              record.Summary.P95RTTMs,
			LossRate:              record.Summary.LossRate,
		})
	}

	if table.Omitted > 0 {
		logrus.Warnf("Omitted %d invalid trial record(s) for profile %q", table.Omitted, profileID)
	}

	return table, nil
}

var comparisonHeaders = []string{"scheme", "throughput [Mbps]", "avg RTT [ms]", "p95 RTT [ms]", "loss rate"}

func comparisonData(table ComparisonTable) [][]string {
	var data [][]string
	for _, row := range table.Rows {
		data = append(data, []string{
			row.Scheme,
			fmt.Sprintf("%.2f", row.DisplayThroughputMbps),
			fmt.Sprintf("%.2f", row.AvgRTTMs),
			fmt.Sprintf("%.2f", row.P95RTTMs),
			fmt.Sprintf("%.4f", row.LossRate),
		})
	}
	return data
}

// Draw renders the comparison table on stdout.
func Draw(table ComparisonTable) {
	fmt.Printf("\nProfile %s: %g Mbps, %g ms delay\n",
		table.Profile.ID, table.Profile.BandwidthMbps, table.Profile.DelayMs)
	DrawTable(NewTable(comparisonHeaders, comparisonData(table)))
}

// ExportCSV writes the comparison table to `<profile>_comparison.csv` in the
// output directory and returns the file path.
func ExportCSV(table ComparisonTable, outputDir string) (string, error) {
	path := filepath.Join(outputDir, fmt.Sprintf("%s_comparison.csv", table.Profile.ID))
	file, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "could not create %q", path)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(comparisonHeaders); err != nil {
		return "", errors.Wrapf(err, "could not write %q", path)
	}
	for _, row := range comparisonData(table) {
		if err := writer.Write(row); err != nil {
			return "", errors.Wrapf(err, "could not write %q", path)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", errors.Wrapf(err, "could not flush %q", path)
	}

	return path, nil
}
