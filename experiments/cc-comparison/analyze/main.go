package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/ccbench/ccbench/pkg/conf"
	"github.com/ccbench/ccbench/pkg/profiles"
	"github.com/ccbench/ccbench/pkg/store"
	"github.com/ccbench/ccbench/pkg/utils/errutil"
	"github.com/ccbench/ccbench/pkg/visualization"
)

var (
	profilesFlag  = conf.NewSliceFlag("profiles", "Network profiles to build comparison tables for", "profile1", "profile2")
	dataDirFlag   = conf.NewStringFlag("data_dir", "Directory holding trial records", "ccbench_data")
	outputDirFlag = conf.NewStringFlag("output_dir", "Directory for exported comparison tables (empty means the data directory)", "")
)

func main() {
	conf.SetAppName("cc-comparison-analyze")
	conf.SetHelp("Builds per-profile comparison tables from stored congestion-control trial records.")
	errutil.Check(conf.ParseFlags())
	logrus.SetLevel(conf.LogLevel())

	results := newStore()
	aggregator := visualization.NewAggregator(results, profiles.NewCatalog())

	outputDir := outputDirFlag.Value()
	if outputDir == "" {
		outputDir = dataDirFlag.Value()
	}

	tables := 0
	for _, id := range profilesFlag.Value() {
		table, err := aggregator.BuildComparison(id)
		if err != nil {
			logrus.Errorf("Could not build comparison for profile %q: %v", id, err)
			continue
		}
		if len(table.Rows) == 0 {
			logrus.Warnf("No valid trial records for profile %q", id)
			continue
		}

		visualization.Draw(table)
		path, err := visualization.ExportCSV(table, outputDir)
		if err != nil {
			logrus.Errorf("Could not export comparison for profile %q: %v", id, err)
		} else {
			logrus.Info("Exported ", path)
		}
		tables++
	}

	if tables == 0 {
		logrus.Error("No comparison table could be produced")
		os.Exit(1)
	}
}

// newStore opens the result store selected by flags for reading.
func newStore() store.Store {
	if conf.ResultStore.Value() == "cassandra" {
		cassandra, err := store.NewCassandra(store.CassandraConfigFromFlags())
		errutil.CheckWithContext(err, "Could not connect to Cassandra")
		return cassandra
	}

	file, err := store.NewFile(dataDirFlag.Value())
	errutil.CheckWithContext(err, "Could not open the data directory")
	return file
}
