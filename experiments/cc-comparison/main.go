package main

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ccbench/ccbench/pkg/conf"
	"github.com/ccbench/ccbench/pkg/emulation"
	"github.com/ccbench/ccbench/pkg/executor"
	"github.com/ccbench/ccbench/pkg/experiment"
	"github.com/ccbench/ccbench/pkg/profiles"
	"github.com/ccbench/ccbench/pkg/store"
	"github.com/ccbench/ccbench/pkg/utils/errutil"
	"github.com/ccbench/ccbench/pkg/utils/netutil"
	"github.com/ccbench/ccbench/pkg/utils/uuid"
)

var (
	schemesFlag  = conf.NewSliceFlag("schemes", "Congestion-control schemes to evaluate", "cubic", "bbr")
	profilesFlag = conf.NewSliceFlag("profiles", "Network profiles to evaluate the schemes under", "profile1", "profile2")
	runtimeFlag  = conf.NewDurationFlag("runtime", "Traffic generation duration of one trial", 10*time.Second)
	timeoutFlag  = conf.NewDurationFlag("trial_timeout", "Overall bound on one trial's capture (0 means runtime plus one minute)", 0)
	parallelFlag = conf.NewIntFlag("parallel", "Number of trials running concurrently", 1)
	ifaceFlag    = conf.NewStringFlag("interface", "Network interface carrying the emulated traffic (empty means the default-route interface)", "")
	portFlag     = conf.NewIntFlag("generator_port", "Traffic generator server port", 5201)
	dataDirFlag  = conf.NewStringFlag("data_dir", "Directory for trial records and raw logs", "ccbench_data")
)

func main() {
	conf.SetAppName("cc-comparison")
	conf.SetHelp("Runs congestion-control trials over a scheme-by-profile grid under emulated network conditions.")
	errutil.Check(conf.ParseFlags())
	logrus.SetLevel(conf.LogLevel())

	experimentID := uuid.New()
	logrus.Info("Experiment ID: ", experimentID)

	iface := ifaceFlag.Value()
	if iface == "" {
		var err error
		iface, err = netutil.DefaultInterface()
		errutil.CheckWithContext(err, "Could not discover the default network interface; pass --interface")
	}
	logrus.Info("Using network interface ", iface)

	results := newStore()

	catalog := profiles.NewCatalog()
	var profileList []profiles.Profile
	for _, id := range profilesFlag.Value() {
		profile, err := catalog.Lookup(id)
		errutil.CheckWithContext(err, "Could not resolve profile")
		profileList = append(profileList, profile)
	}

	local := executor.NewLocalWithOutputDir(dataDirFlag.Value())
	runner := experiment.NewRunner(
		local,
		emulation.NewTC(local),
		emulation.NewSysctl(local),
		emulation.NewScopeRegistry(),
		results,
		experiment.RunnerConfig{
			Interface: iface,
			Runtime:   runtimeFlag.Value(),
			Timeout:   timeoutFlag.Value(),
			Port:      portFlag.Value(),
		},
	)

	scheduler := experiment.NewScheduler(runner)
	pairs := experiment.Grid(schemesFlag.Value(), profileList)
	trialResults, err := scheduler.RunAll(pairs, parallelFlag.Value())

	for _, result := range trialResults {
		if result.State == experiment.Completed {
			logrus.Infof("%s: %s", result.Key, result.State)
		} else {
			logrus.Errorf("%s: %s (%v)", result.Key, result.State, result.Err)
		}
	}
	if err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
	logrus.Infof("All %d trials completed", len(trialResults))
}

// newStore builds the result store selected by flags: the file backend by
// default, Cassandra when requested, either one wrapped with the InfluxDB
// interval-series uploader when an address is configured.
func newStore() store.Store {
	var results store.Store
	switch backend := conf.ResultStore.Value(); backend {
	case "cassandra":
		cassandra, err := store.NewCassandra(store.CassandraConfigFromFlags())
		errutil.CheckWithContext(err, "Could not connect to Cassandra")
		results = cassandra
	case "file":
		file, err := store.NewFile(dataDirFlag.Value())
		errutil.CheckWithContext(err, "Could not prepare the data directory")
		results = file
	default:
		logrus.Fatalf("Unknown result store backend %q", backend)
	}

	if conf.InfluxDBAddress.Value() != "" {
		influx, err := store.NewInfluxDB(results, store.InfluxDBConfigFromFlags())
		errutil.CheckWithContext(err, "Could not connect to InfluxDB")
		results = influx
	}

	return results
}
