package store

import (
	"fmt"
	"time"

	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ccbench/ccbench/pkg/conf"
	"github.com/ccbench/ccbench/pkg/reduction"
)

const influxSeriesMeasurement = "interval_samples"

// InfluxDBConfig holds the connection settings for InfluxDB.
type InfluxDBConfig struct {
	httpConfig client.HTTPConfig
	dbName     string
}

// InfluxDBConfigFromFlags applies the InfluxDB settings from the command line
// flags and environment variables.
func InfluxDBConfigFromFlags() InfluxDBConfig {
	return InfluxDBConfig{
		dbName: conf.InfluxDBName.Value(),
		httpConfig: client.HTTPConfig{
			Addr:               fmt.Sprintf("http://%s:%d", conf.InfluxDBAddress.Value(), conf.InfluxDBPort.Value()),
			Username:           conf.InfluxDBUsername.Value(),
			Password:           conf.InfluxDBPassword.Value(),
			InsecureSkipVerify: conf.InfluxDBInsecureSkipVerify.Value(),
		},
	}
}

// InfluxDB is a Store decorator which, besides delegating persistence to the
// wrapped Store, uploads the interval samples of each trial as time-series
// points for dashboarding.
type InfluxDB struct {
	inner   Store
	session client.Client
	config  InfluxDBConfig
}

// NewInfluxDB wraps the inner store with an interval-series uploader.
func NewInfluxDB(inner Store, config InfluxDBConfig) (*InfluxDB, error) {
	session, err := client.NewHTTPClient(config.httpConfig)
	if err != nil {
		return nil, errors.Wrap(err, "could not create InfluxDB client")
	}

	store := &InfluxDB{inner: inner, session: session, config: config}

	response, err := session.Query(client.Query{
		Command: fmt.Sprintf("CREATE DATABASE %s", config.dbName),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not create InfluxDB database %q", config.dbName)
	}
	if response.Error() != nil {
		return nil, errors.Wrapf(response.Error(), "could not create InfluxDB database %q", config.dbName)
	}

	return store, nil
}

// Put delegates persistence to the wrapped store and then uploads the
// interval samples. An upload failure does not fail the trial; the canonical
// record already exists in the wrapped store.
func (i *InfluxDB) Put(key Key, summary reduction.Summary, series []reduction.IntervalSample) error {
	if err := i.inner.Put(key, summary, series); err != nil {
		return err
	}

	if err := i.upload(key, series); err != nil {
		logrus.Errorf("Interval series upload for %s failed: %v", key, err)
	}

	return nil
}

func (i *InfluxDB) upload(key Key, series []reduction.IntervalSample) error {
	batchPoints, err := client.NewBatchPoints(client.BatchPointsConfig{Database: i.config.dbName})
	if err != nil {
		return errors.Wrap(err, "could not create batch points")
	}

	tags := map[string]string{
		"profile":      key.Profile,
		"cc_algorithm": key.Scheme,
	}

	base := time.Now()
	for _, sample := range series {
		fields := map[string]interface{}{
			"throughput": sample.ThroughputMbps,
			"delay":      sample.RTTMs,
			"loss":       sample.LossFraction,
		}
		timestamp := base.Add(time.Duration(sample.TimeS * float64(time.Second)))
		point, err := client.NewPoint(influxSeriesMeasurement, tags, fields, timestamp)
		if err != nil {
			return errors.Wrap(err, "could not create point")
		}
		batchPoints.AddPoint(point)
	}

	return errors.Wrap(i.session.Write(batchPoints), "could not write batch points")
}

// GetAllForProfile delegates to the wrapped store.
func (i *InfluxDB) GetAllForProfile(profile string) ([]Record, error) {
	return i.inner.GetAllForProfile(profile)
}

// Close shuts down the HTTP client. The wrapped store is left to its owner.
func (i *InfluxDB) Close() error {
	return i.session.Close()
}
