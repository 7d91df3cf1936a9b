package store

import (
	"time"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"github.com/ccbench/ccbench/pkg/conf"
	"github.com/ccbench/ccbench/pkg/reduction"
)

// CassandraConfig encodes the settings for connecting to the database.
type CassandraConfig struct {
	Address           string
	Username          string
	Password          string
	ConnectionTimeout time.Duration
}

// DefaultCassandraConfig returns a setup which uses a Cassandra cluster
// running on localhost without any authentication.
func DefaultCassandraConfig() CassandraConfig {
	return CassandraConfig{
		Address: "127.0.0.1",
	}
}

// CassandraConfigFromFlags applies the Cassandra settings from the command
// line flags and environment variables.
func CassandraConfigFromFlags() CassandraConfig {
	return CassandraConfig{
		Address:           conf.CassandraAddress.Value(),
		Username:          conf.CassandraUsername.Value(),
		Password:          conf.CassandraPassword.Value(),
		ConnectionTimeout: conf.CassandraConnectionTimeout.Value(),
	}
}

// Cassandra is a Store keeping canonical trial records in a Cassandra
// cluster. Summaries live in `ccbench.trials` keyed by (profile, scheme),
// interval samples in `ccbench.samples` clustered by time.
type Cassandra struct {
	config  CassandraConfig
	session *gocql.Session
}

// NewCassandra connects to the cluster and prepares the keyspace and tables.
func NewCassandra(config CassandraConfig) (*Cassandra, error) {
	cluster := gocql.NewCluster(config.Address)

	cluster.Consistency = gocql.LocalOne
	cluster.SerialConsistency = gocql.LocalSerial
	cluster.ProtoVersion = 4
	cluster.Timeout = config.ConnectionTimeout

	if config.Username != "" && config.Password != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: config.Username,
			Password: config.Password,
		}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Cassandra session")
	}

	store := &Cassandra{config: config, session: session}
	if err := store.prepareSchema(); err != nil {
		session.Close()
		return nil, err
	}

	return store, nil
}

func (c *Cassandra) prepareSchema() error {
	statements := []string{
		"CREATE KEYSPACE IF NOT EXISTS ccbench WITH REPLICATION = {'class': 'SimpleStrategy', 'replication_factor': 1};",
		"CREATE TABLE IF NOT EXISTS ccbench.trials (profile text, scheme text, avg_throughput double, avg_delay double, p95_delay double, loss_rate double, loss_formula text, valid boolean, PRIMARY KEY ((profile), scheme)) WITH CLUSTERING ORDER BY (scheme ASC);",
		"CREATE TABLE IF NOT EXISTS ccbench.samples (profile text, scheme text, time double, throughput double, delay double, loss double, PRIMARY KEY ((profile, scheme), time));",
	}

	for _, statement := range statements {
		if err := c.session.Query(statement).Exec(); err != nil {
			return errors.Wrapf(err, "could not execute %q", statement)
		}
		// Schema consistency check is ignored by CREATE queries, so a plain
		// SELECT is used to wait for schema agreement.
		if err := c.session.Query("SELECT * FROM system_schema.keyspaces;").Exec(); err != nil {
			return errors.Wrap(err, "could not verify schema agreement")
		}
	}

	return nil
}

// Close shuts down the underlying session.
func (c *Cassandra) Close() {
	c.session.Close()
}

// Put persists the record, overwriting any prior record under the same key.
func (c *Cassandra) Put(key Key, summary reduction.Summary, series []reduction.IntervalSample) error {
	err := c.session.Query(
		`INSERT INTO ccbench.trials (profile, scheme, avg_throughput, avg_delay, p95_delay, loss_rate, loss_formula, valid) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		key.Profile, key.Scheme,
		summary.AvgThroughputMbps, summary.AvgRTTMs, summary.P95RTTMs,
		summary.LossRate, summary.LossFormula, summary.Valid,
	).Exec()
	if err != nil {
		return errors.Wrapf(err, "could not store summary for %s", key)
	}

	// Stale samples of a longer prior run must not survive an overwrite.
	err = c.session.Query(
		`DELETE FROM ccbench.samples WHERE profile = ? AND scheme = ?`,
		key.Profile, key.Scheme,
	).Exec()
	if err != nil {
		return errors.Wrapf(err, "could not clear samples for %s", key)
	}

	for _, sample := range series {
		err = c.session.Query(
			`INSERT INTO ccbench.samples (profile, scheme, time, throughput, delay, loss) VALUES (?, ?, ?, ?, ?, ?)`,
			key.Profile, key.Scheme,
			sample.TimeS, sample.ThroughputMbps, sample.RTTMs, sample.LossFraction,
		).Exec()
		if err != nil {
			return errors.Wrapf(err, "could not store sample for %s", key)
		}
	}

	return nil
}

// GetAllForProfile returns records for all schemes of the profile, ordered by
// scheme through the clustering order of the trials table.
func (c *Cassandra) GetAllForProfile(profile string) ([]Record, error) {
	iter := c.session.Query(
		`SELECT scheme, avg_throughput, avg_delay, p95_delay, loss_rate, loss_formula, valid FROM ccbench.trials WHERE profile = ?`,
		profile,
	).Iter()

	var records []Record
	var scheme, lossFormula string
	var avgThroughput, avgDelay, p95Delay, lossRate float64
	var valid bool
	for iter.Scan(&scheme, &avgThroughput, &avgDelay, &p95Delay, &lossRate, &lossFormula, &valid) {
		records = append(records, Record{
			Key: Key{Profile: profile, Scheme: scheme},
			Summary: reduction.Summary{
				ProfileID:         profile,
				SchemeID:          scheme,
				AvgThroughputMbps: avgThroughput,
				AvgRTTMs:          avgDelay,
				P95RTTMs:          p95Delay,
				LossRate:          lossRate,
				LossFormula:       lossFormula,
				Valid:             valid,
			},
		})
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrapf(err, "could not read summaries for profile %q", profile)
	}

	for i := range records {
		series, err := c.getSeries(records[i].Key)
		if err != nil {
			return nil, err
		}
		records[i].Series = series
	}

	return records, nil
}

func (c *Cassandra) getSeries(key Key) ([]reduction.IntervalSample, error) {
	iter := c.session.Query(
		`SELECT time, throughput, delay, loss FROM ccbench.samples WHERE profile = ? AND scheme = ?`,
		key.Profile, key.Scheme,
	).Iter()

	var series []reduction.IntervalSample
	var timeS, throughput, delay, loss float64
	for iter.Scan(&timeS, &throughput, &delay, &loss) {
		series = append(series, reduction.IntervalSample{
			TimeS:          timeS,
			ThroughputMbps: throughput,
			RTTMs:          delay,
			LossFraction:   loss,
		})
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrapf(err, "could not read samples for %s", key)
	}

	return series, nil
}
