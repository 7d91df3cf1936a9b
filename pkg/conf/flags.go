package conf

// ResultStore represents backend selection flag for trial results: file or cassandra.
var ResultStore = NewStringFlag("result_store", "Backend for canonical trial results: file or cassandra", "file")

// CassandraAddress represents cassandra address flag.
var CassandraAddress = NewStringFlag("cassandra_addr", "Address of Cassandra DB endpoint", "127.0.0.1")

// CassandraUsername holds the user name which will be presented when connecting to the cluster.
var CassandraUsername = NewStringFlag("cassandra_username", "The user name which will be presented when connecting to the cluster", "")

// CassandraPassword holds the password which will be presented when connecting to the cluster.
var CassandraPassword = NewStringFlag("cassandra_password", "The password which will be presented when connecting to the cluster", "")

// CassandraConnectionTimeout encodes the internal connection timeout for the publisher.
var CassandraConnectionTimeout = NewDurationFlag("cassandra_timeout", "Timeout for communication with Cassandra cluster", 0)

// InfluxDBAddress represents InfluxDB address flag. Empty value disables the
// interval-series uploader.
var InfluxDBAddress = NewStringFlag("influxdb_addr", "Address of InfluxDB endpoint for interval series upload (empty disables upload)", "")

// InfluxDBPort represents InfluxDB port flag.
var InfluxDBPort = NewIntFlag("influxdb_port", "Port of InfluxDB endpoint", 8086)

// InfluxDBName represents the name of the InfluxDB database for interval series.
var InfluxDBName = NewStringFlag("influxdb_name", "Name of InfluxDB database for interval series", "ccbench")

// InfluxDBUsername holds the user name which will be presented when connecting to InfluxDB.
var InfluxDBUsername = NewStringFlag("influxdb_username", "The user name which will be presented when connecting to InfluxDB", "root")

// InfluxDBPassword holds the password which will be presented when connecting to InfluxDB.
var InfluxDBPassword = NewStringFlag("influxdb_password", "The password which will be presented when connecting to InfluxDB", "root")

// InfluxDBInsecureSkipVerify disables TLS certificate verification for InfluxDB connections.
var InfluxDBInsecureSkipVerify = NewBoolFlag("influxdb_insecure_skip_verify", "Skip TLS certificate verification for InfluxDB connections", false)
