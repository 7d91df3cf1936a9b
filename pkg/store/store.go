// Package store owns persistence of canonical per-trial records. Records are
// addressed by (profile, scheme) and overwritten on re-run. The default
// backend is a plain directory layout; a Cassandra backend and an InfluxDB
// interval-series uploader are available behind flags.
package store

import (
	"fmt"

	"github.com/ccbench/ccbench/pkg/reduction"
)

// Key addresses one trial record.
type Key struct {
	Profile string
	Scheme  string
}

// String returns the canonical `<profile>_<scheme>` form used in directory
// names and logs.
func (k Key) String() string {
	return fmt.Sprintf("%s_%s", k.Profile, k.Scheme)
}

// Record is one persisted canonical trial record.
type Record struct {
	Key     Key
	Summary reduction.Summary
	Series  []reduction.IntervalSample
}

// Store persists canonical trial records keyed by (profile, scheme).
type Store interface {
	// Put persists a record, overwriting any prior record under the same
	// key.
	Put(key Key, summary reduction.Summary, series []reduction.IntervalSample) error
	// GetAllForProfile returns all records for the profile ordered by
	// scheme.
	GetAllForProfile(profile string) ([]Record, error)
}
