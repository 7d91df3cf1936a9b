// Package profiles holds the registry of emulated network conditions a
// congestion-control scheme can be tested under. A profile is fully described
// by its bandwidth and one-way delay; the queue depth is always derived from
// the bandwidth-delay product and never stored independently.
package profiles

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Lookup for unknown profile ids.
var ErrNotFound = errors.New("profile not found")

// Profile describes a single emulated network condition.
type Profile struct {
	ID            string
	BandwidthMbps float64
	DelayMs       float64
}

// QueueBytes returns the droptail queue depth for the profile, sized to the
// bandwidth-delay product in bytes.
func (p Profile) QueueBytes() int {
	return int(p.BandwidthMbps * 1000000 * p.DelayMs / 8 / 1000)
}

// CeilingMbps returns the throughput ceiling used for display normalization
// of comparison tables. Loopback-style measurement can overshoot the emulated
// rate; the declared bandwidth bounds what is shown.
func (p Profile) CeilingMbps() float64 {
	return p.BandwidthMbps
}

// Catalog is a registry of network profiles.
type Catalog struct {
	profiles map[string]Profile
}

// NewCatalog returns a Catalog preloaded with the built-in profiles:
// profile1 (low-latency, high-bandwidth) and profile2 (high-latency,
// constrained-bandwidth).
func NewCatalog() *Catalog {
	c := &Catalog{profiles: map[string]Profile{}}

	// Registration of built-ins cannot fail; the values satisfy validation.
	c.Register(Profile{ID: "profile1", BandwidthMbps: 50, DelayMs: 10})
	c.Register(Profile{ID: "profile2", BandwidthMbps: 1, DelayMs: 200})

	return c
}

// Register adds a profile to the catalog. It validates that the bandwidth is
// positive and the delay non-negative.
func (c *Catalog) Register(profile Profile) error {
	if profile.ID == "" {
		return errors.New("profile id must not be empty")
	}
	if profile.BandwidthMbps <= 0 {
		return errors.Errorf("profile %q: bandwidth must be positive, got %v", profile.ID, profile.BandwidthMbps)
	}
	if profile.DelayMs < 0 {
		return errors.Errorf("profile %q: delay must not be negative, got %v", profile.ID, profile.DelayMs)
	}

	c.profiles[profile.ID] = profile
	return nil
}

// Lookup returns the profile registered under given id.
func (c *Catalog) Lookup(id string) (Profile, error) {
	profile, ok := c.profiles[id]
	if !ok {
		return Profile{}, errors.Wrapf(ErrNotFound, "%q", id)
	}

	return profile, nil
}

// IDs returns ids of all registered profiles in lexical order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.profiles))
	for id := range c.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
