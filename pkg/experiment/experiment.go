// Package experiment drives (scheme, profile) trials: one Runner executes a
// single trial end-to-end, the Scheduler fans a scheme-by-profile grid out to
// runners under bounded concurrency. Trial failures are isolated from the
// batch; only batch-setup errors are fatal to the whole run.
package experiment

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ccbench/ccbench/pkg/profiles"
)

// Pair is one (scheme, profile) grid cell.
type Pair struct {
	Scheme  string
	Profile profiles.Profile
}

// Grid expands schemes and profiles into an ordered pair list, scheme-major:
// all profiles of the first scheme, then all profiles of the second.
func Grid(schemes []string, profileList []profiles.Profile) []Pair {
	pairs := make([]Pair, 0, len(schemes)*len(profileList))
	for _, scheme := range schemes {
		for _, profile := range profileList {
			pairs = append(pairs, Pair{Scheme: scheme, Profile: profile})
		}
	}
	return pairs
}

// Scheduler executes a trial grid through a TrialRunner.
type Scheduler struct {
	runner TrialRunner
}

// NewScheduler returns a Scheduler executing trials through given runner.
func NewScheduler(runner TrialRunner) *Scheduler {
	return &Scheduler{runner: runner}
}

// RunAll executes every pair under a worker pool of given size and returns
// the per-pair results in grid order. A failing trial neither cancels nor
// blocks the others. The returned error is nil iff every trial completed;
// a batch error names every failed pair. An empty grid is a setup error.
func (s *Scheduler) RunAll(pairs []Pair, parallelism int) ([]TrialResult, error) {
	if len(pairs) == 0 {
		return nil, errors.New("experiment grid is empty")
	}
	if parallelism < 1 {
		parallelism = 1
	}

	logrus.Infof("Running %d trials with parallelism %d", len(pairs), parallelism)

	results := make([]TrialResult, len(pairs))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for worker := 0; worker < parallelism; worker++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range jobs {
				pair := pairs[index]
				results[index] = s.runner.Run(pair.Scheme, pair.Profile)
			}
		}()
	}
	for index := range pairs {
		jobs <- index
	}
	close(jobs)
	wg.Wait()

	var failed []string
	for _, result := range results {
		if result.State != Completed {
			failed = append(failed, result.Key.String())
		}
	}
	if len(failed) > 0 {
		return results, errors.Errorf("%d of %d trials failed: %s",
			len(failed), len(pairs), strings.Join(failed, ", "))
	}

	return results, nil
}
