package experiment

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ccbench/ccbench/pkg/emulation"
	"github.com/ccbench/ccbench/pkg/executor"
	"github.com/ccbench/ccbench/pkg/profiles"
	"github.com/ccbench/ccbench/pkg/reduction"
	"github.com/ccbench/ccbench/pkg/store"
	"github.com/ccbench/ccbench/pkg/utils/netutil"
)

// State is the lifecycle state of one trial.
type State string

const (
	// Pending means the trial has not started yet.
	Pending State = "pending"
	// Configuring means emulation state and scheme selection are being
	// applied.
	Configuring State = "configuring"
	// Running means the traffic generator is active.
	Running State = "running"
	// Collecting means raw output is being reduced and persisted.
	Collecting State = "collecting"
	// Completed means the trial produced a persisted canonical record.
	Completed State = "completed"
	// Failed means the trial was aborted; a zero-substituted record marks
	// the key as measured-and-invalid.
	Failed State = "failed"
)

// TrialResult is the outcome of one (scheme, profile) trial.
type TrialResult struct {
	Key   store.Key
	State State
	Err   error
}

// TrialRunner runs one (scheme, profile) trial end-to-end.
type TrialRunner interface {
	Run(scheme string, profile profiles.Profile) TrialResult
}

// RunnerConfig holds the per-batch settings shared by all trials.
type RunnerConfig struct {
	// Interface is the network interface carrying the emulated traffic.
	Interface string
	// Runtime is the traffic generation duration of one trial.
	Runtime time.Duration
	// Timeout bounds the whole capture; a generator exceeding it is
	// forcibly terminated. Zero means Runtime plus a one minute grace.
	Timeout time.Duration
	// Port is the traffic generator server port.
	Port int
}

const defaultGeneratorPort = 5201

// Runner is the TrialRunner implementation driving the traffic generator
// through an executor. All host-global state it touches is owned through an
// emulation scope for the duration of each trial.
type Runner struct {
	exec       executor.Executor
	controller emulation.Controller
	schemes    emulation.SchemeManager
	scopes     *emulation.ScopeRegistry
	results    store.Store
	config     RunnerConfig

	// isListening is swapped in tests to avoid waiting on a real endpoint.
	isListening netutil.IsListeningFunction
}

// NewRunner returns a Runner wired to given collaborators.
func NewRunner(
	exec executor.Executor,
	controller emulation.Controller,
	schemes emulation.SchemeManager,
	scopes *emulation.ScopeRegistry,
	results store.Store,
	config RunnerConfig,
) *Runner {
	if config.Port == 0 {
		config.Port = defaultGeneratorPort
	}
	if config.Timeout == 0 {
		config.Timeout = config.Runtime + time.Minute
	}
	return &Runner{
		exec:        exec,
		controller:  controller,
		schemes:     schemes,
		scopes:      scopes,
		results:     results,
		config:      config,
		isListening: netutil.IsListening,
	}
}

// Run executes one trial: scheme availability check with a single install
// attempt, exclusive scope acquisition, emulation configuration, bounded
// capture, reduction and persistence. Scope release and emulation teardown
// run on every exit path.
func (r *Runner) Run(scheme string, profile profiles.Profile) TrialResult {
	key := store.Key{Profile: profile.ID, Scheme: scheme}
	logrus.Infof("Trial %s starting", key)

	if !r.schemes.Available(scheme) {
		if err := r.schemes.Install(scheme); err != nil {
			return r.fail(key, ToolUnavailable, err)
		}
	}

	scope := r.scopes.Acquire(r.config.Interface)
	defer scope.Release()
	defer r.teardown(key)

	if err := r.schemes.Select(scheme); err != nil {
		return r.fail(key, ConfigurationError, err)
	}
	if err := r.controller.Configure(scope.Interface(), profile); err != nil {
		return r.fail(key, ConfigurationError, err)
	}

	raw, err := r.capture(key)
	if err != nil {
		return r.failWith(key, err)
	}

	logrus.Debugf("Trial %s collecting", key)
	samples, summary := reduction.Reduce(raw, scheme, profile)
	if err := r.results.Put(key, summary, samples); err != nil {
		return TrialResult{Key: key, State: Failed, Err: newTrialError(StoreError, err)}
	}

	logrus.Infof("Trial %s completed: %.2f Mbps avg, %.2f ms avg RTT, %.4f loss",
		key, summary.AvgThroughputMbps, summary.AvgRTTMs, summary.LossRate)

	return TrialResult{Key: key, State: Completed}
}

// capture launches the traffic generator server and client and returns the
// client's raw interval report.
func (r *Runner) capture(key store.Key) (reduction.Raw, error) {
	serverCommand := fmt.Sprintf("iperf3 --server --port %d --one-off", r.config.Port)
	server, err := r.exec.Execute(serverCommand)
	if err != nil {
		return reduction.Raw{}, newTrialError(ToolUnavailable, err)
	}
	defer func() {
		server.Stop()
		server.Clean()
		server.EraseOutput()
	}()

	address := fmt.Sprintf("127.0.0.1:%d", r.config.Port)
	if !r.isListening(address, 5*time.Second) {
		return reduction.Raw{}, newTrialError(ToolUnavailable,
			errors.Errorf("generator server did not come up on %s", address))
	}

	clientCommand := fmt.Sprintf("iperf3 --client 127.0.0.1 --port %d --time %d --json",
		r.config.Port, int(r.config.Runtime.Seconds()))
	client, err := r.exec.Execute(clientCommand)
	if err != nil {
		return reduction.Raw{}, newTrialError(ToolUnavailable, err)
	}
	// Output files are kept in the executor's output directory as the trial's
	// raw log capture.
	defer client.Clean()

	if !client.Wait(r.config.Timeout) {
		client.Stop()
		return reduction.Raw{}, newTrialError(CaptureTimeout,
			errors.Errorf("generator exceeded the %s trial timeout", r.config.Timeout))
	}

	exitCode, err := client.ExitCode()
	if err != nil {
		return reduction.Raw{}, errors.Wrapf(err, "could not obtain generator exit code for %s", key)
	}
	if exitCode != 0 {
		return reduction.Raw{}, errors.Errorf("generator exited with code %d", exitCode)
	}

	stdout, err := client.StdoutFile()
	if err != nil {
		return reduction.Raw{}, newTrialError(DataFormatError, err)
	}
	raw, err := reduction.ParseGeneratorJSON(stdout)
	if err != nil {
		return reduction.Raw{}, newTrialError(DataFormatError, err)
	}

	return raw, nil
}

// teardown removes emulation state after the trial. Failures are logged, not
// propagated: the trial outcome is already decided at this point.
func (r *Runner) teardown(key store.Key) {
	if err := r.controller.Teardown(r.config.Interface); err != nil {
		logrus.Errorf("Teardown after trial %s failed: %v", key, err)
	}
}

func (r *Runner) fail(key store.Key, kind Kind, cause error) TrialResult {
	return r.failWith(key, newTrialError(kind, cause))
}

// failWith marks the trial failed and stores a zero-substituted invalid
// record so aggregation can report the omission instead of crashing on a
// missing key.
func (r *Runner) failWith(key store.Key, trialError error) TrialResult {
	logrus.Errorf("Trial %s failed: %v", key, trialError)

	invalid := reduction.Summary{
		ProfileID:   key.Profile,
		SchemeID:    key.Scheme,
		LossFormula: reduction.LossFormulaNone,
		Valid:       false,
	}
	if err := r.results.Put(key, invalid, nil); err != nil {
		logrus.Errorf("Could not store failure record for %s: %v", key, err)
	}

	return TrialResult{Key: key, State: Failed, Err: trialError}
}
