// Package emulation controls the host state a trial exclusively owns: the
// traffic-control configuration of a network interface and the selected
// congestion-control scheme. Both are host-global; the Scope type hands them
// out one trial at a time per interface.
package emulation

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ccbench/ccbench/pkg/executor"
	"github.com/ccbench/ccbench/pkg/profiles"
)

// Controller applies and removes network emulation configuration on a
// network interface.
type Controller interface {
	// Configure applies rate limiting and delay/queue discipline matching
	// the profile. It is idempotent: any existing emulation state on the
	// interface is discarded first.
	Configure(iface string, profile profiles.Profile) error
	// Teardown removes emulation state from the interface. Absence of such
	// state is not an error. It must run on every exit path of a trial.
	Teardown(iface string) error
}

// TC is a Controller built on the tc(8) command invoked through an Executor.
// The emulation shape follows HTB for the rate limit with a netem leaf for
// delay and queue depth.
type TC struct {
	exec executor.Executor
}

// NewTC returns a tc based Controller using given executor.
func NewTC(exec executor.Executor) TC {
	return TC{exec: exec}
}

// Configure discards existing emulation state on the interface and applies
// the profile: an HTB root limited to the profile bandwidth and a netem
// qdisc adding the one-way delay with a BDP-sized queue.
func (tc TC) Configure(iface string, profile profiles.Profile) error {
	// Absence of a root qdisc is not an error, so the result is ignored.
	runCommand(tc.exec, fmt.Sprintf("tc qdisc del dev %s root", iface))

	commands := []string{
		fmt.Sprintf("tc qdisc add dev %s root handle 1: htb default 10", iface),
		fmt.Sprintf("tc class add dev %s parent 1: classid 1:10 htb rate %gmbit", iface, profile.BandwidthMbps),
		fmt.Sprintf("tc qdisc add dev %s parent 1:10 handle 10: netem delay %gms limit %d",
			iface, profile.DelayMs, profile.QueueBytes()),
	}
	for _, command := range commands {
		if err := runCommand(tc.exec, command); err != nil {
			return errors.Wrapf(err, "could not configure emulation for profile %q on %q", profile.ID, iface)
		}
	}

	logrus.Debugf("Configured %s: %gMbps, %gms delay, %d queue bytes",
		iface, profile.BandwidthMbps, profile.DelayMs, profile.QueueBytes())

	return nil
}

// Teardown removes the root qdisc from the interface. It is safe to call when
// no emulation state exists.
func (tc TC) Teardown(iface string) error {
	// `tc qdisc del` fails when there is nothing to delete; that is the
	// expected state after a torn-down or never-configured trial.
	runCommand(tc.exec, fmt.Sprintf("tc qdisc del dev %s root", iface))
	logrus.Debug("Removed emulation state from ", iface)
	return nil
}

// runCommand executes the command, waits for completion and translates a
// non-zero exit into an error carrying the command's stderr.
func runCommand(exec executor.Executor, command string) error {
	task, err := exec.Execute(command)
	if err != nil {
		return errors.Wrapf(err, "could not launch %q", command)
	}
	defer task.EraseOutput()
	defer task.Clean()

	task.Wait(0)

	exitCode, err := task.ExitCode()
	if err != nil {
		return errors.Wrapf(err, "could not obtain exit code of %q", command)
	}
	if exitCode != 0 {
		return errors.Errorf("command %q exited with code %d: %s", command, exitCode, stderrTail(task))
	}

	return nil
}

func stderrTail(task executor.TaskHandle) string {
	stderrFile, err := task.StderrFile()
	if err != nil {
		return ""
	}
	content, err := io.ReadAll(stderrFile)
	if err != nil {
		return ""
	}
	const tail = 256
	if len(content) > tail {
		content = content[len(content)-tail:]
	}
	return string(content)
}
