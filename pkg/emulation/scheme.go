package emulation

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/ccbench/ccbench/pkg/executor"
	"github.com/ccbench/ccbench/pkg/utils/sysctl"
)

const availableSchemesKey = "net.ipv4.tcp_available_congestion_control"

// fallbackSchemes is assumed available when the sysctl catalog cannot be
// read, matching the kernels this harness targets.
var fallbackSchemes = []string{"cubic", "bbr", "vegas"}

// SchemeManager resolves, installs and selects congestion-control schemes on
// the host.
type SchemeManager interface {
	// Available checks the host availability catalog for the scheme.
	Available(scheme string) bool
	// Install makes the scheme available. Called at most once per trial.
	Install(scheme string) error
	// Select makes the scheme the host's active congestion-control
	// algorithm. The selection is host-global.
	Select(scheme string) error
}

// Sysctl is a SchemeManager backed by the kernel's sysctl catalog and
// modprobe for installation.
type Sysctl struct {
	exec executor.Executor
}

// NewSysctl returns a sysctl based SchemeManager using given executor.
func NewSysctl(exec executor.Executor) Sysctl {
	return Sysctl{exec: exec}
}

// Available checks net.ipv4.tcp_available_congestion_control for the scheme.
func (s Sysctl) Available(scheme string) bool {
	available, err := sysctl.GetList(availableSchemesKey)
	if err != nil {
		logrus.Debugf("Could not read %s (%v), assuming %v", availableSchemesKey, err, fallbackSchemes)
		available = fallbackSchemes
	}

	for _, name := range available {
		if name == scheme {
			return true
		}
	}
	return false
}

// Install loads the scheme's kernel module.
func (s Sysctl) Install(scheme string) error {
	logrus.Infof("Scheme %q is not available. Installing...", scheme)
	err := runCommand(s.exec, fmt.Sprintf("modprobe tcp_%s", scheme))
	if err != nil {
		return errors.Wrapf(err, "could not install scheme %q", scheme)
	}
	return nil
}

// Select switches the host's active congestion-control algorithm.
func (s Sysctl) Select(scheme string) error {
	err := runCommand(s.exec, fmt.Sprintf("sysctl -w net.ipv4.tcp_congestion_control=%s", scheme))
	if err != nil {
		return errors.Wrapf(err, "could not select scheme %q", scheme)
	}
	logrus.Debug("Selected congestion control algorithm ", scheme)
	return nil
}
