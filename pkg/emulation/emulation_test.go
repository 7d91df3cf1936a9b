package emulation

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"

	"github.com/ccbench/ccbench/pkg/executor/mocks"
	"github.com/ccbench/ccbench/pkg/profiles"
)

func newTerminatedTask(exitCode int) *mocks.TaskHandle {
	task := new(mocks.TaskHandle)
	task.On("Wait", mock.Anything).Return(true)
	task.On("ExitCode").Return(exitCode, nil)
	task.On("Clean").Return(nil)
	task.On("EraseOutput").Return(nil)
	task.On("StderrFile").Return(nil, errors.New("no stderr file"))
	return task
}

func TestTCController(t *testing.T) {
	profile := profiles.Profile{ID: "profile1", BandwidthMbps: 50, DelayMs: 10}

	Convey("While configuring emulation with the tc controller", t, func() {
		exec := new(mocks.Executor)
		controller := NewTC(exec)

		Convey("It should discard existing state and apply rate, class and netem", func() {
			exec.On("Execute", "tc qdisc del dev eth0 root").Return(newTerminatedTask(2), nil).Once()
			exec.On("Execute", "tc qdisc add dev eth0 root handle 1: htb default 10").Return(newTerminatedTask(0), nil).Once()
			exec.On("Execute", "tc class add dev eth0 parent 1: classid 1:10 htb rate 50mbit").Return(newTerminatedTask(0), nil).Once()
			exec.On("Execute", "tc qdisc add dev eth0 parent 1:10 handle 10: netem delay 10ms limit 62500").Return(newTerminatedTask(0), nil).Once()

			err := controller.Configure("eth0", profile)
			So(err, ShouldBeNil)
			exec.AssertExpectations(t)
		})

		Convey("It should fail when applying the rate limit fails", func() {
			exec.On("Execute", "tc qdisc del dev eth0 root").Return(newTerminatedTask(0), nil).Once()
			exec.On("Execute", "tc qdisc add dev eth0 root handle 1: htb default 10").Return(newTerminatedTask(2), nil).Once()

			err := controller.Configure("eth0", profile)
			So(err, ShouldNotBeNil)
			exec.AssertExpectations(t)
		})

		Convey("Teardown should succeed even when no emulation state exists", func() {
			exec.On("Execute", "tc qdisc del dev eth0 root").Return(newTerminatedTask(2), nil).Once()

			err := controller.Teardown("eth0")
			So(err, ShouldBeNil)
			exec.AssertExpectations(t)
		})
	})
}

func TestScopeRegistry(t *testing.T) {
	Convey("While acquiring emulation scopes", t, func() {
		registry := NewScopeRegistry()

		Convey("Scopes for distinct interfaces should not contend", func() {
			first := registry.Acquire("eth0")
			second := registry.Acquire("eth1")
			first.Release()
			second.Release()
		})

		Convey("A second acquisition of the same interface should block until release", func() {
			scope := registry.Acquire("eth0")

			acquired := make(chan *Scope)
			go func() {
				acquired <- registry.Acquire("eth0")
			}()

			select {
			case <-acquired:
				t.Fatal("scope acquired while still owned")
			case <-time.After(50 * time.Millisecond):
			}

			scope.Release()

			select {
			case second := <-acquired:
				second.Release()
			case <-time.After(time.Second):
				t.Fatal("scope not acquired after release")
			}
		})

		Convey("Release should be idempotent", func() {
			scope := registry.Acquire("eth0")
			scope.Release()
			scope.Release()

			again := registry.Acquire("eth0")
			again.Release()
		})
	})
}
