package experiment

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pkg/errors"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/stretchr/testify/mock"

	"github.com/ccbench/ccbench/pkg/emulation"
	"github.com/ccbench/ccbench/pkg/executor"
	"github.com/ccbench/ccbench/pkg/executor/mocks"
	"github.com/ccbench/ccbench/pkg/profiles"
	"github.com/ccbench/ccbench/pkg/store"
)

type fakeController struct {
	configureErr error
	configures   int
	teardowns    int
}

func (f *fakeController) Configure(iface string, profile profiles.Profile) error {
	f.configures++
	return f.configureErr
}

func (f *fakeController) Teardown(iface string) error {
	f.teardowns++
	return nil
}

type fakeSchemeManager struct {
	available  bool
	installErr error
	selectErr  error
	installs   int
}

func (f *fakeSchemeManager) Available(scheme string) bool {
	return f.available
}

func (f *fakeSchemeManager) Install(scheme string) error {
	f.installs++
	return f.installErr
}

func (f *fakeSchemeManager) Select(scheme string) error {
	return f.selectErr
}

// queueExecutor hands out prepared task handles in launch order.
type queueExecutor struct {
	commands []string
	tasks    []executor.TaskHandle
}

func (q *queueExecutor) Execute(command string) (executor.TaskHandle, error) {
	q.commands = append(q.commands, command)
	if len(q.tasks) == 0 {
		return nil, errors.Errorf("unexpected command %q", command)
	}
	task := q.tasks[0]
	q.tasks = q.tasks[1:]
	return task, nil
}

func (q *queueExecutor) Name() string {
	return "Queue Executor"
}

func reportFile(t *testing.T, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdout")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { file.Close() })
	return file
}

func newServerTask() *mocks.TaskHandle {
	server := new(mocks.TaskHandle)
	server.On("Stop").Return(nil)
	server.On("Clean").Return(nil)
	server.On("EraseOutput").Return(nil)
	return server
}

func TestRunner(t *testing.T) {
	profile := profiles.Profile{ID: "profile1", BandwidthMbps: 50, DelayMs: 10}
	config := RunnerConfig{Interface: "eth0", Runtime: 10 * time.Second, Timeout: 30 * time.Second}

	newRunner := func(exec executor.Executor, controller *fakeController, schemes *fakeSchemeManager, results store.Store) *Runner {
		runner := NewRunner(exec, controller, schemes, emulation.NewScopeRegistry(), results, config)
		runner.isListening = func(address string, timeout time.Duration) bool { return true }
		return runner
	}

	Convey("With a runner over fake collaborators", t, func() {
		results, err := store.NewFile(t.TempDir())
		So(err, ShouldBeNil)
		controller := &fakeController{}
		schemes := &fakeSchemeManager{available: true}

		Convey("A clean trial should complete and persist a valid record", func() {
			server := newServerTask()
			client := new(mocks.TaskHandle)
			client.On("Clean").Return(nil)
			client.On("Wait", mock.Anything).Return(true)
			client.On("ExitCode").Return(0, nil)
			report := `{"intervals": [{"sum": {"start": 0, "seconds": 1, "bytes": 125000}}]}`
			client.On("StdoutFile").Return(reportFile(t, report), nil)

			exec := &queueExecutor{tasks: []executor.TaskHandle{server, client}}
			runner := newRunner(exec, controller, schemes, results)

			result := runner.Run("cubic", profile)
			So(result.State, ShouldEqual, Completed)
			So(result.Err, ShouldBeNil)
			So(exec.commands, ShouldHaveLength, 2)
			So(exec.commands[0], ShouldContainSubstring, "--server")
			So(exec.commands[1], ShouldContainSubstring, "--time 10")
			So(controller.configures, ShouldEqual, 1)
			So(controller.teardowns, ShouldEqual, 1)

			records, err := results.GetAllForProfile("profile1")
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 1)
			So(records[0].Summary.Valid, ShouldBeTrue)
			So(records[0].Summary.AvgThroughputMbps, ShouldAlmostEqual, 1.0)
		})

		Convey("An unavailable scheme should be installed once before the trial", func() {
			schemes.available = false
			server := newServerTask()
			client := new(mocks.TaskHandle)
			client.On("Clean").Return(nil)
			client.On("Wait", mock.Anything).Return(true)
			client.On("ExitCode").Return(0, nil)
			client.On("StdoutFile").Return(reportFile(t, `{"intervals": []}`), nil)

			exec := &queueExecutor{tasks: []executor.TaskHandle{server, client}}
			runner := newRunner(exec, controller, schemes, results)

			result := runner.Run("bbr", profile)
			So(result.State, ShouldEqual, Completed)
			So(schemes.installs, ShouldEqual, 1)
		})

		Convey("A failing install should fail the trial before any configuration", func() {
			schemes.available = false
			schemes.installErr = errors.New("modprobe failed")
			exec := &queueExecutor{}
			runner := newRunner(exec, controller, schemes, results)

			result := runner.Run("bbr", profile)
			So(result.State, ShouldEqual, Failed)
			kind, ok := KindOf(result.Err)
			So(ok, ShouldBeTrue)
			So(kind, ShouldEqual, ToolUnavailable)
			So(controller.configures, ShouldEqual, 0)
			So(exec.commands, ShouldBeEmpty)

			records, err := results.GetAllForProfile("profile1")
			So(err, ShouldBeNil)
			So(records, ShouldHaveLength, 1)
			So(records[0].Summary.Valid, ShouldBeFalse)
		})

		Convey("A configuration failure should still tear down exactly once", func() {
			controller.configureErr = errors.New("tc failed")
			exec := &queueExecutor{}
			runner := newRunner(exec, controller, schemes, results)

			result := runner.Run("cubic", profile)
			So(result.State, ShouldEqual, Failed)
			kind, _ := KindOf(result.Err)
			So(kind, ShouldEqual, ConfigurationError)
			So(controller.teardowns, ShouldEqual, 1)
			So(exec.commands, ShouldBeEmpty)
		})

		Convey("A generator overrunning the timeout should be stopped and marked as such", func() {
			server := newServerTask()
			client := new(mocks.TaskHandle)
			client.On("Clean").Return(nil)
			client.On("Wait", mock.Anything).Return(false)
			client.On("Stop").Return(nil)

			exec := &queueExecutor{tasks: []executor.TaskHandle{server, client}}
			runner := newRunner(exec, controller, schemes, results)

			result := runner.Run("cubic", profile)
			So(result.State, ShouldEqual, Failed)
			kind, _ := KindOf(result.Err)
			So(kind, ShouldEqual, CaptureTimeout)
			So(controller.teardowns, ShouldEqual, 1)
			client.AssertCalled(t, "Stop")
		})

		Convey("A malformed generator report should fail with a data format error", func() {
			server := newServerTask()
			client := new(mocks.TaskHandle)
			client.On("Clean").Return(nil)
			client.On("Wait", mock.Anything).Return(true)
			client.On("ExitCode").Return(0, nil)
			client.On("StdoutFile").Return(reportFile(t, "not json"), nil)

			exec := &queueExecutor{tasks: []executor.TaskHandle{server, client}}
			runner := newRunner(exec, controller, schemes, results)

			result := runner.Run("cubic", profile)
			So(result.State, ShouldEqual, Failed)
			kind, _ := KindOf(result.Err)
			So(kind, ShouldEqual, DataFormatError)
			So(controller.teardowns, ShouldEqual, 1)

			records, err := results.GetAllForProfile("profile1")
			So(err, ShouldBeNil)
			So(records[0].Summary.Valid, ShouldBeFalse)
		})
	})
}
