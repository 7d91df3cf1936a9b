package executor

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Local provisioning is responsible for providing the execution environment
// on local machine via exec.Command.
// It runs command as current user.
type Local struct {
	// outputDir is the directory where stdout and stderr files for executed
	// commands are created. Empty value means current working directory.
	outputDir string
}

// NewLocal returns a Local instance.
func NewLocal() Local {
	return Local{}
}

// NewLocalWithOutputDir returns a Local instance which places stdout and
// stderr files of executed commands in the given directory.
func NewLocalWithOutputDir(outputDir string) Local {
	return Local{outputDir: outputDir}
}

// Name returns user-friendly name of executor.
func (l Local) Name() string {
	return "Local Executor"
}

// Execute runs the command given as input.
// Returned TaskHandle is able to stop & monitor the provisioned process.
func (l Local) Execute(command string) (TaskHandle, error) {
	outputDir := l.outputDir
	if outputDir == "" {
		pwd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "could not obtain working directory")
		}
		outputDir = pwd
	}

	stdoutFile, err := os.CreateTemp(outputDir, "stdout.")
	if err != nil {
		return nil, errors.Wrapf(err, "could not create stdout file in %q", outputDir)
	}
	stderrFile, err := os.CreateTemp(outputDir, "stderr.")
	if err != nil {
		stdoutFile.Close()
		os.Remove(stdoutFile.Name())
		return nil, errors.Wrapf(err, "could not create stderr file in %q", outputDir)
	}

	logrus.Debug("Starting ", command)

	cmd := exec.Command("sh", "-c", command)
	// It is important to set additional Process Group ID for parent process
	// and his children to have ability to kill all the children processes.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdout = stdoutFile
	cmd.Stderr = stderrFile

	if err := cmd.Start(); err != nil {
		stdoutFile.Close()
		stderrFile.Close()
		os.Remove(stdoutFile.Name())
		os.Remove(stderrFile.Name())
		return nil, errors.Wrapf(err, "could not start command %q", command)
	}

	logrus.Debug("Started with pid ", cmd.Process.Pid)

	t := &localTask{
		command:        command,
		cmdHandler:     cmd,
		stdoutFile:     stdoutFile,
		stderrFile:     stderrFile,
		waitEndChannel: make(chan struct{}),
	}

	// Wait for the command completion in a goroutine so that the exit code is
	// captured exactly once regardless of how many callers Wait.
	go func() {
		cmd.Wait()

		waitStatus := cmd.ProcessState.Sys().(syscall.WaitStatus)
		var exitCode int
		if waitStatus.Exited() {
			exitCode = waitStatus.ExitStatus()
		} else {
			// Show what signal caused the termination.
			exitCode = -int(waitStatus.Signal())
		}

		t.mutex.Lock()
		t.exitCode = exitCode
		t.mutex.Unlock()

		logrus.Debug(
			"Ended ", command,
			" with output in file: ", stdoutFile.Name(),
			" with err output in file: ", stderrFile.Name(),
			" with status code: ", exitCode)

		close(t.waitEndChannel)
	}()

	return t, nil
}

// localTask implements TaskHandle interface.
type localTask struct {
	command        string
	cmdHandler     *exec.Cmd
	stdoutFile     *os.File
	stderrFile     *os.File
	waitEndChannel chan struct{}

	mutex    sync.Mutex
	exitCode int
}

// isTerminated checks if the task completion channel was closed.
func (task *localTask) isTerminated() bool {
	select {
	case <-task.waitEndChannel:
		return true
	default:
		return false
	}
}

// Stop terminates the local task.
func (task *localTask) Stop() error {
	if task.isTerminated() {
		return nil
	}

	// We signal the entire process group.
	// The kill syscall interprets a negated PID N as the process group N belongs to.
	pgid := task.cmdHandler.Process.Pid
	logrus.Debug("Sending SIGTERM to process group ", pgid)
	if err := syscall.Kill(-pgid, syscall.SIGTERM); err != nil {
		return errors.Wrapf(err, "could not deliver SIGTERM to process group %d", pgid)
	}

	select {
	case <-task.waitEndChannel:
	case <-time.After(5 * time.Second):
		logrus.Debug("Sending SIGKILL to process group ", pgid)
		if err := syscall.Kill(-pgid, syscall.SIGKILL); err != nil {
			return errors.Wrapf(err, "could not deliver SIGKILL to process group %d", pgid)
		}
		<-task.waitEndChannel
	}

	return nil
}

// Status returns a state of the task.
func (task *localTask) Status() TaskState {
	if !task.isTerminated() {
		return RUNNING
	}

	return TERMINATED
}

// ExitCode returns an exitCode. If task is not terminated it returns error.
func (task *localTask) ExitCode() (int, error) {
	if !task.isTerminated() {
		return 0, errors.Errorf("task %q is not terminated", task.command)
	}

	task.mutex.Lock()
	defer task.mutex.Unlock()
	return task.exitCode, nil
}

// Wait blocks until process is terminated or timeout elapsed.
// Returns true when process terminates before timeout, otherwise false.
func (task *localTask) Wait(timeout time.Duration) bool {
	if task.isTerminated() {
		return true
	}

	if timeout == 0 {
		<-task.waitEndChannel
		return true
	}

	select {
	case <-task.waitEndChannel:
		return true
	case <-time.After(timeout):
		return false
	}
}

// StdoutFile returns a file handle to the task's stdout file.
func (task *localTask) StdoutFile() (*os.File, error) {
	if _, err := task.stdoutFile.Seek(0, 0); err != nil {
		return nil, errors.Wrap(err, "could not rewind stdout file")
	}
	return task.stdoutFile, nil
}

// StderrFile returns a file handle to the task's stderr file.
func (task *localTask) StderrFile() (*os.File, error) {
	if _, err := task.stderrFile.Seek(0, 0); err != nil {
		return nil, errors.Wrap(err, "could not rewind stderr file")
	}
	return task.stderrFile, nil
}

// Clean closes the task's stdout & stderr files.
func (task *localTask) Clean() error {
	if err := task.stdoutFile.Close(); err != nil {
		return errors.Wrapf(err, "could not close %q", task.stdoutFile.Name())
	}
	if err := task.stderrFile.Close(); err != nil {
		return errors.Wrapf(err, "could not close %q", task.stderrFile.Name())
	}
	return nil
}

// EraseOutput removes task's stdout & stderr files.
func (task *localTask) EraseOutput() error {
	if err := os.Remove(task.stdoutFile.Name()); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "could not remove %q", task.stdoutFile.Name())
	}
	if err := os.Remove(task.stderrFile.Name()); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "could not remove %q", task.stderrFile.Name())
	}
	return nil
}
