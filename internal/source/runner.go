// Package source reads log lines from external processes and files and
// dispatches them to listeners.
//
// # Security Model
//
// Source commands are executed via "sh -c" so they may use pipes and
// variable expansion. Configuration files that define sources have the
// same trust level as a Makefile. Only use configuration from trusted
// sources.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"

	"github.com/charliek/logdog/internal/domain"
)

// Runner launches the producer behind a source
type Runner interface {
	Start(ctx context.Context, config domain.SourceConfig) (Process, error)
}

// Process is a running producer of log lines. Kill must unblock a read in
// progress on Stdout; it is the only cancellation mechanism.
type Process interface {
	Stdout() io.Reader
	Wait() error
	Kill() error
}

// ExecRunner runs the source command through the shell
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Start starts the command in its own process group
func (r *ExecRunner) Start(ctx context.Context, config domain.SourceConfig) (Process, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", config.Cmd)

	cmd.Env = os.Environ()
	for k, v := range config.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}

	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	p := &execProcess{cmd: cmd, stdout: stdout}
	cmd.Cancel = p.Kill

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting process: %w", err)
	}

	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	stdout io.Reader
}

func (p *execProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

// Kill sends SIGKILL to the whole process group
func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}

	pgid, err := syscall.Getpgid(p.cmd.Process.Pid)
	if err != nil {
		err = p.cmd.Process.Kill()
	} else {
		err = syscall.Kill(-pgid, syscall.SIGKILL)
	}
	if errors.Is(err, os.ErrProcessDone) || errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

// FileRunner reads a file once from the start. The config Cmd is the path.
type FileRunner struct{}

// NewFileRunner creates a new FileRunner
func NewFileRunner() *FileRunner {
	return &FileRunner{}
}

// Start opens the file
func (r *FileRunner) Start(_ context.Context, config domain.SourceConfig) (Process, error) {
	f, err := os.Open(config.Cmd)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return &fileProcess{f: f}, nil
}

type fileProcess struct {
	f *os.File
}

func (p *fileProcess) Stdout() io.Reader {
	return p.f
}

func (p *fileProcess) Wait() error {
	return nil
}

func (p *fileProcess) Kill() error {
	if err := p.f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
