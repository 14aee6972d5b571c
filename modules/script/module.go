// Package script provides a runner that executes external commands, such as
// training and inference entrypoints, streaming their output into the run log.
package script

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"reflect"
	"sync"
	"syscall"
	"time"

	"github.com/vk/voxpipe/internal/ctxlog"
	"github.com/vk/voxpipe/internal/registry"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the script runner.
type Input struct {
	Command     string            `vxp:"command"`
	Args        []string          `vxp:"args"`
	Workdir     string            `vxp:"workdir"`
	Env         map[string]string `vxp:"env"`
	Timeout     string            `vxp:"timeout"`
	OkExitCodes []int             `vxp:"ok_exit_codes"`
}

// Output defines the data structure returned by the runner.
type Output struct {
	ExitCode   int   `cty:"exit_code"`
	DurationMs int64 `cty:"duration_ms"`
}

// Deps is an empty struct because this runner does not use any resources.
type Deps struct{}

// OnRunScript is the handler for the 'script' runner's on_run lifecycle event.
func OnRunScript(ctx context.Context, deps *Deps, input *Input) (*Output, error) {
	logger := ctxlog.FromContext(ctx).With("command", input.Command)

	runCtx := ctx
	if input.Timeout != "" {
		timeout, err := time.ParseDuration(input.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", input.Timeout, err)
		}
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, input.Command, input.Args...)
	cmd.Dir = input.Workdir
	cmd.Env = mergedEnv(input.Env)

	// Scripts spawn their own children (data loaders, CUDA workers); put the
	// whole tree in one process group so cancellation reaps all of it.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	logger.Info("Launching script", "args", input.Args, "workdir", input.Workdir)
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %q: %w", input.Command, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go streamLines(&wg, logger, stdout, "stdout")
	go streamLines(&wg, logger, stderr, "stderr")
	wg.Wait()

	waitErr := cmd.Wait()
	duration := time.Since(start)

	if runCtx.Err() != nil {
		return nil, fmt.Errorf("script %q canceled after %s: %w", input.Command, duration.Round(time.Millisecond), runCtx.Err())
	}

	exitCode := cmd.ProcessState.ExitCode()
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("script %q failed: %w", input.Command, waitErr)
		}
	}
	if !exitCodeOk(exitCode, input.OkExitCodes) {
		return nil, fmt.Errorf("script %q exited with code %d", input.Command, exitCode)
	}

	logger.Info("Script finished", "exitCode", exitCode, "duration", duration.Round(time.Millisecond).String())
	return &Output{
		ExitCode:   exitCode,
		DurationMs: duration.Milliseconds(),
	}, nil
}

// streamLines copies one output stream into the structured log, line by line,
// so long-running training jobs surface progress as it happens.
func streamLines(wg *sync.WaitGroup, logger *slog.Logger, r io.Reader, stream string) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	// Progress bars and tracebacks can produce very long lines.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if stream == "stderr" {
			logger.Warn(scanner.Text(), "stream", stream)
		} else {
			logger.Info(scanner.Text(), "stream", stream)
		}
	}
}

// mergedEnv layers the stage's env entries over the parent process environment.
func mergedEnv(extra map[string]string) []string {
	if len(extra) == 0 {
		return nil // exec defaults to os.Environ()
	}
	env := os.Environ()
	for k, v := range extra {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

func exitCodeOk(code int, okCodes []int) bool {
	if len(okCodes) == 0 {
		return code == 0
	}
	for _, ok := range okCodes {
		if code == ok {
			return true
		}
	}
	return false
}

// Register registers the handler with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterRunner("OnRunScript", &registry.RegisteredRunner{
		NewInput:  func() any { return new(Input) },
		InputType: reflect.TypeOf(Input{}),
		NewDeps:   func() any { return new(Deps) },
		Fn:        OnRunScript,
	})
}
