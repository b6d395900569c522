// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package attribution supervises the external connection-owner tracer. The
// tracer maps captured connections to processes; the helper only starts it,
// restarts it after crashes, and stops it on shutdown.
package attribution

import (
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"grimm.is/appwall/internal/clock"
	"grimm.is/appwall/internal/errors"
	"grimm.is/appwall/internal/logging"
)

const (
	DefaultThreshold    = 3
	DefaultWindow       = 5 * time.Minute
	DefaultRestartDelay = time.Second
	DefaultStopTimeout  = 5 * time.Second
)

// Options configures a Process.
type Options struct {
	Command []string
	Dir     string

	// Stdout receives the tracer's output. The helper passes the stdout it
	// had before log redirection.
	Stdout io.Writer
	Stderr io.Writer

	Threshold    int
	Window       time.Duration
	RestartDelay time.Duration
	StopTimeout  time.Duration

	Clock  clock.Clock
	Logger *logging.Logger
}

// ExitEvent records one tracer exit.
type ExitEvent struct {
	ExitCode  int
	Signal    syscall.Signal
	Timestamp time.Time
	Requested bool // the helper asked it to stop
}

// IsCrash reports whether the exit counts toward the restart threshold.
func (e ExitEvent) IsCrash() bool {
	if e.Requested {
		return false
	}
	switch e.Signal {
	case syscall.SIGKILL, syscall.SIGSEGV, syscall.SIGBUS, syscall.SIGABRT:
		return true
	case syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP:
		return false
	}
	return e.ExitCode != 0
}

// Process runs and supervises the tracer.
type Process struct {
	opts   Options
	logger *logging.Logger

	mu       sync.Mutex
	cmd      *exec.Cmd
	stopping bool
	stopCh   chan struct{}
	done     chan struct{}
	events   []ExitEvent
	starts   int
}

func New(opts Options) *Process {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = DefaultRestartDelay
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = DefaultStopTimeout
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("attribution")
	}
	return &Process{opts: opts, logger: opts.Logger}
}

// Enabled reports whether a tracer command is configured.
func (p *Process) Enabled() bool {
	return len(p.opts.Command) > 0
}

// Start launches the tracer and supervises it until Stop or ctx is done. A
// disabled Process logs and returns nil.
func (p *Process) Start(ctx context.Context) error {
	if !p.Enabled() {
		p.logger.Info("Attribution disabled, no command configured")
		return nil
	}

	p.mu.Lock()
	if p.done != nil {
		p.mu.Unlock()
		return errors.New(errors.KindInternal, "attribution already started")
	}
	p.stopCh = make(chan struct{})
	p.done = make(chan struct{})
	p.mu.Unlock()

	cmd, err := p.spawn()
	if err != nil {
		p.mu.Lock()
		close(p.done)
		p.mu.Unlock()
		return err
	}

	go p.supervise(ctx, cmd)
	return nil
}

func (p *Process) spawn() (*exec.Cmd, error) {
	cmd := exec.Command(p.opts.Command[0], p.opts.Command[1:]...)
	cmd.Dir = p.opts.Dir
	cmd.Stdout = p.opts.Stdout
	cmd.Stderr = p.opts.Stderr
	setProcessGroup(cmd)

	p.mu.Lock()
	if p.stopping {
		p.mu.Unlock()
		return nil, errors.New(errors.KindInternal, "attribution stopping")
	}
	if err := cmd.Start(); err != nil {
		p.mu.Unlock()
		return nil, errors.Attr(errors.Wrap(err, errors.KindSetup, "start attribution process"), "command", p.opts.Command[0])
	}
	p.cmd = cmd
	p.starts++
	p.mu.Unlock()

	p.logger.Info("Attribution process started", "pid", cmd.Process.Pid, "command", p.opts.Command[0])
	return cmd, nil
}

func (p *Process) supervise(ctx context.Context, cmd *exec.Cmd) {
	defer close(p.done)

	for {
		ev := p.wait(cmd)
		if !ev.IsCrash() {
			p.logger.Info("Attribution process exited", "code", ev.ExitCode, "signal", ev.Signal.String(), "requested", ev.Requested)
			return
		}

		crashes := p.recordCrash(ev)
		p.logger.Warn("Attribution process crashed", "code", ev.ExitCode, "signal", ev.Signal.String(), "recent_crashes", crashes)
		if crashes >= p.opts.Threshold {
			p.logger.Error("Attribution disabled after repeated crashes", "crashes", crashes, "window", p.opts.Window)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-time.After(p.opts.RestartDelay):
		}

		var err error
		if cmd, err = p.spawn(); err != nil {
			p.logger.Error("Could not restart attribution process", errors.LogArgs(err)...)
			return
		}
	}
}

func (p *Process) wait(cmd *exec.Cmd) ExitEvent {
	err := cmd.Wait()

	p.mu.Lock()
	ev := ExitEvent{Timestamp: p.opts.Clock.Now(), Requested: p.stopping}
	p.cmd = nil
	p.mu.Unlock()

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			p.logger.Warn("Attribution process wait failed", "error", err)
			ev.ExitCode = -1
			return ev
		}
	}
	if ps := cmd.ProcessState; ps != nil {
		ev.ExitCode = ps.ExitCode()
		if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			ev.Signal = ws.Signal()
		}
	}
	return ev
}

// recordCrash appends ev and returns how many crashes fall inside the window.
func (p *Process) recordCrash(ev ExitEvent) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := ev.Timestamp.Add(-p.opts.Window)
	kept := p.events[:0]
	for _, e := range p.events {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	p.events = append(kept, ev)
	return len(p.events)
}

// Running reports whether the tracer is currently alive.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cmd != nil
}

// Starts reports how many times the tracer has been launched.
func (p *Process) Starts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts
}

// Done is closed once supervision has ended.
func (p *Process) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return p.done
}

// Stop terminates the tracer's process group, escalating to SIGKILL after
// StopTimeout, and waits for supervision to end.
func (p *Process) Stop() error {
	p.mu.Lock()
	if p.done == nil || p.stopping {
		p.mu.Unlock()
		return nil
	}
	p.stopping = true
	close(p.stopCh)
	cmd := p.cmd
	p.mu.Unlock()

	if cmd != nil {
		p.logger.Info("Stopping attribution process", "pid", cmd.Process.Pid)
		if err := signalGroup(cmd, syscall.SIGTERM); err != nil {
			p.logger.Warn("Could not signal attribution process", "error", err)
		}
	}

	select {
	case <-p.done:
		return nil
	case <-time.After(p.opts.StopTimeout):
	}

	p.mu.Lock()
	cmd = p.cmd
	p.mu.Unlock()
	if cmd != nil {
		_ = signalGroup(cmd, syscall.SIGKILL)
	}
	<-p.done
	return errors.New(errors.KindIO, "attribution process did not exit after SIGTERM")
}
