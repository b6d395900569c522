// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package helper runs the privileged helper: the capture relay, the reset
// control plane and the attribution tracer, under one lifecycle.
package helper

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"grimm.is/appwall/internal/errors"
	"grimm.is/appwall/internal/logging"
)

// State is a helper lifecycle phase. Phases only move forward.
type State int32

const (
	Starting State = iota
	Running
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

// CaptureService is the capture relay (*capture.Session).
type CaptureService interface {
	Run(ctx context.Context) error
}

// ControlService is the reset control plane (*ctlplane.Server).
type ControlService interface {
	Serve(ctx context.Context, listener net.Listener) error
}

// Injector is the reset sender (*inject.Sender).
type Injector interface {
	Init() error
}

// Attributor is the tracer supervisor (*attribution.Process).
type Attributor interface {
	Start(ctx context.Context) error
	Stop() error
}

// MetricsService exposes metrics (*metrics.Metrics).
type MetricsService interface {
	ServeListener(ctx context.Context, ln net.Listener, logger *logging.Logger) error
}

// Deps are the helper's collaborators. Listeners are bound by the caller so
// that bind failures surface as setup errors before Run.
type Deps struct {
	Capture         CaptureService
	Control         ControlService
	ControlListener net.Listener
	Injector        Injector
	Attribution     Attributor

	Metrics         MetricsService // optional
	MetricsListener net.Listener

	Logger *logging.Logger
}

// Helper owns the lifecycle.
type Helper struct {
	deps   Deps
	logger *logging.Logger
	state  atomic.Int32

	mu        sync.Mutex
	observers []func(State)
}

func New(deps Deps) *Helper {
	if deps.Logger == nil {
		deps.Logger = logging.WithComponent("helper")
	}
	return &Helper{deps: deps, logger: deps.Logger}
}

// State returns the current phase.
func (h *Helper) State() State {
	return State(h.state.Load())
}

// OnStateChange registers fn to be called after every transition.
func (h *Helper) OnStateChange(fn func(State)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.observers = append(h.observers, fn)
}

func (h *Helper) setState(s State) {
	prev := State(h.state.Swap(int32(s)))
	h.logger.Info("Helper state changed", "from", prev.String(), "to", s.String())

	h.mu.Lock()
	observers := append([]func(State){}, h.observers...)
	h.mu.Unlock()
	for _, fn := range observers {
		fn(s)
	}
}

// Run starts everything, serves until ctx is cancelled, then shuts down.
// Failures after startup are logged and do not end Run.
func (h *Helper) Run(ctx context.Context) error {
	h.setState(Starting)

	if err := h.deps.Injector.Init(); err != nil {
		h.logger.Warn("Packet injection unavailable, resets will fail", errors.LogArgs(err)...)
	}

	// Services run on svcCtx, which is cancelled only after attribution stops.
	svcCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	goService := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(svcCtx); err != nil {
				h.logger.Error("Service stopped with error", append(errors.LogArgs(err), "service", name)...)
				return
			}
			h.logger.Debug("Service stopped", "service", name)
		}()
	}

	goService("capture", h.deps.Capture.Run)

	if err := h.deps.Attribution.Start(svcCtx); err != nil {
		h.logger.Error("Could not start attribution", errors.LogArgs(err)...)
	}

	if h.deps.Metrics != nil && h.deps.MetricsListener != nil {
		goService("metrics", func(ctx context.Context) error {
			return h.deps.Metrics.ServeListener(ctx, h.deps.MetricsListener, h.logger.WithComponent("metrics"))
		})
	}

	h.setState(Running)
	goService("control", func(ctx context.Context) error {
		return h.deps.Control.Serve(ctx, h.deps.ControlListener)
	})

	<-ctx.Done()

	h.setState(ShuttingDown)
	if err := h.deps.Attribution.Stop(); err != nil {
		h.logger.Warn("Attribution did not stop cleanly", errors.LogArgs(err)...)
	}
	cancel()
	wg.Wait()

	h.setState(Terminated)
	return nil
}
