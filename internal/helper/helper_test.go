// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package helper

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/appwall/internal/errors"
	"grimm.is/appwall/internal/logging"
)

type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, e)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string{}, j.events...)
}

type fakeCapture struct{ j *journal }

func (f fakeCapture) Run(ctx context.Context) error {
	f.j.add("capture.run")
	<-ctx.Done()
	f.j.add("capture.stop")
	return nil
}

type fakeControl struct {
	j       *journal
	serving chan struct{}
}

func (f fakeControl) Serve(ctx context.Context, _ net.Listener) error {
	f.j.add("control.serve")
	close(f.serving)
	<-ctx.Done()
	f.j.add("control.stop")
	return nil
}

type fakeInjector struct {
	j   *journal
	err error
}

func (f fakeInjector) Init() error {
	f.j.add("inject.init")
	return f.err
}

type fakeAttributor struct {
	j        *journal
	startErr error
}

func (f fakeAttributor) Start(context.Context) error {
	f.j.add("attribution.start")
	return f.startErr
}

func (f fakeAttributor) Stop() error {
	f.j.add("attribution.stop")
	return nil
}

func newTestHelper(j *journal, serving chan struct{}, injErr, attrErr error) *Helper {
	return New(Deps{
		Capture:     fakeCapture{j: j},
		Control:     fakeControl{j: j, serving: serving},
		Injector:    fakeInjector{j: j, err: injErr},
		Attribution: fakeAttributor{j: j, startErr: attrErr},
		Logger:      logging.New(logging.Config{Output: io.Discard}),
	})
}

func runHelper(t *testing.T, h *Helper, serving chan struct{}) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	select {
	case <-serving:
	case <-time.After(5 * time.Second):
		t.Fatal("control plane never started")
	}
	assert.Equal(t, Running, h.State())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, Terminated, h.State())
}

func TestRun_Lifecycle(t *testing.T) {
	j := &journal{}
	serving := make(chan struct{})
	h := newTestHelper(j, serving, nil, nil)

	var states []State
	var mu sync.Mutex
	h.OnStateChange(func(s State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	})

	runHelper(t, h, serving)

	mu.Lock()
	assert.Equal(t, []State{Starting, Running, ShuttingDown, Terminated}, states)
	mu.Unlock()

	ev := j.list()
	require.GreaterOrEqual(t, len(ev), 7)
	assert.Equal(t, "inject.init", ev[0])
	assert.Less(t, indexOf(ev, "inject.init"), indexOf(ev, "attribution.start"))
	assert.Less(t, indexOf(ev, "attribution.start"), indexOf(ev, "control.serve"))
	assert.Less(t, indexOf(ev, "attribution.stop"), indexOf(ev, "capture.stop"), "tracer stops before services")
	assert.Less(t, indexOf(ev, "attribution.stop"), indexOf(ev, "control.stop"))
}

func TestRun_StartupErrorsAreNotFatal(t *testing.T) {
	j := &journal{}
	serving := make(chan struct{})
	h := newTestHelper(j, serving,
		errors.New(errors.KindSetup, "no raw sockets"),
		errors.New(errors.KindSetup, "tracer missing"))

	runHelper(t, h, serving)
	assert.Contains(t, j.list(), "control.serve")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "starting", Starting.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "shutting_down", ShuttingDown.String())
	assert.Equal(t, "terminated", Terminated.String())
	assert.Equal(t, "unknown", State(42).String())
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
