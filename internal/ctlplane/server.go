// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ctlplane serves reset requests from the unprivileged front end.
//
// The protocol is newline-delimited JSON: each request line is an
// inject.Request and gets exactly one Reply line. A malformed line gets an
// error reply and the connection stays open.
package ctlplane

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"grimm.is/appwall/internal/errors"
	"grimm.is/appwall/internal/inject"
	"grimm.is/appwall/internal/logging"
	"grimm.is/appwall/internal/metrics"
)

// MaxRequestLen bounds one request line.
const MaxRequestLen = 4096

const acceptRetryDelay = 100 * time.Millisecond

// Reply answers one request.
type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Server is the control-channel accept loop.
type Server struct {
	injector inject.Injector
	metrics  *metrics.Metrics
	logger   *logging.Logger

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func NewServer(injector inject.Injector, m *metrics.Metrics, logger *logging.Logger) *Server {
	if m == nil {
		m = metrics.New()
	}
	if logger == nil {
		logger = logging.WithComponent("ctlplane")
	}
	return &Server{
		injector: injector,
		metrics:  m,
		logger:   logger,
		conns:    make(map[net.Conn]struct{}),
	}
}

// Listen binds the control socket.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Attr(errors.Wrap(err, errors.KindSetup, "bind control listener"), "addr", addr)
	}
	return ln, nil
}

// Serve accepts connections until ctx is done. Accept errors are logged and
// retried. On return the listener and every open connection are closed.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("Control plane listening", "addr", listener.Addr().String())
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warn("Control accept failed", errors.LogArgs(errors.Wrap(err, errors.KindIO, "accept"))...)
			select {
			case <-ctx.Done():
			case <-time.After(acceptRetryDelay):
			}
			continue
		}

		s.track(conn, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.track(conn, false)
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("Control connection handler panicked", "panic", r)
				}
			}()
			s.ServeConn(conn)
		}()
	}

	s.closeAll()
	s.wg.Wait()
	return nil
}

func (s *Server) track(conn net.Conn, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.Close()
	}
}

// ServeConn handles requests on conn until it is closed, then closes it.
func (s *Server) ServeConn(conn net.Conn) {
	defer conn.Close()

	id := uuid.NewString()
	logger := s.logger.With("session", id, "remote", conn.RemoteAddr().String())
	s.metrics.ControlConnections.Inc()
	logger.Debug("Control client connected")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 512), MaxRequestLen)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		reply := s.handle(line, logger)
		if err := enc.Encode(reply); err != nil {
			logger.Warn("Problem writing control reply", errors.LogArgs(errors.Wrap(err, errors.KindIO, "reply"))...)
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("Control connection read failed", errors.LogArgs(errors.Wrap(err, errors.KindIO, "read"))...)
	}
	logger.Debug("Control client disconnected")
}

func (s *Server) handle(line []byte, logger *logging.Logger) Reply {
	var req inject.Request
	if err := json.Unmarshal(line, &req); err != nil {
		s.metrics.ControlRequests.WithLabelValues("malformed").Inc()
		logger.Warn("Malformed control request", "error", err)
		return Reply{Error: "malformed request: " + err.Error()}
	}

	if err := s.injector.Reset(req); err != nil {
		s.metrics.ControlRequests.WithLabelValues("failed").Inc()
		logger.Warn("Reset failed", append(errors.LogArgs(err), "conn", req.String())...)
		return Reply{Error: err.Error()}
	}

	s.metrics.ControlRequests.WithLabelValues("ok").Inc()
	logger.Info("Reset sent", "conn", req.String())
	return Reply{OK: true}
}
