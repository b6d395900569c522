// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package capture

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/pcap"
	"github.com/gopacket/gopacket/pcapgo"

	"grimm.is/appwall/internal/clock"
	"grimm.is/appwall/internal/errors"
	"grimm.is/appwall/internal/logging"
	"grimm.is/appwall/internal/metrics"
)

const (
	DefaultStatsInterval = 600 * time.Second
	DefaultWriteTimeout  = 5 * time.Second

	acceptRetryDelay = 100 * time.Millisecond

	// Persistent read failures (interface down) back off up to maxReadBackoff.
	readBackoff    = 100 * time.Millisecond
	maxReadBackoff = 5 * time.Second
)

// SessionOptions configures a Session.
type SessionOptions struct {
	StatsInterval time.Duration
	WriteTimeout  time.Duration
	Clock         clock.Clock
	Metrics       *metrics.Metrics
	Logger        *logging.Logger
}

type client struct {
	id   string
	conn net.Conn
	w    *pcapgo.Writer
}

// Session relays filtered packets to the most recently connected client.
//
// A new connection replaces the current client; the replaced connection is
// closed. A failed send drops the client and the relay idles until the next
// connection. Packets read while no client is connected are discarded.
type Session struct {
	handle   Handle
	listener net.Listener
	opts     SessionOptions
	logger   *logging.Logger

	mu        sync.Mutex
	client    *client
	lastStats time.Time
}

// NewSession wraps an open handle and a bound listener. The session owns
// both and closes them when Run returns.
func NewSession(handle Handle, listener net.Listener, opts SessionOptions) *Session {
	if opts.StatsInterval <= 0 {
		opts.StatsInterval = DefaultStatsInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("capture")
	}
	return &Session{
		handle:    handle,
		listener:  listener,
		opts:      opts,
		logger:    opts.Logger,
		lastStats: opts.Clock.Now(),
	}
}

// Listen binds the relay socket.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Attr(errors.Wrap(err, errors.KindSetup, "bind capture listener"), "addr", addr)
	}
	return ln, nil
}

// Addr is the relay socket address.
func (s *Session) Addr() net.Addr {
	return s.listener.Addr()
}

// Run accepts clients and relays packets until ctx is done or the capture
// source is exhausted. It closes the listener, the current client and the
// handle before returning.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.acceptLoop(ctx)
	}()

	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	err := s.relay(ctx)

	cancel()
	wg.Wait()
	s.detach(nil)
	s.handle.Close()
	s.logger.Info("Capture relay stopped")
	return err
}

func (s *Session) acceptLoop(ctx context.Context) {
	s.logger.Info("Capture listener started", "addr", s.listener.Addr().String())
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn("Capture accept failed", errors.LogArgs(errors.Wrap(err, errors.KindIO, "accept"))...)
			select {
			case <-ctx.Done():
				return
			case <-time.After(acceptRetryDelay):
			}
			continue
		}
		s.attach(conn)
	}
}

// attach makes conn the relay target, closing the previous client.
func (s *Session) attach(conn net.Conn) string {
	c := &client{id: uuid.NewString(), conn: conn, w: newRecordWriter(conn)}

	s.mu.Lock()
	old := s.client
	s.client = c
	s.lastStats = s.opts.Clock.Now()
	if old != nil {
		old.conn.Close()
	}
	s.mu.Unlock()

	s.opts.Metrics.CaptureClients.Inc()
	if old != nil {
		s.logger.Info("Capture client replaced", "session", c.id, "previous", old.id, "remote", conn.RemoteAddr().String())
	} else {
		s.logger.Info("Capture client connected", "session", c.id, "remote", conn.RemoteAddr().String())
	}
	return c.id
}

// detach closes c if it is still the current client. A nil c closes
// whatever client is current.
func (s *Session) detach(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || (c != nil && s.client != c) {
		return
	}
	s.client.conn.Close()
	s.client = nil
}

func (s *Session) current() *client {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

func (s *Session) relay(ctx context.Context) error {
	failures := 0
	backoff := readBackoff
	for {
		if ctx.Err() != nil {
			return nil
		}

		data, ci, err := s.handle.ReadPacketData()
		switch {
		case err == nil:
		case err == pcap.NextErrorTimeoutExpired:
			s.maybeLogStats()
			continue
		case errors.Is(err, io.EOF):
			s.logger.Info("Capture source exhausted")
			return nil
		default:
			failures++
			s.opts.Metrics.ReadErrors.Inc()
			args := append(errors.LogArgs(errors.Wrap(err, errors.KindIO, "read packet")), "failures", failures, "retry_in", backoff)
			if failures == 1 {
				s.logger.Warn("Capture read failed", args...)
			} else {
				s.logger.Debug("Capture read failed", args...)
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, maxReadBackoff)
			continue
		}

		if failures > 0 {
			s.logger.Info("Capture reads recovered", "failures", failures)
			failures = 0
			backoff = readBackoff
		}
		s.send(ci, data)
		s.maybeLogStats()
	}
}

// send writes one record to the current client. The write happens outside
// the lock; a client replaced mid-write was closed by attach and its failed
// write is ignored.
func (s *Session) send(ci gopacket.CaptureInfo, data []byte) {
	c := s.current()
	if c == nil {
		return
	}

	if s.logger.DebugEnabled() {
		if names := dnsQuestions(data); len(names) > 0 {
			s.logger.Debug("Relaying DNS query", "session", c.id, "questions", names)
		}
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	if err := c.w.WritePacket(ci, data); err != nil {
		if s.current() != c {
			return
		}
		s.opts.Metrics.RelayErrors.Inc()
		s.logger.Warn("Problem sending packet to client, dropping it",
			append(errors.LogArgs(errors.Wrap(err, errors.KindIO, "relay")), "session", c.id)...)
		s.detach(c)
		return
	}
	s.opts.Metrics.PacketsRelayed.Inc()
	s.opts.Metrics.BytesRelayed.Add(float64(len(data)))
}

func (s *Session) maybeLogStats() {
	now := s.opts.Clock.Now()

	s.mu.Lock()
	due := now.Sub(s.lastStats) >= s.opts.StatsInterval
	if due {
		s.lastStats = now
	}
	s.mu.Unlock()
	if !due {
		return
	}

	st, err := s.handle.Stats()
	if err != nil {
		s.logger.Warn("Could not read capture stats", errors.LogArgs(errors.Wrap(err, errors.KindIO, "stats"))...)
		return
	}
	s.opts.Metrics.PcapReceived.Set(float64(st.PacketsReceived))
	s.opts.Metrics.PcapDropped.Set(float64(st.PacketsDropped))
	s.opts.Metrics.PcapIfaceDropped.Set(float64(st.PacketsIfDropped))
	s.logger.Info("Capture stats",
		"received", st.PacketsReceived,
		"dropped", st.PacketsDropped,
		"if_dropped", st.PacketsIfDropped)
}
