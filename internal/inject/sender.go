// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package inject

import (
	"sync"

	"grimm.is/appwall/internal/errors"
	"grimm.is/appwall/internal/logging"
)

// rawConn writes complete IP packets.
type rawConn interface {
	send(pkt Packet) error
	close() error
}

// Sender builds resets and writes them to raw sockets opened by Init.
type Sender struct {
	mu     sync.Mutex
	conn   rawConn
	logger *logging.Logger
}

func NewSender(logger *logging.Logger) *Sender {
	if logger == nil {
		logger = logging.WithComponent("inject")
	}
	return &Sender{logger: logger}
}

// Init opens the raw sockets. It needs CAP_NET_RAW.
func (s *Sender) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}
	c, err := openRaw()
	if err != nil {
		return err
	}
	s.conn = c
	s.logger.Info("Packet injection initialised")
	return nil
}

// Reset sends one reset for req.
func (s *Sender) Reset(req Request) error {
	pkt, err := BuildReset(req)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errors.New(errors.KindInternal, "injector not initialised")
	}
	if err := s.conn.send(pkt); err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindIO, "send reset"), "request", req.String())
	}
	s.logger.Debug("Sent reset", "conn", req.String(), "seq", req.Seq, "ack", req.Ack)
	return nil
}

func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.close()
	s.conn = nil
	return err
}
