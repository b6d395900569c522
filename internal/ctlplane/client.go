// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ctlplane

import (
	"bufio"
	"encoding/json"
	"net"
	"sync"
	"time"

	"grimm.is/appwall/internal/errors"
	"grimm.is/appwall/internal/inject"
)

// Client sends reset requests to a running helper. It is safe for
// concurrent use; requests are serialised on one connection.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
	r    *bufio.Reader
	enc  *json.Encoder
}

// Dial connects to the helper's control socket.
func Dial(addr string, timeout time.Duration) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Attr(errors.Wrap(err, errors.KindIO, "connect to helper"), "addr", addr)
	}
	return &Client{conn: conn, r: bufio.NewReader(conn), enc: json.NewEncoder(conn)}, nil
}

// Reset asks the helper to reset a connection.
func (c *Client) Reset(req inject.Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.enc.Encode(req); err != nil {
		return errors.Wrap(err, errors.KindIO, "send request")
	}
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return errors.Wrap(err, errors.KindIO, "read reply")
	}

	var reply Reply
	if err := json.Unmarshal(line, &reply); err != nil {
		return errors.Wrap(err, errors.KindInput, "malformed reply")
	}
	if !reply.OK {
		return errors.Attr(errors.New(errors.KindIO, reply.Error), "request", req.String())
	}
	return nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}
