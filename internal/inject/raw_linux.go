// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package inject

import (
	"golang.org/x/sys/unix"

	"grimm.is/appwall/internal/errors"
)

// rawSockets holds one IPPROTO_RAW socket per family. IPPROTO_RAW implies
// the caller supplies the IP header.
type rawSockets struct {
	fd4 int
	fd6 int
}

func openRaw() (rawConn, error) {
	fd4, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_RAW)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindSetup, "open raw IPv4 socket")
	}
	fd6, err := unix.Socket(unix.AF_INET6, unix.SOCK_RAW, unix.IPPROTO_RAW)
	if err != nil {
		unix.Close(fd4)
		return nil, errors.Wrap(err, errors.KindSetup, "open raw IPv6 socket")
	}
	return &rawSockets{fd4: fd4, fd6: fd6}, nil
}

func (r *rawSockets) send(pkt Packet) error {
	if pkt.IPv6 {
		sa := &unix.SockaddrInet6{}
		copy(sa.Addr[:], pkt.Dst.To16())
		return unix.Sendto(r.fd6, pkt.Bytes, 0, sa)
	}
	sa := &unix.SockaddrInet4{}
	copy(sa.Addr[:], pkt.Dst.To4())
	return unix.Sendto(r.fd4, pkt.Bytes, 0, sa)
}

func (r *rawSockets) close() error {
	return errors.Join(unix.Close(r.fd4), unix.Close(r.fd6))
}
