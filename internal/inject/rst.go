// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package inject terminates connections by sending forged TCP resets.
package inject

import (
	"fmt"
	"net"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"

	"grimm.is/appwall/internal/errors"
)

const resetTTL = 64

// Request asks for a reset of the connection src:sport -> dst:dport. Seq is
// the sequence number the receiver expects next; a non-zero Ack also sets
// the ACK flag.
type Request struct {
	Src   string `json:"src"`
	Dst   string `json:"dst"`
	SPort uint16 `json:"sport"`
	DPort uint16 `json:"dport"`
	Seq   uint32 `json:"seq"`
	Ack   uint32 `json:"ack"`
}

func (r Request) String() string {
	return fmt.Sprintf("%s -> %s", net.JoinHostPort(r.Src, fmt.Sprint(r.SPort)), net.JoinHostPort(r.Dst, fmt.Sprint(r.DPort)))
}

// Injector sends resets. It is implemented by *Sender.
type Injector interface {
	Reset(req Request) error
}

// Packet is a serialized reset ready for a raw socket.
type Packet struct {
	IPv6  bool
	Dst   net.IP
	Bytes []byte
}

// addrs parses and checks the request endpoints.
func (r Request) addrs() (src, dst net.IP, v6 bool, err error) {
	src = net.ParseIP(r.Src)
	dst = net.ParseIP(r.Dst)
	switch {
	case src == nil || dst == nil:
		err = errors.New(errors.KindInput, "invalid address")
	case r.SPort == 0 || r.DPort == 0:
		err = errors.New(errors.KindInput, "port must be non-zero")
	case (src.To4() == nil) != (dst.To4() == nil):
		err = errors.New(errors.KindInput, "address families differ")
	}
	if err != nil {
		return nil, nil, false, errors.Attr(err, "request", r.String())
	}
	return src, dst, src.To4() == nil, nil
}

// BuildReset serializes an IP+TCP reset for req with checksums filled in.
func BuildReset(req Request) (Packet, error) {
	src, dst, v6, err := req.addrs()
	if err != nil {
		return Packet{}, err
	}

	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(req.SPort),
		DstPort: layers.TCPPort(req.DPort),
		Seq:     req.Seq,
		Ack:     req.Ack,
		RST:     true,
		ACK:     req.Ack != 0,
	}

	var network gopacket.SerializableLayer
	if v6 {
		ip := &layers.IPv6{
			Version:    6,
			HopLimit:   resetTTL,
			NextHeader: layers.IPProtocolTCP,
			SrcIP:      src,
			DstIP:      dst,
		}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return Packet{}, errors.Wrap(err, errors.KindInternal, "tcp checksum")
		}
		network = ip
	} else {
		ip := &layers.IPv4{
			Version:  4,
			IHL:      5,
			TTL:      resetTTL,
			Flags:    layers.IPv4DontFragment,
			Protocol: layers.IPProtocolTCP,
			SrcIP:    src.To4(),
			DstIP:    dst.To4(),
		}
		if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
			return Packet{}, errors.Wrap(err, errors.KindInternal, "tcp checksum")
		}
		network = ip
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, network, tcp); err != nil {
		return Packet{}, errors.Wrap(err, errors.KindInternal, "serialize reset")
	}
	return Packet{IPv6: v6, Dst: dst, Bytes: buf.Bytes()}, nil
}
