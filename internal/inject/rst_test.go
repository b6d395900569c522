// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package inject

import (
	stderrors "errors"
	"io"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/appwall/internal/errors"
	"grimm.is/appwall/internal/logging"
)

func TestBuildReset_IPv4(t *testing.T) {
	req := Request{Src: "10.0.0.2", Dst: "93.184.216.34", SPort: 51000, DPort: 443, Seq: 1000, Ack: 2000}
	pkt, err := BuildReset(req)
	require.NoError(t, err)
	assert.False(t, pkt.IPv6)
	assert.Equal(t, "93.184.216.34", pkt.Dst.String())

	p := gopacket.NewPacket(pkt.Bytes, layers.LayerTypeIPv4, gopacket.Default)
	require.Nil(t, p.ErrorLayer())

	ip := p.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	assert.Equal(t, "10.0.0.2", ip.SrcIP.String())
	assert.Equal(t, uint8(resetTTL), ip.TTL)
	assert.Equal(t, uint16(len(pkt.Bytes)), ip.Length)

	tcp := p.Layer(layers.LayerTypeTCP).(*layers.TCP)
	assert.True(t, tcp.RST)
	assert.True(t, tcp.ACK)
	assert.False(t, tcp.SYN)
	assert.Equal(t, layers.TCPPort(51000), tcp.SrcPort)
	assert.Equal(t, layers.TCPPort(443), tcp.DstPort)
	assert.Equal(t, uint32(1000), tcp.Seq)
	assert.Equal(t, uint32(2000), tcp.Ack)
	assert.NotZero(t, tcp.Checksum)
}

func TestBuildReset_IPv6NoAck(t *testing.T) {
	pkt, err := BuildReset(Request{Src: "2001:db8::1", Dst: "2001:db8::2", SPort: 40000, DPort: 80, Seq: 7})
	require.NoError(t, err)
	assert.True(t, pkt.IPv6)

	p := gopacket.NewPacket(pkt.Bytes, layers.LayerTypeIPv6, gopacket.Default)
	require.Nil(t, p.ErrorLayer())

	ip := p.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
	assert.Equal(t, layers.IPProtocolTCP, ip.NextHeader)

	tcp := p.Layer(layers.LayerTypeTCP).(*layers.TCP)
	assert.True(t, tcp.RST)
	assert.False(t, tcp.ACK)
	assert.Equal(t, uint32(7), tcp.Seq)
}

func TestBuildReset_Invalid(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"bad src", Request{Src: "nope", Dst: "10.0.0.1", SPort: 1, DPort: 1}},
		{"zero port", Request{Src: "10.0.0.2", Dst: "10.0.0.1", SPort: 0, DPort: 1}},
		{"mixed families", Request{Src: "10.0.0.2", Dst: "::1", SPort: 1, DPort: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildReset(tt.req)
			require.Error(t, err)
			assert.Equal(t, errors.KindInput, errors.GetKind(err))
		})
	}
}

type fakeRaw struct {
	sent   []Packet
	err    error
	closed bool
}

func (f *fakeRaw) send(pkt Packet) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, pkt)
	return nil
}

func (f *fakeRaw) close() error {
	f.closed = true
	return nil
}

func TestSender(t *testing.T) {
	s := NewSender(logging.New(logging.Config{Output: io.Discard}))
	req := Request{Src: "10.0.0.2", Dst: "10.0.0.1", SPort: 1234, DPort: 443, Seq: 1}

	err := s.Reset(req)
	require.Error(t, err, "not initialised")

	raw := &fakeRaw{}
	s.conn = raw
	require.NoError(t, s.Reset(req))
	require.Len(t, raw.sent, 1)

	raw.err = stderrors.New("network unreachable")
	err = s.Reset(req)
	require.Error(t, err)
	assert.Equal(t, errors.KindIO, errors.GetKind(err))

	require.NoError(t, s.Close())
	assert.True(t, raw.closed)
	require.NoError(t, s.Close())
}
