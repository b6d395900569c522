// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package capture

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/appwall/internal/errors"
)

func header(caplen, length uint32) []byte {
	b := make([]byte, RecordHeaderLen)
	binary.LittleEndian.PutUint32(b[0:], 1)
	binary.LittleEndian.PutUint32(b[4:], 2)
	binary.LittleEndian.PutUint32(b[8:], caplen)
	binary.LittleEndian.PutUint32(b[12:], length)
	return b
}

func TestReadRecord_BadLengths(t *testing.T) {
	_, _, err := ReadRecord(bytes.NewReader(header(10, 5)))
	require.Error(t, err)
	assert.Equal(t, errors.KindInput, errors.GetKind(err))

	_, _, err = ReadRecord(bytes.NewReader(header(maxRecordLen+1, maxRecordLen+1)))
	require.Error(t, err)
}

func TestReadRecord_Truncated(t *testing.T) {
	_, _, err := ReadRecord(bytes.NewReader(header(10, 10)[:7]))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, _, err = ReadRecord(bytes.NewReader(header(10, 10)))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, _, err = ReadRecord(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}

func dnsQueryFrame(t *testing.T, name string, response bool) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(192, 168, 1, 10),
		DstIP:    net.IPv4(192, 168, 1, 1),
	}
	udp := &layers.UDP{SrcPort: 53000, DstPort: 53}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	dns := &layers.DNS{
		ID:        7,
		QR:        response,
		RD:        true,
		Questions: []layers.DNSQuestion{{Name: []byte(name), Type: layers.DNSTypeA, Class: layers.DNSClassIN}},
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, dns))
	return buf.Bytes()
}

func TestDNSQuestions(t *testing.T) {
	assert.Equal(t, []string{"ads.tracker.com"}, dnsQuestions(dnsQueryFrame(t, "ads.tracker.com", false)))
	assert.Nil(t, dnsQuestions(dnsQueryFrame(t, "ads.tracker.com", true)), "responses are ignored")
	assert.Nil(t, dnsQuestions([]byte{1, 2, 3}))
}

func TestPickDevice(t *testing.T) {
	addr := []pcap.InterfaceAddress{{IP: net.IPv4(10, 0, 0, 2), Netmask: net.CIDRMask(24, 32)}}
	devs := []pcap.Interface{
		{Name: "lo", Flags: pcapIfLoopback | pcapIfUp, Addresses: addr},
		{Name: "eth0", Flags: 0, Addresses: addr},
		{Name: "eth1", Flags: pcapIfUp},
		{Name: "eth2", Flags: pcapIfUp, Addresses: addr},
	}
	assert.Equal(t, "eth2", pickDevice(devs))
	assert.Empty(t, pickDevice(devs[:3]))
}

func TestDeviceNetwork(t *testing.T) {
	devs := []pcap.Interface{{
		Name: "eth0",
		Addresses: []pcap.InterfaceAddress{
			{IP: net.ParseIP("fe80::1"), Netmask: net.CIDRMask(64, 128)},
			{IP: net.IPv4(10, 0, 0, 2), Netmask: net.IPv4Mask(255, 255, 255, 0)},
		},
	}}

	n, err := deviceNetwork(devs, "eth0")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/24", n.String())

	_, err = deviceNetwork(devs, "eth9")
	assert.Equal(t, errors.KindNotFound, errors.GetKind(err))
}

func TestCheckLinkType(t *testing.T) {
	assert.NoError(t, checkLinkType(layers.LinkTypeEthernet))

	err := checkLinkType(layers.LinkTypeRaw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLinkType)
	assert.True(t, errors.IsFatal(err))
}
