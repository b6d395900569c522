// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package capture

import (
	"net"

	"github.com/gopacket/gopacket/pcap"

	"grimm.is/appwall/internal/errors"
)

// DefaultDevice picks the capture interface: the link carrying the IPv4
// default route where the platform can tell, otherwise the first pcap device
// that is up, not loopback, and has an address.
func DefaultDevice() (string, error) {
	if name, err := defaultRouteDevice(); err == nil && name != "" {
		return name, nil
	}

	devs, err := pcap.FindAllDevs()
	if err != nil {
		return "", errors.Wrap(errors.Join(ErrNoDevice, err), errors.KindSetup, "list capture devices")
	}
	if name := pickDevice(devs); name != "" {
		return name, nil
	}
	return "", errors.Wrap(ErrNoDevice, errors.KindSetup, "no usable capture device")
}

func pickDevice(devs []pcap.Interface) string {
	for _, d := range devs {
		if d.Flags&pcapIfLoopback != 0 || d.Flags&pcapIfUp == 0 {
			continue
		}
		if len(d.Addresses) == 0 {
			continue
		}
		return d.Name
	}
	return ""
}

// pcap_if_t flag bits
const (
	pcapIfLoopback = 0x1
	pcapIfUp       = 0x2
)

// DeviceNetwork returns the first IPv4 network of dev. A failed lookup is
// not an error for callers; filtering works without a mask.
func DeviceNetwork(dev string) (*net.IPNet, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindIO, "list capture devices")
	}
	return deviceNetwork(devs, dev)
}

func deviceNetwork(devs []pcap.Interface, dev string) (*net.IPNet, error) {
	for _, d := range devs {
		if d.Name != dev {
			continue
		}
		for _, a := range d.Addresses {
			if ip4 := a.IP.To4(); ip4 != nil && a.Netmask != nil {
				return &net.IPNet{IP: ip4.Mask(a.Netmask), Mask: a.Netmask}, nil
			}
		}
		return nil, errors.Attr(errors.New(errors.KindNotFound, "device has no IPv4 network"), "device", dev)
	}
	return nil, errors.Attr(errors.New(errors.KindNotFound, "device not found"), "device", dev)
}
