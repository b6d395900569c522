// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package capture runs the packet capture relay: a live pcap handle filtered
// down to connection attempts, whose packets are streamed to one local client.
package capture

import (
	stderrors "errors"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/gopacket/gopacket/pcap"

	"grimm.is/appwall/internal/errors"
	"grimm.is/appwall/internal/logging"
)

var (
	ErrNoDevice = stderrors.New("capture device not found")
	ErrFilter   = stderrors.New("capture filter rejected")
	ErrLinkType = stderrors.New("unsupported link type")
)

// Handle is the part of *pcap.Handle the relay uses.
type Handle interface {
	gopacket.PacketDataSource
	Stats() (*pcap.Stats, error)
	Close()
}

// HandleOptions configures OpenLive.
type HandleOptions struct {
	Interface   string // empty selects DefaultDevice
	Filter      string
	SnapLen     int
	BufferSize  int
	ReadTimeout time.Duration
}

// OpenLive opens a non-promiscuous capture on the configured interface and
// installs the filter. Every failure is a KindSetup error.
func OpenLive(opts HandleOptions, logger *logging.Logger) (*pcap.Handle, error) {
	dev := opts.Interface
	if dev == "" {
		var err error
		if dev, err = DefaultDevice(); err != nil {
			return nil, err
		}
	}
	logger = logger.With("device", dev)

	if network, err := DeviceNetwork(dev); err != nil {
		logger.Warn("Could not get netmask for device", errors.LogArgs(err)...)
	} else {
		logger.Info("Capture device network", "network", network.String())
	}

	inactive, err := pcap.NewInactiveHandle(dev)
	if err != nil {
		return nil, setupErr(errors.Join(ErrNoDevice, err), "create capture handle", dev)
	}
	defer inactive.CleanUp()

	if err := inactive.SetSnapLen(opts.SnapLen); err != nil {
		return nil, setupErr(err, "set snaplen", dev)
	}
	if err := inactive.SetPromisc(false); err != nil {
		return nil, setupErr(err, "set promiscuous mode", dev)
	}
	if err := inactive.SetTimeout(opts.ReadTimeout); err != nil {
		return nil, setupErr(err, "set read timeout", dev)
	}
	if opts.BufferSize > 0 {
		if err := inactive.SetBufferSize(opts.BufferSize); err != nil {
			return nil, setupErr(err, "set buffer size", dev)
		}
	}

	handle, err := inactive.Activate()
	if err != nil {
		return nil, setupErr(errors.Join(ErrNoDevice, err), "activate capture handle", dev)
	}
	if err := configure(handle, opts.Filter); err != nil {
		handle.Close()
		return nil, errors.Attr(err, "device", dev)
	}

	logger.Info("Capture started", "snaplen", opts.SnapLen, "buffer", opts.BufferSize, "timeout", opts.ReadTimeout)
	return handle, nil
}

// OpenOffline replays a capture file through the same filter, for testing a
// front end against recorded traffic.
func OpenOffline(path, filter string) (*pcap.Handle, error) {
	handle, err := pcap.OpenOffline(path)
	if err != nil {
		return nil, errors.Attr(errors.Wrap(err, errors.KindSetup, "open capture file"), "path", path)
	}
	if err := configure(handle, filter); err != nil {
		handle.Close()
		return nil, errors.Attr(err, "path", path)
	}
	return handle, nil
}

func configure(handle *pcap.Handle, filter string) error {
	if filter != "" {
		if err := handle.SetBPFFilter(filter); err != nil {
			return errors.Attr(errors.Wrap(errors.Join(ErrFilter, err), errors.KindSetup, "install filter"), "filter", filter)
		}
	}
	return checkLinkType(handle.LinkType())
}

func checkLinkType(lt layers.LinkType) error {
	if lt != layers.LinkTypeEthernet {
		return errors.Attr(errors.Wrap(ErrLinkType, errors.KindSetup, "device is not Ethernet"), "link_type", lt.String())
	}
	return nil
}

func setupErr(err error, msg, dev string) error {
	return errors.Attr(errors.Wrap(err, errors.KindSetup, msg), "device", dev)
}
