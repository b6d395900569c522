// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package capture

import (
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// dnsQuestions returns the question names of a DNS query carried in an
// Ethernet frame, or nil if the frame is not one.
func dnsQuestions(data []byte) []string {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})

	dnsLayer := packet.Layer(layers.LayerTypeDNS)
	if dnsLayer == nil {
		return nil
	}
	dns, _ := dnsLayer.(*layers.DNS)
	if dns.QR {
		return nil
	}

	names := make([]string, 0, len(dns.Questions))
	for _, q := range dns.Questions {
		names = append(names, string(q.Name))
	}
	return names
}
