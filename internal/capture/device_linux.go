// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

//go:build linux

package capture

import (
	"github.com/vishvananda/netlink"

	"grimm.is/appwall/internal/errors"
)

// defaultRouteDevice returns the link name of the lowest-priority IPv4
// default route.
func defaultRouteDevice() (string, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return "", errors.Wrap(err, errors.KindIO, "list routes")
	}

	best := -1
	for i, r := range routes {
		if r.Dst != nil {
			if ones, _ := r.Dst.Mask.Size(); ones != 0 {
				continue
			}
		}
		if best < 0 || r.Priority < routes[best].Priority {
			best = i
		}
	}
	if best < 0 {
		return "", errors.New(errors.KindNotFound, "no default route")
	}

	link, err := netlink.LinkByIndex(routes[best].LinkIndex)
	if err != nil {
		return "", errors.Wrap(err, errors.KindIO, "resolve default route link")
	}
	return link.Attrs().Name, nil
}
