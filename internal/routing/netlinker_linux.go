//go:build linux
// +build linux

package routing

import (
	"net"

	"github.com/vishvananda/netlink"
)

// DefaultNetlinker is the default RealNetlinker instance.
var DefaultNetlinker Netlinker = &RealNetlinker{}

// RealNetlinker talks to the kernel via the netlink socket.
type RealNetlinker struct{}

func (r *RealNetlinker) LinkByName(name string) (netlink.Link, error) {
	return netlink.LinkByName(name)
}

func (r *RealNetlinker) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	return netlink.RouteList(link, family)
}

func (r *RealNetlinker) RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error) {
	return netlink.RouteListFiltered(family, filter, filterMask)
}

func (r *RealNetlinker) RouteReplace(route *netlink.Route) error {
	return netlink.RouteReplace(route)
}

func (r *RealNetlinker) RouteDel(route *netlink.Route) error {
	return netlink.RouteDel(route)
}

func (r *RealNetlinker) ParseIPNet(s string) (*net.IPNet, error) {
	_, ipNet, err := net.ParseCIDR(s)
	if err != nil {
		return nil, err
	}
	return ipNet, nil
}
