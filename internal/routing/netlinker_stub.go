//go:build !linux
// +build !linux

package routing

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// DefaultNetlinker is the default RealNetlinker instance (stub).
var DefaultNetlinker Netlinker = &RealNetlinker{}

// RealNetlinker is a stub implementation for non-Linux platforms.
// It exists so the daemon compiles and its tests run anywhere.
type RealNetlinker struct{}

func (r *RealNetlinker) LinkByName(name string) (netlink.Link, error) {
	return nil, fmt.Errorf("LinkByName not supported on this platform")
}

func (r *RealNetlinker) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	return nil, nil
}

func (r *RealNetlinker) RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error) {
	return nil, nil
}

func (r *RealNetlinker) RouteReplace(route *netlink.Route) error {
	return fmt.Errorf("RouteReplace not supported on this platform")
}

func (r *RealNetlinker) RouteDel(route *netlink.Route) error {
	return fmt.Errorf("RouteDel not supported on this platform")
}

func (r *RealNetlinker) ParseIPNet(s string) (*net.IPNet, error) {
	_, ipNet, err := net.ParseCIDR(s)
	if err != nil {
		return nil, err
	}
	return ipNet, nil
}
