package routing

import (
	"net"

	"github.com/vishvananda/netlink"
)

// Netlinker abstracts the kernel route-table primitive so the applier
// can be exercised against a mock. The real implementation is
// platform-specific; non-Linux builds get a stub.
type Netlinker interface {
	LinkByName(name string) (netlink.Link, error)

	RouteList(link netlink.Link, family int) ([]netlink.Route, error)
	RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error)
	RouteReplace(route *netlink.Route) error
	RouteDel(route *netlink.Route) error

	ParseIPNet(s string) (*net.IPNet, error)
}
