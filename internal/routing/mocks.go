package routing

import (
	"net"

	"github.com/stretchr/testify/mock"
	"github.com/vishvananda/netlink"
)

// MockNetlinker is a mock implementation of the Netlinker interface.
type MockNetlinker struct {
	mock.Mock
}

func (m *MockNetlinker) LinkByName(name string) (netlink.Link, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(netlink.Link), args.Error(1)
}

func (m *MockNetlinker) RouteList(link netlink.Link, family int) ([]netlink.Route, error) {
	args := m.Called(link, family)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Route), args.Error(1)
}

func (m *MockNetlinker) RouteListFiltered(family int, filter *netlink.Route, filterMask uint64) ([]netlink.Route, error) {
	args := m.Called(family, filter, filterMask)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]netlink.Route), args.Error(1)
}

func (m *MockNetlinker) RouteReplace(route *netlink.Route) error {
	args := m.Called(route)
	return args.Error(0)
}

func (m *MockNetlinker) RouteDel(route *netlink.Route) error {
	args := m.Called(route)
	return args.Error(0)
}

func (m *MockNetlinker) ParseIPNet(s string) (*net.IPNet, error) {
	_, ipNet, err := net.ParseCIDR(s)
	if err != nil {
		return nil, err
	}
	return ipNet, nil
}
