package routing

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"syscall"

	"github.com/vishvananda/netlink"

	"grimm.is/uplinkd/internal/config"
	"grimm.is/uplinkd/internal/events"
	"grimm.is/uplinkd/internal/logging"
)

// Applier translates arbitration decisions into idempotent kernel route
// mutations. It is the single writer for entries managed by this daemon;
// the private protocol tag keeps them distinguishable from routes owned
// by DHCP or other actors.
type Applier struct {
	mu       sync.Mutex
	nl       Netlinker
	specs    map[string]config.RouteSpec
	protocol int
	hub      *events.Hub
	logger   *logging.Logger

	// lastActive is the last successfully applied active route. Empty
	// until the first reconciliation succeeds, or after a failed one.
	lastActive string
}

// NewApplier creates an applier over the configured routes.
// A nil Netlinker selects the platform default.
func NewApplier(nl Netlinker, specs []config.RouteSpec, protocol int, hub *events.Hub, logger *logging.Logger) *Applier {
	if nl == nil {
		nl = DefaultNetlinker
	}
	if logger == nil {
		logger = logging.Default()
	}
	byName := make(map[string]config.RouteSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}
	return &Applier{
		nl:       nl,
		specs:    byName,
		protocol: protocol,
		hub:      hub,
		logger:   logger.WithComponent("applier"),
	}
}

// LastApplied returns the name of the last successfully applied route.
func (a *Applier) LastApplied() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastActive
}

// Reconcile brings kernel state in line with the decision. Unchanged
// decisions are a no-op; on change the previous managed entry is
// removed, then the new active route installed. Install failure leaves
// the decision unapplied so the next reconciliation retries it.
func (a *Applier) Reconcile(d Decision) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if d.Active == "" {
		return fmt.Errorf("decision has no active route")
	}
	if d.Active == a.lastActive {
		return nil
	}

	spec, ok := a.specs[d.Active]
	if !ok {
		return fmt.Errorf("decision names unknown route %q", d.Active)
	}

	if a.lastActive != "" {
		a.removeManaged(a.specs[a.lastActive])
	}
	// Reconciling from a clean slate still has to clear whatever a
	// previous run left behind for this destination.
	prev := a.lastActive
	a.lastActive = ""

	if err := a.install(spec); err != nil {
		a.logger.Error("failed to install route",
			"route", spec.Name, "destination", spec.Destination, "error", err)
		if a.hub != nil {
			a.hub.EmitRouteChange(events.EventRouteError,
				spec.Name, spec.Destination, spec.Gateway, spec.Interface, spec.Metric, err)
		}
		return fmt.Errorf("install route %q: %w", spec.Name, err)
	}

	a.lastActive = d.Active
	a.logger.Info("active route switched",
		"from", orNone(prev), "to", d.Active, "fallback", d.Fallback)
	if a.hub != nil {
		a.hub.EmitRouteChange(events.EventRouteAdded,
			spec.Name, spec.Destination, spec.Gateway, spec.Interface, spec.Metric, nil)
	}
	return nil
}

// install replaces the kernel entry for the spec's destination. Replace
// semantics make repeat installs a kernel-level no-op. A gateway the
// kernel rejects as an invalid nexthop is retried as a device route,
// which covers point-to-point links that have no gateway hop.
func (a *Applier) install(spec config.RouteSpec) error {
	route, err := a.buildRoute(spec, true)
	if err != nil {
		return err
	}

	err = a.nl.RouteReplace(route)
	if err != nil && route.Gw != nil && isBadNexthop(err) {
		a.logger.Warn("gateway rejected, retrying as device route",
			"route", spec.Name, "gateway", spec.Gateway, "error", err)
		route.Gw = nil
		err = a.nl.RouteReplace(route)
	}
	if err != nil && errors.Is(err, syscall.EEXIST) {
		// Already present exactly as requested.
		return nil
	}
	return err
}

// removeManaged deletes the managed kernel entry for a previously
// active spec. A route the kernel already dropped (link death removes
// its routes) counts as removed.
func (a *Applier) removeManaged(spec config.RouteSpec) {
	route, err := a.buildRoute(spec, true)
	if err != nil {
		a.logger.Warn("cannot resolve previous route for removal", "route", spec.Name, "error", err)
		route, err = a.buildRoute(spec, false)
		if err != nil {
			return
		}
	}

	err = a.nl.RouteDel(route)
	if err != nil && !isNotFound(err) {
		a.logger.Error("failed to remove route", "route", spec.Name, "error", err)
		if a.hub != nil {
			a.hub.EmitRouteChange(events.EventRouteError,
				spec.Name, spec.Destination, spec.Gateway, spec.Interface, spec.Metric, err)
		}
		return
	}

	a.logger.Info("route removed", "route", spec.Name, "destination", spec.Destination)
	if a.hub != nil {
		a.hub.EmitRouteChange(events.EventRouteRemoved,
			spec.Name, spec.Destination, spec.Gateway, spec.Interface, spec.Metric, nil)
	}
}

// buildRoute maps a spec onto a netlink route. With resolveLink false
// the link index is left zero, enough for a best-effort delete when the
// interface itself has vanished.
func (a *Applier) buildRoute(spec config.RouteSpec, resolveLink bool) (*netlink.Route, error) {
	dst, err := a.nl.ParseIPNet(config.NormalizeDest(spec.Destination))
	if err != nil {
		return nil, fmt.Errorf("parse destination %q: %w", spec.Destination, err)
	}

	route := &netlink.Route{
		Dst:      dst,
		Priority: spec.Metric,
		Protocol: netlink.RouteProtocol(a.protocol),
	}
	if spec.Gateway != "" {
		route.Gw = net.ParseIP(spec.Gateway)
	}
	if resolveLink {
		link, err := a.nl.LinkByName(spec.Interface)
		if err != nil {
			return nil, fmt.Errorf("lookup interface %q: %w", spec.Interface, err)
		}
		route.LinkIndex = link.Attrs().Index
	}
	return route, nil
}

// Cleanup deletes every kernel route carrying the daemon's protocol
// tag. Invoked at shutdown only when cleanup_on_exit is configured;
// routes installed by anything else are never touched.
func (a *Applier) Cleanup() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	managed, err := a.nl.RouteListFiltered(netlink.FAMILY_V4,
		&netlink.Route{Protocol: netlink.RouteProtocol(a.protocol)}, netlink.RT_FILTER_PROTOCOL)
	if err != nil {
		return fmt.Errorf("list managed routes: %w", err)
	}

	var firstErr error
	for i := range managed {
		route := managed[i]
		if err := a.nl.RouteDel(&route); err != nil && !isNotFound(err) {
			a.logger.Error("cleanup failed for route", "destination", route.Dst, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		a.logger.Info("cleaned up managed route", "destination", route.Dst)
	}
	a.lastActive = ""
	return firstErr
}

// DiscoverGateway finds a usable gateway for an interface from its
// existing kernel routes: the default route's nexthop when present,
// otherwise the first route that has one.
func DiscoverGateway(nl Netlinker, iface string) (string, error) {
	if nl == nil {
		nl = DefaultNetlinker
	}
	link, err := nl.LinkByName(iface)
	if err != nil {
		return "", fmt.Errorf("lookup interface %q: %w", iface, err)
	}
	routes, err := nl.RouteList(link, netlink.FAMILY_V4)
	if err != nil {
		return "", fmt.Errorf("list routes for %q: %w", iface, err)
	}

	var candidate string
	for _, r := range routes {
		if r.Gw == nil {
			continue
		}
		if r.Dst == nil {
			return r.Gw.String(), nil // default route wins
		}
		if candidate == "" {
			candidate = r.Gw.String()
		}
	}
	return candidate, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, syscall.ESRCH) || errors.Is(err, syscall.ENOENT)
}

func isBadNexthop(err error) bool {
	return errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EINVAL)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
