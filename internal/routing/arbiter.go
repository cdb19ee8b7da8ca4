// Package routing contains the decision engine and the kernel-facing
// applier. The arbiter is pure: given the health of every configured
// route it deterministically selects which one should carry traffic.
// The applier is the single writer of managed kernel route entries.
package routing

import (
	"fmt"
	"sort"

	"grimm.is/uplinkd/internal/config"
	"grimm.is/uplinkd/internal/health"
)

// Decision is the output of one arbitration round: the ordered set of
// routes eligible to carry traffic and the single active route. It is
// superseded entirely by the next recomputation.
type Decision struct {
	// Eligible lists all UP routes ordered by priority, then metric,
	// then configuration order.
	Eligible []string

	// Active is the route that should hold the kernel entry. When no
	// route is UP this is the lowest-priority route regardless of
	// health, so some path stays installed rather than none.
	Active string

	// Fallback marks a decision taken with an empty UP set.
	Fallback bool
}

// Equal reports whether two decisions would lead to the same kernel state.
func (d Decision) Equal(other Decision) bool {
	if d.Active != other.Active || d.Fallback != other.Fallback {
		return false
	}
	if len(d.Eligible) != len(other.Eligible) {
		return false
	}
	for i := range d.Eligible {
		if d.Eligible[i] != other.Eligible[i] {
			return false
		}
	}
	return true
}

// Arbiter ranks configured routes. It holds no mutable state: calling
// Recompute twice with the same input yields the same decision.
type Arbiter struct {
	specs []config.RouteSpec
	index map[string]int // configuration order, the final tie-break
}

// NewArbiter creates an arbiter over the configured routes. An empty
// set is an invariant violation: validation upstream must reject it.
func NewArbiter(specs []config.RouteSpec) (*Arbiter, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("arbiter requires at least one configured route")
	}
	index := make(map[string]int, len(specs))
	for i, s := range specs {
		index[s.Name] = i
	}
	return &Arbiter{specs: specs, index: index}, nil
}

// Recompute derives the decision from the current health of all routes.
// A route missing from states counts as DOWN.
func (a *Arbiter) Recompute(states map[string]health.State) Decision {
	up := make([]config.RouteSpec, 0, len(a.specs))
	for _, s := range a.specs {
		if st, ok := states[s.Name]; ok && st.Up() {
			up = append(up, s)
		}
	}

	if len(up) == 0 {
		all := make([]config.RouteSpec, len(a.specs))
		copy(all, a.specs)
		a.rank(all)
		return Decision{Active: all[0].Name, Fallback: true}
	}

	a.rank(up)
	eligible := make([]string, len(up))
	for i, s := range up {
		eligible[i] = s.Name
	}
	return Decision{Eligible: eligible, Active: eligible[0]}
}

// rank orders specs by priority, then metric, then configuration order.
func (a *Arbiter) rank(specs []config.RouteSpec) {
	sort.SliceStable(specs, func(i, j int) bool {
		if specs[i].Priority != specs[j].Priority {
			return specs[i].Priority < specs[j].Priority
		}
		if specs[i].Metric != specs[j].Metric {
			return specs[i].Metric < specs[j].Metric
		}
		return a.index[specs[i].Name] < a.index[specs[j].Name]
	})
}
