package services

import "github.com/vigil-run/vigil/internal/core/domain"

// Route maps alerts whose labels contain every matcher pair to a policy.
// An empty matcher set matches everything, so a route placed last doubles as
// the default fallback.
type Route struct {
	Matchers map[string]string
	PolicyID domain.PolicyID
}

// Router is an ordered first-match route table. It is immutable after
// construction; replace the whole router to change routing.
type Router struct {
	routes []Route
}

// NewRouter builds a router from an ordered route list.
func NewRouter(routes []Route) *Router {
	return &Router{routes: routes}
}

// Match returns the policy of the first route whose matchers are a subset of
// the labels.
func (r *Router) Match(labels map[string]string) (domain.PolicyID, bool) {
	for _, route := range r.routes {
		if matchesAll(route.Matchers, labels) {
			return route.PolicyID, true
		}
	}
	return domain.PolicyID{}, false
}

func matchesAll(matchers, labels map[string]string) bool {
	for k, v := range matchers {
		if labels[k] != v {
			return false
		}
	}
	return true
}
