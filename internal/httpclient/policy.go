package httpclient

import (
	"net/http"
)

// Next sends a request through the rest of the chain
type Next func(*http.Request) (*http.Response, error)

// Policy observes or decorates one outbound request. A policy must call next
// exactly once: the relay never resends a request.
type Policy interface {
	Do(req *http.Request, next Next) (*http.Response, error)
}

// PolicyFunc is a function adapter for Policy interface
type PolicyFunc func(req *http.Request, next Next) (*http.Response, error)

// Do implements Policy interface
func (f PolicyFunc) Do(req *http.Request, next Next) (*http.Response, error) {
	return f(req, next)
}

// pipeline wraps send in policies, the first policy outermost
func pipeline(policies []Policy, send Next) Next {
	next := send
	for i := len(policies) - 1; i >= 0; i-- {
		policy, inner := policies[i], next
		next = func(req *http.Request) (*http.Response, error) {
			return policy.Do(req, inner)
		}
	}
	return next
}
