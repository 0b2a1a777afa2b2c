package httpclient

import (
	stderrors "errors"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
)

// ErrorPolicy wraps errors with the target URL and a stack trace
type ErrorPolicy struct{}

// NewErrorPolicy creates a new ErrorPolicy
func NewErrorPolicy() *ErrorPolicy {
	return &ErrorPolicy{}
}

// Do implements Policy interface
func (p *ErrorPolicy) Do(
	req *http.Request,
	next Next,
) (*http.Response, error) {
	resp, err := next(req)
	if err != nil {
		target := redactURL(req.URL, DefaultQueryFilters)
		var urlErr *url.Error
		if stderrors.As(err, &urlErr) {
			urlErr.URL = target
		}
		return resp, errors.Wrapf(err, "request to %s failed", target)
	}
	return resp, nil
}
