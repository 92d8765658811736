// Package llm holds what the generation adapters share.
package llm

import (
	"net/http"
	"time"
)

// NewHTTPClient returns a client for model APIs. headerTimeout bounds the
// wait for response headers only; a streamed body may take as long as the
// request context allows. Batch calls are bounded by their context.
func NewHTTPClient(headerTimeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.ResponseHeaderTimeout = headerTimeout
	return &http.Client{Transport: tr}
}
