// Package transport provides the HTTP layer every backend call goes through:
// timeouts, proxying, rate limiting, request ids and timing statistics.
package transport

// Request is one outgoing call.
type Request struct {
	// Method defaults to GET.
	Method string

	// URL is the absolute target URL.
	URL string

	// Headers are set after the defaults and win over them.
	Headers map[string]string

	Body        []byte
	ContentType string
}
