package proxy

import (
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// forwarder holds the single pooled HTTP/1.1 client shared by every
// proxied request, per spec.md §9 ("the proxy's HTTP client is a
// single pooled instance shared by every request").
type forwarder struct {
	client *http.Client
}

func newForwarder() *forwarder {
	return &forwarder{
		client: &http.Client{
			// CheckRedirect disabled: upstream responses (including
			// redirects) must be returned verbatim to the caller.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// forwardHTTP rewrites the request's authority to the function's
// sandbox address and relays the upstream response verbatim. The
// client does not set its own Host header. Header names travel in
// net/http's canonical form, so their original case is not preserved,
// and a response with malformed headers fails the request as an
// upstream error instead of being relayed.
func (f *forwarder) forwardHTTP(w http.ResponseWriter, r *http.Request, authority string, log *slog.Logger) {
	target := *r.URL
	target.Scheme = "http"
	target.Host = authority

	outReq := r.Clone(r.Context())
	outReq.URL = &target
	outReq.RequestURI = ""
	outReq.Host = "" // do not set our own Host header; let it follow target.Host

	resp, err := f.client.Do(outReq)
	if err != nil {
		log.Warn("proxy: upstream request failed", slog.String("authority", authority), slog.Any("error", err))
		writeError(w, upstreamError(err))
		return
	}
	defer resp.Body.Close()

	dst := w.Header()
	for k, vv := range resp.Header {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
}

func wsURL(authority string, r *http.Request) string {
	u := url.URL{Scheme: "ws", Host: authority, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	return u.String()
}
