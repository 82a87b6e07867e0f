// Package proxy implements the subdomain-based reverse proxy: Host
// header matching against the configured routing suffix, HTTP
// forwarding to a function's sandboxed address, and the bidirectional
// WebSocket bridge.
package proxy

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
)

// Table is the concurrent prefix -> authority map the deployment
// coordinator updates on start/stop. Reads are concurrent with
// writes.
type Table struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewTable() *Table {
	return &Table{entries: make(map[string]string)}
}

func (t *Table) Set(prefix, authority string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[prefix] = authority
}

func (t *Table) Delete(prefix string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, prefix)
}

func (t *Table) Lookup(prefix string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	authority, ok := t.entries[prefix]
	return authority, ok
}

// Proxy is the middleware placed above all control-API routes. It
// matches the Host header against the Host suffix (with or without a
// port) and either forwards
// to a running function or calls Next (the control-API router).
type Proxy struct {
	Host      string // configured routing suffix, e.g. "example.test"
	Table     *Table
	Next      http.Handler
	Log       *slog.Logger
	forwarder *forwarder
}

// New constructs a Proxy. host is the configured domain suffix used
// for subdomain routing (spec.md §4.5); next handles any request whose
// Host header does not match a function subdomain.
func New(host string, table *Table, next http.Handler, log *slog.Logger) *Proxy {
	if log == nil {
		log = slog.Default()
	}
	return &Proxy{Host: host, Table: table, Next: next, Log: log, forwarder: newForwarder()}
}

func (p *Proxy) logger() *slog.Logger {
	if p.Log != nil {
		return p.Log
	}
	return slog.Default()
}

// ServeHTTP implements the middleware contract described in spec.md
// §4.5: strip the ".<host>:<port>" suffix first, then the plain
// ".<host>" suffix; the stated order is the control plane's
// authoritative external contract (see DESIGN.md for why this is kept
// even though the grounding source tries the bare-host suffix first).
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	host := r.Host
	if host == "" {
		host = r.Header.Get("Host")
	}
	if host == "" || !isASCII(host) {
		writeError(w, missingHostError())
		return
	}

	prefix, matched := stripHostSuffix(host, p.Host)
	if !matched {
		p.Next.ServeHTTP(w, r)
		return
	}

	authority, ok := p.Table.Lookup(prefix)
	if !ok {
		writeError(w, functionNotRunningError(prefix))
		return
	}

	if isWebSocketUpgrade(r) {
		p.forwarder.bridgeWebSocket(w, r, authority, p.logger())
		return
	}
	p.forwarder.forwardHTTP(w, r, authority, p.logger())
}

// stripHostSuffix attempts ".<host>:<port>" first, then ".<host>".
// Returns the remaining routing prefix and whether either matched.
func stripHostSuffix(host, configuredHost string) (string, bool) {
	withPort := "." + configuredHost
	// Try the host:port form first: the header may include an explicit
	// port, so match any ".<host>:<anything>" tail.
	if idx := strings.LastIndex(host, withPort+":"); idx >= 0 && idx+len(withPort) < len(host) {
		return host[:idx], true
	}
	if strings.HasSuffix(host, withPort) {
		return strings.TrimSuffix(host, withPort), true
	}
	return "", false
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

func isWebSocketUpgrade(r *http.Request) bool {
	if r.Method == http.MethodConnect {
		return true
	}
	conn := strings.ToLower(r.Header.Get("Connection"))
	upgrade := strings.ToLower(r.Header.Get("Upgrade"))
	return strings.Contains(conn, "upgrade") && upgrade == "websocket"
}
