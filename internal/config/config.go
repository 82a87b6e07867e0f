// Package config holds the control plane's run-time configuration,
// assembled directly from CLI flags (the externally visible
// configuration surface is exactly the CLI, per spec.md §6).
package config

import "path/filepath"

// Config is the composition root's configuration bag. Fields are set
// once at startup from CLI flags; nothing here is hot-reloaded today,
// but it is kept as a single struct threaded through the composition
// root the way the rest of the ambient stack expects, so a future
// --flush-interval reload has somewhere to live.
type Config struct {
	// Path is the root directory under which functions and users.json
	// are persisted.
	Path string
	// Addr is the IP address the control-plane HTTP server binds to.
	Addr string
	// Port is the TCP port the control-plane HTTP server binds to.
	Port int
	// Host is the configured domain suffix used for subdomain routing.
	// Required; there is no default.
	Host string
	// OTelEndpoint, if non-empty, is the OTLP/HTTP collector endpoint
	// traces are exported to.
	OTelEndpoint string
	// AuditDBPath is the path to the deployment audit log database.
	AuditDBPath string
	// FlushInterval is an optional cron expression overriding the
	// fixed 12-minute persistence sweep.
	FlushInterval string
}

// Defaults returns a Config with the spec-mandated CLI flag defaults:
// path "./", addr "127.0.0.1", port 8080. Host has no default — it is
// a required flag.
func Defaults() Config {
	return Config{
		Path: "./",
		Addr: "127.0.0.1",
		Port: 8080,
	}
}

// AuditDBDefault derives the default audit database path from the
// storage root when --audit-db is not set.
func AuditDBDefault(root string) string {
	return filepath.Join(root, "audit.db")
}
