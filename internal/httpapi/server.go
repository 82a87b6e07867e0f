// Package httpapi implements the HTTP control API: verb-and-path
// endpoints for every admin operation against the function registry,
// user manager, and deployment coordinator. Handlers are cheap glue —
// authenticate, optionally check a function-scoped group, call the
// underlying manager, write JSON — they carry no independent state.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/nextlevelbuilder/fnhost/internal/audit"
	"github.com/nextlevelbuilder/fnhost/internal/deploy"
	"github.com/nextlevelbuilder/fnhost/internal/registry"
	"github.com/nextlevelbuilder/fnhost/internal/users"
)

// Server aggregates every dependency the control-API handlers need.
type Server struct {
	Registry    *registry.Manager
	Users       *users.Manager
	Coordinator *deploy.Coordinator
	Audit       *audit.Store // optional; nil disables the audit endpoint
	log         *slog.Logger
}

// New constructs a Server. log defaults to slog.Default() when nil.
func New(reg *registry.Manager, um *users.Manager, coord *deploy.Coordinator, auditStore *audit.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{Registry: reg, Users: um, Coordinator: coord, Audit: auditStore, log: log}
}

// BuildMux assembles the control-API route table. This mux is the
// "Next" handler the reverse proxy falls through to for any request
// whose Host header did not match a function subdomain.
func (s *Server) BuildMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/upload/{key}", s.wrap(s.handleUpload))
	mux.HandleFunc("GET /api/get/{key}", s.wrap(s.handleGet))
	mux.HandleFunc("PUT /api/override/{key}", s.wrap(s.handleOverride))
	mux.HandleFunc("PATCH /api/alias/{key}", s.wrap(s.handleAlias))
	mux.HandleFunc("DELETE /api/remove/{key}", s.wrap(s.handleRemove))
	mux.HandleFunc("POST /api/deploy/{key}", s.wrap(s.handleDeploy))
	mux.HandleFunc("POST /api/kill/{key}", s.wrap(s.handleKill))
	mux.HandleFunc("GET /api/status/{key}", s.wrap(s.handleStatus))
	if s.Audit != nil {
		mux.HandleFunc("GET /api/audit/{key}", s.wrap(s.handleAudit))
	}

	mux.HandleFunc("POST /api/user/add", s.wrap(s.handleUserAdd))
	mux.HandleFunc("DELETE /api/user/remove/{user}", s.wrap(s.handleUserRemove))
	mux.HandleFunc("GET /api/user/get/{user}", s.wrap(s.handleUserGet))
	mux.HandleFunc("GET /api/user/get", s.wrap(s.handleUserGet))
	mux.HandleFunc("POST /api/user/request-token", s.wrap(s.handleRequestToken))
	mux.HandleFunc("PUT /api/user/modify", s.wrap(s.handleUserModify))

	return mux
}
