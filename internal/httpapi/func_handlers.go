package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/nextlevelbuilder/fnhost/internal/apierr"
	"github.com/nextlevelbuilder/fnhost/internal/auth"
	"github.com/nextlevelbuilder/fnhost/internal/funckey"
	"github.com/nextlevelbuilder/fnhost/internal/registry"
	"github.com/nextlevelbuilder/fnhost/internal/users"
)

const (
	maskRead    = uint32(users.PermissionRead)
	maskWrite   = uint32(users.PermissionWrite)
	maskExecute = uint32(users.PermissionExecute)
	maskRemove  = uint32(users.PermissionRemove)
	maskAdmin   = uint32(users.PermissionAdmin)
	maskRoot    = uint32(users.PermissionRoot)
)

func pathKey(r *http.Request) (funckey.Key, error) {
	raw := r.PathValue("key")
	key, err := funckey.Parse(raw)
	if err != nil {
		return funckey.Key{}, apierr.New(apierr.KindInvalidKeyFormat, err.Error())
	}
	return key, nil
}

// requireFuncGroup re-authenticates token against the function's own
// group, the "WRITE + func group" style check every mutating function
// endpoint performs after the initial bitmask check.
func (s *Server) requireFuncGroup(token string, cell *registry.Cell) error {
	fn := cell.Snapshot()
	if fn.Config.Group == nil {
		return nil
	}
	return auth.RequireGroup(s.Users, token, *fn.Config.Group)
}

func acceptedContentType(ct string) bool {
	switch ct {
	case "application/x-tar", "application/gzip", "application/x-gzip":
		return true
	default:
		return false
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) error {
	result, err := auth.Authenticate(r, s.Users, maskWrite)
	if err != nil {
		return err
	}
	key, err := pathKey(r)
	if err != nil {
		return err
	}
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return apierr.New(apierr.KindMissingContentType, "missing Content-Type header")
	}
	if !acceptedContentType(ct) {
		return apierr.New(apierr.KindUnsupportedArchive, "unsupported archive content type: "+ct)
	}

	name, _ := s.Users.UserName(result.Token)
	group := users.SingularGroup(name)
	if err := s.Registry.Add(key, &group, r.Body); err != nil {
		if registry.IsDuplicated(err) {
			return apierr.New(apierr.KindDuplicate, err.Error())
		}
		return apierr.Wrap(apierr.KindIO, err)
	}
	if s.Audit != nil {
		_ = s.Audit.RecordUpload(key.String(), name)
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) error {
	if _, err := auth.Authenticate(r, s.Users, maskRead); err != nil {
		return err
	}
	key, err := pathKey(r)
	if err != nil {
		return err
	}
	cell, ok := s.Registry.Get(key)
	if !ok {
		return apierr.New(apierr.KindNotFound, "no such function "+key.String())
	}
	fn := cell.Snapshot()
	writeJSON(w, http.StatusOK, fn)
	return nil
}

func (s *Server) handleOverride(w http.ResponseWriter, r *http.Request) error {
	result, err := auth.Authenticate(r, s.Users, maskWrite)
	if err != nil {
		return err
	}
	key, err := pathKey(r)
	if err != nil {
		return err
	}
	cell, ok := s.Registry.Get(key)
	if !ok {
		return apierr.New(apierr.KindNotFound, "no such function "+key.String())
	}
	if err := s.requireFuncGroup(result.Token, cell); err != nil {
		return err
	}
	var cfg registry.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		return apierr.Wrap(apierr.KindIO, err)
	}
	if err := s.Registry.ModifyConfig(key, cfg); err != nil {
		if registry.IsNotFound(err) {
			return apierr.New(apierr.KindNotFound, err.Error())
		}
		return apierr.Wrap(apierr.KindIO, err)
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

type aliasRequest struct {
	Alias *string `json:"alias"`
}

func (s *Server) handleAlias(w http.ResponseWriter, r *http.Request) error {
	result, err := auth.Authenticate(r, s.Users, maskWrite)
	if err != nil {
		return err
	}
	key, err := pathKey(r)
	if err != nil {
		return err
	}
	cell, ok := s.Registry.Get(key)
	if !ok {
		return apierr.New(apierr.KindNotFound, "no such function "+key.String())
	}
	if err := s.requireFuncGroup(result.Token, cell); err != nil {
		return err
	}
	var req aliasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.Wrap(apierr.KindIO, err)
	}
	if req.Alias != nil && !funckey.Valid(key.Name, *req.Alias) {
		return apierr.New(apierr.KindInvalidKeyFormat, "invalid alias format")
	}
	if err := s.Registry.ModifyAlias(key, req.Alias); err != nil {
		if registry.IsNotFound(err) {
			return apierr.New(apierr.KindNotFound, err.Error())
		}
		return apierr.Wrap(apierr.KindIO, err)
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) error {
	result, err := auth.Authenticate(r, s.Users, maskRemove)
	if err != nil {
		return err
	}
	key, err := pathKey(r)
	if err != nil {
		return err
	}
	cell, ok := s.Registry.Get(key)
	if !ok {
		return apierr.New(apierr.KindNotFound, "no such function "+key.String())
	}
	if err := s.requireFuncGroup(result.Token, cell); err != nil {
		return err
	}
	if s.Coordinator.IsRunning(key) {
		_ = s.Coordinator.Stop(r.Context(), key)
	}
	if err := s.Registry.Remove(key); err != nil {
		if registry.IsNotFound(err) {
			return apierr.New(apierr.KindNotFound, err.Error())
		}
		return apierr.Wrap(apierr.KindIO, err)
	}
	if s.Audit != nil {
		name, _ := s.Users.UserName(result.Token)
		_ = s.Audit.RecordRemove(key.String(), name)
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) handleDeploy(w http.ResponseWriter, r *http.Request) error {
	result, err := auth.Authenticate(r, s.Users, maskExecute)
	if err != nil {
		return err
	}
	key, err := pathKey(r)
	if err != nil {
		return err
	}
	cell, ok := s.Registry.Get(key)
	if !ok {
		return apierr.New(apierr.KindNotFound, "no such function "+key.String())
	}
	if err := s.requireFuncGroup(result.Token, cell); err != nil {
		return err
	}
	name, _ := s.Users.UserName(result.Token)
	if err := s.Coordinator.Start(r.Context(), key); err != nil {
		outcome := classifyStartErr(err)
		if s.Audit != nil {
			_ = s.Audit.RecordDeploy(key.String(), name, outcome)
		}
		return outcome
	}
	if s.Audit != nil {
		_ = s.Audit.RecordDeploy(key.String(), name, nil)
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func classifyStartErr(err error) *apierr.Error {
	switch {
	case isAlreadyRunning(err):
		return apierr.New(apierr.KindInstanceAlreadyRunning, err.Error())
	case isCoordNotFound(err):
		return apierr.New(apierr.KindNotFound, err.Error())
	default:
		return apierr.Wrap(apierr.KindIO, err)
	}
}

func (s *Server) handleKill(w http.ResponseWriter, r *http.Request) error {
	result, err := auth.Authenticate(r, s.Users, maskExecute)
	if err != nil {
		return err
	}
	key, err := pathKey(r)
	if err != nil {
		return err
	}
	cell, ok := s.Registry.Get(key)
	if !ok {
		return apierr.New(apierr.KindNotFound, "no such function "+key.String())
	}
	if err := s.requireFuncGroup(result.Token, cell); err != nil {
		return err
	}
	if err := s.Coordinator.Stop(r.Context(), key); err != nil {
		if isCoordNotFound(err) {
			return apierr.New(apierr.KindNotFound, err.Error())
		}
		return apierr.Wrap(apierr.KindIO, err)
	}
	if s.Audit != nil {
		name, _ := s.Users.UserName(result.Token)
		_ = s.Audit.RecordKill(key.String(), name)
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) error {
	if _, err := auth.Authenticate(r, s.Users, maskRead); err != nil {
		return err
	}
	key, err := pathKey(r)
	if err != nil {
		return err
	}
	if _, ok := s.Registry.Get(key); !ok {
		return apierr.New(apierr.KindNotFound, "no such function "+key.String())
	}
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.Coordinator.IsRunning(key)})
	return nil
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) error {
	if _, err := auth.Authenticate(r, s.Users, maskRead); err != nil {
		return err
	}
	key, err := pathKey(r)
	if err != nil {
		return err
	}
	events, err := s.Audit.ForFunction(key.String())
	if err != nil {
		return apierr.Wrap(apierr.KindIO, err)
	}
	writeJSON(w, http.StatusOK, events)
	return nil
}

