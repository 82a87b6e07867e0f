package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/nextlevelbuilder/fnhost/internal/apierr"
	"github.com/nextlevelbuilder/fnhost/internal/auth"
	"github.com/nextlevelbuilder/fnhost/internal/users"
)

// clientUser is the wire form of a user: name plus groups, each group
// serialized as a single "prefix:payload" string.
type clientUser struct {
	Name   string        `json:"name"`
	Groups []users.Group `json:"groups"`
}

func clientFromUser(u *users.User) clientUser {
	return clientUser{Name: u.Name, Groups: append([]users.Group(nil), u.Groups...)}
}

var rootClientUser = clientUser{Name: "root", Groups: []users.Group{users.PermissionGroup(users.PermissionRoot)}}

// validateUsername requires a non-empty name matching
// [A-Za-z0-9-]. On failure it returns the username-format error — the
// grounding source returns the key-format error here, a documented
// bug (see DESIGN.md); this implementation fixes it.
func validateUsername(name string) error {
	if name == "" {
		return apierr.New(apierr.KindInvalidUsernameFormat, "username must not be empty")
	}
	for _, c := range name {
		isAlpha := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		isDigit := c >= '0' && c <= '9'
		if !isAlpha && !isDigit && c != '-' {
			return apierr.New(apierr.KindInvalidUsernameFormat, "username must match [A-Za-z0-9-]+")
		}
	}
	return nil
}

func permissionGroupsOnly(groups []users.Group) []users.Group {
	var out []users.Group
	for _, g := range groups {
		if g.Kind == users.GroupKindPermission {
			out = append(out, g)
		}
	}
	return out
}

func (s *Server) handleUserAdd(w http.ResponseWriter, r *http.Request) error {
	result, err := auth.Authenticate(r, s.Users, maskAdmin)
	if err != nil {
		return err
	}
	var req clientUser
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.Wrap(apierr.KindIO, err)
	}
	if err := validateUsername(req.Name); err != nil {
		return err
	}
	if !s.Users.Auth(result.Token, permissionGroupsOnly(req.Groups)) {
		return apierr.New(apierr.KindPermissionDenied, "permission denied")
	}

	u := users.NewUser(strings.ToLower(req.Name), req.Groups)
	if err := s.Users.Add(u); err != nil {
		if users.IsDuplicate(err) {
			return apierr.New(apierr.KindDuplicate, err.Error())
		}
		return apierr.Wrap(apierr.KindIO, err)
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) handleUserRemove(w http.ResponseWriter, r *http.Request) error {
	if _, err := auth.Authenticate(r, s.Users, maskRoot); err != nil {
		return err
	}
	name := r.PathValue("user")
	if err := s.Users.Remove(name); err != nil {
		if users.IsNotFound(err) {
			return apierr.New(apierr.KindNotFound, err.Error())
		}
		return apierr.Wrap(apierr.KindIO, err)
	}
	w.WriteHeader(http.StatusOK)
	return nil
}

func (s *Server) handleUserGet(w http.ResponseWriter, r *http.Request) error {
	result, err := auth.Authenticate(r, s.Users, 0)
	if err != nil {
		return err
	}
	requested := r.PathValue("user") // "" means "self"

	type probe struct {
		self    *clientUser
		isAdmin bool
	}
	val, isTokenUser, err := users.PeekFromToken(s.Users, result.Token, func(u *users.User) probe {
		p := probe{isAdmin: u.IsInGroup(users.PermissionGroup(users.PermissionAdmin))}
		if requested == "" || requested == u.Name {
			c := clientFromUser(u)
			p.self = &c
		}
		return p
	})
	if err != nil {
		return apierr.New(apierr.KindNotFound, err.Error())
	}

	if isTokenUser {
		switch {
		case val.self != nil:
			writeJSON(w, http.StatusOK, val.self)
			return nil
		case val.isAdmin:
			return s.writeOtherUser(w, requested)
		default:
			return apierr.New(apierr.KindPermissionDenied, "permission denied")
		}
	}

	// token is the root token.
	if requested == "" || requested == "root" {
		writeJSON(w, http.StatusOK, rootClientUser)
		return nil
	}
	return s.writeOtherUser(w, requested)
}

func (s *Server) writeOtherUser(w http.ResponseWriter, name string) error {
	found, err := users.Peek(s.Users, name, func(u *users.User) *clientUser {
		c := clientFromUser(u)
		return &c
	})
	if err != nil {
		if users.IsNotFound(err) {
			return apierr.New(apierr.KindNotFound, err.Error())
		}
		return apierr.Wrap(apierr.KindIO, err)
	}
	if found == nil {
		// Peek's root sentinel.
		writeJSON(w, http.StatusOK, rootClientUser)
		return nil
	}
	writeJSON(w, http.StatusOK, found)
	return nil
}

type requestTokenRequest struct {
	User        string `json:"user"`
	DurationDays float64 `json:"duration_days"`
}

func (s *Server) handleRequestToken(w http.ResponseWriter, r *http.Request) error {
	if _, err := auth.Authenticate(r, s.Users, maskAdmin); err != nil {
		return err
	}
	req := requestTokenRequest{DurationDays: 10}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.Wrap(apierr.KindIO, err)
	}
	duration := time.Duration(req.DurationDays * float64(24*time.Hour))
	token, err := s.Users.AddToken(req.User, duration)
	if err != nil {
		if users.IsNotFound(err) {
			return apierr.New(apierr.KindNotFound, err.Error())
		}
		return apierr.Wrap(apierr.KindIO, err)
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(token))
	return nil
}

func (s *Server) handleUserModify(w http.ResponseWriter, r *http.Request) error {
	result, err := auth.Authenticate(r, s.Users, maskAdmin)
	if err != nil {
		return err
	}
	var req clientUser
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.Wrap(apierr.KindIO, err)
	}
	if !s.Users.Auth(result.Token, permissionGroupsOnly(req.Groups)) {
		return apierr.New(apierr.KindPermissionDenied, "permission denied")
	}
	modified, err := s.Users.PeekMut(req.Name, func(u *users.User) {
		u.Groups = append([]users.Group(nil), req.Groups...)
	})
	if err != nil {
		if users.IsNotFound(err) {
			return apierr.New(apierr.KindNotFound, err.Error())
		}
		return apierr.Wrap(apierr.KindIO, err)
	}
	if !modified {
		return apierr.New(apierr.KindModifyRoot, "cannot modify the root user")
	}
	w.WriteHeader(http.StatusOK)
	return nil
}
