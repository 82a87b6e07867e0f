// Package auth implements the request-scoped bearer-token
// authenticator: extracting and validating the Authorization header
// and checking the caller's token against a compile-time permission
// bitmask.
package auth

import (
	"net/http"
	"strings"

	"github.com/nextlevelbuilder/fnhost/internal/apierr"
	"github.com/nextlevelbuilder/fnhost/internal/users"
)

const bearerPrefix = "Bearer "

// Checker is the subset of *users.Manager the authenticator needs,
// kept as an interface so handlers can be tested against a fake.
type Checker interface {
	Auth(token string, required []users.Group) bool
}

// Result carries the plaintext token forward to handlers that need it
// (the upload handler stamps the initial function group as
// Singular(user) using it).
type Result struct {
	Token string
}

// Authenticate extracts the bearer token from r, requires it to
// satisfy every literal permission bit set in mask (no lattice
// expansion — see internal/users.Permission.Contains for that), and
// returns the token on success.
func Authenticate(r *http.Request, checker Checker, mask uint32) (Result, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Result{}, apierr.New(apierr.KindMissingAuthHeader, "missing Authorization header")
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return Result{}, apierr.New(apierr.KindInvalidAuthScheme, "Authorization header must use the Bearer scheme")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))

	var required []users.Group
	for _, p := range users.BitsToPermissions(mask) {
		required = append(required, users.PermissionGroup(p))
	}
	if !checker.Auth(token, required) {
		return Result{}, apierr.New(apierr.KindPermissionDenied, "permission denied")
	}
	return Result{Token: token}, nil
}

// RequireGroup re-checks a token against a single additional group,
// used by handlers that need a function-scoped group check after
// looking up the function (e.g. "write + func group").
func RequireGroup(checker Checker, token string, group users.Group) error {
	if !checker.Auth(token, []users.Group{group}) {
		return apierr.New(apierr.KindPermissionDenied, "permission denied")
	}
	return nil
}
