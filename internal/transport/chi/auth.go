package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// readOnlyActions are POST endpoints under /sets/{set} that never write.
var readOnlyActions = map[string]struct{}{
	"query":   {},
	"count":   {},
	"explain": {},
}

// Keys are the accepted bearer tokens. Admin keys may call every route;
// read keys may only list, fetch, query, count and explain.
type Keys struct {
	Admin []string
	Read  []string
}

type access int

const (
	accessNone access = iota
	accessRead
	accessAdmin
)

// BearerAuthMiddleware returns a middleware that validates Bearer tokens.
// With no keys configured authentication is disabled (pass-through).
func BearerAuthMiddleware(keys Keys) func(http.Handler) http.Handler {
	admin, read := nonEmpty(keys.Admin), nonEmpty(keys.Read)

	return func(next http.Handler) http.Handler {
		if len(admin) == 0 && len(read) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if !strings.HasPrefix(auth, bearerPrefix) {
				writeError(w, http.StatusUnauthorized,
					ErrorCodeUnauthorized, "authorization header must use Bearer scheme")
				return
			}

			token := auth[len(bearerPrefix):]
			switch grant(token, admin, read) {
			case accessAdmin:
				next.ServeHTTP(w, r)
			case accessRead:
				if !isReadOnly(r) {
					writeError(w, http.StatusForbidden, ErrorCodeForbidden, "api key is read-only")
					return
				}
				next.ServeHTTP(w, r)
			default:
				writeError(w, http.StatusUnauthorized, ErrorCodeUnauthorized, "invalid api key")
			}
		})
	}
}

func nonEmpty(keys []string) [][]byte {
	out := make([][]byte, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			out = append(out, []byte(k))
		}
	}
	return out
}

// grant compares against every key so timing does not reveal which matched.
func grant(token string, admin, read [][]byte) access {
	t := []byte(token)
	got := accessNone
	for _, k := range admin {
		if subtle.ConstantTimeCompare(t, k) == 1 {
			got = accessAdmin
		}
	}
	for _, k := range read {
		if subtle.ConstantTimeCompare(t, k) == 1 && got == accessNone {
			got = accessRead
		}
	}
	return got
}

// isReadOnly reports whether the request cannot modify sets or documents.
// Named queries are excluded since their SQL may write.
func isReadOnly(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		return true
	case http.MethodPost:
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if len(parts) != 3 || parts[0] != "sets" || parts[1] == "named" {
			return false
		}
		_, ok := readOnlyActions[parts[2]]
		return ok
	default:
		return false
	}
}
