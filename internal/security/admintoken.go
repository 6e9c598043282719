package security

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/fatou-sy/backend-patisserie/internal/common"
)

// AdminToken guards back-office routes with a shared secret header.
type AdminToken struct {
	Header string
	Token  string
}

// Middleware rejects requests whose token header does not match the
// configured secret. Hashes are compared so length is not observable.
func (a AdminToken) Middleware(next http.Handler) http.Handler {
	headerName := strings.TrimSpace(a.Header)
	if headerName == "" {
		headerName = "X-Admin-Token"
	}
	want := common.Sha256Hex(a.Token)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(a.Token) == "" {
			common.JSONError(w, http.StatusServiceUnavailable, "ADMIN_DISABLED", "admin access is not configured", nil)
			return
		}
		got := common.Sha256Hex(strings.TrimSpace(r.Header.Get(headerName)))
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid admin token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
