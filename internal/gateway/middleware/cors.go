package middleware

import (
	"net/http"
	"strings"
)

var (
	corsAllowMethods = []string{http.MethodPost, http.MethodGet, http.MethodOptions}
	corsAllowHeaders = []string{
		"Accept", "Content-Type", "Content-Length", "Accept-Encoding", "Authorization",
		"Connect-Protocol-Version", "Connect-Timeout-Ms", "Connect-Content-Encoding", "Connect-Accept-Encoding",
		"Grpc-Timeout", "X-Grpc-Web", "X-User-Agent",
	}
	corsExposeHeaders = []string{
		"Grpc-Status", "Grpc-Message", "Grpc-Encoding", "Grpc-Accept-Encoding",
		"Connect-Content-Encoding", "Connect-Accept-Encoding",
	}
)

// CORS reflects the request origin so browser clients can call the connect
// endpoints. Preflight requests stop here.
func CORS(next http.Handler) http.Handler {
	allowMethods := strings.Join(corsAllowMethods, ", ")
	allowHeaders := strings.Join(corsAllowHeaders, ", ")
	exposeHeaders := strings.Join(corsExposeHeaders, ", ")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		if origin := strings.TrimSpace(r.Header.Get("Origin")); origin != "" {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		} else {
			h.Set("Access-Control-Allow-Origin", "*")
		}
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Expose-Headers", exposeHeaders)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
