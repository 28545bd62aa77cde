package apikey

import "net/http"

// Middleware builds an http.Handler middleware that rejects any request
// whose X-API-Key header does not match expected.
func Middleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			candidate := r.Header.Get("X-API-Key")
			if !Valid(expected, candidate) {
				w.Header().Set("WWW-Authenticate", `ApiKey realm="mpc-party"`)
				http.Error(w, "invalid or missing X-API-Key header", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuthorized(r.Context())))
		})
	}
}
