package apierrors

import (
	"net/http"

	"github.com/exfinen/mpc-cluster/pkg/logger"
)

// HandlerWithError is an HTTP handler that reports failure by returning an
// error instead of writing the response body itself. This lets handlers
// focus on the happy path and leave status-code/body selection to
// ErrorHandler.
type HandlerWithError func(http.ResponseWriter, *http.Request) error

// ErrorHandler wraps a HandlerWithError, converting a returned error into an
// HTTP response. 5xx errors are logged in full server-side and reported to
// the caller with a generic message; 4xx errors are reported verbatim since
// they describe a client mistake the caller can act on.
func ErrorHandler(fn HandlerWithError) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}

		code := Code(err)
		if code >= http.StatusInternalServerError {
			logger.Errorf("internal error handling %s %s: %v", r.Method, r.URL.Path, err)
			http.Error(w, http.StatusText(code), code)
			return
		}
		http.Error(w, err.Error(), code)
	}
}
