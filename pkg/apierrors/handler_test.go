package apierrors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorHandlerNoError(t *testing.T) {
	h := ErrorHandler(func(w http.ResponseWriter, _ *http.Request) error {
		w.WriteHeader(http.StatusCreated)
		return nil
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestErrorHandlerClientError(t *testing.T) {
	h := ErrorHandler(func(_ http.ResponseWriter, _ *http.Request) error {
		return NewNotHead("caller is not the queue head")
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/finish_computation", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "caller is not the queue head")
}

func TestErrorHandlerServerErrorHidesDetail(t *testing.T) {
	h := ErrorHandler(func(_ http.ResponseWriter, _ *http.Request) error {
		return NewLocalFailure("compiler exited 1 with secret paths in stderr", nil)
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodPost, "/request_sharing_data_mpc", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret paths")
}
