package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/exfinen/mpc-cluster/pkg/apierrors"
	"github.com/exfinen/mpc-cluster/pkg/consumercache"
)

// ConsumerRouter mounts the single consumer-facing endpoint, backed by the
// shared aggregate cache.
func ConsumerRouter(cache *consumercache.Cache) http.Handler {
	routes := &consumerRoutes{cache: cache}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Timeout(middlewareTimeout))
	r.Get("/healthz", healthz)
	r.Get("/metrics", metricsHandler())
	r.Get("/query-computation", apierrors.ErrorHandler(routes.queryComputation))
	return r
}

type consumerRoutes struct {
	cache *consumercache.Cache
}

func (c *consumerRoutes) queryComputation(w http.ResponseWriter, r *http.Request) error {
	agg, err := c.cache.Get(r.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, agg)
}
