package apikey

import "context"

// authorizedContextKey is the context key under which the "this request
// presented a valid API key" fact is stored.
type authorizedContextKey struct{}

// WithAuthorized returns a context recording that the current request
// presented a valid API key.
func WithAuthorized(ctx context.Context) context.Context {
	return context.WithValue(ctx, authorizedContextKey{}, true)
}

// IsAuthorized reports whether ctx was produced by WithAuthorized.
func IsAuthorized(ctx context.Context) bool {
	v, _ := ctx.Value(authorizedContextKey{}).(bool)
	return v
}
