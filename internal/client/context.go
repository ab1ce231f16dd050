package client

import "context"

type contextKey struct {
	name string
}

var suppressUnauthorizedKey = contextKey{"suppress-unauthorized-events"}

// WithoutUnauthorizedEvents returns a context whose requests do not notify unauthorized subscribers.
// Used for best-effort requests whose failure must not end the session.
func WithoutUnauthorizedEvents(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressUnauthorizedKey, true)
}

func unauthorizedEventsSuppressed(ctx context.Context) bool {
	suppressed, _ := ctx.Value(suppressUnauthorizedKey).(bool)
	return suppressed
}
