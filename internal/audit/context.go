package audit

import "context"

// RequestMeta is the request context copied onto every audit row.
type RequestMeta struct {
	RequestID string
	SessionID string
	IPAddress string
	UserAgent string
}

type ctxKey struct{}

func WithRequest(ctx context.Context, m RequestMeta) context.Context {
	return context.WithValue(ctx, ctxKey{}, m)
}

func RequestFrom(ctx context.Context) RequestMeta {
	m, _ := ctx.Value(ctxKey{}).(RequestMeta)
	return m
}
