package auth

import "context"

type ctxKey struct{}

// Principal is the outcome of identity resolution for one request.
// Err is set when credentials were presented but rejected.
type Principal struct {
	Identity string
	Err      error
}

func (p Principal) Authenticated() bool {
	return p.Identity != "" && p.Err == nil
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) Principal {
	p, _ := ctx.Value(ctxKey{}).(Principal)
	return p
}
