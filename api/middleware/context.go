package middleware

import (
	"context"

	"github.com/privy-io/privy-go/authorization"
)

type contextKey int

const (
	authorizationContextKey contextKey = iota
	operationKey
)

// OperationAuthenticate is the operation id of the JWT authenticate call. It
// is never signed.
const OperationAuthenticate = "authenticate"

// WithAuthorizationContext attaches the keys that sign requests made with ctx.
func WithAuthorizationContext(ctx context.Context, authCtx *authorization.AuthorizationContext) context.Context {
	return context.WithValue(ctx, authorizationContextKey, authCtx)
}

func AuthorizationContextFrom(ctx context.Context) *authorization.AuthorizationContext {
	authCtx, _ := ctx.Value(authorizationContextKey).(*authorization.AuthorizationContext)
	return authCtx
}

// WithOperation names the API operation a request performs.
func WithOperation(ctx context.Context, operation string) context.Context {
	return context.WithValue(ctx, operationKey, operation)
}

func OperationFrom(ctx context.Context) string {
	op, _ := ctx.Value(operationKey).(string)
	return op
}
