// Package tenant carries the resolved tenant identifier through a request.
//
// The server never holds a process-wide "current tenant": each request gets
// its own immutable value in context.Context and every data access reads it
// from there. Code that finds no tenant must behave as if nothing exists.
package tenant

import (
	"context"
	"errors"
	"strings"
)

// ErrNoTenant is returned by Require when the context carries no tenant.
var ErrNoTenant = errors.New("no tenant resolved for request")

type ctxKey struct{}

// WithTenant returns a copy of ctx scoped to the given tenant.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, strings.TrimSpace(tenantID))
}

// FromContext returns the tenant carried by ctx, or "" when there is none.
func FromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// Require is FromContext with an error for the empty case.
func Require(ctx context.Context) (string, error) {
	id := FromContext(ctx)
	if id == "" {
		return "", ErrNoTenant
	}
	return id, nil
}
