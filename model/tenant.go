package model

import (
	"context"
	"errors"
)

// ErrNoTenantContext is returned by any storage operation attempted without a
// bound tenant context. Storage never falls back to an unscoped read.
var ErrNoTenantContext = errors.New("no tenant context bound")

// TenantContext carries the identity of one inbound operation. It is created
// at the trust boundary, bound to a context.Context, and read by every
// storage call, so isolation cannot be bypassed by a caller forgetting to
// pass a tenant id. The value is immutable for the duration of the operation.
type TenantContext struct {
	TenantID string `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
}

type tenantKey struct{}

// WithTenant binds a tenant context to ctx for one logical operation.
func WithTenant(ctx context.Context, tenant *TenantContext) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// TenantFromContext returns the bound tenant context or ErrNoTenantContext.
func TenantFromContext(ctx context.Context) (*TenantContext, error) {
	tenant, ok := ctx.Value(tenantKey{}).(*TenantContext)
	if !ok || tenant == nil || tenant.TenantID == "" {
		return nil, ErrNoTenantContext
	}
	return tenant, nil
}

// ClearTenant returns a context with no tenant bound.
func ClearTenant(ctx context.Context) context.Context {
	return context.WithValue(ctx, tenantKey{}, (*TenantContext)(nil))
}
