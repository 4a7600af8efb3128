package database

import (
	"context"
	"database/sql"
	"database/sql/driver"

	"github.com/kilnworks/hivekb/helper"
	"github.com/kilnworks/hivekb/model"
)

// tenantConn checks out a dedicated connection and binds the tenant id to it
// via set_config, so the row level security policies apply on top of the
// explicit tenant predicates in the SQL functions. The returned release
// function resets the setting and returns the connection to the pool.
// Fails closed with model.ErrNoTenantContext when no tenant is bound.
func tenantConn(ctx context.Context, db *helper.Database) (*sql.Conn, *model.TenantContext, func(), error) {
	tenant, err := model.TenantFromContext(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	conn, err := db.Instance.Conn(ctx)
	if err != nil {
		return nil, nil, nil, helper.NewTransientError("acquire connection", err)
	}

	_, err = conn.ExecContext(ctx, `SELECT set_config('app.current_tenant_id', $1, false)`, tenant.TenantID)
	if err != nil {
		conn.Close()
		return nil, nil, nil, helper.NewTransientError("bind tenant scope", err)
	}

	release := func() {
		// The connection must not return to the pool still scoped.
		_, err := conn.ExecContext(context.Background(), `RESET app.current_tenant_id`)
		if err != nil {
			// Returning driver.ErrBadConn discards the connection instead
			// of handing it back scoped to a tenant.
			_ = conn.Raw(func(driverConn interface{}) error { return driver.ErrBadConn })
		}
		_ = conn.Close()
	}

	return conn, tenant, release, nil
}
