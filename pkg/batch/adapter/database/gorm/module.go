package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/deltaloader/pkg/batch/adapter/database"
)

// Module provides the database.DBConnectionResolver (excluding concrete DB providers, which
// come from the sqlite, postgres and mysql modules) and closes all connections on stop.
var Module = fx.Options(
	fx.Provide(NewGormDBConnectionResolver),
	fx.Provide(func(r *GormDBConnectionResolver) database.DBConnectionResolver { return r }),
	fx.Invoke(func(lc fx.Lifecycle, r *GormDBConnectionResolver) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return r.CloseAll()
			},
		})
	}),
)
