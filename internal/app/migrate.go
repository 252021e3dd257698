package app

import (
	config "github.com/DRSN-tech/marketplace/internal/cfg"
	"github.com/DRSN-tech/marketplace/pkg/e"
	"github.com/DRSN-tech/marketplace/pkg/logger"
	"github.com/DRSN-tech/marketplace/pkg/postgres"
	"github.com/jimlawless/whereami"
)

// Migrate применяет миграции, при down > 0 откатывает down последних.
func Migrate(cfg *config.PGDBCfg, down int, logger logger.Logger) error {
	if down > 0 {
		if err := postgres.RollbackMigrations(cfg, down, logger); err != nil {
			return e.Wrap(whereami.WhereAmI(), err)
		}
		return nil
	}

	if err := postgres.RunMigrations(cfg, logger); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}
	return nil
}
