package migration

import (
	"fmt"

	"github.com/smallbiznis/dataverse/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Apply),
)

// Apply brings the schema of the configured database up to date.
func Apply(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	switch cfg.DBType {
	case "postgres":
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	case "sqlite":
		return ApplySQLite(conn)
	case "mysql":
		log.Warn("schema migrations are not managed for mysql; apply the schema out of band")
		return nil
	default:
		return fmt.Errorf("unsupported %s type", cfg.DBType)
	}
}
