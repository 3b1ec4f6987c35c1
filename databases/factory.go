package databases

import (
	"github.com/gregoryerrl/pgtoolset/config"
	"github.com/gregoryerrl/pgtoolset/databases/mysql"
	"github.com/gregoryerrl/pgtoolset/databases/postgres"
	"github.com/gregoryerrl/pgtoolset/types"
)

// NewConnector opens a pooled connector for the configured engine.
func NewConnector(cfg config.DatabaseConfig) (Database, error) {
	switch cfg.Engine {
	case "postgres", "postgresql":
		return postgres.New(cfg.ConnectionString, cfg.Timeout())
	case "mysql":
		return mysql.New(cfg.ConnectionString, cfg.Timeout())
	default:
		return nil, types.Errorf(types.KindConfiguration, "unsupported database engine: %s", cfg.Engine)
	}
}
