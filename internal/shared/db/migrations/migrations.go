package migrations

import (
	"errors"

	"github.com/cristianortiz/bidEngine/internal/shared/config"
	"github.com/cristianortiz/bidEngine/internal/shared/logger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

var log = logger.GetLogger() // Instancia logger para el pakg

// RunMigrations applies every pending migration under cfg.MigrationsPath
func RunMigrations(cfg config.DBConfig) error {
	log.Info("RunMigrations",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name),
		zap.String("source", cfg.MigrationsPath),
	)
	m, err := migrate.New(cfg.MigrationsPath, cfg.PostgresDSN())
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	version, dirty, err := m.Version()
	if err == nil {
		log.Info("Migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return nil
}
