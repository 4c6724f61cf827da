package database

import (
	"embed"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// newMigrator открывает отдельное соединение для миграций (драйвер lib/pq внутри migrate)
func newMigrator(databaseURL string) (*migrate.Migrate, error) {
	if databaseURL == "" {
		return nil, errors.New("DATABASE_URL is empty")
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, errors.Wrap(err, "failed to open embedded migrations")
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init migrations")
	}
	return m, nil
}

// MigrateUp применяет все новые миграции
func MigrateUp(databaseURL string, log *logrus.Entry) error {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("ℹ️ Схема БД актуальна, миграции не требуются")
			return nil
		}
		return errors.Wrap(err, "failed to apply migrations")
	}
	version, dirty, _ := m.Version()
	log.WithFields(logrus.Fields{"version": version, "dirty": dirty}).Info("✅ Миграции применены")
	return nil
}

// MigrateDown откатывает steps миграций
func MigrateDown(databaseURL string, steps int, log *logrus.Entry) error {
	m, err := newMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if steps < 1 {
		steps = 1
	}
	if err := m.Steps(-steps); err != nil {
		return errors.Wrap(err, "failed to roll back migrations")
	}
	log.WithField("steps", steps).Info("↩️ Миграции откачены")
	return nil
}
