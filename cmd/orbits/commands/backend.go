package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/teranos/orbits/am"
	"github.com/teranos/orbits/db"
	"github.com/teranos/orbits/errors"
	"github.com/teranos/orbits/logger"
	"github.com/teranos/orbits/service"
	"github.com/teranos/orbits/store"
	"github.com/teranos/orbits/store/badger"
	"github.com/teranos/orbits/store/sqlite"
)

// loadConfig is swapped out by tests.
var loadConfig = am.Load

// openBackend opens the record store selected by database.driver.
// SQLite refuses to open when the volume is below database.minimum_free_mb.
func openBackend(cfg *am.Config, log *zap.SugaredLogger) (store.Backend, error) {
	path := cfg.GetDatabasePath()

	switch cfg.Database.Driver {
	case "", am.DriverSQLite:
		if err := db.CheckFreeSpace(path, cfg.Database.MinimumFreeMB); err != nil {
			return nil, err
		}
		s, err := sqlite.Open(path, log)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open database at %s", path)
		}
		return s, nil
	case am.DriverBadger:
		if err := db.CheckFreeSpace(path, cfg.Database.MinimumFreeMB); err != nil {
			return nil, err
		}
		s, err := badger.Open(badger.Config{Dir: path, SyncWrites: true}, log)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open badger store at %s", path)
		}
		return s, nil
	default:
		return nil, errors.NewInvalidRequestError("unknown database driver %q", cfg.Database.Driver)
	}
}

// openService loads configuration and returns a service acting as the
// configured agent. The returned func closes the backend.
func openService(cmd *cobra.Command) (*service.Service, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load configuration")
	}

	log := logger.Named("orbits")
	backend, err := openBackend(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	svc, err := service.New(store.NewEnv(backend, cfg.Agent.Name, log))
	if err != nil {
		backend.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := backend.Close(); err != nil {
			log.Warnw("Failed to close store", logger.FieldError, err)
		}
	}
	return svc, closeFn, nil
}
