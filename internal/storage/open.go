package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Config selects and tunes the storage backend.
type Config struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// DefaultConfig returns an in-memory backend with pool defaults used when a
// SQL driver is selected.
func DefaultConfig() Config {
	return Config{
		Driver:          DriverMemory,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		AutoMigrate:     true,
	}
}

// Open builds the StoreSet for cfg.Driver. SQL backends are pinged and,
// when AutoMigrate is set, migrated before returning.
func Open(ctx context.Context, cfg Config) (StoreSet, error) {
	if cfg.Driver == "" || cfg.Driver == DriverMemory {
		return NewMemoryStores(), nil
	}
	d, err := dialectFor(cfg.Driver)
	if err != nil {
		return StoreSet{}, err
	}
	if cfg.DSN == "" {
		return StoreSet{}, fmt.Errorf("database dsn is required for driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return StoreSet{}, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	configurePool(db, cfg, d)

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return StoreSet{}, fmt.Errorf("ping %s: %w", cfg.Driver, err)
	}

	if cfg.AutoMigrate {
		if err := migrate(ctx, db, d); err != nil {
			db.Close()
			return StoreSet{}, err
		}
	}
	return NewSQLStores(db, cfg.Driver)
}

// NewSQLStores wraps an open database. The returned set owns db.
func NewSQLStores(db *sql.DB, driverName string) (StoreSet, error) {
	d, err := dialectFor(driverName)
	if err != nil {
		return StoreSet{}, err
	}
	return StoreSet{
		Users:   &SQLUserStore{db: db, d: d},
		History: &SQLHistoryStore{db: db, d: d},
		Audit:   &SQLAuditStore{db: db, d: d},
		Driver:  d.name(),
		closer:  db.Close,
	}, nil
}

func configurePool(db *sql.DB, cfg Config, d dialect) {
	if d.name() == DriverSQLite {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		return
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}
