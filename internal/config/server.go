package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
)

// ServerOptions holds the configuration values of the server.
type ServerOptions struct {
	// Address is the listening address (ip:port).
	Address string `json:"address" yaml:"address"`

	// Driver is the database/sql driver: "postgres" or "sqlite3".
	Driver string `json:"driver" yaml:"driver"`

	// DatabaseDSN holds the database connection string.
	DatabaseDSN string `json:"database_dsn" yaml:"database_dsn"`

	// CertDir holds ca.crt, ca.key, server.crt and server.key.
	CertDir string `json:"cert_dir" yaml:"cert_dir"`

	LogLevel string `json:"log_level" yaml:"log_level"`

	// CleanInterval is the period of the soft-delete cleaner.
	CleanInterval Duration `json:"clean_interval" yaml:"clean_interval"`

	// Retention is how long soft-deleted items are kept.
	Retention Duration `json:"retention" yaml:"retention"`

	// Config is the path to the config file.
	Config string `json:"-" yaml:"-"`
}

// DefaultServerOptions returns the built-in server defaults.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		Address:       "localhost:8080",
		Driver:        "postgres",
		CertDir:       "certs",
		LogLevel:      "info",
		CleanInterval: Duration(time.Hour),
		Retention:     Duration(30 * 24 * time.Hour),
		Config:        "config.json",
	}
}

// BindFlags registers the server flags on fs, bound to o.
func (o *ServerOptions) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&o.Address, "address", "a", o.Address, "run on ip:port server")
	fs.StringVar(&o.Driver, "driver", o.Driver, "database driver (postgres|sqlite3)")
	fs.StringVarP(&o.DatabaseDSN, "dsn", "d", o.DatabaseDSN, "database connection string")
	fs.StringVar(&o.CertDir, "certs", o.CertDir, "directory holding the CA and server certificates")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "log level")
	durationVar(fs, &o.CleanInterval, "clean-interval", "soft-delete cleaner period")
	durationVar(fs, &o.Retention, "retention", "how long deleted items are kept")
	fs.StringVarP(&o.Config, "config", "c", o.Config, "path to config file")
}

// Load completes o from the config file, the flags set on fs and the
// environment.
func (o *ServerOptions) Load(fs *pflag.FlagSet) error {
	setFromEnv(&o.Config, "CONFIG")
	path := o.Config
	if err := load(fs, path, o); err != nil {
		return err
	}
	o.Config = path

	setFromEnv(&o.Address, "SERVER_ADDRESS")
	setFromEnv(&o.DatabaseDSN, "DATABASE_DSN")
	setFromEnv(&o.Driver, "DATABASE_DRIVER")
	setFromEnv(&o.LogLevel, "PASSKNIGHT_LOG_LEVEL")

	return o.Validate()
}

// Validate checks the option values.
func (o *ServerOptions) Validate() error {
	switch o.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("unsupported database driver %q", o.Driver)
	}
	if o.DatabaseDSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if o.CleanInterval <= 0 || o.Retention <= 0 {
		return fmt.Errorf("clean interval and retention must be positive")
	}
	if _, err := os.Stat(o.CertDir); err != nil {
		return fmt.Errorf("cert dir: %w", err)
	}
	return nil
}
