package am

// Config represents the orbits configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Agent    AgentConfig    `mapstructure:"agent"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig selects and configures the record store backend
type DatabaseConfig struct {
	Driver        string `mapstructure:"driver"`          // "sqlite" (default) or "badger"
	Path          string `mapstructure:"path"`            // SQLite file
	BadgerDir     string `mapstructure:"badger_dir"`      // Badger directory
	MinimumFreeMB uint64 `mapstructure:"minimum_free_mb"` // refuse to open below this much free disk (0 = no check)
}

// AgentConfig identifies the caller whose chain of writes the store scopes queries to
type AgentConfig struct {
	Name string `mapstructure:"name"`
}

// LogConfig configures the global logger
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}

// Supported database drivers
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)
