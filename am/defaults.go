package am

import (
	"fmt"
	"os/user"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "orbits.db")
	v.SetDefault("database.badger_dir", "orbits.badger")
	v.SetDefault("database.minimum_free_mb", 64)

	v.SetDefault("agent.name", defaultAgentName())

	v.SetDefault("log.json", false)
}

// defaultAgentName falls back to the OS user so a fresh install has a usable chain
func defaultAgentName() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "orbits@local"
}

// GetDatabasePath returns the storage location for the configured driver
func (c *Config) GetDatabasePath() string {
	if c.Database.Driver == DriverBadger {
		if c.Database.BadgerDir == "" {
			return "orbits.badger"
		}
		return c.Database.BadgerDir
	}
	if c.Database.Path == "" {
		return "orbits.db"
	}
	return c.Database.Path
}

// String renders the effective configuration for `orbits am show`
func (c *Config) String() string {
	return fmt.Sprintf(`[database]
driver = %q
path = %q
badger_dir = %q
minimum_free_mb = %d

[agent]
name = %q

[log]
json = %t
`, c.Database.Driver, c.Database.Path, c.Database.BadgerDir, c.Database.MinimumFreeMB,
		c.Agent.Name, c.Log.JSON)
}
