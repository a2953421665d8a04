package am

import "github.com/teranos/orbits/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "", DriverSQLite:
	case DriverBadger:
		if c.Database.BadgerDir == "" {
			return errors.New("database.badger_dir cannot be empty when driver is badger")
		}
	default:
		return errors.Newf("database.driver must be %q or %q, got %q", DriverSQLite, DriverBadger, c.Database.Driver)
	}

	// Records are scoped to the agent's chain, so an anonymous agent would see nothing
	if c.Agent.Name == "" {
		return errors.WithHint(
			errors.New("agent.name cannot be empty"),
			"set agent.name in am.toml or ORBITS_AGENT_NAME",
		)
	}

	return nil
}
