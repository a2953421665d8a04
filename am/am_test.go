package am

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Isolated viper instance, no user/system config
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "orbits.db", cfg.Database.Path)
	assert.Equal(t, "orbits.badger", cfg.Database.BadgerDir)
	assert.Equal(t, uint64(64), cfg.Database.MinimumFreeMB)
	assert.NotEmpty(t, cfg.Agent.Name)
	assert.False(t, cfg.Log.JSON)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "sqlite with agent",
			config: Config{Database: DatabaseConfig{Driver: DriverSQLite}, Agent: AgentConfig{Name: "alice"}},
		},
		{
			name:   "empty driver defaults to sqlite",
			config: Config{Agent: AgentConfig{Name: "alice"}},
		},
		{
			name:   "badger with dir",
			config: Config{Database: DatabaseConfig{Driver: DriverBadger, BadgerDir: "/tmp/x"}, Agent: AgentConfig{Name: "alice"}},
		},
		{
			name:    "badger without dir",
			config:  Config{Database: DatabaseConfig{Driver: DriverBadger}, Agent: AgentConfig{Name: "alice"}},
			wantErr: true,
		},
		{
			name:    "unknown driver",
			config:  Config{Database: DatabaseConfig{Driver: "postgres"}, Agent: AgentConfig{Name: "alice"}},
			wantErr: true,
		},
		{
			name:    "missing agent",
			config:  Config{Database: DatabaseConfig{Driver: DriverSQLite}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, ConfigFileName)
	content := `
[database]
driver = "badger"
badger_dir = "/var/lib/orbits"

[agent]
name = "bob"
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, DriverBadger, cfg.Database.Driver)
	assert.Equal(t, "/var/lib/orbits", cfg.GetDatabasePath())
	assert.Equal(t, "bob", cfg.Agent.Name)
	// defaults still apply to unset keys
	assert.Equal(t, "orbits.db", cfg.Database.Path)
}

func TestLoadFromFile_Missing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestMergeConfigFiles_LaterWins(t *testing.T) {
	dir := t.TempDir()
	system := filepath.Join(dir, "system.toml")
	project := filepath.Join(dir, "project.toml")
	require.NoError(t, os.WriteFile(system, []byte("[agent]\nname = \"system\"\n[database]\npath = \"sys.db\"\n"), 0644))
	require.NoError(t, os.WriteFile(project, []byte("[agent]\nname = \"project\"\n"), 0644))

	v := viper.New()
	SetDefaults(v)
	mergeConfigFiles(v, []string{system, filepath.Join(dir, "missing.toml"), project})

	cfg, err := LoadWithViper(v)
	require.NoError(t, err)
	assert.Equal(t, "project", cfg.Agent.Name)
	assert.Equal(t, "sys.db", cfg.Database.Path)
}

func TestSetValue(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "nested", ConfigFileName)

	require.NoError(t, SetValue(configPath, "agent.name", "carol"))
	require.NoError(t, SetValue(configPath, "database.driver", "badger"))
	require.NoError(t, SetValue(configPath, "database.badger_dir", "/data"))

	cfg, err := LoadFromFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "carol", cfg.Agent.Name)
	assert.Equal(t, DriverBadger, cfg.Database.Driver)

	_, err = os.Stat(configPath + ".back1")
	assert.NoError(t, err, "second write should back up the first")
}

func TestConfigString(t *testing.T) {
	cfg := Config{Database: DatabaseConfig{Driver: DriverSQLite, Path: "x.db"}, Agent: AgentConfig{Name: "dave"}}
	s := cfg.String()
	assert.Contains(t, s, `path = "x.db"`)
	assert.Contains(t, s, `name = "dave"`)
}
