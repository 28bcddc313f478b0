package config

// Config is the root configuration for gigd.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Roster   RosterConfig   `yaml:"roster"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

type DatabaseConfig struct {
	// Path is the SQLite database location. The default ":memory:"
	// keeps all gig state in process memory, lost on restart.
	Path string `yaml:"path"`
}

type RosterConfig struct {
	// Gents is the fixed list of worker identities known to the
	// scheduler. Assignment and push subscription are only valid for
	// these IDs.
	Gents []string `yaml:"gents"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "127.0.0.1",
			Port:     8000,
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Path: ":memory:",
		},
		Roster: RosterConfig{
			Gents: []string{"gent-1", "gent-2", "gent-3", "gent-4", "gent-5"},
		},
	}
}
