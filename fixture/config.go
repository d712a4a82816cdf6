package fixture

import "github.com/caarlos0/env/v11"

const (
	defaultDir  = "testdata/cassettes"
	defaultMode = "auto"
)

// Config controls where cassettes live and which recorder mode a test run
// uses. The zero value means "load from the environment", which lets CI
// force replay without code changes.
type Config struct {
	// Dir is the directory cassette files are stored in.
	Dir string `env:"CASSETTE_DIR" envDefault:"testdata/cassettes"`

	// Mode is the recorder mode name: auto, replay, record or passthrough.
	Mode string `env:"CASSETTE_MODE" envDefault:"auto"`
}

// FromEnv loads the configuration from environment variables.
func FromEnv() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	return cfg, err
}

func resolveConfig(cfg Config) (Config, error) {
	if cfg == (Config{}) {
		return FromEnv()
	}
	if cfg.Dir == "" {
		cfg.Dir = defaultDir
	}
	if cfg.Mode == "" {
		cfg.Mode = defaultMode
	}
	return cfg, nil
}
