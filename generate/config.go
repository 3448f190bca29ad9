package generate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the configuration file looked up in the working directory.
const ConfigFile = ".tlex.yaml"

// Config is the content of a configuration file. Options are written the
// way they are on the command line and applied in order.
type Config struct {
	Name    string   `yaml:"name"`
	Options []string `yaml:"options"`
	Output  string   `yaml:"output,omitempty"`
}

// DefaultConfig returns the configuration written by "tlex init".
func DefaultConfig() Config {
	return Config{
		Name:    "tlex",
		Options: []string{"minimize", "compressNext", "info"},
	}
}

// LoadConfig reads the configuration file at path.
func LoadConfig(path string) (Config, error) {
	var config Config

	f, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return config, fmt.Errorf("parsing %s: %w", path, err)
	}
	return config, nil
}

// Apply sets the configured options on opts.
func (c Config) Apply(opts *Options) error {
	for _, o := range c.Options {
		if err := opts.Parse(o); err != nil {
			return err
		}
	}
	if c.Output != "" {
		opts.Output = c.Output
	}
	return nil
}

// WriteConfig writes config to path, replacing any existing file.
func WriteConfig(path string, config Config) error {
	d, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0o644)
}
