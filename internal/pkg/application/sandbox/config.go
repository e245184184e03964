package sandbox

import (
	"io"

	yaml "gopkg.in/yaml.v2"
)

type ClassConfig struct {
	Name     string `yaml:"name"`
	ReadOnly bool   `yaml:"readOnly"`
}

type Config struct {
	APIKeys   []string      `yaml:"apiKeys"`
	MasterKey string        `yaml:"masterKey"`
	Classes   []ClassConfig `yaml:"classes"`
}

// ReadOnlyClasses returns the names of the classes that only accept writes made with the master key
func (c *Config) ReadOnlyClasses() []string {
	names := []string{}
	for _, class := range c.Classes {
		if class.ReadOnly {
			names = append(names, class.Name)
		}
	}
	return names
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(buf, &cfg)

	return cfg, err
}
