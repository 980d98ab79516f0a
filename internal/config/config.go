package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doclayer/querymap/internal/domain/metadata"
)

// Config holds the querymap API configuration.
type Config struct {
	HTTP    HTTPConfig     `yaml:"http"`
	Auth    AuthConfig     `yaml:"auth"`
	Logging LoggingConfig  `yaml:"logging"`
	Mapping MappingConfig  `yaml:"mapping"`
	Schemas []SchemaConfig `yaml:"schemas"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// MappingConfig holds value conversion settings.
type MappingConfig struct {
	TypeKey   string `yaml:"type_key"`   // discriminator key copied verbatim (default: _type)
	IDDefault string `yaml:"id_default"` // fallback identifier kind (default: objectid)
}

// SchemaConfig declares one mapped entity.
type SchemaConfig struct {
	Name       string           `yaml:"name"`
	Collection string           `yaml:"collection"`
	Unwrapped  bool             `yaml:"unwrapped"`
	Properties []PropertyConfig `yaml:"properties"`
}

// PropertyConfig declares one entity property.
type PropertyConfig struct {
	Name            string `yaml:"name"`
	Field           string `yaml:"field"`
	Kind            string `yaml:"kind"`
	ID              bool   `yaml:"id"`
	Score           bool   `yaml:"score"`
	Map             bool   `yaml:"map"`
	List            bool   `yaml:"list"`
	Embeds          string `yaml:"embeds"`
	References      string `yaml:"references"`
	DocumentPointer bool   `yaml:"document_pointer"`
	RefAnnotation   bool   `yaml:"ref_annotation"`
	Unwrapped       bool   `yaml:"unwrapped"`
	UnwrappedPrefix string `yaml:"unwrapped_prefix"`
	WriteTarget     string `yaml:"write_target"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Mapping.TypeKey == "" {
		c.Mapping.TypeKey = "_type"
	}
	if c.Mapping.IDDefault == "" {
		c.Mapping.IDDefault = "objectid"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if _, ok := metadata.ParseKind(c.Mapping.IDDefault); !ok {
		return fmt.Errorf("mapping.id_default %q is not a known kind", c.Mapping.IDDefault)
	}
	if len(c.Schemas) == 0 {
		return fmt.Errorf("at least one schema is required")
	}
	for _, s := range c.Schemas {
		if s.Name == "" {
			return fmt.Errorf("schema without a name")
		}
		for _, p := range s.Properties {
			if p.Name == "" {
				return fmt.Errorf("schema %s has a property without a name", s.Name)
			}
			if p.Kind != "" {
				if _, ok := metadata.ParseKind(p.Kind); !ok {
					return fmt.Errorf("schema %s property %s has unknown kind %q", s.Name, p.Name, p.Kind)
				}
			}
			if p.WriteTarget != "" {
				if _, ok := metadata.ParseKind(p.WriteTarget); !ok {
					return fmt.Errorf("schema %s property %s has unknown write_target %q", s.Name, p.Name, p.WriteTarget)
				}
			}
			if p.Embeds != "" && p.References != "" {
				return fmt.Errorf("schema %s property %s cannot both embed and reference", s.Name, p.Name)
			}
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
