// Package config loads and validates the keyshift.yaml file.
//
// The file is optional: every field has a working default, and the
// environment variables EXPRESS_SESSION_SECRET and SECRETKEY_PATH always
// take precedence over it. Parsed documents are validated against an
// embedded JSON schema before use.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	kserrors "github.com/systmms/keyshift/internal/errors"
	"github.com/systmms/keyshift/internal/logging"
)

// DefaultPath is where Load looks when no --config flag is given.
const DefaultPath = "keyshift.yaml"

// Config holds the runtime configuration.
type Config struct {
	Path   string
	Logger *logging.Logger

	// Definition is nil until Load succeeds. A missing file loads as an
	// empty Definition so callers never need to special-case "no config".
	Definition *Definition
}

// Definition represents the keyshift.yaml structure.
type Definition struct {
	// BaseDir overrides the secret file location. SECRETKEY_PATH wins
	// over this when set.
	BaseDir string `yaml:"base_dir"`

	// SecretName names the remote secret entry. Defaults to
	// FlowiseSessionSecret for compatibility with existing deployments.
	SecretName string `yaml:"secret_name"`

	Remote *RemoteConfig `yaml:"remote"`
	Store  *StoreConfig  `yaml:"store"`
}

// RemoteConfig configures the remote secret manager. Its presence alone
// opts the deployment into remote resolution.
type RemoteConfig struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// StoreConfig selects the session store the migration wrapper wraps.
type StoreConfig struct {
	Type string `yaml:"type"`

	// Addr and Password apply to the redis store.
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`

	// DSN applies to the postgres store.
	DSN string `yaml:"dsn"`
}

// configSchema is the JSON schema every keyshift.yaml must satisfy.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "base_dir": {"type": "string"},
    "secret_name": {"type": "string", "minLength": 1},
    "remote": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "region": {"type": "string"},
        "endpoint": {"type": "string"},
        "access_key_id": {"type": "string"},
        "secret_access_key": {"type": "string"}
      }
    },
    "store": {
      "type": "object",
      "additionalProperties": false,
      "required": ["type"],
      "properties": {
        "type": {"enum": ["memory", "redis", "postgres"]},
        "addr": {"type": "string"},
        "password": {"type": "string"},
        "db": {"type": "integer", "minimum": 0},
        "dsn": {"type": "string"}
      }
    }
  }
}`

// Load reads and parses the configuration file at c.Path. A missing file
// is not an error; the zero Definition applies.
func (c *Config) Load() error {
	if c.Path == "" {
		c.Path = DefaultPath
	}

	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			c.Definition = &Definition{}
			return nil
		}
		return kserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}

	c.Definition = def
	return nil
}

// Parse decodes and schema-validates a keyshift.yaml document.
func Parse(data []byte) (*Definition, error) {
	// Decode generically first so schema validation sees the document as
	// written, including unknown keys.
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, kserrors.ConfigurationError{
			Message:    "invalid YAML syntax in configuration file",
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters",
		}
	}

	if err := validateWithSchema(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, kserrors.ConfigurationError{
			Message:    "configuration does not match the expected structure",
			Suggestion: "Compare your keyshift.yaml against the documented example",
		}
	}

	return &def, nil
}

// validateWithSchema validates a decoded document against configSchema.
func validateWithSchema(doc map[string]interface{}) error {
	if doc == nil {
		return nil
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var messages []string
		for _, desc := range result.Errors() {
			messages = append(messages, desc.String())
		}
		return kserrors.ConfigurationError{
			Message:    "invalid keyshift.yaml:\n  - " + strings.Join(messages, "\n  - "),
			Suggestion: "Fix the listed fields; run 'keyshift doctor' to re-check",
		}
	}

	return nil
}
