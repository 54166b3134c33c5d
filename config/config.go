// Package config loads per-project configuration from .par.yaml and runs the
// initialization commands it declares inside freshly created sessions.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/partools/par/errors"
)

// FileName is the per-project configuration file, looked up in the worktree
// first and the repository root second.
const FileName = ".par.yaml"

// Config is the parsed project configuration.
type Config struct {
	Initialization Initialization `yaml:"initialization"`
}

// Initialization declares commands typed into a session right after it is
// created.
type Initialization struct {
	Commands []InitCommand `yaml:"commands"`
}

// InitCommand is one initialization command. In YAML it may be a bare string
// or a mapping with an optional display name.
type InitCommand struct {
	Name    string `yaml:"name"`
	Command string `yaml:"command"`
}

// Load reads the configuration file from dir. A missing file is not an
// error; it yields a nil config.
func Load(dir string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "read "+FileName)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Validation(fmt.Sprintf("%s is not valid YAML: %v", FileName, err))
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "yaml",
		DecodeHook: stringToCommandHook,
		Result:     &cfg,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "build config decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Validation(fmt.Sprintf("%s has unexpected shape: %v", FileName, err))
	}

	return &cfg, nil
}

// stringToCommandHook lets a command entry be written as a bare string
// instead of a {name, command} mapping.
func stringToCommandHook(from, to reflect.Type, data any) (any, error) {
	if from.Kind() == reflect.String && to == reflect.TypeOf(InitCommand{}) {
		return InitCommand{Command: data.(string)}, nil
	}
	return data, nil
}
