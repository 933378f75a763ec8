package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DynamoDB contains table names and client settings for the archive store.
type DynamoDB struct {
	Region   string `toml:"region"`
	Profile  string `toml:"profile"`
	Endpoint string `toml:"endpoint"`

	AssetsTable         string `toml:"assets_table"`
	InstantiationsTable string `toml:"instantiations_table"`
	PicklistsTable      string `toml:"picklists_table"`
	AssetIndex          string `toml:"asset_index"`
	VocabularyIndex     string `toml:"vocabulary_index"`
	RelationshipTable   string `toml:"relationship_table"`
	UniqueTable         string `toml:"unique_table"`
	NumShards           int    `toml:"num_shards"`
}

// Picklists selects where picklist entries are stored.
type Picklists struct {
	Backend    string `toml:"backend"` // memory, sqlite or dynamodb
	SQLitePath string `toml:"sqlite_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json or text
}

// Config is the application configuration.
type Config struct {
	DynamoDB  DynamoDB  `toml:"dynamodb"`
	Picklists Picklists `toml:"picklists"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns ~/.config/pbcore/config.toml.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load reads the configuration at path, or the default path when empty.
// A missing file at the default path yields the defaults; a missing file at
// an explicit path is an error. It returns the resolved path and whether the
// file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = defaultConfigPath
	}
	resolved, err := expandPath(path)
	if err != nil {
		return "", false, err
	}

	_, err = os.Stat(resolved)
	switch {
	case err == nil:
		return resolved, true, nil
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		return resolved, false, nil
	case errors.Is(err, fs.ErrNotExist):
		return "", false, fmt.Errorf("config file %s does not exist", resolved)
	default:
		return "", false, fmt.Errorf("stat config: %w", err)
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
