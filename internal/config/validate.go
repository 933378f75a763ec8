package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.DynamoDB.Region = strings.TrimSpace(c.DynamoDB.Region)
	if c.DynamoDB.Region == "" {
		c.DynamoDB.Region = os.Getenv("AWS_REGION")
	}
	c.DynamoDB.Endpoint = strings.TrimSpace(c.DynamoDB.Endpoint)

	c.Picklists.Backend = strings.ToLower(strings.TrimSpace(c.Picklists.Backend))
	if c.Picklists.Backend == "" {
		c.Picklists.Backend = BackendSQLite
	}
	if strings.TrimSpace(c.Picklists.SQLitePath) == "" {
		c.Picklists.SQLitePath = defaultSQLitePath
	}
	var err error
	if c.Picklists.SQLitePath, err = expandPath(c.Picklists.SQLitePath); err != nil {
		return fmt.Errorf("picklists.sqlite_path: %w", err)
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDynamoDB(); err != nil {
		return err
	}
	if err := c.validatePicklists(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDynamoDB() error {
	d := c.DynamoDB
	tables := []struct{ key, name string }{
		{"dynamodb.assets_table", d.AssetsTable},
		{"dynamodb.instantiations_table", d.InstantiationsTable},
		{"dynamodb.picklists_table", d.PicklistsTable},
		{"dynamodb.relationship_table", d.RelationshipTable},
		{"dynamodb.unique_table", d.UniqueTable},
	}
	for _, tbl := range tables {
		if strings.TrimSpace(tbl.name) == "" {
			return fmt.Errorf("%s must be set", tbl.key)
		}
	}
	if d.NumShards < 1 || d.NumShards > 256 {
		return errors.New("dynamodb.num_shards must be between 1 and 256")
	}
	return nil
}

func (c *Config) validatePicklists() error {
	switch c.Picklists.Backend {
	case BackendMemory, BackendSQLite, BackendDynamoDB:
		return nil
	default:
		return fmt.Errorf("picklists.backend: unsupported value %q", c.Picklists.Backend)
	}
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
