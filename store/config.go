package store

import "github.com/jacentio/pbcore/internal/shard"

const (
	defaultRelationshipTable = "pbcore_relationships"
	defaultUniqueTable       = "pbcore_unique_constraints"
)

// Config holds configuration for the Store.
type Config struct {
	// RelationshipTable holds parent/child records used for cascades and
	// orphan protection. Default: "pbcore_relationships"
	RelationshipTable string

	// UniqueTable holds unique constraint records. Default: "pbcore_unique_constraints"
	UniqueTable string

	// NumShards spreads the children of one parent over this many relationship
	// partitions. Each shard sustains roughly 1,000 writes/sec; reads of a
	// parent's children fan out to every shard.
	// Default: 1. Max: 256.
	NumShards int
}

// DefaultConfig returns a single-shard configuration with default table names.
func DefaultConfig() Config {
	return Config{
		RelationshipTable: defaultRelationshipTable,
		UniqueTable:       defaultUniqueTable,
		NumShards:         1,
	}
}

// validate fills missing table names and clamps NumShards into [1, 256].
func (c *Config) validate() {
	if c.RelationshipTable == "" {
		c.RelationshipTable = defaultRelationshipTable
	}
	if c.UniqueTable == "" {
		c.UniqueTable = defaultUniqueTable
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > shard.MaxShards {
		c.NumShards = shard.MaxShards
	}
}
