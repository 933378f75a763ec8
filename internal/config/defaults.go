package config

const (
	defaultConfigPath = "~/.config/pbcore/config.toml"
	defaultSQLitePath = "~/.local/share/pbcore/picklists.db"
)

// Picklist backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendDynamoDB = "dynamodb"
)

// Default returns the default configuration.
func Default() Config {
	return Config{
		DynamoDB: DynamoDB{
			AssetsTable:         "pbcore_assets",
			InstantiationsTable: "pbcore_instantiations",
			PicklistsTable:      "pbcore_picklists",
			AssetIndex:          "asset_id-index",
			VocabularyIndex:     "vocabulary-index",
			RelationshipTable:   "pbcore_relationships",
			UniqueTable:         "pbcore_unique_constraints",
			NumShards:           1,
		},
		Picklists: Picklists{
			Backend:    BackendSQLite,
			SQLitePath: defaultSQLitePath,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
	}
}
