package archive

import "github.com/jacentio/pbcore/store"

// Entity types, used in entity references such as "asset#<id>".
const (
	EntityAsset         = "asset"
	EntityInstantiation = "instantiation"
	EntityPicklistEntry = "picklist_entry"
)

// Tables names the archive's DynamoDB tables and indexes.
type Tables struct {
	Assets         string
	Instantiations string
	Picklists      string

	// AssetIndex is a GSI on Instantiations keyed by asset_id.
	AssetIndex string

	// VocabularyIndex is a GSI on Picklists keyed by vocabulary.
	VocabularyIndex string
}

// DefaultTables returns the default table and index names.
func DefaultTables() Tables {
	return Tables{
		Assets:          "pbcore_assets",
		Instantiations:  "pbcore_instantiations",
		Picklists:       "pbcore_picklists",
		AssetIndex:      "asset_id-index",
		VocabularyIndex: "vocabulary-index",
	}
}

func (t Tables) withDefaults() Tables {
	d := DefaultTables()
	if t.Assets == "" {
		t.Assets = d.Assets
	}
	if t.Instantiations == "" {
		t.Instantiations = d.Instantiations
	}
	if t.Picklists == "" {
		t.Picklists = d.Picklists
	}
	if t.AssetIndex == "" {
		t.AssetIndex = d.AssetIndex
	}
	if t.VocabularyIndex == "" {
		t.VocabularyIndex = d.VocabularyIndex
	}
	return t
}

// Relationships returns the registry of archive parent/child relationships
// for the cascade handler.
func Relationships(t Tables) *store.Registry {
	t = t.withDefaults()
	return store.NewRegistry(store.Relationship{
		ParentType:     EntityAsset,
		ChildType:      EntityInstantiation,
		ChildTableName: t.Instantiations,
		ParentKeyAttr:  "asset_id",
	})
}
