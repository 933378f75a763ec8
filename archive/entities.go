package archive

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/pbcore/store"
)

func idKey(id string) store.PK {
	return store.PK{"id": &types.AttributeValueMemberS{Value: id}}
}

type assetEntity struct {
	id     string
	tables Tables
}

func (a assetEntity) TableName() string  { return a.tables.Assets }
func (a assetEntity) GetKey() store.PK   { return idKey(a.id) }
func (a assetEntity) EntityRef() string  { return store.Ref(EntityAsset, a.id) }
func (a assetEntity) EntityType() string { return EntityAsset }

type instantiationEntity struct {
	id      string
	assetID string
	tables  Tables
}

func (i instantiationEntity) TableName() string  { return i.tables.Instantiations }
func (i instantiationEntity) GetKey() store.PK   { return idKey(i.id) }
func (i instantiationEntity) EntityRef() string  { return store.Ref(EntityInstantiation, i.id) }
func (i instantiationEntity) EntityType() string { return EntityInstantiation }
func (i instantiationEntity) ParentRef() string  { return store.Ref(EntityAsset, i.assetID) }

func (i instantiationEntity) ParentCheck() *store.ConditionCheck {
	return &store.ConditionCheck{TableName: i.tables.Assets, Key: idKey(i.assetID)}
}

type entryEntity struct {
	id         string
	vocabulary string
	name       string
	tables     Tables
}

func (e entryEntity) TableName() string  { return e.tables.Picklists }
func (e entryEntity) GetKey() store.PK   { return idKey(e.id) }
func (e entryEntity) EntityRef() string  { return store.Ref(EntityPicklistEntry, e.id) }
func (e entryEntity) EntityType() string { return EntityPicklistEntry }

// Vocabularies are not stored entities; they only scope name uniqueness.
func (e entryEntity) ParentRef() string                  { return vocabularyScope(e.vocabulary) }
func (e entryEntity) ParentCheck() *store.ConditionCheck { return nil }
func (e entryEntity) UniqueFields() map[string]string    { return map[string]string{"name": e.name} }

func vocabularyScope(vocabulary string) string {
	return "vocabulary#" + vocabulary
}
