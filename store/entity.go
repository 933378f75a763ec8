package store

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// PK is a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Entity is implemented by every storable type.
type Entity interface {
	TableName() string
	GetKey() PK

	// EntityRef returns the type-qualified reference, e.g. "asset#<uuid>".
	EntityRef() string
	EntityType() string
}

// ParentChecker is implemented by entities that belong to a parent.
type ParentChecker interface {
	// ParentCheck returns the condition verifying the parent on create, or nil
	// when the parent is not a stored entity (e.g. a picklist vocabulary).
	ParentCheck() *ConditionCheck

	// ParentRef returns the parent reference. Empty for root entities.
	ParentRef() string
}

// ConditionCheck is a parent existence check inside a create transaction.
type ConditionCheck struct {
	TableName string
	Key       PK

	// ConditionExpr overrides ParentExistsCondition when set.
	ConditionExpr string
}

// UniqueFielder is implemented by entities whose field values must be unique
// within the parent scope.
type UniqueFielder interface {
	UniqueFields() map[string]string
}

// Ref builds an entity reference from a type and ID.
func Ref(entityType, id string) string {
	return entityType + "#" + id
}

// ParseRef splits an entity reference into its type and ID.
func ParseRef(ref string) (entityType, id string, ok bool) {
	entityType, id, ok = strings.Cut(ref, "#")
	if !ok || entityType == "" || id == "" {
		return "", "", false
	}
	return entityType, id, true
}

// Item is a retrieved entity with its managed fields decoded.
type Item struct {
	Raw       map[string]types.AttributeValue
	Version   int64
	CreatedAt string
	UpdatedAt string
	EntityRef string
	ParentRef string
}

// ChildRef locates a child entity through the relationship table.
type ChildRef struct {
	Ref       string
	TableName string
	Key       PK

	// ShardPK is the relationship partition holding the record.
	ShardPK string
}

// QueryInput defines a query. The TTL filter is merged into FilterExpression.
type QueryInput struct {
	TableName                 string
	IndexName                 string
	KeyConditionExpression    string
	FilterExpression          string
	ExpressionAttributeNames  map[string]string
	ExpressionAttributeValues map[string]types.AttributeValue

	// Limit caps items evaluated per page (0 = no limit).
	Limit            int32
	ScanIndexForward *bool
}
