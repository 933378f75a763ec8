package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/pbcore/internal/shard"
)

// Client is the subset of the DynamoDB API used by Store. *dynamodb.Client satisfies it.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

const constraintSK = "CONSTRAINT"

// managed attributes are owned by the store and never written by Update.
var managed = map[string]bool{
	"id": true, "entity_ref": true, "parent_ref": true, "version": true,
	"created_at": true, "updated_at": true, "ttl": true, "_unique_pks": true,
}

// Store provides DynamoDB operations with hierarchical entity support.
type Store struct {
	client   Client
	config   Config
	registry *Registry
}

// New creates a Store.
func New(client Client, config Config) *Store {
	config.validate()
	return &Store{client: client, config: config}
}

// NewWithRegistry creates a Store with a relationship registry.
func NewWithRegistry(client Client, config Config, registry *Registry) *Store {
	s := New(client, config)
	s.registry = registry
	return s
}

// SetRegistry sets the relationship registry for cascade operations.
func (s *Store) SetRegistry(registry *Registry) {
	s.registry = registry
}

// Registry returns the relationship registry, or nil if not set.
func (s *Store) Registry() *Registry {
	return s.registry
}

// Config returns the validated configuration.
func (s *Store) Config() Config {
	return s.config
}

// Create writes a new entity in one transaction with its parent check, unique
// constraint records and relationship record. Managed fields (entity_ref,
// parent_ref, version, created_at, updated_at) are set on item.
func (s *Store) Create(ctx context.Context, entity Entity, item map[string]types.AttributeValue) error {
	now := time.Now()
	nowISO := now.UTC().Format(time.RFC3339)

	var (
		items            []types.TransactWriteItem
		parentRef        string
		parentCheckIndex = -1
	)

	if pc, ok := entity.(ParentChecker); ok {
		parentRef = pc.ParentRef()
		if check := pc.ParentCheck(); check != nil {
			parentCheckIndex = len(items)
			items = append(items, parentConditionCheck(check, now.Unix()))
		}
	}

	item["entity_ref"] = &types.AttributeValueMemberS{Value: entity.EntityRef()}
	item["version"] = &types.AttributeValueMemberN{Value: "1"}
	item["created_at"] = &types.AttributeValueMemberS{Value: nowISO}
	item["updated_at"] = &types.AttributeValueMemberS{Value: nowISO}
	if parentRef != "" {
		item["parent_ref"] = &types.AttributeValueMemberS{Value: parentRef}
	}

	if uf, ok := entity.(UniqueFielder); ok && parentRef != "" {
		var uniquePKs []string
		for _, field := range sortedKeys(uf.UniqueFields()) {
			pk := shard.UniqueConstraintPK(parentRef, entity.EntityType(), field, uf.UniqueFields()[field])
			uniquePKs = append(uniquePKs, pk)
			items = append(items, s.uniqueConstraintPut(pk, parentRef, entity, field, uf.UniqueFields()[field], now.Unix()))
		}
		if len(uniquePKs) > 0 {
			list, err := attributevalue.MarshalList(uniquePKs)
			if err != nil {
				return fmt.Errorf("marshal unique keys: %w", err)
			}
			item["_unique_pks"] = &types.AttributeValueMemberL{Value: list}
		}
	}

	entityPutIndex := len(items)
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:           aws.String(entity.TableName()),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		},
	})

	if parentRef != "" {
		items = append(items, s.relationshipPut(parentRef, entity))
	}

	_, err := s.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapCreateTransactionError(err, parentCheckIndex, entityPutIndex)
}

func parentConditionCheck(check *ConditionCheck, now int64) types.TransactWriteItem {
	cond := check.ConditionExpr
	if cond == "" {
		cond = ParentExistsCondition()
	}
	return types.TransactWriteItem{
		ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(check.TableName),
			Key:                       check.Key,
			ConditionExpression:       aws.String(cond),
			ExpressionAttributeNames:  TTLFilterNames(),
			ExpressionAttributeValues: map[string]types.AttributeValue{":now": unixAttr(now)},
		},
	}
}

// uniqueConstraintPut claims a unique value. Values released by a deletion
// can be claimed again before DynamoDB removes the expired record.
func (s *Store) uniqueConstraintPut(pk, scope string, entity Entity, field, value string, now int64) types.TransactWriteItem {
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.config.UniqueTable),
			Item: map[string]types.AttributeValue{
				"pk":          &types.AttributeValueMemberS{Value: pk},
				"sk":          &types.AttributeValueMemberS{Value: constraintSK},
				"parent_ref":  &types.AttributeValueMemberS{Value: scope},
				"entity_type": &types.AttributeValueMemberS{Value: entity.EntityType()},
				"field_name":  &types.AttributeValueMemberS{Value: field},
				"field_value": &types.AttributeValueMemberS{Value: value},
				"entity_ref":  &types.AttributeValueMemberS{Value: entity.EntityRef()},
			},
			ConditionExpression:       aws.String("attribute_not_exists(pk) OR #ttl <= :now"),
			ExpressionAttributeNames:  TTLFilterNames(),
			ExpressionAttributeValues: map[string]types.AttributeValue{":now": unixAttr(now)},
		},
	}
}

func (s *Store) relationshipPut(parentRef string, entity Entity) types.TransactWriteItem {
	childRef := entity.EntityRef()
	return types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(s.config.RelationshipTable),
			Item: map[string]types.AttributeValue{
				"pk":          &types.AttributeValueMemberS{Value: shard.RelationshipPK(parentRef, childRef, s.config.NumShards)},
				"child_ref":   &types.AttributeValueMemberS{Value: childRef},
				"parent_ref":  &types.AttributeValueMemberS{Value: parentRef},
				"child_table": &types.AttributeValueMemberS{Value: entity.TableName()},
				"child_key":   &types.AttributeValueMemberM{Value: entity.GetKey()},
			},
		},
	}
}

// Get retrieves an entity by key. Missing and deleted entities return ErrNotFound.
func (s *Store) Get(ctx context.Context, table string, key PK) (*Item, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(table),
		Key:       key,
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil || IsDeleted(result.Item) {
		return nil, ErrNotFound
	}
	return unmarshalItem(result.Item), nil
}

// LookupUnique returns the reference of the live entity holding value for a
// unique field in scope, or ErrNotFound.
func (s *Store) LookupUnique(ctx context.Context, scope, entityType, field, value string) (string, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.UniqueTable),
		Key: map[string]types.AttributeValue{
			"pk": &types.AttributeValueMemberS{Value: shard.UniqueConstraintPK(scope, entityType, field, value)},
			"sk": &types.AttributeValueMemberS{Value: constraintSK},
		},
	})
	if err != nil {
		return "", err
	}
	if result.Item == nil || IsDeleted(result.Item) {
		return "", ErrNotFound
	}
	ref, _ := result.Item["entity_ref"].(*types.AttributeValueMemberS)
	if ref == nil {
		return "", ErrNotFound
	}
	return ref.Value, nil
}

// Query runs a query with deleted items filtered out, following all pages.
func (s *Store) Query(ctx context.Context, input QueryInput) ([]*Item, error) {
	filterExpr := TTLFilterExpr()
	if input.FilterExpression != "" {
		filterExpr = fmt.Sprintf("(%s) AND (%s)", input.FilterExpression, filterExpr)
	}

	queryInput := &dynamodb.QueryInput{
		TableName:                 aws.String(input.TableName),
		KeyConditionExpression:    aws.String(input.KeyConditionExpression),
		FilterExpression:          aws.String(filterExpr),
		ExpressionAttributeNames:  mergeExprNames(TTLFilterNames(), input.ExpressionAttributeNames),
		ExpressionAttributeValues: mergeExprValues(TTLFilterValues(), input.ExpressionAttributeValues),
		ScanIndexForward:          input.ScanIndexForward,
	}
	if input.IndexName != "" {
		queryInput.IndexName = aws.String(input.IndexName)
	}
	if input.Limit > 0 {
		queryInput.Limit = aws.Int32(input.Limit)
	}

	var items []*Item
	paginator := dynamodb.NewQueryPaginator(s.client, queryInput)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, raw := range page.Items {
			items = append(items, unmarshalItem(raw))
		}
	}
	return items, nil
}

// Update writes item's non-managed attributes if the stored version equals
// expectedVersion, and increments the version. Returns ErrConcurrentModification
// on a version mismatch and ErrNotFound if the entity is missing or deleted.
func (s *Store) Update(ctx context.Context, entity Entity, item map[string]types.AttributeValue, expectedVersion int64) error {
	exprNames := map[string]string{
		"#updated_at": "updated_at",
		"#version":    "version",
		"#ttl":        "ttl",
	}
	exprValues := map[string]types.AttributeValue{
		":updated_at":       &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		":one":              &types.AttributeValueMemberN{Value: "1"},
		":expected_version": &types.AttributeValueMemberN{Value: strconv.FormatInt(expectedVersion, 10)},
	}

	var setClauses []string
	for i, k := range sortedKeys(item) {
		if managed[k] {
			continue
		}
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		exprNames[nameKey] = k
		exprValues[valueKey] = item[k]
		setClauses = append(setClauses, nameKey+" = "+valueKey)
	}
	setClauses = append(setClauses, "#updated_at = :updated_at", "#version = #version + :one")

	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(entity.TableName()),
		Key:                       entity.GetKey(),
		UpdateExpression:          aws.String("SET " + strings.Join(setClauses, ", ")),
		ConditionExpression:       aws.String("#version = :expected_version AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
	})

	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		if _, getErr := s.Get(ctx, entity.TableName(), entity.GetKey()); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConcurrentModification
	}
	return err
}

// mapCreateTransactionError maps a cancelled create transaction to the
// sentinel of the first failed item.
func mapCreateTransactionError(err error, parentCheckIndex, entityPutIndex int) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if aws.ToString(reason.Code) != "ConditionalCheckFailed" {
				continue
			}
			switch i {
			case parentCheckIndex:
				return ErrParentNotFound
			case entityPutIndex:
				return ErrAlreadyExists
			default:
				return ErrDuplicateValue
			}
		}
	}
	return err
}

func unmarshalItem(raw map[string]types.AttributeValue) *Item {
	item := &Item{Raw: raw}
	if v, ok := raw["version"].(*types.AttributeValueMemberN); ok {
		item.Version, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	item.CreatedAt = stringAttr(raw, "created_at")
	item.UpdatedAt = stringAttr(raw, "updated_at")
	item.EntityRef = stringAttr(raw, "entity_ref")
	item.ParentRef = stringAttr(raw, "parent_ref")
	return item
}

func stringAttr(raw map[string]types.AttributeValue, key string) string {
	if v, ok := raw[key].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
