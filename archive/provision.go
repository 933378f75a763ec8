package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/pbcore/store"
)

// TableAdmin is the subset of the DynamoDB API used to provision tables.
// *dynamodb.Client satisfies it.
type TableAdmin interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	UpdateTimeToLive(ctx context.Context, params *dynamodb.UpdateTimeToLiveInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateTimeToLiveOutput, error)
	dynamodb.DescribeTableAPIClient
}

// TableSpec describes one table to provision.
type TableSpec struct {
	Name     string
	HashKey  string
	RangeKey string

	// Index is an optional GSI keyed by IndexKey.
	Index    string
	IndexKey string

	// Stream enables a NEW_AND_OLD_IMAGES stream for the cascade handler.
	Stream bool
}

// TableSpecs returns every table the archive and its store need.
func TableSpecs(tables Tables, cfg store.Config) []TableSpec {
	tables = tables.withDefaults()
	return []TableSpec{
		{Name: tables.Assets, HashKey: "id", Stream: true},
		{Name: tables.Instantiations, HashKey: "id", Index: tables.AssetIndex, IndexKey: "asset_id", Stream: true},
		{Name: tables.Picklists, HashKey: "id", Index: tables.VocabularyIndex, IndexKey: "vocabulary", Stream: true},
		{Name: cfg.RelationshipTable, HashKey: "pk", RangeKey: "child_ref"},
		{Name: cfg.UniqueTable, HashKey: "pk", RangeKey: "sk"},
	}
}

// CreateTables creates the tables in specs with TTL enabled on "ttl" and waits
// until they are active. Tables that already exist are left as they are.
func CreateTables(ctx context.Context, admin TableAdmin, specs []TableSpec, wait time.Duration) error {
	for _, table := range specs {
		_, err := admin.CreateTable(ctx, createTableInput(table))
		var inUse *types.ResourceInUseException
		if errors.As(err, &inUse) {
			continue
		}
		if err != nil {
			return fmt.Errorf("create table %s: %w", table.Name, err)
		}

		waiter := dynamodb.NewTableExistsWaiter(admin)
		if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(table.Name)}, wait); err != nil {
			return fmt.Errorf("wait for table %s: %w", table.Name, err)
		}

		_, err = admin.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
			TableName: aws.String(table.Name),
			TimeToLiveSpecification: &types.TimeToLiveSpecification{
				AttributeName: aws.String("ttl"),
				Enabled:       aws.Bool(true),
			},
		})
		if err != nil {
			return fmt.Errorf("enable ttl on %s: %w", table.Name, err)
		}
	}
	return nil
}

func createTableInput(table TableSpec) *dynamodb.CreateTableInput {
	in := &dynamodb.CreateTableInput{
		TableName: aws.String(table.Name),
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(table.HashKey), KeyType: types.KeyTypeHash},
		},
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(table.HashKey), AttributeType: types.ScalarAttributeTypeS},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
	if table.RangeKey != "" {
		in.KeySchema = append(in.KeySchema, types.KeySchemaElement{
			AttributeName: aws.String(table.RangeKey), KeyType: types.KeyTypeRange,
		})
		in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(table.RangeKey), AttributeType: types.ScalarAttributeTypeS,
		})
	}
	if table.Index != "" {
		in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(table.IndexKey), AttributeType: types.ScalarAttributeTypeS,
		})
		in.GlobalSecondaryIndexes = []types.GlobalSecondaryIndex{{
			IndexName: aws.String(table.Index),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(table.IndexKey), KeyType: types.KeyTypeHash},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}}
	}
	if table.Stream {
		in.StreamSpecification = &types.StreamSpecification{
			StreamEnabled:  aws.Bool(true),
			StreamViewType: types.StreamViewTypeNewAndOldImages,
		}
	}
	return in
}
