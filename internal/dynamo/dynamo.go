// Package dynamo builds DynamoDB clients and archive settings from configuration.
package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/jacentio/pbcore/archive"
	"github.com/jacentio/pbcore/internal/config"
	"github.com/jacentio/pbcore/store"
)

// NewClient loads the AWS configuration for cfg and returns a DynamoDB client.
// Endpoint, when set, points the client at DynamoDB Local or another emulator.
func NewClient(ctx context.Context, cfg config.DynamoDB) (*dynamodb.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// StoreConfig returns the store settings of cfg.
func StoreConfig(cfg config.DynamoDB) store.Config {
	return store.Config{
		RelationshipTable: cfg.RelationshipTable,
		UniqueTable:       cfg.UniqueTable,
		NumShards:         cfg.NumShards,
	}
}

// Tables returns the archive table names of cfg.
func Tables(cfg config.DynamoDB) archive.Tables {
	return archive.Tables{
		Assets:          cfg.AssetsTable,
		Instantiations:  cfg.InstantiationsTable,
		Picklists:       cfg.PicklistsTable,
		AssetIndex:      cfg.AssetIndex,
		VocabularyIndex: cfg.VocabularyIndex,
	}
}

// NewStore returns a store over client with the archive relationships registered.
func NewStore(client store.Client, cfg config.DynamoDB) *store.Store {
	return store.NewWithRegistry(client, StoreConfig(cfg), archive.Relationships(Tables(cfg)))
}
