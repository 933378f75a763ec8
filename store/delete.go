package store

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/pbcore/internal/shard"
)

// DeleteOptions configures delete behavior.
type DeleteOptions struct {
	// Cascade lets the stream handler propagate the deletion to children.
	Cascade bool

	// OrphanProtect fails the delete with ErrHasChildren if active children
	// exist. Ignored when Cascade is set.
	OrphanProtect bool
}

// Delete marks an entity deleted by setting its TTL to now. The version is
// incremented so in-flight updates fail. Returns ErrNotFound if the entity is
// missing or already deleted.
func (s *Store) Delete(ctx context.Context, entity Entity, opts DeleteOptions) error {
	if opts.OrphanProtect && !opts.Cascade {
		hasChildren, err := s.HasActiveChildren(ctx, entity.EntityRef())
		if err != nil {
			return err
		}
		if hasChildren {
			return ErrHasChildren
		}
	}

	err := s.setEntityTTL(ctx, entity.TableName(), entity.GetKey(), time.Now().Unix())
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrNotFound
	}
	return err
}

// SetTTLByKey sets ttl on a live entity. Entities already deleted or missing
// are skipped, which keeps cascade replays idempotent.
func (s *Store) SetTTLByKey(ctx context.Context, table string, key PK, ttl int64) error {
	return ignoreConditionFailure(s.setEntityTTL(ctx, table, key, ttl))
}

func (s *Store) setEntityTTL(ctx context.Context, table string, key PK, ttl int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(table),
		Key:                 key,
		UpdateExpression:    aws.String("SET #ttl = :ttl, #version = #version + :one"),
		ConditionExpression: aws.String("attribute_exists(id) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{
			"#ttl":     "ttl",
			"#version": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl": unixAttr(ttl),
			":one": &types.AttributeValueMemberN{Value: "1"},
		},
	})
	return err
}

// SetRelationshipTTL sets ttl on the relationship record of childRef under parentRef.
func (s *Store) SetRelationshipTTL(ctx context.Context, childRef, parentRef string, ttl int64) error {
	return s.setRecordTTL(ctx, s.config.RelationshipTable, map[string]types.AttributeValue{
		"pk":        &types.AttributeValueMemberS{Value: shard.RelationshipPK(parentRef, childRef, s.config.NumShards)},
		"child_ref": &types.AttributeValueMemberS{Value: childRef},
	}, ttl)
}

// SetUniqueConstraintTTL sets ttl on a unique constraint record, releasing its value.
func (s *Store) SetUniqueConstraintTTL(ctx context.Context, pk string, ttl int64) error {
	return s.setRecordTTL(ctx, s.config.UniqueTable, map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: constraintSK},
	}, ttl)
}

func (s *Store) setRecordTTL(ctx context.Context, table string, key PK, ttl int64) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(table),
		Key:                      key,
		UpdateExpression:         aws.String("SET #ttl = :ttl"),
		ConditionExpression:      aws.String("attribute_exists(pk) AND attribute_not_exists(#ttl)"),
		ExpressionAttributeNames: map[string]string{"#ttl": "ttl"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ttl": unixAttr(ttl),
		},
	})
	return ignoreConditionFailure(err)
}

func ignoreConditionFailure(err error) error {
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return nil
	}
	return err
}
