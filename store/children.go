package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"github.com/jacentio/pbcore/internal/shard"
)

var errChildFound = errors.New("child found")

// HasActiveChildren reports whether any non-deleted child of entityRef exists.
// Shards are queried in parallel and the fan-out stops at the first hit.
func (s *Store) HasActiveChildren(ctx context.Context, entityRef string) (bool, error) {
	now := time.Now().Unix()
	g, gctx := errgroup.WithContext(ctx)
	for _, pk := range shard.PartitionKeys(entityRef, s.config.NumShards) {
		g.Go(func() error {
			found, err := s.shardHasActiveChildren(gctx, pk, now)
			if err != nil {
				return fmt.Errorf("shard %s: %w", pk, err)
			}
			if found {
				return errChildFound
			}
			return nil
		})
	}

	switch err := g.Wait(); {
	case err == nil:
		return false, nil
	case errors.Is(err, errChildFound):
		return true, nil
	default:
		return false, err
	}
}

func (s *Store) shardHasActiveChildren(ctx context.Context, shardPK string, now int64) (bool, error) {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:                aws.String(s.config.RelationshipTable),
		KeyConditionExpression:   aws.String("pk = :pk"),
		FilterExpression:         aws.String(TTLFilterExpr()),
		ExpressionAttributeNames: TTLFilterNames(),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":  &types.AttributeValueMemberS{Value: shardPK},
			":now": unixAttr(now),
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return false, err
		}
		if len(page.Items) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// QueryAllChildren returns every child of parentRef, deleted ones included, so
// cascades can be replayed idempotently. Results are grouped by shard in shard order.
func (s *Store) QueryAllChildren(ctx context.Context, parentRef string) ([]ChildRef, error) {
	pks := shard.PartitionKeys(parentRef, s.config.NumShards)
	perShard := make([][]ChildRef, len(pks))

	g, gctx := errgroup.WithContext(ctx)
	for i, pk := range pks {
		g.Go(func() error {
			children, err := s.queryShardChildren(gctx, pk)
			if err != nil {
				return fmt.Errorf("shard %s: %w", pk, err)
			}
			perShard[i] = children
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []ChildRef
	for _, children := range perShard {
		all = append(all, children...)
	}
	return all, nil
}

func (s *Store) queryShardChildren(ctx context.Context, shardPK string) ([]ChildRef, error) {
	var children []ChildRef
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.config.RelationshipTable),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: shardPK},
		},
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			children = append(children, unmarshalChildRef(item, shardPK))
		}
	}
	return children, nil
}

func unmarshalChildRef(item map[string]types.AttributeValue, shardPK string) ChildRef {
	ref := ChildRef{
		Ref:       stringAttr(item, "child_ref"),
		TableName: stringAttr(item, "child_table"),
		ShardPK:   shardPK,
	}
	if v, ok := item["child_key"].(*types.AttributeValueMemberM); ok {
		ref.Key = v.Value
	}
	return ref
}
