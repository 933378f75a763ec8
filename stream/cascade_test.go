package stream_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/pbcore/internal/dynamotest"
	"github.com/jacentio/pbcore/store"
	"github.com/jacentio/pbcore/stream"
)

// --- Fixtures ---

type asset struct{ id string }

func (a asset) TableName() string  { return "assets" }
func (a asset) EntityRef() string  { return store.Ref("asset", a.id) }
func (a asset) EntityType() string { return "asset" }
func (a asset) GetKey() store.PK {
	return store.PK{"id": &types.AttributeValueMemberS{Value: a.id}}
}

type instantiation struct{ id, assetID string }

func (i instantiation) TableName() string  { return "instantiations" }
func (i instantiation) EntityRef() string  { return store.Ref("instantiation", i.id) }
func (i instantiation) EntityType() string { return "instantiation" }
func (i instantiation) GetKey() store.PK {
	return store.PK{"id": &types.AttributeValueMemberS{Value: i.id}}
}
func (i instantiation) ParentRef() string { return store.Ref("asset", i.assetID) }
func (i instantiation) ParentCheck() *store.ConditionCheck {
	return &store.ConditionCheck{TableName: "assets", Key: asset{i.assetID}.GetKey()}
}

type term struct{ id, name string }

func (t term) TableName() string  { return "terms" }
func (t term) EntityRef() string  { return store.Ref("picklist_entry", t.id) }
func (t term) EntityType() string { return "picklist_entry" }
func (t term) GetKey() store.PK {
	return store.PK{"id": &types.AttributeValueMemberS{Value: t.id}}
}
func (t term) ParentRef() string                  { return "vocabulary#formatColors" }
func (t term) ParentCheck() *store.ConditionCheck { return nil }
func (t term) UniqueFields() map[string]string    { return map[string]string{"name": t.name} }

func newFixture(t *testing.T, shards int) (*store.Store, *dynamotest.Client) {
	t.Helper()
	client := dynamotest.New()
	client.CreateTable("assets", "id", "")
	client.CreateTable("instantiations", "id", "")
	client.CreateTable("terms", "id", "")
	client.CreateTable("pbcore_relationships", "pk", "child_ref")
	client.CreateTable("pbcore_unique_constraints", "pk", "sk")

	cfg := store.DefaultConfig()
	cfg.NumShards = shards
	reg := store.NewRegistry(store.Relationship{
		ParentType:     "asset",
		ChildType:      "instantiation",
		ChildTableName: "instantiations",
		ParentKeyAttr:  "asset_id",
	})
	return store.NewWithRegistry(client, cfg, reg), client
}

func item(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{"id": &types.AttributeValueMemberS{Value: id}}
}

func toStream(av types.AttributeValue) events.DynamoDBAttributeValue {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return events.NewStringAttribute(v.Value)
	case *types.AttributeValueMemberN:
		return events.NewNumberAttribute(v.Value)
	case *types.AttributeValueMemberL:
		list := make([]events.DynamoDBAttributeValue, len(v.Value))
		for i, e := range v.Value {
			list[i] = toStream(e)
		}
		return events.NewListAttribute(list)
	case *types.AttributeValueMemberM:
		return events.NewMapAttribute(toImage(v.Value))
	}
	return events.NewNullAttribute()
}

func toImage(raw map[string]types.AttributeValue) map[string]events.DynamoDBAttributeValue {
	image := make(map[string]events.DynamoDBAttributeValue, len(raw))
	for k, v := range raw {
		image[k] = toStream(v)
	}
	return image
}

// deleteEvent builds the MODIFY record DynamoDB emits when Delete sets a TTL.
func deleteEvent(old, new map[string]types.AttributeValue) events.DynamoDBEvent {
	return events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{{
		EventID:   "evt-1",
		EventName: "MODIFY",
		Change: events.DynamoDBStreamRecord{
			OldImage: toImage(old),
			NewImage: toImage(new),
		},
	}}}
}

func ttlOf(raw map[string]types.AttributeValue) string {
	if v, ok := raw["ttl"].(*types.AttributeValueMemberN); ok {
		return v.Value
	}
	return ""
}

// --- Handler Tests ---

func TestNewHandler(t *testing.T) {
	if stream.NewHandler(nil, nil) == nil {
		t.Fatal("expected non-nil Handler")
	}
}

func TestHandleCascadeDelete_EmptyEvent(t *testing.T) {
	h := stream.NewHandler(nil, nil)
	if err := h.HandleCascadeDelete(context.Background(), events.DynamoDBEvent{}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestHandleCascadeDelete_AssetToInstantiations(t *testing.T) {
	for _, shards := range []int{1, 8} {
		t.Run(fmt.Sprintf("%d shards", shards), func(t *testing.T) {
			ctx := context.Background()
			s, client := newFixture(t, shards)

			a := asset{"a1"}
			if err := s.Create(ctx, a, item("a1")); err != nil {
				t.Fatalf("create asset: %v", err)
			}
			var kids []instantiation
			for n := 0; n < 5; n++ {
				i := instantiation{fmt.Sprintf("i%d", n), "a1"}
				if err := s.Create(ctx, i, item(i.id)); err != nil {
					t.Fatalf("create instantiation: %v", err)
				}
				kids = append(kids, i)
			}

			before := client.Item("assets", a.GetKey())
			if err := s.Delete(ctx, a, store.DeleteOptions{Cascade: true}); err != nil {
				t.Fatalf("delete: %v", err)
			}
			after := client.Item("assets", a.GetKey())

			h := stream.NewHandler(s, nil)
			if err := h.HandleCascadeDelete(ctx, deleteEvent(before, after)); err != nil {
				t.Fatalf("handle: %v", err)
			}

			want := ttlOf(after)
			for _, i := range kids {
				if got := ttlOf(client.Item("instantiations", i.GetKey())); got != want {
					t.Errorf("%s: expected ttl %s, got %q", i.id, want, got)
				}
				if _, err := s.Get(ctx, "instantiations", i.GetKey()); !errors.Is(err, store.ErrNotFound) {
					t.Errorf("%s: expected child to read as deleted, got %v", i.id, err)
				}
			}
		})
	}
}

func TestHandleCascadeDelete_ChildReleasesRecords(t *testing.T) {
	ctx := context.Background()
	s, client := newFixture(t, 1)

	if err := s.Create(ctx, asset{"a1"}, item("a1")); err != nil {
		t.Fatalf("create asset: %v", err)
	}
	i := instantiation{"i1", "a1"}
	if err := s.Create(ctx, i, item("i1")); err != nil {
		t.Fatalf("create instantiation: %v", err)
	}

	before := client.Item("instantiations", i.GetKey())
	ttl := time.Now().Unix()
	if err := s.SetTTLByKey(ctx, "instantiations", i.GetKey(), ttl); err != nil {
		t.Fatalf("set ttl: %v", err)
	}
	after := client.Item("instantiations", i.GetKey())

	if err := stream.NewHandler(s, nil).HandleCascadeDelete(ctx, deleteEvent(before, after)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	rels := client.Items("pbcore_relationships")
	if len(rels) != 1 || ttlOf(rels[0]) != fmt.Sprint(ttl) {
		t.Errorf("expected the relationship record to carry ttl %d, got %v", ttl, rels)
	}
	if has, _ := s.HasActiveChildren(ctx, "asset#a1"); has {
		t.Error("expected the asset to have no active children")
	}
	// instantiations have no registered children, so no relationship query is made.
	if n := client.Calls("Query"); n != 1 {
		t.Errorf("expected only the HasActiveChildren query, got %d queries", n)
	}
}

func TestHandleCascadeDelete_ReleasesUniqueConstraints(t *testing.T) {
	ctx := context.Background()
	s, client := newFixture(t, 1)

	tm := term{"t1", "Color"}
	if err := s.Create(ctx, tm, item("t1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	before := client.Item("terms", tm.GetKey())
	if err := s.Delete(ctx, tm, store.DeleteOptions{}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	after := client.Item("terms", tm.GetKey())

	if err := stream.NewHandler(s, nil).HandleCascadeDelete(ctx, deleteEvent(before, after)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if _, err := s.LookupUnique(ctx, "vocabulary#formatColors", "picklist_entry", "name", "Color"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected the name to be released, got %v", err)
	}
	if err := s.Create(ctx, term{"t2", "Color"}, item("t2")); err != nil {
		t.Errorf("expected the name to be reusable, got %v", err)
	}
}

func TestHandleCascadeDelete_QueryFailure(t *testing.T) {
	ctx := context.Background()
	s, client := newFixture(t, 1)
	if err := s.Create(ctx, asset{"a1"}, item("a1")); err != nil {
		t.Fatalf("create: %v", err)
	}
	before := client.Item("assets", asset{"a1"}.GetKey())
	if err := s.Delete(ctx, asset{"a1"}, store.DeleteOptions{Cascade: true}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	after := client.Item("assets", asset{"a1"}.GetKey())

	boom := errors.New("throttled")
	client.FailNext("Query", boom)
	err := stream.NewHandler(s, nil).HandleCascadeDelete(ctx, deleteEvent(before, after))
	if !errors.Is(err, boom) {
		t.Errorf("expected the batch to fail for retry, got %v", err)
	}
}
