package dynamotest

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func s(v string) types.AttributeValue { return &types.AttributeValueMemberS{Value: v} }
func n(v string) types.AttributeValue { return &types.AttributeValueMemberN{Value: v} }

// --- Expression Tests ---

func TestEvaluate(t *testing.T) {
	item := Item{"id": s("a"), "version": n("3"), "ttl": n("100")}
	names := map[string]string{"#ttl": "ttl", "#version": "version"}
	values := Item{":now": n("50"), ":v": n("3"), ":later": n("200")}

	tests := []struct {
		expr string
		want bool
	}{
		{"attribute_exists(id)", true},
		{"attribute_not_exists(id)", false},
		{"attribute_not_exists(#ttl) OR #ttl > :now", true},
		{"attribute_not_exists(#ttl) OR #ttl > :later", false},
		{"attribute_exists(id) AND (attribute_not_exists(#ttl) OR #ttl > :now)", true},
		{"#version = :v AND attribute_not_exists(#ttl)", false},
		{"#version = :v", true},
		{"#version <> :v", false},
		{"id = :missing", false},
		{"", true},
	}
	for _, tt := range tests {
		got, err := evaluate(tt.expr, names, values, item)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.expr, err)
		}
		if got != tt.want {
			t.Errorf("%q: expected %v, got %v", tt.expr, tt.want, got)
		}
	}
}

func TestEvaluate_Unsupported(t *testing.T) {
	_, err := evaluate("begins_with(id, :p)", nil, nil, Item{})
	if !errors.Is(err, errSyntax) {
		t.Errorf("expected errSyntax, got %v", err)
	}
}

func TestApplySet(t *testing.T) {
	item := Item{"version": n("1")}
	err := applySet("SET #a = :a, #version = #version + :one",
		map[string]string{"#a": "title", "#version": "version"},
		Item{":a": s("x"), ":one": n("1")}, item)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item["title"].(*types.AttributeValueMemberS).Value != "x" {
		t.Error("expected title to be set")
	}
	if item["version"].(*types.AttributeValueMemberN).Value != "2" {
		t.Error("expected version to be incremented")
	}
}

// --- Client Tests ---

func TestClient_TransactionAllOrNothing(t *testing.T) {
	ctx := context.Background()
	c := New()
	c.CreateTable("things", "id", "")
	c.Put("things", Item{"id": s("taken")})

	_, err := c.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{TableName: aws.String("things"), Item: Item{"id": s("new")}}},
			{Put: &types.Put{
				TableName:           aws.String("things"),
				Item:                Item{"id": s("taken")},
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			}},
		},
	})
	var txErr *types.TransactionCanceledException
	if !errors.As(err, &txErr) {
		t.Fatalf("expected TransactionCanceledException, got %v", err)
	}
	if aws.ToString(txErr.CancellationReasons[1].Code) != "ConditionalCheckFailed" {
		t.Errorf("expected second item to fail, got %+v", txErr.CancellationReasons)
	}
	if c.Item("things", Item{"id": s("new")}) != nil {
		t.Error("expected no writes from a cancelled transaction")
	}
}

func TestClient_QueryPagination(t *testing.T) {
	ctx := context.Background()
	c := New()
	c.CreateTable("rel", "pk", "child")
	for _, child := range []string{"a", "b", "c", "d", "e"} {
		c.Put("rel", Item{"pk": s("p#00"), "child": s(child)})
	}
	c.Put("rel", Item{"pk": s("other#00"), "child": s("z")})

	p := dynamodb.NewQueryPaginator(c, &dynamodb.QueryInput{
		TableName:                 aws.String("rel"),
		KeyConditionExpression:    aws.String("pk = :pk"),
		ExpressionAttributeValues: Item{":pk": s("p#00")},
		Limit:                     aws.Int32(2),
	})
	var got []string
	pages := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		pages++
		for _, item := range page.Items {
			got = append(got, item["child"].(*types.AttributeValueMemberS).Value)
		}
	}
	if len(got) != 5 {
		t.Errorf("expected 5 children, got %v", got)
	}
	if pages != 3 {
		t.Errorf("expected 3 pages, got %d", pages)
	}
}

func TestClient_UpdateCondition(t *testing.T) {
	ctx := context.Background()
	c := New()
	c.CreateTable("things", "id", "")
	c.Put("things", Item{"id": s("a"), "version": n("2")})

	_, err := c.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String("things"),
		Key:                       Item{"id": s("a")},
		UpdateExpression:          aws.String("SET title = :t"),
		ConditionExpression:       aws.String("version = :v"),
		ExpressionAttributeValues: Item{":t": s("x"), ":v": n("1")},
	})
	var condErr *types.ConditionalCheckFailedException
	if !errors.As(err, &condErr) {
		t.Errorf("expected ConditionalCheckFailedException, got %v", err)
	}
}

func TestClient_FailNext(t *testing.T) {
	c := New()
	c.CreateTable("things", "id", "")
	boom := errors.New("boom")
	c.FailNext("GetItem", boom)

	if _, err := c.GetItem(context.Background(), &dynamodb.GetItemInput{TableName: aws.String("things"), Key: Item{"id": s("a")}}); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}
	if _, err := c.GetItem(context.Background(), &dynamodb.GetItemInput{TableName: aws.String("things"), Key: Item{"id": s("a")}}); err != nil {
		t.Errorf("expected injected error to fire once, got %v", err)
	}
	if c.Calls("GetItem") != 2 {
		t.Errorf("expected 2 calls, got %d", c.Calls("GetItem"))
	}
}
