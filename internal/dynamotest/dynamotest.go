// Package dynamotest provides an in-memory DynamoDB client covering the
// operations and expression forms used by the store package.
//
// Supported expressions: attribute_exists, attribute_not_exists, the
// comparison operators, AND/OR with parentheses, and SET updates of the
// form "a = :v" or "a = a + :v".
package dynamotest

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type Item = map[string]types.AttributeValue

type table struct {
	hashKey  string
	rangeKey string
	indexes  map[string]string
	items    map[string]Item
}

// Client is an in-memory DynamoDB. It is safe for concurrent use.
type Client struct {
	mu     sync.Mutex
	tables map[string]*table
	calls  map[string]int
	fail   map[string]error
}

// New returns an empty Client.
func New() *Client {
	return &Client{
		tables: make(map[string]*table),
		calls:  make(map[string]int),
		fail:   make(map[string]error),
	}
}

// CreateTable declares a table. rangeKey may be empty.
func (c *Client) CreateTable(name, hashKey, rangeKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[name] = &table{
		hashKey:  hashKey,
		rangeKey: rangeKey,
		indexes:  make(map[string]string),
		items:    make(map[string]Item),
	}
}

// CreateIndex declares a global secondary index keyed by hashKey.
func (c *Client) CreateIndex(tableName, index, hashKey string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[tableName].indexes[index] = hashKey
}

// FailNext makes the next call of op ("GetItem", "Query", ...) return err.
func (c *Client) FailNext(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail[op] = err
}

// Calls returns how many times op was invoked.
func (c *Client) Calls(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[op]
}

// Put stores item unconditionally.
func (c *Client) Put(tableName string, item Item) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tables[tableName]
	t.items[t.keyOf(item)] = clone(item)
}

// Item returns a copy of the stored item with the given key, or nil.
func (c *Client) Item(tableName string, key Item) Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tables[tableName]
	if item, ok := t.items[t.keyOf(key)]; ok {
		return clone(item)
	}
	return nil
}

// Items returns copies of every item in a table, in key order.
func (c *Client) Items(tableName string) []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tables[tableName]
	var out []Item
	for _, k := range t.sortedKeys() {
		out = append(out, clone(t.items[k]))
	}
	return out
}

func (c *Client) begin(op string) error {
	c.calls[op]++
	if err, ok := c.fail[op]; ok {
		delete(c.fail, op)
		return err
	}
	return nil
}

func (c *Client) table(name *string) (*table, error) {
	t, ok := c.tables[aws.ToString(name)]
	if !ok {
		return nil, &types.ResourceNotFoundException{Message: aws.String("table not found: " + aws.ToString(name))}
	}
	return t, nil
}

// GetItem implements the DynamoDB GetItem operation.
func (c *Client) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("GetItem"); err != nil {
		return nil, err
	}
	t, err := c.table(in.TableName)
	if err != nil {
		return nil, err
	}
	out := &dynamodb.GetItemOutput{}
	if item, ok := t.items[t.keyOf(in.Key)]; ok {
		out.Item = clone(item)
	}
	return out, nil
}

// UpdateItem implements the DynamoDB UpdateItem operation.
func (c *Client) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("UpdateItem"); err != nil {
		return nil, err
	}
	t, err := c.table(in.TableName)
	if err != nil {
		return nil, err
	}
	next, ok, err := t.prepareUpdate(in.Key, aws.ToString(in.UpdateExpression), aws.ToString(in.ConditionExpression),
		in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	t.items[t.keyOf(next)] = next
	return &dynamodb.UpdateItemOutput{}, nil
}

// Query implements the DynamoDB Query operation, including Limit and pagination.
func (c *Client) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("Query"); err != nil {
		return nil, err
	}
	t, err := c.table(in.TableName)
	if err != nil {
		return nil, err
	}
	indexKey := ""
	if in.IndexName != nil {
		var ok bool
		if indexKey, ok = t.indexes[aws.ToString(in.IndexName)]; !ok {
			return nil, fmt.Errorf("dynamotest: unknown index %q", aws.ToString(in.IndexName))
		}
	}

	keys := t.sortedKeys()
	if in.ExclusiveStartKey != nil {
		start := t.keyOf(in.ExclusiveStartKey)
		i := sort.SearchStrings(keys, start)
		if i < len(keys) && keys[i] == start {
			i++
		}
		keys = keys[i:]
	}

	out := &dynamodb.QueryOutput{}
	evaluated, lastKey := 0, ""
	for _, k := range keys {
		item := t.items[k]
		if indexKey != "" {
			if _, ok := item[indexKey]; !ok {
				continue
			}
		}
		match, err := evaluate(aws.ToString(in.KeyConditionExpression), in.ExpressionAttributeNames, in.ExpressionAttributeValues, item)
		if err != nil {
			return nil, err
		}
		if !match {
			continue
		}
		if in.Limit != nil && evaluated == int(*in.Limit) {
			out.LastEvaluatedKey = t.keyAttrs(t.items[lastKey])
			break
		}
		evaluated++
		lastKey = k
		if in.FilterExpression != nil {
			keep, err := evaluate(*in.FilterExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, item)
			if err != nil {
				return nil, err
			}
			if !keep {
				continue
			}
		}
		out.Items = append(out.Items, clone(item))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

// TransactWriteItems implements the DynamoDB TransactWriteItems operation.
// Either every item applies or none does.
func (c *Client) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.begin("TransactWriteItems"); err != nil {
		return nil, err
	}

	type write struct {
		t      *table
		key    string
		item   Item
		delete bool
	}
	var writes []write
	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false

	for i, ti := range in.TransactItems {
		var (
			ok  bool
			err error
		)
		switch {
		case ti.ConditionCheck != nil:
			cc := ti.ConditionCheck
			t, terr := c.table(cc.TableName)
			if terr != nil {
				return nil, terr
			}
			ok, err = evaluate(aws.ToString(cc.ConditionExpression), cc.ExpressionAttributeNames, cc.ExpressionAttributeValues, t.items[t.keyOf(cc.Key)])

		case ti.Put != nil:
			p := ti.Put
			t, terr := c.table(p.TableName)
			if terr != nil {
				return nil, terr
			}
			ok = true
			if p.ConditionExpression != nil {
				ok, err = evaluate(*p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues, t.items[t.keyOf(p.Item)])
			}
			writes = append(writes, write{t: t, key: t.keyOf(p.Item), item: clone(p.Item)})

		case ti.Update != nil:
			u := ti.Update
			t, terr := c.table(u.TableName)
			if terr != nil {
				return nil, terr
			}
			var next Item
			next, ok, err = t.prepareUpdate(u.Key, aws.ToString(u.UpdateExpression), aws.ToString(u.ConditionExpression),
				u.ExpressionAttributeNames, u.ExpressionAttributeValues)
			writes = append(writes, write{t: t, key: t.keyOf(u.Key), item: next})

		case ti.Delete != nil:
			d := ti.Delete
			t, terr := c.table(d.TableName)
			if terr != nil {
				return nil, terr
			}
			ok = true
			if d.ConditionExpression != nil {
				ok, err = evaluate(*d.ConditionExpression, d.ExpressionAttributeNames, d.ExpressionAttributeValues, t.items[t.keyOf(d.Key)])
			}
			writes = append(writes, write{t: t, key: t.keyOf(d.Key), delete: true})
		}
		if err != nil {
			return nil, err
		}
		code := "None"
		if !ok {
			code = "ConditionalCheckFailed"
			failed = true
		}
		reasons[i] = types.CancellationReason{Code: aws.String(code)}
	}

	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}
	for _, w := range writes {
		if w.delete {
			delete(w.t.items, w.key)
			continue
		}
		w.t.items[w.key] = w.item
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

func (t *table) prepareUpdate(key Item, update, cond string, names map[string]string, values Item) (Item, bool, error) {
	current := t.items[t.keyOf(key)]
	if cond != "" {
		ok, err := evaluate(cond, names, values, current)
		if err != nil || !ok {
			return nil, false, err
		}
	}
	next := clone(current)
	if next == nil {
		next = clone(key)
	}
	if err := applySet(update, names, values, next); err != nil {
		return nil, false, err
	}
	return next, true, nil
}

func (t *table) keyOf(item Item) string {
	k := encode(item[t.hashKey])
	if t.rangeKey != "" {
		k += "|" + encode(item[t.rangeKey])
	}
	return k
}

func (t *table) keyAttrs(item Item) Item {
	key := Item{t.hashKey: item[t.hashKey]}
	if t.rangeKey != "" {
		key[t.rangeKey] = item[t.rangeKey]
	}
	return key
}

func (t *table) sortedKeys() []string {
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func encode(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return "S:" + v.Value
	case *types.AttributeValueMemberN:
		return "N:" + v.Value
	case *types.AttributeValueMemberB:
		return "B:" + hex.EncodeToString(v.Value)
	}
	return ""
}

func clone(item Item) Item {
	if item == nil {
		return nil
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// --- Expressions ---

var errSyntax = errors.New("dynamotest: unsupported expression")

func evaluate(expr string, names map[string]string, values Item, item Item) (bool, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return true, nil
	}
	if parts := splitTop(expr, " OR "); len(parts) > 1 {
		for _, p := range parts {
			ok, err := evaluate(p, names, values, item)
			if err != nil || ok {
				return ok, err
			}
		}
		return false, nil
	}
	if parts := splitTop(expr, " AND "); len(parts) > 1 {
		for _, p := range parts {
			ok, err := evaluate(p, names, values, item)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
	if strings.HasPrefix(expr, "(") && strings.HasSuffix(expr, ")") {
		return evaluate(expr[1:len(expr)-1], names, values, item)
	}
	for _, fn := range []string{"attribute_not_exists", "attribute_exists"} {
		if strings.HasPrefix(expr, fn+"(") && strings.HasSuffix(expr, ")") {
			name := resolveName(strings.TrimSpace(expr[len(fn)+1:len(expr)-1]), names)
			_, exists := item[name]
			return exists == (fn == "attribute_exists"), nil
		}
	}
	for _, op := range []string{" <> ", " >= ", " <= ", " = ", " > ", " < "} {
		if lhs, rhs, ok := strings.Cut(expr, op); ok {
			a := operand(strings.TrimSpace(lhs), names, values, item)
			b := operand(strings.TrimSpace(rhs), names, values, item)
			return compare(a, b, strings.TrimSpace(op))
		}
	}
	return false, fmt.Errorf("%w: %q", errSyntax, expr)
}

func splitTop(expr, sep string) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '(':
			depth++
		case ')':
			depth--
		}
		if depth == 0 && strings.HasPrefix(expr[i:], sep) {
			parts = append(parts, expr[last:i])
			last = i + len(sep)
			i += len(sep) - 1
		}
	}
	return append(parts, expr[last:])
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		return names[name]
	}
	return name
}

func operand(token string, names map[string]string, values Item, item Item) types.AttributeValue {
	if strings.HasPrefix(token, ":") {
		return values[token]
	}
	return item[resolveName(token, names)]
}

func compare(a, b types.AttributeValue, op string) (bool, error) {
	if a == nil || b == nil {
		return op == "<>" && (a != nil || b != nil), nil
	}
	var cmp int
	switch av := a.(type) {
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return op == "<>", nil
		}
		x, err1 := strconv.ParseFloat(av.Value, 64)
		y, err2 := strconv.ParseFloat(bv.Value, 64)
		if err1 != nil || err2 != nil {
			return false, fmt.Errorf("dynamotest: bad number in comparison")
		}
		switch {
		case x < y:
			cmp = -1
		case x > y:
			cmp = 1
		}
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return op == "<>", nil
		}
		cmp = strings.Compare(av.Value, bv.Value)
	default:
		if op == "=" || op == "<>" {
			return (encode(a) == encode(b)) == (op == "="), nil
		}
		return false, fmt.Errorf("%w: ordering on %T", errSyntax, a)
	}
	switch op {
	case "=":
		return cmp == 0, nil
	case "<>":
		return cmp != 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	}
	return false, fmt.Errorf("%w: operator %q", errSyntax, op)
}

func applySet(update string, names map[string]string, values Item, item Item) error {
	body, ok := strings.CutPrefix(strings.TrimSpace(update), "SET ")
	if !ok {
		return fmt.Errorf("%w: %q", errSyntax, update)
	}
	for _, clause := range splitTop(body, ", ") {
		lhs, rhs, ok := strings.Cut(clause, " = ")
		if !ok {
			return fmt.Errorf("%w: %q", errSyntax, clause)
		}
		name := resolveName(strings.TrimSpace(lhs), names)
		if x, y, isAdd := strings.Cut(rhs, " + "); isAdd {
			sum, err := add(operand(strings.TrimSpace(x), names, values, item), operand(strings.TrimSpace(y), names, values, item))
			if err != nil {
				return err
			}
			item[name] = sum
			continue
		}
		v := operand(strings.TrimSpace(rhs), names, values, item)
		if v == nil {
			return fmt.Errorf("%w: unbound operand in %q", errSyntax, clause)
		}
		item[name] = v
	}
	return nil
}

func add(a, b types.AttributeValue) (types.AttributeValue, error) {
	x, ok1 := a.(*types.AttributeValueMemberN)
	y, ok2 := b.(*types.AttributeValueMemberN)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("%w: addition needs two numbers", errSyntax)
	}
	i, err1 := strconv.ParseInt(x.Value, 10, 64)
	j, err2 := strconv.ParseInt(y.Value, 10, 64)
	if err1 != nil || err2 != nil {
		return nil, fmt.Errorf("dynamotest: bad number in addition")
	}
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(i+j, 10)}, nil
}
