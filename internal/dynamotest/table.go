// Package dynamotest provides an in-memory DynamoDB table for tests.
//
// It understands the subset of expressions the store package emits:
// SET update expressions, attribute_exists/attribute_not_exists conditions,
// single-equality key conditions on the partition key, projections, and
// Limit/ExclusiveStartKey pagination.
package dynamotest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Operation names passed to Table.Before.
const (
	OpGetItem    = "GetItem"
	OpPutItem    = "PutItem"
	OpUpdateItem = "UpdateItem"
	OpDeleteItem = "DeleteItem"
	OpQuery      = "Query"
)

// Table is a single in-memory table with a string partition and sort key.
type Table struct {
	name         string
	partitionKey string
	sortKey      string

	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
	calls map[string]int

	// Before, if set, runs before every operation without holding the lock.
	// A non-nil return fails the operation with that error.
	Before func(op string) error
}

// New creates an empty table.
func New(name, partitionKey, sortKey string) *Table {
	return &Table{
		name:         name,
		partitionKey: partitionKey,
		sortKey:      sortKey,
		items:        make(map[string]map[string]types.AttributeValue),
		calls:        make(map[string]int),
	}
}

// Len returns the number of stored items.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.items)
}

// Calls returns how many times op was invoked.
func (t *Table) Calls(op string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[op]
}

// Raw returns a copy of the stored item under (pk, sk), or nil.
func (t *Table) Raw(pk, sk string) map[string]types.AttributeValue {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[itemKey(pk, sk)]
	if !ok {
		return nil
	}
	return copyItem(item)
}

// Remove deletes an item directly, bypassing hooks.
func (t *Table) Remove(pk, sk string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, itemKey(pk, sk))
}

// GetItem implements the DynamoDB GetItem call.
func (t *Table) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := t.begin(ctx, OpGetItem, in.TableName); err != nil {
		return nil, err
	}
	key, err := t.keyOf(in.Key)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[key]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: project(item, aws.ToString(in.ProjectionExpression), in.ExpressionAttributeNames)}, nil
}

// PutItem implements the DynamoDB PutItem call.
func (t *Table) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := t.begin(ctx, OpPutItem, in.TableName); err != nil {
		return nil, err
	}
	key, err := t.keyOf(in.Item)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	existing := t.items[key]
	if err := checkCondition(aws.ToString(in.ConditionExpression), in.ExpressionAttributeNames, existing); err != nil {
		return nil, err
	}
	t.items[key] = copyItem(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// UpdateItem implements the DynamoDB UpdateItem call for SET expressions.
func (t *Table) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	if err := t.begin(ctx, OpUpdateItem, in.TableName); err != nil {
		return nil, err
	}
	key, err := t.keyOf(in.Key)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	existing := t.items[key]
	if err := checkCondition(aws.ToString(in.ConditionExpression), in.ExpressionAttributeNames, existing); err != nil {
		return nil, err
	}

	updated := copyItem(existing)
	if updated == nil {
		updated = copyItem(in.Key)
	}
	expr := strings.TrimSpace(aws.ToString(in.UpdateExpression))
	if !strings.HasPrefix(strings.ToUpper(expr), "SET ") {
		return nil, fmt.Errorf("dynamotest: unsupported update expression %q", expr)
	}
	for _, clause := range strings.Split(expr[4:], ",") {
		parts := strings.SplitN(clause, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("dynamotest: malformed SET clause %q", clause)
		}
		name := resolveName(strings.TrimSpace(parts[0]), in.ExpressionAttributeNames)
		value, ok := in.ExpressionAttributeValues[strings.TrimSpace(parts[1])]
		if !ok {
			return nil, fmt.Errorf("dynamotest: missing value for %q", parts[1])
		}
		updated[name] = value
	}
	t.items[key] = updated

	out := &dynamodb.UpdateItemOutput{}
	switch in.ReturnValues {
	case types.ReturnValueAllNew:
		out.Attributes = copyItem(updated)
	case types.ReturnValueAllOld:
		out.Attributes = copyItem(existing)
	}
	return out, nil
}

// DeleteItem implements the DynamoDB DeleteItem call.
func (t *Table) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	if err := t.begin(ctx, OpDeleteItem, in.TableName); err != nil {
		return nil, err
	}
	key, err := t.keyOf(in.Key)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	existing := t.items[key]
	if err := checkCondition(aws.ToString(in.ConditionExpression), in.ExpressionAttributeNames, existing); err != nil {
		return nil, err
	}
	delete(t.items, key)

	out := &dynamodb.DeleteItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = copyItem(existing)
	}
	return out, nil
}

// Query implements the DynamoDB Query call for "<pk> = :value" key conditions.
func (t *Table) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if err := t.begin(ctx, OpQuery, in.TableName); err != nil {
		return nil, err
	}
	parts := strings.SplitN(aws.ToString(in.KeyConditionExpression), "=", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("dynamotest: unsupported key condition %q", aws.ToString(in.KeyConditionExpression))
	}
	if name := resolveName(strings.TrimSpace(parts[0]), in.ExpressionAttributeNames); name != t.partitionKey {
		return nil, fmt.Errorf("dynamotest: key condition on %q, want %q", name, t.partitionKey)
	}
	want, ok := in.ExpressionAttributeValues[strings.TrimSpace(parts[1])].(*types.AttributeValueMemberS)
	if !ok {
		return nil, errors.New("dynamotest: partition value must be a string")
	}

	var start string
	if in.ExclusiveStartKey != nil {
		if v, ok := in.ExclusiveStartKey[t.sortKey].(*types.AttributeValueMemberS); ok {
			start = v.Value
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	var matched []map[string]types.AttributeValue
	for _, item := range t.items {
		if stringAttr(item, t.partitionKey) != want.Value {
			continue
		}
		if in.ExclusiveStartKey != nil && stringAttr(item, t.sortKey) <= start {
			continue
		}
		matched = append(matched, item)
	}
	sort.Slice(matched, func(i, j int) bool {
		return stringAttr(matched[i], t.sortKey) < stringAttr(matched[j], t.sortKey)
	})

	out := &dynamodb.QueryOutput{}
	limit := int(aws.ToInt32(in.Limit))
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
		last := matched[limit-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			t.partitionKey: last[t.partitionKey],
			t.sortKey:      last[t.sortKey],
		}
	}
	for _, item := range matched {
		out.Items = append(out.Items, copyItem(item))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (t *Table) begin(ctx context.Context, op string, table *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	t.calls[op]++
	t.mu.Unlock()

	if aws.ToString(table) != t.name {
		return &types.ResourceNotFoundException{Message: aws.String("Requested resource not found: " + aws.ToString(table))}
	}
	if t.Before != nil {
		return t.Before(op)
	}
	return nil
}

func (t *Table) keyOf(item map[string]types.AttributeValue) (string, error) {
	pk, ok := item[t.partitionKey].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("dynamotest: missing partition key %q", t.partitionKey)
	}
	sk, ok := item[t.sortKey].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("dynamotest: missing sort key %q", t.sortKey)
	}
	return itemKey(pk.Value, sk.Value), nil
}

// checkCondition evaluates attribute_exists(x) and attribute_not_exists(x).
func checkCondition(expr string, names map[string]string, existing map[string]types.AttributeValue) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil
	}

	var negate bool
	var inner string
	switch {
	case strings.HasPrefix(expr, "attribute_exists(") && strings.HasSuffix(expr, ")"):
		inner = expr[len("attribute_exists(") : len(expr)-1]
	case strings.HasPrefix(expr, "attribute_not_exists(") && strings.HasSuffix(expr, ")"):
		inner = expr[len("attribute_not_exists(") : len(expr)-1]
		negate = true
	default:
		return fmt.Errorf("dynamotest: unsupported condition %q", expr)
	}

	_, present := existing[resolveName(strings.TrimSpace(inner), names)]
	if present == negate {
		return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
	}
	return nil
}

func project(item map[string]types.AttributeValue, expr string, names map[string]string) map[string]types.AttributeValue {
	if expr == "" {
		return copyItem(item)
	}
	out := make(map[string]types.AttributeValue)
	for _, p := range strings.Split(expr, ",") {
		name := resolveName(strings.TrimSpace(p), names)
		if v, ok := item[name]; ok {
			out[name] = v
		}
	}
	return out
}

func resolveName(token string, names map[string]string) string {
	if strings.HasPrefix(token, "#") {
		if n, ok := names[token]; ok {
			return n
		}
	}
	return token
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func itemKey(pk, sk string) string {
	return pk + "\x00" + sk
}
