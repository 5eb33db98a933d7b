package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/todos/todo"
)

// API is the subset of *dynamodb.Client used by the Store.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	dynamodb.QueryAPIClient
}

// Store provides typed DynamoDB operations on todo items.
type Store struct {
	client API
	config Config
	logger *slog.Logger
}

// New creates a new Store instance.
func New(client API, config Config, logger *slog.Logger) *Store {
	config.validate()
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		client: client,
		config: config,
		logger: logger,
	}
}

// TableName returns the table the Store reads and writes.
func (s *Store) TableName() string {
	return s.config.TableName
}

// List returns all items of an owner. An unknown owner yields an empty slice.
func (s *Store) List(ctx context.Context, ownerID string) ([]todo.Item, error) {
	const op = "store.list"
	s.logger.Debug("listing todos", "userId", ownerID)

	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.config.TableName),
		KeyConditionExpression: aws.String("#userId = :userId"),
		ExpressionAttributeNames: map[string]string{
			"#userId": AttrUserID,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: ownerID},
		},
		ConsistentRead: aws.Bool(!s.config.EventualReads),
	}
	if s.config.PageSize > 0 {
		input.Limit = aws.Int32(s.config.PageSize)
	}

	items := []todo.Item{}
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, todo.E(todo.KindStoreRead, op, ownerID, "", err)
		}
		for _, raw := range page.Items {
			item, err := unmarshalTodo(raw)
			if err != nil {
				return nil, todo.E(todo.KindStoreRead, op, ownerID, "", err)
			}
			items = append(items, item)
		}
	}

	return items, nil
}

// Create puts a full record. Uniqueness of the key is the caller's concern.
func (s *Store) Create(ctx context.Context, item todo.Item) (todo.Item, error) {
	const op = "store.create"
	s.logger.Debug("creating todo", "userId", item.UserID, "todoId", item.TodoID)

	raw, err := attributevalue.MarshalMap(item)
	if err != nil {
		return todo.Item{}, todo.E(todo.KindStoreWrite, op, item.UserID, item.TodoID, fmt.Errorf("marshal item: %w", err))
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.TableName),
		Item:      raw,
	})
	if err != nil {
		return todo.Item{}, todo.E(todo.KindStoreWrite, op, item.UserID, item.TodoID, err)
	}

	return item, nil
}

// Update writes name, dueDate and done and returns the post-update record.
// It fails if no record exists under the key.
func (s *Store) Update(ctx context.Context, ownerID, itemID string, req todo.UpdateRequest) (todo.Item, error) {
	s.logger.Debug("updating todo", "userId", ownerID, "todoId", itemID)

	return s.update(ctx, "store.update", ownerID, itemID, []setClause{
		{attr: AttrName, value: &types.AttributeValueMemberS{Value: req.Name}},
		{attr: AttrDueDate, value: &types.AttributeValueMemberS{Value: req.DueDate}},
		{attr: AttrDone, value: &types.AttributeValueMemberBOOL{Value: req.Done}},
	})
}

// UpdateAttachmentURL writes attachmentUrl only and returns the post-update
// record. It fails if no record exists under the key.
func (s *Store) UpdateAttachmentURL(ctx context.Context, ownerID, itemID, url string) (todo.Item, error) {
	s.logger.Debug("updating todo attachment", "userId", ownerID, "todoId", itemID)

	return s.update(ctx, "store.update_attachment", ownerID, itemID, []setClause{
		{attr: AttrAttachmentURL, value: &types.AttributeValueMemberS{Value: url}},
	})
}

// Delete removes a record and returns its attributes before deletion.
// It fails if no record exists under the key.
func (s *Store) Delete(ctx context.Context, ownerID, itemID string) (todo.Item, error) {
	const op = "store.delete"
	s.logger.Debug("deleting todo", "userId", ownerID, "todoId", itemID)

	result, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(s.config.TableName),
		Key:                      Key(ownerID, itemID),
		ConditionExpression:      aws.String(ItemExistsCondition()),
		ExpressionAttributeNames: map[string]string{"#todoId": AttrTodoID},
		ReturnValues:             types.ReturnValueAllOld,
	})
	if err != nil {
		return todo.Item{}, s.mapWriteError(op, ownerID, itemID, err)
	}

	item, err := unmarshalTodo(result.Attributes)
	if err != nil {
		return todo.Item{}, todo.E(todo.KindStoreWrite, op, ownerID, itemID, err)
	}
	return item, nil
}

// Exists reports whether a record is present under the key.
// Absence is not an error.
func (s *Store) Exists(ctx context.Context, ownerID, itemID string) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:                aws.String(s.config.TableName),
		Key:                      Key(ownerID, itemID),
		ConsistentRead:           aws.Bool(!s.config.EventualReads),
		ProjectionExpression:     aws.String("#todoId"),
		ExpressionAttributeNames: map[string]string{"#todoId": AttrTodoID},
	})
	if err != nil {
		return false, todo.E(todo.KindStoreRead, "store.exists", ownerID, itemID, err)
	}
	return len(result.Item) > 0, nil
}

type setClause struct {
	attr  string
	value types.AttributeValue
}

// update applies a SET expression conditioned on the key existing.
func (s *Store) update(ctx context.Context, op, ownerID, itemID string, sets []setClause) (todo.Item, error) {
	exprNames := map[string]string{
		"#todoId": AttrTodoID,
	}
	exprValues := map[string]types.AttributeValue{}

	clauses := make([]string, 0, len(sets))
	for i, c := range sets {
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		exprNames[nameKey] = c.attr
		exprValues[valueKey] = c.value
		clauses = append(clauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}

	result, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.config.TableName),
		Key:                       Key(ownerID, itemID),
		UpdateExpression:          aws.String("SET " + joinStrings(clauses, ", ")),
		ConditionExpression:       aws.String(ItemExistsCondition()),
		ExpressionAttributeNames:  exprNames,
		ExpressionAttributeValues: exprValues,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return todo.Item{}, s.mapWriteError(op, ownerID, itemID, err)
	}

	item, err := unmarshalTodo(result.Attributes)
	if err != nil {
		return todo.Item{}, todo.E(todo.KindStoreWrite, op, ownerID, itemID, err)
	}
	return item, nil
}

// mapWriteError wraps a DynamoDB write failure. A failed existence condition
// is reported as ErrItemMissing.
func (s *Store) mapWriteError(op, ownerID, itemID string, err error) error {
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return todo.E(todo.KindStoreWrite, op, ownerID, itemID, ErrItemMissing)
	}
	return todo.E(todo.KindStoreWrite, op, ownerID, itemID, err)
}

// unmarshalTodo decodes a DynamoDB item into a todo.
func unmarshalTodo(raw map[string]types.AttributeValue) (todo.Item, error) {
	if len(raw) == 0 {
		return todo.Item{}, ErrMalformedItem
	}
	var item todo.Item
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return todo.Item{}, fmt.Errorf("%w: %v", ErrMalformedItem, err)
	}
	if item.UserID == "" || item.TodoID == "" {
		return todo.Item{}, fmt.Errorf("%w: missing key attributes", ErrMalformedItem)
	}
	return item, nil
}

// joinStrings joins strings with a separator.
func joinStrings(strs []string, sep string) string {
	if len(strs) == 0 {
		return ""
	}
	result := strs[0]
	for _, s := range strs[1:] {
		result += sep + s
	}
	return result
}
