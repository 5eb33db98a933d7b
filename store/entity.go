package store

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Attribute names of the todos table.
const (
	AttrUserID        = "userId"
	AttrTodoID        = "todoId"
	AttrCreatedAt     = "createdAt"
	AttrName          = "name"
	AttrDueDate       = "dueDate"
	AttrDone          = "done"
	AttrAttachmentURL = "attachmentUrl"
)

// PK represents a DynamoDB primary key.
type PK map[string]types.AttributeValue

// Key returns the primary key of a todo: partition userId, sort todoId.
func Key(ownerID, itemID string) PK {
	return PK{
		AttrUserID: &types.AttributeValueMemberS{Value: ownerID},
		AttrTodoID: &types.AttributeValueMemberS{Value: itemID},
	}
}

// ItemExistsCondition is the condition expression guarding writes that must
// not create a record.
func ItemExistsCondition() string {
	return "attribute_exists(#todoId)"
}
