// Package todo defines the todo entity and the error kinds shared by the
// store, attachment and service layers.
package todo

// Item is a persisted todo record, keyed by (UserID, TodoID).
type Item struct {
	UserID        string `dynamodbav:"userId" json:"userId"`
	TodoID        string `dynamodbav:"todoId" json:"todoId"`
	CreatedAt     string `dynamodbav:"createdAt" json:"createdAt"`
	Name          string `dynamodbav:"name" json:"name"`
	DueDate       string `dynamodbav:"dueDate" json:"dueDate"`
	Done          bool   `dynamodbav:"done" json:"done"`
	AttachmentURL string `dynamodbav:"attachmentUrl" json:"attachmentUrl"`
}

// CreateRequest holds the caller-supplied fields of a new todo.
type CreateRequest struct {
	Name    string `json:"name"`
	DueDate string `json:"dueDate"`
}

// UpdateRequest holds the mutable fields of a todo. All three are written.
type UpdateRequest struct {
	Name    string `json:"name"`
	DueDate string `json:"dueDate"`
	Done    bool   `json:"done"`
}
