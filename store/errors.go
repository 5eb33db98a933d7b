package store

import "errors"

var (
	// ErrItemMissing is wrapped into a store write error when a conditional
	// update or delete found no record under the key.
	ErrItemMissing = errors.New("todos: item missing at write time")

	// ErrMalformedItem is wrapped when a record returned by DynamoDB cannot be
	// decoded into a todo.
	ErrMalformedItem = errors.New("todos: malformed item")
)
