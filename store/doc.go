// Package store provides the DynamoDB access layer for todo items.
//
// Items live in a single table partitioned by owner:
//
//	partition key: userId (S)
//	sort key:      todoId (S)
//
// The [Store] is a narrow typed facade over GetItem, PutItem, UpdateItem,
// DeleteItem and Query. It holds no business rules; ownership and
// existence checks are the caller's concern.
//
// # Operations
//
//   - [Store.List] returns every item of one owner, in table order
//   - [Store.Create] puts a full record without a collision check
//   - [Store.Update] writes name, dueDate and done, returning the new record
//   - [Store.UpdateAttachmentURL] writes attachmentUrl only
//   - [Store.Delete] removes a record, returning its last attributes
//   - [Store.Exists] is a keyed lookup that never fails on absence
//
// Update and Delete are conditioned on the key existing, so a record deleted
// between a caller's existence check and the write produces an error instead
// of an upsert.
//
// # Errors
//
// Every failure is a *todo.Error. Writes report [todo.KindStoreWrite]
// (wrapping [ErrItemMissing] when the condition failed); reads report
// [todo.KindStoreRead].
package store
