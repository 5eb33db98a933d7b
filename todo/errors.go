package todo

import (
	"errors"
	"fmt"
)

// Kind classifies a failure. The set is closed.
type Kind int

const (
	// KindUnknown is reported for errors that did not come from this module.
	KindUnknown Kind = iota

	// KindNotFound means the (owner, item) pair does not exist.
	KindNotFound

	// KindInvalid means the request was rejected before touching any store.
	KindInvalid

	// KindStoreRead means a query or existence check failed.
	KindStoreRead

	// KindStoreWrite means a put, update or delete failed.
	KindStoreWrite

	// KindURLIssuance means the blob store refused to presign an upload.
	KindURLIssuance

	// KindAttachmentOrphaned means an upload URL was issued but could not be
	// recorded on the item. Error.UploadURL holds the issued URL.
	KindAttachmentOrphaned
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindInvalid:
		return "invalid request"
	case KindStoreRead:
		return "store read failed"
	case KindStoreWrite:
		return "store write failed"
	case KindURLIssuance:
		return "url issuance failed"
	case KindAttachmentOrphaned:
		return "attachment url orphaned"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalid            = &Error{Kind: KindInvalid}
	ErrStoreRead          = &Error{Kind: KindStoreRead}
	ErrStoreWrite         = &Error{Kind: KindStoreWrite}
	ErrURLIssuance        = &Error{Kind: KindURLIssuance}
	ErrAttachmentOrphaned = &Error{Kind: KindAttachmentOrphaned}
)

// Error is the typed failure returned by every operation in this module.
type Error struct {
	Kind    Kind
	Op      string
	OwnerID string
	ItemID  string

	// UploadURL is set for KindAttachmentOrphaned only.
	UploadURL string

	Err error
}

func (e *Error) Error() string {
	msg := "todos: "
	if e.Op != "" {
		msg += e.Op + ": "
	}
	msg += e.Kind.String()
	if e.OwnerID != "" || e.ItemID != "" {
		msg += fmt.Sprintf(" (userId=%s, todoId=%s)", e.OwnerID, e.ItemID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// E builds an *Error for op on the given key.
func E(kind Kind, op, ownerID, itemID string, err error) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		OwnerID: ownerID,
		ItemID:  itemID,
		Err:     err,
	}
}
