// Package service enforces ownership and existence rules for todo items and
// coordinates attachment URL issuance with item updates.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jacentio/todos/todo"
)

// createdAtLayout is an RFC 3339 UTC timestamp with milliseconds.
const createdAtLayout = "2006-01-02T15:04:05.000Z07:00"

// ItemStore is the persistence boundary. *store.Store implements it.
type ItemStore interface {
	List(ctx context.Context, ownerID string) ([]todo.Item, error)
	Create(ctx context.Context, item todo.Item) (todo.Item, error)
	Update(ctx context.Context, ownerID, itemID string, req todo.UpdateRequest) (todo.Item, error)
	UpdateAttachmentURL(ctx context.Context, ownerID, itemID, url string) (todo.Item, error)
	Delete(ctx context.Context, ownerID, itemID string) (todo.Item, error)
	Exists(ctx context.Context, ownerID, itemID string) (bool, error)
}

// URLIssuer is the blob store boundary. *attachment.Issuer implements it.
type URLIssuer interface {
	PresignUpload(ctx context.Context, itemID string) (string, error)
}

// Service is the business layer for todo items.
type Service struct {
	store  ItemStore
	issuer URLIssuer
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for createdAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides todo id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// New creates a Service.
func New(store ItemStore, issuer URLIssuer, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		store:  store,
		issuer: issuer,
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListForOwner returns every item of the owner.
func (s *Service) ListForOwner(ctx context.Context, ownerID string) ([]todo.Item, error) {
	s.logger.Info("get todos for user", "userId", ownerID)
	return s.store.List(ctx, ownerID)
}

// Create stores a new item with a fresh id, done=false and no attachment.
func (s *Service) Create(ctx context.Context, ownerID string, req todo.CreateRequest) (todo.Item, error) {
	const op = "service.create"
	s.logger.Info("create todo", "userId", ownerID)

	if strings.TrimSpace(req.Name) == "" {
		return todo.Item{}, todo.E(todo.KindInvalid, op, ownerID, "", errors.New("name is required"))
	}
	if strings.TrimSpace(req.DueDate) == "" {
		return todo.Item{}, todo.E(todo.KindInvalid, op, ownerID, "", errors.New("dueDate is required"))
	}

	item := todo.Item{
		UserID:        ownerID,
		TodoID:        s.newID(),
		CreatedAt:     s.now().UTC().Format(createdAtLayout),
		Name:          req.Name,
		DueDate:       req.DueDate,
		Done:          false,
		AttachmentURL: "",
	}
	return s.store.Create(ctx, item)
}

// Update overwrites name, dueDate and done of an existing item.
func (s *Service) Update(ctx context.Context, ownerID, itemID string, req todo.UpdateRequest) (todo.Item, error) {
	s.logger.Info("update todo", "userId", ownerID, "todoId", itemID)

	if err := s.checkExists(ctx, "service.update", ownerID, itemID); err != nil {
		return todo.Item{}, err
	}
	return s.store.Update(ctx, ownerID, itemID, req)
}

// Delete removes an existing item and returns its last state.
func (s *Service) Delete(ctx context.Context, ownerID, itemID string) (todo.Item, error) {
	s.logger.Info("delete todo", "userId", ownerID, "todoId", itemID)

	if err := s.checkExists(ctx, "service.delete", ownerID, itemID); err != nil {
		return todo.Item{}, err
	}
	return s.store.Delete(ctx, ownerID, itemID)
}

// IssueAttachmentURL presigns an upload for an existing item, records the
// query-free object URL on the item, and returns the presigned URL.
//
// If the URL was issued but could not be recorded, the error has kind
// todo.KindAttachmentOrphaned and carries the issued URL; PersistAttachmentURL
// retries the recording alone.
func (s *Service) IssueAttachmentURL(ctx context.Context, ownerID, itemID string) (string, error) {
	const op = "service.issue_attachment_url"
	s.logger.Info("create attachment presigned url", "userId", ownerID, "todoId", itemID)

	if err := s.checkExists(ctx, op, ownerID, itemID); err != nil {
		return "", err
	}

	presigned, err := s.issuer.PresignUpload(ctx, itemID)
	if err != nil {
		if todo.KindOf(err) == todo.KindUnknown {
			err = todo.E(todo.KindURLIssuance, op, ownerID, itemID, err)
		}
		return "", err
	}

	durable, err := NormalizeAttachmentURL(presigned)
	if err != nil {
		return "", todo.E(todo.KindURLIssuance, op, ownerID, itemID, err)
	}

	if _, err := s.store.UpdateAttachmentURL(ctx, ownerID, itemID, durable); err != nil {
		s.logger.Error("attachment url issued but not recorded",
			"userId", ownerID,
			"todoId", itemID,
			"error", err,
		)
		return "", &todo.Error{
			Kind:      todo.KindAttachmentOrphaned,
			Op:        op,
			OwnerID:   ownerID,
			ItemID:    itemID,
			UploadURL: presigned,
			Err:       err,
		}
	}

	s.logger.Info("updated todo attachment url", "userId", ownerID, "todoId", itemID)
	return presigned, nil
}

// PersistAttachmentURL records the durable form of an already issued URL on
// an existing item.
func (s *Service) PersistAttachmentURL(ctx context.Context, ownerID, itemID, issuedURL string) (todo.Item, error) {
	const op = "service.persist_attachment_url"

	if err := s.checkExists(ctx, op, ownerID, itemID); err != nil {
		return todo.Item{}, err
	}
	durable, err := NormalizeAttachmentURL(issuedURL)
	if err != nil {
		return todo.Item{}, todo.E(todo.KindInvalid, op, ownerID, itemID, err)
	}
	return s.store.UpdateAttachmentURL(ctx, ownerID, itemID, durable)
}

// NormalizeAttachmentURL strips the query string and fragment from an
// absolute URL, leaving the object location.
func NormalizeAttachmentURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse attachment url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("attachment url %q is not absolute", raw)
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), nil
}

// checkExists fails with KindNotFound unless (ownerID, itemID) is present.
func (s *Service) checkExists(ctx context.Context, op, ownerID, itemID string) error {
	ok, err := s.store.Exists(ctx, ownerID, itemID)
	if err != nil {
		return err
	}
	if !ok {
		return todo.E(todo.KindNotFound, op, ownerID, itemID, nil)
	}
	return nil
}
