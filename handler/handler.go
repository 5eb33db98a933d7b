// Package handler serves the todos HTTP API as an API Gateway proxy Lambda.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/todos/todo"
)

// Routes, as API Gateway resource paths.
const (
	ResourceTodos      = "/todos"
	ResourceTodo       = "/todos/{todoId}"
	ResourceAttachment = "/todos/{todoId}/attachment"
)

// Todos is the business layer. *service.Service implements it.
type Todos interface {
	ListForOwner(ctx context.Context, ownerID string) ([]todo.Item, error)
	Create(ctx context.Context, ownerID string, req todo.CreateRequest) (todo.Item, error)
	Update(ctx context.Context, ownerID, itemID string, req todo.UpdateRequest) (todo.Item, error)
	Delete(ctx context.Context, ownerID, itemID string) (todo.Item, error)
	IssueAttachmentURL(ctx context.Context, ownerID, itemID string) (string, error)
}

// Identity resolves the caller's user id from the Authorization header.
type Identity interface {
	UserID(header string) (string, error)
}

// Handler dispatches API Gateway proxy requests.
type Handler struct {
	todos    Todos
	identity Identity
	logger   *slog.Logger
}

// New creates a Handler.
func New(todos Todos, identity Identity, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		todos:    todos,
		identity: identity,
		logger:   logger,
	}
}

// Handle is the Lambda entry point.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	userID, err := h.identity.UserID(header(req, "Authorization"))
	if err != nil {
		h.logger.Warn("rejected request", "resource", req.Resource, "error", err)
		return respondError(http.StatusUnauthorized, "unauthorized"), nil
	}

	todoID := req.PathParameters["todoId"]
	switch route(req) {
	case http.MethodGet + " " + ResourceTodos:
		return h.list(ctx, userID)
	case http.MethodPost + " " + ResourceTodos:
		return h.create(ctx, userID, req)
	case http.MethodPatch + " " + ResourceTodo:
		return h.update(ctx, userID, todoID, req)
	case http.MethodDelete + " " + ResourceTodo:
		return h.delete(ctx, userID, todoID)
	case http.MethodPost + " " + ResourceAttachment:
		return h.attachment(ctx, userID, todoID)
	}

	return respondError(http.StatusNotFound, "no route for "+req.HTTPMethod+" "+req.Resource), nil
}

func (h *Handler) list(ctx context.Context, userID string) (events.APIGatewayProxyResponse, error) {
	items, err := h.todos.ListForOwner(ctx, userID)
	if err != nil {
		return h.fail("get todos", err), nil
	}
	return respond(http.StatusOK, map[string]interface{}{"items": items}), nil
}

func (h *Handler) create(ctx context.Context, userID string, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	raw, err := requestBody(req)
	if err != nil {
		return respondError(http.StatusBadRequest, err.Error()), nil
	}
	var body todo.CreateRequest
	if err := decodeBody(createSchema, raw, &body); err != nil {
		return respondError(http.StatusBadRequest, err.Error()), nil
	}

	item, err := h.todos.Create(ctx, userID, body)
	if err != nil {
		return h.fail("create todo", err), nil
	}
	return respond(http.StatusCreated, map[string]interface{}{"item": item}), nil
}

func (h *Handler) update(ctx context.Context, userID, todoID string, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	raw, err := requestBody(req)
	if err != nil {
		return respondError(http.StatusBadRequest, err.Error()), nil
	}
	var body todo.UpdateRequest
	if err := decodeBody(updateSchema, raw, &body); err != nil {
		return respondError(http.StatusBadRequest, err.Error()), nil
	}

	item, err := h.todos.Update(ctx, userID, todoID, body)
	if err != nil {
		return h.fail("update todo", err), nil
	}
	return respond(http.StatusOK, map[string]interface{}{"item": item}), nil
}

func (h *Handler) delete(ctx context.Context, userID, todoID string) (events.APIGatewayProxyResponse, error) {
	item, err := h.todos.Delete(ctx, userID, todoID)
	if err != nil {
		return h.fail("delete todo", err), nil
	}
	return respond(http.StatusOK, map[string]interface{}{"item": item}), nil
}

func (h *Handler) attachment(ctx context.Context, userID, todoID string) (events.APIGatewayProxyResponse, error) {
	url, err := h.todos.IssueAttachmentURL(ctx, userID, todoID)
	if err != nil {
		return h.fail("generate upload url", err), nil
	}
	return respond(http.StatusCreated, map[string]interface{}{"uploadUrl": url}), nil
}

// fail logs err and maps its kind to a status code.
func (h *Handler) fail(action string, err error) events.APIGatewayProxyResponse {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(action+" failed", "error", err)
	} else {
		h.logger.Info(action+" rejected", "error", err)
	}

	msg := http.StatusText(status)
	switch todo.KindOf(err) {
	case todo.KindNotFound, todo.KindInvalid:
		msg = err.Error()
	case todo.KindAttachmentOrphaned:
		msg = "upload url was issued but could not be recorded on the todo"
	}
	return respondError(status, msg)
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch todo.KindOf(err) {
	case todo.KindNotFound:
		return http.StatusNotFound
	case todo.KindInvalid:
		return http.StatusBadRequest
	case todo.KindURLIssuance:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func route(req events.APIGatewayProxyRequest) string {
	return strings.ToUpper(req.HTTPMethod) + " " + req.Resource
}

func header(req events.APIGatewayProxyRequest, name string) string {
	for k, v := range req.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	for k, v := range req.MultiValueHeaders {
		if strings.EqualFold(k, name) && len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

var errBadBase64 = errors.New("invalid base64 body")

func requestBody(req events.APIGatewayProxyRequest) (string, error) {
	if !req.IsBase64Encoded {
		return req.Body, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(req.Body)
	if err != nil {
		return "", errBadBase64
	}
	return string(decoded), nil
}

func corsHeaders() map[string]string {
	return map[string]string{
		"Content-Type":                     "application/json",
		"Access-Control-Allow-Origin":      "*",
		"Access-Control-Allow-Credentials": "true",
	}
}

func respond(status int, body interface{}) events.APIGatewayProxyResponse {
	data, err := json.Marshal(body)
	if err != nil {
		return respondError(http.StatusInternalServerError, "encode response")
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    corsHeaders(),
		Body:       string(data),
	}
}

func respondError(status int, msg string) events.APIGatewayProxyResponse {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    corsHeaders(),
		Body:       string(data),
	}
}
