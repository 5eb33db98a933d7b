package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const createTodoSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "create-todo",
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "dueDate": {"type": "string", "minLength": 1}
  },
  "required": ["name", "dueDate"],
  "additionalProperties": false
}`

const updateTodoSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "update-todo",
  "type": "object",
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "dueDate": {"type": "string", "minLength": 1},
    "done": {"type": "boolean"}
  },
  "required": ["name", "dueDate", "done"],
  "additionalProperties": false
}`

var (
	createSchema = jsonschema.MustCompileString("create-todo.json", createTodoSchema)
	updateSchema = jsonschema.MustCompileString("update-todo.json", updateTodoSchema)
)

// decodeBody validates body against schema and decodes it into dst.
func decodeBody(schema *jsonschema.Schema, body string, dst interface{}) error {
	if strings.TrimSpace(body) == "" {
		return errors.New("request body is required")
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return schemaError(err)
	}
	if err := json.Unmarshal([]byte(body), dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// schemaError reduces a validation error to its first leaf cause.
func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Errorf("%s: %s", loc, ve.Message)
}
