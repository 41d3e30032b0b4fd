package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

const createSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["title"],
	"properties": {
		"title": {"type": "string", "minLength": 1, "maxLength": 255, "pattern": "\\S"},
		"description": {"type": "string", "maxLength": 1024},
		"parent_id": {"type": "string", "format": "uuid"}
	}
}`

const updateSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"minProperties": 1,
	"properties": {
		"title": {"type": "string", "minLength": 1, "maxLength": 255, "pattern": "\\S"},
		"description": {"type": "string", "maxLength": 1024}
	}
}`

var (
	createValidator = compileSchema("create.json", createSchema)
	updateValidator = compileSchema("update.json", updateSchema)
)

func compileSchema(name, src string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		panic(fmt.Sprintf("models: add schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// Problem is a single validation failure.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// InvalidError is returned when a payload does not satisfy its schema.
type InvalidError struct {
	Problems []Problem
}

func (e *InvalidError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		if p.Field == "" {
			parts = append(parts, p.Message)
			continue
		}
		parts = append(parts, p.Field+": "+p.Message)
	}
	return strings.Join(parts, "; ")
}

// Validate checks the payload against the create schema.
func (c CreateTodo) Validate() error {
	doc := map[string]any{
		"title":       c.Title,
		"description": c.Description,
	}
	if c.ParentID != nil {
		doc["parent_id"] = c.ParentID.String()
	}
	return validate(createValidator, doc)
}

// Validate checks the payload against the update schema.
func (u UpdateTodo) Validate() error {
	doc := map[string]any{}
	if u.Title != nil {
		doc["title"] = *u.Title
	}
	if u.Description != nil {
		doc["description"] = *u.Description
	}
	return validate(updateValidator, doc)
}

func validate(schema *jsonschema.Schema, doc map[string]any) error {
	err := schema.Validate(doc)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err
	}
	invalid := &InvalidError{}
	collectProblems(invalid, ve)
	sort.SliceStable(invalid.Problems, func(i, j int) bool {
		return invalid.Problems[i].Field < invalid.Problems[j].Field
	})
	return invalid
}

func collectProblems(invalid *InvalidError, ve *jsonschema.ValidationError) {
	if len(ve.Causes) == 0 {
		invalid.Problems = append(invalid.Problems, Problem{
			Field:   strings.TrimPrefix(ve.InstanceLocation, "/"),
			Message: ve.Message,
		})
		return
	}
	for _, cause := range ve.Causes {
		collectProblems(invalid, cause)
	}
}
