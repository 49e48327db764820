// Package validation checks inbound payloads against embedded JSON Schemas.
package validation

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"todo-api/domain"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

const schemaBase = "https://todo-api.local/schemas/"

// Kind names a payload schema.
type Kind string

const (
	ListCreate     Kind = "list.create"
	ListUpdate     Kind = "list.update"
	TaskCreate     Kind = "task.create"
	TaskUpdate     Kind = "task.update"
	UserRegister   Kind = "user.register"
	PasswordChange Kind = "password.change"
)

// Kinds lists every schema the validator compiles.
var Kinds = []Kind{ListCreate, ListUpdate, TaskCreate, TaskUpdate, UserRegister, PasswordChange}

// Validator holds the compiled schemas. It is safe for concurrent use.
type Validator struct {
	schemas map[Kind]*jsonschema.Schema
}

// New compiles all embedded schemas.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true

	for _, kind := range Kinds {
		data, err := schemaFiles.ReadFile("schemas/" + string(kind) + ".json")
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", kind, err)
		}
		if err := compiler.AddResource(schemaURL(kind), bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", kind, err)
		}
	}

	v := &Validator{schemas: make(map[Kind]*jsonschema.Schema, len(Kinds))}
	for _, kind := range Kinds {
		schema, err := compiler.Compile(schemaURL(kind))
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", kind, err)
		}
		v.schemas[kind] = schema
	}
	return v, nil
}

// MustNew is New for package-level wiring and tests.
func MustNew() *Validator {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

func schemaURL(kind Kind) string {
	return schemaBase + string(kind) + ".json"
}

// Validate checks payload, which is encoded to JSON first, against kind.
func (v *Validator) Validate(kind Kind, payload any) error {
	data, err := sonic.ConfigStd.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}
	return v.ValidateJSON(kind, data)
}

// ValidateJSON checks a raw JSON document against kind. Failures are returned
// as *domain.ValidationError naming the first offending field.
func (v *Validator) ValidateJSON(kind Kind, data []byte) error {
	schema, ok := v.schemas[kind]
	if !ok {
		return fmt.Errorf("unknown schema %q", kind)
	}
	var doc any
	if err := sonic.ConfigStd.Unmarshal(data, &doc); err != nil {
		return &domain.ValidationError{Err: fmt.Errorf("malformed JSON: %w", err)}
	}
	if err := schema.Validate(doc); err != nil {
		return toValidationError(err)
	}
	return nil
}

func toValidationError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &domain.ValidationError{Err: err}
	}
	leaf := firstLeaf(ve)
	field := pointerToPath(leaf.InstanceLocation)
	if field == "" {
		field = missingProperty(leaf.Message)
	}
	return &domain.ValidationError{Field: field, Err: errors.New(leaf.Message)}
}

func firstLeaf(ve *jsonschema.ValidationError) *jsonschema.ValidationError {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve
}

// missingProperty pulls the field name out of a "missing properties: 'x'" message.
func missingProperty(msg string) string {
	const prefix = "missing properties: "
	if !strings.HasPrefix(msg, prefix) {
		return ""
	}
	first, _, _ := strings.Cut(strings.TrimPrefix(msg, prefix), ",")
	return strings.Trim(strings.TrimSpace(first), "'")
}

func pointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(strings.TrimPrefix(ptr, "#"), "/")
	if ptr == "" {
		return ""
	}
	var b strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if part == "" {
			continue
		}
		if _, err := strconv.Atoi(part); err == nil {
			b.WriteString("[" + part + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
