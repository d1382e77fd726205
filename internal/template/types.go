// Package template holds named message templates with a declared variable
// schema and renders them for the delivery dispatcher.
package template

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Variable type constants
const (
	TypeText   = "text"
	TypeURL    = "url"
	TypeEmail  = "email"
	TypeNumber = "number"
	TypeDate   = "date"
)

// ErrTemplateNotFound is returned when a template id is unknown, inactive,
// or deleted.
var ErrTemplateNotFound = errors.New("template not found")

// ErrInvalidTemplate is returned when a template fails its authoring
// invariants on create or update.
var ErrInvalidTemplate = errors.New("invalid template")

// MissingVariableError reports a required variable with no default that was
// absent from the supplied variable map.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing required variable %q", e.Name)
}

// Variable declares one substitutable value in a template.
type Variable struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	Required     bool   `json:"required"`
	DefaultValue string `json:"default_value,omitempty"`
}

// VariableList is stored as a JSONB column.
type VariableList []Variable

func (v VariableList) Value() (driver.Value, error) {
	if v == nil {
		return json.Marshal([]Variable{})
	}
	return json.Marshal(v)
}

func (v *VariableList) Scan(value interface{}) error {
	if value == nil {
		*v = nil
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("cannot scan %T into VariableList", value)
	}
	return json.Unmarshal(b, v)
}

// Template is a named subject/body pattern with declared variables.
type Template struct {
	ID             uuid.UUID    `json:"id" db:"id"`
	Name           string       `json:"name" db:"name"`
	Category       string       `json:"category" db:"category"`
	SubjectPattern string       `json:"subject_pattern" db:"subject_pattern"`
	BodyPattern    string       `json:"body_pattern" db:"body_pattern"`
	Variables      VariableList `json:"variables" db:"variables"`
	IsActive       bool         `json:"is_active" db:"is_active"`
	CreatedAt      time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" db:"updated_at"`
	DeletedAt      *time.Time   `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Rendered is the output of a successful render.
type Rendered struct {
	TemplateID   uuid.UUID `json:"template_id"`
	TemplateName string    `json:"template_name"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
}

// CreateTemplateRequest is the payload for creating a template.
type CreateTemplateRequest struct {
	Name           string       `json:"name"`
	Category       string       `json:"category,omitempty"`
	SubjectPattern string       `json:"subject_pattern"`
	BodyPattern    string       `json:"body_pattern"`
	Variables      VariableList `json:"variables"`
}

// UpdateTemplateRequest is the payload for updating a template. Nil fields
// are left unchanged.
type UpdateTemplateRequest struct {
	Name           *string       `json:"name,omitempty"`
	Category       *string       `json:"category,omitempty"`
	SubjectPattern *string       `json:"subject_pattern,omitempty"`
	BodyPattern    *string       `json:"body_pattern,omitempty"`
	Variables      *VariableList `json:"variables,omitempty"`
	IsActive       *bool         `json:"is_active,omitempty"`
}
