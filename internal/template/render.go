package template

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Placeholders returns the distinct variable names referenced by a pattern,
// in order of first appearance.
func Placeholders(pattern string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(pattern, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Validate checks the template's authoring invariants: variable names must be
// unique, variable types must be known, and every placeholder in the subject
// or body must map to a declared variable. Templates are user-authored, so
// the render path defends against violations anyway.
func (t *Template) Validate() error {
	declared := make(map[string]bool, len(t.Variables))
	for _, v := range t.Variables {
		if v.Name == "" {
			return fmt.Errorf("%w: variable with empty name", ErrInvalidTemplate)
		}
		if declared[v.Name] {
			return fmt.Errorf("%w: duplicate variable %q", ErrInvalidTemplate, v.Name)
		}
		switch v.Type {
		case TypeText, TypeURL, TypeEmail, TypeNumber, TypeDate:
		default:
			return fmt.Errorf("%w: variable %q has unknown type %q", ErrInvalidTemplate, v.Name, v.Type)
		}
		declared[v.Name] = true
	}

	var undeclared []string
	for _, pattern := range []string{t.SubjectPattern, t.BodyPattern} {
		for _, name := range Placeholders(pattern) {
			if !declared[name] {
				undeclared = append(undeclared, name)
			}
		}
	}
	if len(undeclared) > 0 {
		return fmt.Errorf("%w: undeclared placeholders: %s", ErrInvalidTemplate, strings.Join(undeclared, ", "))
	}
	return nil
}

// Render substitutes the supplied variables into the template's subject and
// body patterns.
//
// Required variables with no default must be present in vars. Optional
// variables fall back to their declared default, then to the empty string.
// Placeholders with no declared variable are left as-is and the render still
// succeeds, so a template-authoring leak never hard-fails a send.
func (t *Template) Render(vars map[string]string) (*Rendered, error) {
	values := make(map[string]string, len(t.Variables))
	for _, v := range t.Variables {
		if supplied, ok := vars[v.Name]; ok {
			values[v.Name] = supplied
			continue
		}
		if v.Required && v.DefaultValue == "" {
			return nil, &MissingVariableError{Name: v.Name}
		}
		values[v.Name] = v.DefaultValue
	}

	return &Rendered{
		TemplateID:   t.ID,
		TemplateName: t.Name,
		Subject:      substitute(t.SubjectPattern, values),
		Body:         substitute(t.BodyPattern, values),
	}, nil
}

// substitute performs literal replacement of {{name}} tokens for declared
// variables; unknown tokens pass through untouched.
func substitute(pattern string, values map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(pattern, func(tok string) string {
		name := placeholderRe.FindStringSubmatch(tok)[1]
		if v, ok := values[name]; ok {
			return v
		}
		return tok
	})
}
