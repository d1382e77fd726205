package template

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// PreviewEngine renders template patterns through Liquid for the admin
// authoring surface: filter support, sample-variable previews, and syntax
// checking. The send path never uses it; dispatch rendering is the strict
// literal substitution in render.go.
type PreviewEngine struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

// NewPreviewEngine creates a preview engine with the portal's filter set.
func NewPreviewEngine() *PreviewEngine {
	pe := &PreviewEngine{engine: liquid.NewEngine()}
	pe.registerFilters()
	return pe
}

func (pe *PreviewEngine) registerFilters() {
	// {{ first_name | default: "there" }}
	pe.engine.RegisterFilter("default", func(value interface{}, defaultVal string) interface{} {
		if value == nil {
			return defaultVal
		}
		strVal := fmt.Sprintf("%v", value)
		if strVal == "" || strVal == "<nil>" {
			return defaultVal
		}
		return value
	})

	// {{ name | capitalize }}
	pe.engine.RegisterFilter("capitalize", func(s string) string {
		if len(s) == 0 {
			return s
		}
		return strings.ToUpper(string(s[0])) + strings.ToLower(s[1:])
	})

	// {{ title | truncate: 50 }}
	pe.engine.RegisterFilter("truncate", func(s string, length int) string {
		if len(s) <= length {
			return s
		}
		if length <= 3 {
			return s[:length]
		}
		return s[:length-3] + "..."
	})

	// {{ email | urlencode }}
	pe.engine.RegisterFilter("urlencode", func(s string) string {
		return url.QueryEscape(s)
	})

	// {{ user_input | escape }}
	pe.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})

	// {{ email | email_domain }}
	pe.engine.RegisterFilter("email_domain", func(email string) string {
		parts := strings.Split(email, "@")
		if len(parts) == 2 {
			return parts[1]
		}
		return ""
	})

	// {{ email | mask_email }}
	pe.engine.RegisterFilter("mask_email", func(email string) string {
		parts := strings.Split(email, "@")
		if len(parts) != 2 {
			return email
		}
		local := parts[0]
		if len(local) <= 2 {
			return local + "***@" + parts[1]
		}
		return local[:2] + "***@" + parts[1]
	})
}

// Check compiles a pattern and returns any syntax error.
func (pe *PreviewEngine) Check(pattern string) error {
	_, err := pe.engine.ParseString(pattern)
	return err
}

// Render processes a pattern with the given context. Parsed templates are
// cached per key for repeated previews of the same pattern.
func (pe *PreviewEngine) Render(cacheKey, pattern string, ctx map[string]interface{}) (string, error) {
	if cacheKey != "" {
		if cached, ok := pe.cache.Load(cacheKey); ok {
			return cached.(*liquid.Template).RenderString(ctx)
		}
	}

	tpl, err := pe.engine.ParseString(pattern)
	if err != nil {
		return "", err
	}
	if cacheKey != "" {
		pe.cache.Store(cacheKey, tpl)
	}
	return tpl.RenderString(ctx)
}

// Preview renders a template's subject and body with sample variables:
// supplied values win, then declared defaults, then a readable placeholder.
func (pe *PreviewEngine) Preview(t *Template, sample map[string]string) (*Rendered, error) {
	ctx := make(map[string]interface{}, len(t.Variables))
	for _, v := range t.Variables {
		switch {
		case sample[v.Name] != "":
			ctx[v.Name] = sample[v.Name]
		case v.DefaultValue != "":
			ctx[v.Name] = v.DefaultValue
		default:
			ctx[v.Name] = "[" + v.Name + "]"
		}
	}

	subject, err := pe.Render(t.ID.String()+":subject", t.SubjectPattern, ctx)
	if err != nil {
		return nil, fmt.Errorf("preview subject: %w", err)
	}
	body, err := pe.Render(t.ID.String()+":body", t.BodyPattern, ctx)
	if err != nil {
		return nil, fmt.Errorf("preview body: %w", err)
	}

	return &Rendered{
		TemplateID:   t.ID,
		TemplateName: t.Name,
		Subject:      subject,
		Body:         body,
	}, nil
}

// ClearCache drops all cached parsed templates. Called after template edits.
func (pe *PreviewEngine) ClearCache() {
	pe.cache = sync.Map{}
}

// FilterInfo describes a preview filter for the template editor.
type FilterInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Example     string `json:"example"`
}

// AvailableFilters lists the custom filters the preview engine supports.
func (pe *PreviewEngine) AvailableFilters() []FilterInfo {
	return []FilterInfo{
		{Name: "default", Description: "Provide fallback value", Example: `{{ first_name | default: "there" }}`},
		{Name: "capitalize", Description: "Capitalize first letter", Example: `{{ name | capitalize }}`},
		{Name: "truncate", Description: "Truncate with ellipsis", Example: `{{ title | truncate: 50 }}`},
		{Name: "urlencode", Description: "URL encode a string", Example: `{{ email | urlencode }}`},
		{Name: "escape", Description: "HTML escape for safety", Example: `{{ user_input | escape }}`},
		{Name: "email_domain", Description: "Extract email domain", Example: `{{ email | email_domain }}`},
		{Name: "mask_email", Description: "Mask email for privacy", Example: `{{ email | mask_email }}`},
	}
}
