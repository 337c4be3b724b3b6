package mailer

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"sync"
)

//go:embed templates/*.json
var embeddedTemplates embed.FS

var (
	conditionalPattern = regexp.MustCompile(`(?s)\{\{#if\s+(\w+)\}\}(.*?)\{\{/if\}\}`)
	variablePattern    = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)
)

// Template is an email template file.
type Template struct {
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

// TemplateStore loads named JSON templates and caches them after first use.
type TemplateStore struct {
	fsys  fs.FS
	mu    sync.RWMutex
	cache map[string]Template
}

// NewTemplateStore reads templates from dir when set, otherwise from the
// templates compiled into the binary.
func NewTemplateStore(dir string) *TemplateStore {
	var fsys fs.FS
	if dir != "" {
		fsys = os.DirFS(dir)
	} else {
		sub, err := fs.Sub(embeddedTemplates, "templates")
		if err != nil {
			panic(err)
		}
		fsys = sub
	}
	return &TemplateStore{fsys: fsys, cache: make(map[string]Template)}
}

// Load returns the named template.
func (s *TemplateStore) Load(name string) (Template, error) {
	s.mu.RLock()
	tpl, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	raw, err := fs.ReadFile(s.fsys, name+".json")
	if err != nil {
		return Template{}, fmt.Errorf("load email template %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, &tpl); err != nil {
		return Template{}, fmt.Errorf("parse email template %s: %w", name, err)
	}

	s.mu.Lock()
	s.cache[name] = tpl
	s.mu.Unlock()
	return tpl, nil
}

// Render fills the template with data.
func (t Template) Render(data map[string]any) Template {
	return Template{
		Subject: render(t.Subject, data),
		Text:    render(t.Text, data),
		HTML:    render(t.HTML, data),
	}
}

// render expands {{#if key}}...{{/if}} blocks, then {{key}} placeholders.
// Missing keys render as empty strings.
func render(src string, data map[string]any) string {
	out := conditionalPattern.ReplaceAllStringFunc(src, func(block string) string {
		m := conditionalPattern.FindStringSubmatch(block)
		if truthy(data[m[1]]) {
			return m[2]
		}
		return ""
	})
	return variablePattern.ReplaceAllStringFunc(out, func(token string) string {
		m := variablePattern.FindStringSubmatch(token)
		return stringify(data[m[1]])
	})
}

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	default:
		return true
	}
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Mailer renders a named template and hands it to a Sender.
type Mailer struct {
	templates *TemplateStore
	sender    Sender
}

// NewMailer wires a template store to a sender.
func NewMailer(templates *TemplateStore, sender Sender) *Mailer {
	return &Mailer{templates: templates, sender: sender}
}

// SendTemplate renders name with data and sends it to the recipient.
func (m *Mailer) SendTemplate(ctx context.Context, to, name string, data map[string]any) error {
	tpl, err := m.templates.Load(name)
	if err != nil {
		return err
	}
	rendered := tpl.Render(data)
	return m.sender.Send(ctx, Email{
		To:      to,
		Subject: rendered.Subject,
		Text:    rendered.Text,
		HTML:    rendered.HTML,
	})
}
