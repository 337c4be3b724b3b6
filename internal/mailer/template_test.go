package mailer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderVariablesAndConditionals(t *testing.T) {
	src := "Hi {{userName}}{{#if comment}}, note: {{comment}}{{/if}}. {{missing}}done"

	assert.Equal(t, "Hi Ada, note: fixed. done", render(src, map[string]any{"userName": "Ada", "comment": "fixed"}))
	assert.Equal(t, "Hi Ada. done", render(src, map[string]any{"userName": "Ada", "comment": ""}))
	assert.Equal(t, "Hi . done", render(src, nil))
}

func TestRenderConditionalSpansLines(t *testing.T) {
	src := "a{{#if flag}}\nline {{n}}\n{{/if}}b"
	assert.Equal(t, "a\nline 3\nb", render(src, map[string]any{"flag": true, "n": 3}))
	assert.Equal(t, "ab", render(src, map[string]any{"flag": false}))
}

func TestEmbeddedTemplatesLoad(t *testing.T) {
	store := NewTemplateStore("")
	names := []string{
		"ticket-created", "ticket-created-manager",
		"ticket-status-change", "ticket-status-change-manager",
		"ticket-resolved", "ticket-resolved-manager",
		"ticket-assigned", "ticket-assigned-manager",
	}
	for _, name := range names {
		tpl, err := store.Load(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, tpl.Subject, name)
		assert.NotEmpty(t, tpl.Text, name)
		assert.NotEmpty(t, tpl.HTML, name)
	}

	_, err := store.Load("does-not-exist")
	assert.Error(t, err)
}

func TestStatusChangeTemplateRenders(t *testing.T) {
	tpl, err := NewTemplateStore("").Load("ticket-status-change")
	require.NoError(t, err)

	out := tpl.Render(map[string]any{
		"userName":     "Ada",
		"ticketNumber": "HW-123456",
		"oldStatus":    "New",
		"newStatus":    "In Progress",
	})
	assert.Equal(t, "Ticket HW-123456 Status Updated", out.Subject)
	assert.Contains(t, out.Text, "changed from New to In Progress")
	assert.NotContains(t, out.HTML, "{{")
}

func TestTemplateDirOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ticket-created.json"),
		[]byte(`{"subject":"custom {{ticketNumber}}","text":"t","html":"h"}`), 0o600))

	tpl, err := NewTemplateStore(dir).Load("ticket-created")
	require.NoError(t, err)
	assert.Equal(t, "custom X-1", tpl.Render(map[string]any{"ticketNumber": "X-1"}).Subject)
}

type recordingSender struct {
	sent []Email
}

func (r *recordingSender) Send(_ context.Context, email Email) error {
	r.sent = append(r.sent, email)
	return nil
}

func TestMailerSendTemplate(t *testing.T) {
	sender := &recordingSender{}
	m := NewMailer(NewTemplateStore(""), sender)

	err := m.SendTemplate(context.Background(), "ada@example.com", "ticket-resolved", map[string]any{
		"userName":     "Ada",
		"ticketNumber": "SW-000001",
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ada@example.com", sender.sent[0].To)
	assert.Equal(t, "Ticket SW-000001 Has Been Resolved", sender.sent[0].Subject)
	assert.NotContains(t, sender.sent[0].Text, "Comment:")
}
