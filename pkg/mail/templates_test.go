package mail

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/exception-subscriptions/pkg/event"
)

func sampleParams() ErrorMailParams {
	return ErrorMailParams{
		ProjectName:  "Web Frontend",
		Level:        "error",
		Culprit:      "app.views.checkout",
		Message:      "ZeroDivisionError: division by zero\nmore detail",
		FirstLine:    "ZeroDivisionError: division by zero",
		Logger:       "django.request",
		ServerName:   "web-01",
		Link:         "https://sentry.example.com/web/issues/42/",
		SettingsLink: "https://sentry.example.com/account/settings/notifications/",
		Interfaces: []event.Interface{
			{Title: "Stacktrace", Body: "File \"checkout.py\", line 10\n  total / count"},
		},
	}
}

func TestRenderErrorText(t *testing.T) {
	body, err := RenderErrorText(sampleParams())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(body, "app.views.checkout: ZeroDivisionError: division by zero"))
	assert.Contains(t, body, "Details: https://sentry.example.com/web/issues/42/")
	assert.Contains(t, body, "Project: Web Frontend")
	assert.Contains(t, body, "Level:   ERROR")
	assert.Contains(t, body, "Logger:  django.request")
	assert.Contains(t, body, "Server:  web-01")
	assert.Contains(t, body, "more detail")
	assert.Contains(t, body, "Stacktrace\n----------\n")
	assert.Contains(t, body, `File "checkout.py", line 10`, "text bodies are not html-escaped")
	assert.Contains(t, body, "https://sentry.example.com/account/settings/notifications/")
}

func TestRenderErrorText_Minimal(t *testing.T) {
	body, err := RenderErrorText(ErrorMailParams{ProjectName: "p", Level: "warning", Culprit: "c"})
	require.NoError(t, err)

	assert.Contains(t, body, "Level:   WARNING")
	assert.Contains(t, body, "(no message)")
	assert.NotContains(t, body, "Details:")
	assert.NotContains(t, body, "Logger:")
	assert.NotContains(t, body, "Server:")
	assert.NotContains(t, body, "notification settings")
}

func TestRenderErrorHTML(t *testing.T) {
	body, err := RenderErrorHTML(sampleParams())
	require.NoError(t, err)

	assert.Contains(t, body, "<!DOCTYPE html>")
	assert.Contains(t, body, "Web Frontend")
	assert.Contains(t, body, "ERROR")
	assert.Contains(t, body, `href="https://sentry.example.com/web/issues/42/"`)
	assert.Contains(t, body, "Stacktrace")
	assert.Contains(t, body, "File &#34;checkout.py&#34;", "html bodies escape event content")
	assert.Contains(t, body, "style=", "html is written with inline styles")
}

func TestRenderErrorHTML_EscapesMarkup(t *testing.T) {
	p := sampleParams()
	p.Culprit = "<script>alert(1)</script>"
	body, err := RenderErrorHTML(p)
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestSubject(t *testing.T) {
	tests := []struct {
		name      string
		prefix    string
		project   string
		level     string
		culprit   string
		firstLine string
		expected  string
	}{
		{
			name:      "default prefix",
			prefix:    "[Sentry Subscription]",
			project:   "Web",
			level:     "error",
			culprit:   "app.views",
			firstLine: "boom",
			expected:  "[Sentry Subscription] [Web] ERROR app.views: boom",
		},
		{
			name:      "no prefix",
			project:   "Web",
			level:     "warning",
			culprit:   "module.sub",
			firstLine: "careful",
			expected:  "[Web] WARNING module.sub: careful",
		},
		{
			name:      "prefix whitespace trimmed",
			prefix:    "  [Alerts]  ",
			project:   "API",
			level:     "fatal",
			culprit:   "svc",
			firstLine: "",
			expected:  "[Alerts] [API] FATAL svc: ",
		},
		{
			name:      "newlines removed",
			prefix:    "[S]",
			project:   "P",
			level:     "info",
			culprit:   "c",
			firstLine: "a\r\nb",
			expected:  "[S] [P] INFO c: a  b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Subject(tt.prefix, tt.project, tt.level, tt.culprit, tt.firstLine))
		})
	}
}
