package notify

import (
	"fmt"
	"strings"
	"text/template"

	"bsm/internal/config"
	"bsm/internal/domain"
	"bsm/internal/templatefmt"
)

// DefaultTelegramTemplate renders an embed as Telegram HTML.
const DefaultTelegramTemplate = `<b>{{ html (plain .Embed.Title) }}</b>
{{ html (plain .Embed.Description) }}
{{ range .Embed.Fields }}
<b>{{ html .Name }}:</b> {{ html .Value }}{{ end }}`

// DefaultMattermostTemplate renders an embed as Mattermost markdown.
const DefaultMattermostTemplate = `#### {{ .Embed.Title }}
{{ .Embed.Description }}
{{ range .Embed.Fields }}
**{{ .Name }}:** {{ .Value }}{{ end }}`

// compileTemplate parses configured or default text template for platform.
// Params: platform name and configured body.
// Returns: nil for natively rendered platforms, compiled template otherwise.
func compileTemplate(platform, body string) (*template.Template, error) {
	if strings.TrimSpace(body) == "" {
		switch platform {
		case config.PlatformTelegram:
			body = DefaultTelegramTemplate
		case config.PlatformMattermost:
			body = DefaultMattermostTemplate
		default:
			return nil, nil
		}
	}
	compiled, err := templatefmt.ParseNotificationTemplate("notify."+platform+".message_template", body)
	if err != nil {
		return nil, fmt.Errorf("parse %s message template: %w", platform, err)
	}
	return compiled, nil
}

// renderText executes template against event.
// Params: optional template and event.
// Returns: rendered text or empty string without template.
func renderText(tmpl *template.Template, event domain.Event) (string, error) {
	if tmpl == nil {
		return "", nil
	}
	var rendered strings.Builder
	if err := tmpl.Execute(&rendered, event); err != nil {
		return "", fmt.Errorf("render message template: %w", err)
	}
	return rendered.String(), nil
}
