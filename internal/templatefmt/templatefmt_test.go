package templatefmt

import (
	"strings"
	"testing"
)

func TestParseNotificationTemplateHelpers(t *testing.T) {
	t.Parallel()

	tpl, err := ParseNotificationTemplate("t", `{{ plain .Title }} | {{ html .Name }} | {{ json .Count }}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	var out strings.Builder
	err = tpl.Execute(&out, map[string]any{"Title": "🚨 **Server Alert** 🚨", "Name": "<Elite>", "Count": 3})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := "🚨 Server Alert 🚨 | &lt;Elite&gt; | 3"
	if out.String() != want {
		t.Fatalf("unexpected render: got=%q want=%q", out.String(), want)
	}
}

func TestParseNotificationTemplateMissingKey(t *testing.T) {
	t.Parallel()

	tpl, err := ParseNotificationTemplate("t", `{{ .Missing }}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := tpl.Execute(&strings.Builder{}, map[string]any{}); err == nil {
		t.Fatalf("expected missing key error")
	}
}
