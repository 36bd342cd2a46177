// Package tmpl renders declaration templates into file content. Rendering
// is a pure function of template text and context: same inputs, same bytes.
package tmpl

import (
	"fmt"
	"strings"
	"text/template"
)

// Render executes templateText against vars. Referencing a key absent from
// vars is an error rather than silently emitting "<no value>".
func Render(name, templateText string, vars map[string]any) (string, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(templateText)
	if err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	var b strings.Builder
	if err := t.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("template %s: %w", name, err)
	}
	return b.String(), nil
}
