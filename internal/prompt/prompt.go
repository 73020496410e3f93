// Package prompt renders named prompt templates embedded in the binary.
// Rendering is pure: same template and data always yield the same text.
package prompt

import (
	"embed"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var files embed.FS

var templates = template.Must(template.ParseFS(files, "templates/*.tmpl"))

// SystemData is the payload for the assistant system prompt.
type SystemData struct {
	Title          string
	RawNote        string
	EnhancedNote   string
	PreMeetingNote string
	Transcript     string
	Participants   []string
	EventLine      string
	LocalDateTime  string
	ToolsEnabled   bool
}

// Render executes the template registered under name against data.
func Render(name string, data any) (string, error) {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name+".tmpl", data); err != nil {
		return "", err
	}
	return b.String(), nil
}
