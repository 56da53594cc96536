package tools

import (
	"fmt"
	"strings"
)

type displaySpec struct {
	emoji     string
	title     string
	detailKey string
}

var displaySpecs = map[string]displaySpec{
	"db_users":   {"👤", "Users", "action"},
	"weather":    {"🌤", "Weather", "city"},
	"web_search": {"🔎", "Web search", "query"},
	"filesystem": {"📁", "Files", "path"},
	"calculator": {"🧮", "Calculator", "operation"},
	"datetime":   {"🕒", "Date/time", "timezone"},
	"random":     {"🎲", "Random", "type"},
}

// Summary renders a one-line label for a tool call, e.g.
// "🌤 Weather: Haifa". args may be nil.
func Summary(name string, args map[string]any) string {
	spec, ok := displaySpecs[name]
	if !ok {
		return "🔧 " + name
	}
	label := spec.emoji + " " + spec.title
	if v, ok := args[spec.detailKey]; ok {
		if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
			label += ": " + s
		}
	}
	return label
}
