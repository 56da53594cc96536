package agent

import (
	"sort"
	"strings"

	"github.com/haasonsaas/toolchat/pkg/models"
)

// ToolCallAccumulator merges streamed tool-call fragments by index.
type ToolCallAccumulator struct {
	calls map[int]*partialCall
}

type partialCall struct {
	id   string
	name string
	args strings.Builder
}

// NewToolCallAccumulator returns an empty accumulator.
func NewToolCallAccumulator() *ToolCallAccumulator {
	return &ToolCallAccumulator{calls: make(map[int]*partialCall)}
}

// Add merges one fragment.
func (a *ToolCallAccumulator) Add(d *ToolCallDelta) {
	if d == nil {
		return
	}
	call, ok := a.calls[d.Index]
	if !ok {
		call = &partialCall{}
		a.calls[d.Index] = call
	}
	if d.ID != "" {
		call.id = d.ID
	}
	if d.Name != "" {
		call.name = d.Name
	}
	call.args.WriteString(d.Arguments)
}

// Len returns the number of distinct calls seen so far.
func (a *ToolCallAccumulator) Len() int { return len(a.calls) }

// Calls returns the assembled calls ordered by index. Calls without a name
// are dropped since they cannot be dispatched.
func (a *ToolCallAccumulator) Calls() []models.ToolCall {
	indexes := make([]int, 0, len(a.calls))
	for idx := range a.calls {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	out := make([]models.ToolCall, 0, len(indexes))
	for _, idx := range indexes {
		c := a.calls[idx]
		if c.name == "" {
			continue
		}
		out = append(out, models.ToolCall{ID: c.id, Name: c.name, Arguments: c.args.String()})
	}
	return out
}
