package utility

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/pkg/models"
)

// MaxRandomCount caps how many values one call may draw.
const MaxRandomCount = 20

// RandomInput is the argument shape of the random tool.
type RandomInput struct {
	Type    string   `json:"type" jsonschema:"enum=number,enum=choice,enum=dice,enum=coin,description=What to draw"`
	Min     *int     `json:"min,omitempty" jsonschema:"description=Minimum for type=number (default 1)"`
	Max     *int     `json:"max,omitempty" jsonschema:"description=Maximum for type=number (default 100)"`
	Choices []string `json:"choices,omitempty" jsonschema:"description=Options for type=choice"`
	Count   int      `json:"count,omitempty" jsonschema:"minimum=1,maximum=20,description=How many values to draw (default 1)"`
}

// RandomOutput is the data payload of the random tool. Result holds the
// first drawn value; Results holds all of them when Count > 1.
type RandomOutput struct {
	Type    string `json:"type"`
	Result  any    `json:"result"`
	Results []any  `json:"results,omitempty"`
	Min     *int   `json:"min,omitempty"`
	Max     *int   `json:"max,omitempty"`
}

type random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns the random tool. A zero seed seeds from the clock.
func NewRandom(seed int64) *agent.TypedTool[RandomInput] {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	r := &random{rng: rand.New(rand.NewSource(seed))}
	return agent.NewTypedTool[RandomInput]("random",
		"Generate a random number, pick a random item from a list, roll a die or flip a coin", false, r.execute)
}

func (r *random) execute(_ context.Context, _ *agent.ExecutionContext, in RandomInput) (models.ToolResult, error) {
	count := in.Count
	if count <= 0 {
		count = 1
	}
	if count > MaxRandomCount {
		return models.ToolFailure(fmt.Sprintf("count must be at most %d", MaxRandomCount)), nil
	}

	var draw func() any
	out := RandomOutput{Type: in.Type}
	switch in.Type {
	case "number":
		lo, hi := 1, 100
		if in.Min != nil {
			lo = *in.Min
		}
		if in.Max != nil {
			hi = *in.Max
		}
		if lo > hi {
			return models.ToolFailure("min must not exceed max"), nil
		}
		out.Min, out.Max = &lo, &hi
		draw = func() any { return lo + r.intn(hi-lo+1) }
	case "choice":
		if len(in.Choices) == 0 {
			return models.ToolFailure("choices are required for type=choice"), nil
		}
		draw = func() any { return in.Choices[r.intn(len(in.Choices))] }
	case "dice":
		draw = func() any { return 1 + r.intn(6) }
	case "coin":
		draw = func() any {
			if r.intn(2) == 0 {
				return "heads"
			}
			return "tails"
		}
	default:
		return models.ToolFailure("unknown type " + in.Type), nil
	}

	values := make([]any, count)
	for i := range values {
		values[i] = draw()
	}
	out.Result = values[0]
	if count > 1 {
		out.Results = values
	}
	return models.ToolSuccess(out), nil
}

func (r *random) intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}
