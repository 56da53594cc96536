package utility

import (
	"time"

	"github.com/haasonsaas/toolchat/internal/agent"
)

// All returns the utility tools with production defaults.
func All() []agent.Tool {
	return []agent.Tool{
		NewCalculator(),
		NewDatetime(time.Now),
		NewRandom(0),
	}
}
