package utility

import (
	"context"
	"time"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/pkg/models"
)

// DefaultTimezone is used when the caller names none.
const DefaultTimezone = "Israel"

var timezoneAliases = map[string]string{
	"Israel": "Asia/Jerusalem",
}

// DatetimeInput is the argument shape of the datetime tool.
type DatetimeInput struct {
	Format   string `json:"format,omitempty" jsonschema:"enum=full,enum=date,enum=time,description=Output format: full or date or time"`
	Timezone string `json:"timezone,omitempty" jsonschema:"description=Timezone (e.g. Israel or UTC or America/New_York)"`
}

// DatetimeOutput is the data payload of the datetime tool.
type DatetimeOutput struct {
	Date     string `json:"date,omitempty"`
	Time     string `json:"time,omitempty"`
	Timezone string `json:"timezone"`
	ISO      string `json:"iso"`
}

type datetime struct {
	now func() time.Time
}

// NewDatetime returns the datetime tool. now may be nil.
func NewDatetime(now func() time.Time) *agent.TypedTool[DatetimeInput] {
	if now == nil {
		now = time.Now
	}
	d := &datetime{now: now}
	return agent.NewTypedTool[DatetimeInput]("datetime", "Get the current date and time", false, d.execute)
}

func (d *datetime) execute(_ context.Context, _ *agent.ExecutionContext, in DatetimeInput) (models.ToolResult, error) {
	format := in.Format
	if format == "" {
		format = "full"
	}
	zone := in.Timezone
	if zone == "" {
		zone = DefaultTimezone
	}
	name := zone
	if alias, ok := timezoneAliases[zone]; ok {
		name = alias
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return models.ToolFailure("invalid timezone " + zone), nil
	}

	now := d.now().In(loc)
	out := DatetimeOutput{Timezone: zone, ISO: now.Format(time.RFC3339)}
	if format == "full" || format == "date" {
		out.Date = now.Format("Monday, January 2, 2006")
	}
	if format == "full" || format == "time" {
		out.Time = now.Format("15:04:05")
	}
	return models.ToolSuccess(out), nil
}
