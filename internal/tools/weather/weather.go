// Package weather provides a weather lookup tool backed by a static table.
package weather

import (
	"context"
	"fmt"
	"strings"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/pkg/models"
)

const ToolName = "weather"

// Input is the argument shape of the weather tool.
type Input struct {
	City string `json:"city" jsonschema:"minLength=1,description=City name (e.g. Tel Aviv or Jerusalem)"`
}

// Report is the data payload of a successful lookup.
type Report struct {
	City            string `json:"city"`
	Temperature     int    `json:"temperature"`
	TemperatureUnit string `json:"temperatureUnit"`
	Condition       string `json:"condition"`
	Humidity        int    `json:"humidity"`
	HumidityUnit    string `json:"humidityUnit"`
}

// Unknown is the advisory payload returned for cities outside the table.
type Unknown struct {
	AvailableCities []string `json:"availableCities"`
}

type conditions struct {
	temp      int
	condition string
	humidity  int
}

var (
	telAviv   = conditions{22, "Clear", 65}
	jerusalem = conditions{18, "Partly cloudy", 55}
	haifa     = conditions{21, "Clear", 70}
	eilat     = conditions{28, "Sunny and hot", 30}
	beerSheva = conditions{24, "Clear", 40}
)

// table is keyed by lowercase name; Hebrew spellings are accepted too.
var table = map[string]conditions{
	"tel aviv":   telAviv,
	"תל אביב":    telAviv,
	"jerusalem":  jerusalem,
	"ירושלים":    jerusalem,
	"haifa":      haifa,
	"חיפה":       haifa,
	"eilat":      eilat,
	"אילת":       eilat,
	"beer sheva": beerSheva,
	"באר שבע":    beerSheva,
}

// AvailableCities lists the cities the tool knows about.
var AvailableCities = []string{"Tel Aviv", "Jerusalem", "Haifa", "Eilat", "Beer Sheva"}

// New returns the weather tool. It does not require authentication.
func New() *agent.TypedTool[Input] {
	return agent.NewTypedTool[Input](ToolName, "Get weather information for a city", false, lookup)
}

func lookup(_ context.Context, _ *agent.ExecutionContext, in Input) (models.ToolResult, error) {
	city := strings.TrimSpace(in.City)
	data, ok := table[strings.ToLower(city)]
	if !ok {
		return models.ToolFailure(
			fmt.Sprintf("No data found for city %q", city),
			Unknown{AvailableCities: AvailableCities},
		), nil
	}
	return models.ToolSuccess(Report{
		City:            city,
		Temperature:     data.temp,
		TemperatureUnit: "C",
		Condition:       data.condition,
		Humidity:        data.humidity,
		HumidityUnit:    "%",
	}), nil
}
