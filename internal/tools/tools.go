// Package tools assembles the built-in tool set.
package tools

import (
	"time"

	"github.com/haasonsaas/toolchat/internal/agent"
	"github.com/haasonsaas/toolchat/internal/storage"
	"github.com/haasonsaas/toolchat/internal/tools/files"
	"github.com/haasonsaas/toolchat/internal/tools/users"
	"github.com/haasonsaas/toolchat/internal/tools/utility"
	"github.com/haasonsaas/toolchat/internal/tools/weather"
	"github.com/haasonsaas/toolchat/internal/tools/websearch"
)

// Config selects and configures the built-in tools.
type Config struct {
	WeatherEnabled bool             `yaml:"weather_enabled"`
	UtilityEnabled bool             `yaml:"utility_enabled"`
	Files          files.Config     `yaml:"files"`
	WebSearch      websearch.Config `yaml:"web_search"`
}

// DefaultConfig enables every tool except the filesystem, which needs a
// base directory.
func DefaultConfig() Config {
	return Config{
		WeatherEnabled: true,
		UtilityEnabled: true,
		WebSearch:      websearch.Config{CacheTTL: 5 * time.Minute},
	}
}

// Deps are the collaborators tools need.
type Deps struct {
	Users  storage.UserStore
	Audits users.ActionLogger
}

// Set is the result of Register.
type Set struct {
	// Searcher is nil when web search is disabled.
	Searcher *websearch.Searcher
}

// Register adds the configured tools to reg. db_users is registered when a
// user store is available; web_search always is, and fails per call
// without an API key.
func Register(reg *agent.ToolRegistry, cfg Config, deps Deps) (Set, error) {
	var set Set
	var list []agent.Tool

	if deps.Users != nil {
		list = append(list, users.New(deps.Users, deps.Audits))
	}
	if cfg.WeatherEnabled {
		list = append(list, weather.New())
	}
	set.Searcher = websearch.NewSearcher(cfg.WebSearch, nil)
	list = append(list, websearch.New(set.Searcher))
	if cfg.Files.BaseDir != "" {
		list = append(list, files.New(cfg.Files))
	}
	if cfg.UtilityEnabled {
		list = append(list, utility.All()...)
	}

	for _, t := range list {
		if err := reg.Register(t); err != nil {
			return set, err
		}
	}
	return set, nil
}
