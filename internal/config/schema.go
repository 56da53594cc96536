package config

import (
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
)

const schemaID = "https://github.com/haasonsaas/toolchat/toolchat.schema.json"

var (
	schemaOnce sync.Once
	schemaJSON []byte
	schemaErr  error
)

// JSONSchema describes toolchat.yaml for editors and `toolchat config schema`.
// Property names follow the yaml tags, durations are Go duration strings
// ("30s", "5m"), and the root accepts the $include directive handled by Load.
func JSONSchema() ([]byte, error) {
	schemaOnce.Do(func() {
		r := &jsonschema.Reflector{
			FieldNameTag: "yaml",
			Mapper:       durationMapper,
		}
		schema := r.Reflect(&Config{})
		schema.ID = schemaID
		schema.Title = "toolchat configuration"
		schema.Description = "Values may reference environment variables as ${NAME}; TOOLCHAT_* variables override the file."
		if root, ok := schema.Definitions["Config"]; ok && root.Properties != nil {
			root.Properties.Set(includeKey, &jsonschema.Schema{
				Description: "Config files merged before this one, relative to this file.",
				OneOf: []*jsonschema.Schema{
					{Type: "string"},
					{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
				},
			})
		}
		schemaJSON, schemaErr = json.MarshalIndent(schema, "", "  ")
	})
	return schemaJSON, schemaErr
}

func durationMapper(t reflect.Type) *jsonschema.Schema {
	if t != reflect.TypeOf(time.Duration(0)) {
		return nil
	}
	return &jsonschema.Schema{
		Type:     "string",
		Pattern:  `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Examples: []any{"30s", "5m"},
	}
}
