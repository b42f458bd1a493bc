package config

import (
	"encoding/json"
	"reflect"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/rxtech-lab/tickerwatch/internal/types"
)

var (
	durationType = reflect.TypeOf(time.Duration(0))
	intervalType = reflect.TypeOf(types.Interval(""))
)

// Schema generates the JSON schema of the configuration file.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case durationType:
				return &jsonschema.Schema{
					Type:        "string",
					Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
					Description: "Go duration, e.g. 10s or 1m30s",
				}
			case intervalType:
				enum := make([]any, 0, len(types.SupportedIntervals))
				for _, interval := range types.SupportedIntervals {
					enum = append(enum, string(interval))
				}

				return &jsonschema.Schema{
					Type: "string",
					Enum: enum,
				}
			default:
				return nil
			}
		},
	}

	schema := reflector.Reflect(&Config{})
	schema.Title = "tickerwatch-config"
	schema.Description = "Configuration schema for tickerwatch"

	return schema
}

// SchemaJSON returns Schema as indented JSON.
func SchemaJSON() (string, error) {
	schemaBytes, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
