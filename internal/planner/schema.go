package planner

import (
	"encoding/json"
	"reflect"
	"sync"

	"github.com/invopop/jsonschema"
)

var schemaCache sync.Map // reflect.Type -> string

// FormatInstructions renders the JSON schema of v's type for the
// {format_instructions} placeholder of structured prompts.
func FormatInstructions(v any) string {
	t := reflect.TypeOf(v)
	if cached, ok := schemaCache.Load(t); ok {
		return cached.(string)
	}

	r := &jsonschema.Reflector{
		DoNotReference:            true,
		ExpandedStruct:            true,
		AllowAdditionalProperties: false,
	}
	schema := r.Reflect(v)
	schema.Version = ""
	schema.ID = ""

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		// Reflected schemas of plain structs always marshal.
		panic(err)
	}
	text := string(data)
	schemaCache.Store(t, text)
	return text
}
