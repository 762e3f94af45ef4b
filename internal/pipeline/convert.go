package pipeline

import (
	"fmt"

	"go-stream-extract/internal/model"
)

// ConvertRecord coerces a decoded record against the frozen schema. Schema
// fields drive the output; values that cannot meet their field type are
// schema conflicts. Fields the schema does not know pass through untouched
// (the schema allows additional properties, like the sources it was
// sampled from).
func ConvertRecord(rec model.Record, schema *model.Schema) (model.Record, error) {
	out := make(model.Record, len(rec))
	for _, f := range schema.Fields {
		v, ok := rec[f.Name]
		if !ok || v == nil {
			out[f.Name] = nil
			continue
		}
		cv, err := model.Coerce(v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		out[f.Name] = cv
	}
	for k, v := range rec {
		if _, known := schema.Lookup(k); !known {
			out[k] = v
		}
	}
	return out, nil
}
