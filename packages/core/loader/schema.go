package loader

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema produces the JSON Schema of the test case file format.
func Schema() ([]byte, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = false

	s := r.Reflect(&File{})
	s.ID = "https://github.com/abdul-hamid-achik/hitrunner/schemas/testcase.json"
	s.Title = "hitrunner test case"
	s.Description = "Schema for hitrunner test case YAML/JSON documents"

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return data, nil
}
