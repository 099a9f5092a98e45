package export

import (
	"encoding/json"
	"fmt"
	"strings"

	_ "embed"

	"github.com/openfactory/designcore/internal/types"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/project-export-v1.json
var exportSchemaJSON string

// Exporter serializes the in-memory aggregate to a self-describing JSON
// document and validates documents on the way back in. This is the only file
// format contract the core honors.
type Exporter struct {
	schema *jsonschema.Schema
}

func NewExporter() (*Exporter, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource("project-export-v1.json",
		strings.NewReader(exportSchemaJSON)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	schema, err := compiler.Compile("project-export-v1.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Exporter{schema: schema}, nil
}

// Marshal renders the aggregate as an indented export document.
func (e *Exporter) Marshal(project *types.ProjectConfig) ([]byte, error) {
	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal project: %w", err)
	}
	return data, nil
}

// Unmarshal validates an export document against the schema and rebuilds the
// aggregate from it.
func (e *Exporter) Unmarshal(data []byte) (*types.ProjectConfig, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	if err := e.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var project types.ProjectConfig
	if err := json.Unmarshal(data, &project); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project: %w", err)
	}
	return &project, nil
}
