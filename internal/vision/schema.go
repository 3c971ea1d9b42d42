package vision

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// buildRoomsJSONSchema returns the JSON-Schema the model's optional rooms
// block must satisfy before it is allowed to seed room-dimension facts.
func buildRoomsJSONSchema() map[string]any {
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"rooms"},
		"properties": map[string]any{
			"rooms": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"room", "length_m", "width_m"},
					"properties": map[string]any{
						"room":     map[string]any{"type": "string", "minLength": 1},
						"length_m": map[string]any{"type": "number", "minimum": 0},
						"width_m":  map[string]any{"type": "number", "minimum": 0},
					},
				},
			},
		},
	}
}

// validateJSONAgainstSchema validates "data" against "schemaMap".
func validateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

var reJSONBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// parseStructuredRooms pulls the optional fenced JSON block out of a page
// transcript, validates it, and returns the rooms plus the transcript with
// the block removed. An invalid block is dropped, never fatal.
func parseStructuredRooms(text string, logger *slog.Logger) ([]StructuredRoom, string) {
	m := reJSONBlock.FindStringSubmatch(text)
	if m == nil {
		return nil, text
	}
	cleaned := strings.TrimSpace(reJSONBlock.ReplaceAllString(text, ""))

	raw := []byte(m[1])
	if err := validateJSONAgainstSchema(buildRoomsJSONSchema(), raw); err != nil {
		logger.Warn("vision.rooms_block_rejected", "error", err)
		return nil, cleaned
	}
	var doc struct {
		Rooms []StructuredRoom `json:"rooms"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		logger.Warn("vision.rooms_block_rejected", "error", err)
		return nil, cleaned
	}
	return doc.Rooms, cleaned
}
