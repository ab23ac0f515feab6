package server

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

const createPoolSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["label", "raid_level", "drives"],
  "additionalProperties": false,
  "properties": {
    "label": {
      "type": "string",
      "minLength": 1,
      "maxLength": 32,
      "pattern": "^[A-Za-z0-9][A-Za-z0-9_-]*$"
    },
    "raid_level": {
      "type": "string",
      "enum": ["raid0", "raid1", "raid5", "raid6", "raid10"]
    },
    "drives": {
      "type": "array",
      "minItems": 2,
      "items": {"type": "string", "minLength": 1},
      "uniqueItems": true
    },
    "mount_path": {"type": "string", "pattern": "^/"}
  }
}`

var createPoolLoader = gojsonschema.NewStringLoader(createPoolSchema)

// validateCreatePool checks the raw request body against the create schema
// before it is decoded. A non-nil error means the body is not valid JSON;
// a non-empty slice lists the per-field problems.
func validateCreatePool(body []byte) ([]string, error) {
	result, err := gojsonschema.Validate(createPoolLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
	}
	return msgs, nil
}
