package store

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const recordSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["historicalMetrics", "dualVariables"],
  "properties": {
    "historicalMetrics": {
      "type": "array",
      "maxItems": 100,
      "items": {
        "type": "object",
        "properties": {
          "csat": {"type": "number"},
          "aht": {"type": "number"},
          "sla_met_rate": {"type": "number"},
          "gini": {"type": "number"},
          "throughput": {"type": "integer"},
          "total_assignments": {"type": "integer"},
          "batch_id": {"type": "integer"}
        }
      }
    },
    "dualVariables": {
      "type": "object",
      "required": ["lambda_aht", "lambda_sla", "lambda_fairness"],
      "properties": {
        "lambda_aht": {"type": "number"},
        "lambda_sla": {"type": "number"},
        "lambda_fairness": {"type": "number"}
      }
    }
  }
}`

var compiledRecordSchema = jsonschema.MustCompileString("record.schema.json", recordSchema)

// decodeRecord validates raw persisted bytes against the record schema and decodes them
func decodeRecord(data []byte) (Record, error) {
	var rec Record

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return rec, fmt.Errorf("persisted state is not JSON: %w", err)
	}
	if err := compiledRecordSchema.Validate(doc); err != nil {
		return rec, fmt.Errorf("persisted state does not match schema: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("failed to decode persisted state: %w", err)
	}
	return rec, nil
}
