package refiner

import (
	"encoding/json"
	"fmt"
	"strings"

	"nicayne/pkg/models"
)

// ExtractionResult is the parsed LLM reply: either a list of coils or one record.
type ExtractionResult interface {
	// Records adapts the result to a list of raw coil records.
	Records() []models.CoilRecord
	isExtractionResult()
}

// CoilList is a reply carrying zero or more coils.
type CoilList []models.CoilRecord

func (c CoilList) Records() []models.CoilRecord { return c }
func (CoilList) isExtractionResult()            {}

// SingleRecord is a reply describing one coil as a flat object.
type SingleRecord models.CoilRecord

func (s SingleRecord) Records() []models.CoilRecord {
	return []models.CoilRecord{models.CoilRecord(s)}
}
func (SingleRecord) isExtractionResult() {}

// stripFences removes a surrounding markdown code block.
func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

// Parse decodes an LLM reply. It accepts {"coils": [...]}, a bare list and a
// single object, optionally wrapped in a ```json fence.
func Parse(raw string) (ExtractionResult, error) {
	const op = "Parse"

	cleaned := stripFences(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyResponse)
	}

	var v interface{}
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformedJSON, err)
	}
	if err := validateShape(v); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch t := v.(type) {
	case []interface{}:
		return toCoilList(op, t)
	case map[string]interface{}:
		if coils, ok := t["coils"]; ok {
			list, ok := coils.([]interface{})
			if !ok {
				return nil, fmt.Errorf("%s: %w: coils is not an array", op, ErrSchemaMismatch)
			}
			return toCoilList(op, list)
		}
		return SingleRecord(t), nil
	default:
		return nil, fmt.Errorf("%s: %w: unexpected %T", op, ErrSchemaMismatch, v)
	}
}

func toCoilList(op string, items []interface{}) (CoilList, error) {
	list := make(CoilList, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%s: %w: coil %d is %T", op, ErrSchemaMismatch, i, item)
		}
		list = append(list, models.CoilRecord(obj))
	}
	return list, nil
}
