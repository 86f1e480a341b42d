package backlog

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// CustomFieldValue sets a custom field on an issue. Value is a single item
// ID or a list of item IDs; text fields accept a string.
type CustomFieldValue struct {
	ID         int     `json:"id"`
	Value      any     `json:"value,omitempty"`
	OtherValue *string `json:"otherValue,omitempty"`
}

// CustomFieldFilter narrows issue searches by a custom field.
type CustomFieldFilter struct {
	ID    int    `json:"id"`
	Type  string `json:"type"`
	Value any    `json:"value,omitempty"`
	Min   any    `json:"min,omitempty"`
	Max   any    `json:"max,omitempty"`
}

// EncodeCustomFieldValues converts custom field values to form parameters.
func EncodeCustomFieldValues(fields []CustomFieldValue) (url.Values, error) {
	values := url.Values{}
	for _, field := range fields {
		key := "customField_" + strconv.Itoa(field.ID)
		if field.Value != nil {
			if err := addScalarOrList(values, key, field.Value); err != nil {
				return nil, fmt.Errorf("custom field %d: %w", field.ID, err)
			}
		}
		if field.OtherValue != nil {
			values.Set(key+"_otherValue", *field.OtherValue)
		}
	}
	return values, nil
}

// EncodeCustomFieldFilters converts custom field filters to query parameters.
func EncodeCustomFieldFilters(filters []CustomFieldFilter) (url.Values, error) {
	values := url.Values{}
	for _, filter := range filters {
		key := "customField_" + strconv.Itoa(filter.ID)
		switch strings.TrimSpace(filter.Type) {
		case "text":
			text, _ := filter.Value.(string)
			if strings.TrimSpace(text) != "" {
				values.Set(key, text)
			}
		case "numeric", "date":
			for suffix, bound := range map[string]any{"_min": filter.Min, "_max": filter.Max} {
				if bound == nil {
					continue
				}
				formatted, ok := formatScalar(bound)
				if !ok {
					return nil, fmt.Errorf("custom field %d: invalid %s bound %v", filter.ID, filter.Type, bound)
				}
				if formatted != "" {
					values.Set(key+suffix, formatted)
				}
			}
		case "list":
			if filter.Value == nil {
				continue
			}
			if err := addScalarOrList(values, key, filter.Value); err != nil {
				return nil, fmt.Errorf("custom field %d: %w", filter.ID, err)
			}
		default:
			return nil, fmt.Errorf("custom field %d: unsupported filter type %q", filter.ID, filter.Type)
		}
	}
	return values, nil
}

func addScalarOrList(values url.Values, key string, value any) error {
	if items, ok := value.([]any); ok {
		for _, item := range items {
			formatted, ok := formatScalar(item)
			if !ok {
				return fmt.Errorf("invalid list value %v", item)
			}
			values.Add(key+"[]", formatted)
		}
		return nil
	}
	formatted, ok := formatScalar(value)
	if !ok {
		return fmt.Errorf("invalid value %v", value)
	}
	values.Set(key, formatted)
	return nil
}

func formatScalar(value any) (string, bool) {
	switch typed := value.(type) {
	case string:
		return typed, true
	case int:
		return strconv.Itoa(typed), true
	case int64:
		return strconv.FormatInt(typed, 10), true
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return "", false
		}
		return strconv.FormatFloat(typed, 'f', -1, 64), true
	case json.Number:
		return typed.String(), true
	default:
		return "", false
	}
}
