package repository

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

func stringField(record Record, key string) string {
	value, ok := record[key].(string)
	if !ok {
		return ""
	}
	return value
}

func requiredStringField(record Record, key string) (string, error) {
	value := stringField(record, key)
	if value == "" {
		return "", fmt.Errorf("%w '%v'", ErrMappingFailed, key)
	}
	return value, nil
}

// creatorNames flattens a creators/contributors value into display names.
// Entries may be bare strings or objects with a "name" field; anything else
// is skipped.
func creatorNames(value interface{}) []string {
	list, ok := value.([]interface{})
	if !ok {
		return nil
	}

	names := make([]string, 0, len(list))
	for _, entry := range list {
		switch creator := entry.(type) {
		case string:
			names = append(names, creator)
		case map[string]interface{}:
			if name, ok := creator["name"].(string); ok {
				names = append(names, name)
			}
		}
	}
	return names
}

func lastPathSegment(s string) string {
	trimmed := strings.TrimSuffix(s, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return trimmed
	}
	return trimmed[idx+1:]
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05.000000",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTimeField(record Record, key string) (time.Time, bool) {
	value := stringField(record, key)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func marshalRecord(record Record) string {
	data, err := json.Marshal(record)
	if err != nil {
		return ""
	}
	return string(data)
}
