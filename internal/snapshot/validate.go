package snapshot

import (
	"fmt"
	"strings"
	"time"
)

type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// ValidationError is returned by the importer when a document fails validation.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, ", ")
}

var timestampLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// Validate checks the generic JSON decoding of an export document.
// Values that are null, false, 0 or "" count as missing.
func Validate(raw any) ValidationResult {
	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return ValidationResult{Errors: []string{"Invalid data: expected an object"}}
	}

	var errs, warnings []string

	version, ok := obj["schemaVersion"].(string)
	switch {
	case !ok || version == "":
		errs = append(errs, "Missing or invalid schemaVersion")
	case !isSupportedVersion(version):
		warnings = append(warnings, fmt.Sprintf("Schema version %s may not be fully supported (supported: %s)",
			version, strings.Join(SupportedSchemaVersions, ", ")))
	}

	exportedAt, ok := obj["exportedAt"].(string)
	switch {
	case !ok || exportedAt == "":
		errs = append(errs, "Missing or invalid exportedAt timestamp")
	case !parsesAsTimestamp(exportedAt):
		errs = append(errs, "Invalid exportedAt timestamp format")
	}

	toolList, ok := obj["tools"].([]any)
	if !ok {
		errs = append(errs, "Missing or invalid tools array")
	} else {
		for i, item := range toolList {
			errs = append(errs, validateTool(i, item)...)
		}
	}

	if ct, present := obj["customTemplates"]; present && truthy(ct) {
		if _, isArray := ct.([]any); !isArray {
			errs = append(errs, "Invalid customTemplates: expected an array")
		}
	}

	if h, present := obj["hostname"]; present && truthy(h) {
		if _, isString := h.(string); !isString {
			warnings = append(warnings, "Invalid hostname format")
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs, Warnings: warnings}
}

func validateTool(index int, item any) []string {
	var tool map[string]any
	switch v := item.(type) {
	case map[string]any:
		tool = v
	case []any:
		// An array is an object without any of the expected fields.
		tool = map[string]any{}
	default:
		return []string{fmt.Sprintf("Tool at index %d is invalid", index)}
	}
	if tool == nil {
		return []string{fmt.Sprintf("Tool at index %d is invalid", index)}
	}

	var errs []string
	if id, ok := tool["templateId"].(string); !ok || id == "" {
		errs = append(errs, fmt.Sprintf("Tool at index %d missing templateId", index))
	}
	if _, ok := tool["installed"].(bool); !ok {
		errs = append(errs, fmt.Sprintf("Tool at index %d missing or invalid installed status", index))
	}
	return errs
}

func parsesAsTimestamp(s string) bool {
	for _, layout := range timestampLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case string:
		return x != ""
	case float64:
		return x != 0
	case int:
		return x != 0
	}
	return true
}
