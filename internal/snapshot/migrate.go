package snapshot

import "fmt"

const legacySchemaVersion = "0.9"

type MigrationResult struct {
	Document map[string]any
	Warnings []string
}

type migrationStep struct {
	from  string
	to    string
	apply func(doc map[string]any) []string
}

// migrations is applied in order; each step upgrades a document by one version.
var migrations = []migrationStep{
	{from: "0.9", to: "1.0", apply: migrateFrom0Dot9},
}

// Migrate upgrades doc to CurrentSchemaVersion. The input map is not
// modified; a missing version is treated as 0.9. Unknown versions are only
// restamped.
func Migrate(doc map[string]any) MigrationResult {
	out := make(map[string]any, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}

	version, _ := out["schemaVersion"].(string)
	if version == "" {
		version = legacySchemaVersion
	}

	var warnings []string
	for version != CurrentSchemaVersion {
		step, ok := findStep(version)
		if !ok {
			break
		}
		warnings = append(warnings, step.apply(out)...)
		version = step.to
	}

	out["schemaVersion"] = CurrentSchemaVersion
	return MigrationResult{Document: out, Warnings: warnings}
}

func findStep(from string) (migrationStep, bool) {
	for _, s := range migrations {
		if s.from == from {
			return s, true
		}
	}
	return migrationStep{}, false
}

// migrateFrom0Dot9 adds the fields introduced in 1.0: dependencies and
// installMethods on custom templates, configFiles on tools.
func migrateFrom0Dot9(doc map[string]any) []string {
	var warnings []string

	if templates, ok := doc["customTemplates"].([]any); ok {
		doc["customTemplates"] = fillMissing(templates, "dependencies", "installMethods")
		warnings = append(warnings, fmt.Sprintf("Migrated %d custom templates to schema 1.0", len(templates)))
	}

	if toolList, ok := doc["tools"].([]any); ok {
		doc["tools"] = fillMissing(toolList, "configFiles")
	}

	warnings = append(warnings, "Migrated environment export from schema version 0.9 to 1.0")
	return warnings
}

// fillMissing returns a copy of items where every object has an empty list
// for each falsy or absent key. Non-object items are copied unchanged.
func fillMissing(items []any, keys ...string) []any {
	out := make([]any, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			out[i] = item
			continue
		}
		cp := make(map[string]any, len(obj)+len(keys))
		for k, v := range obj {
			cp[k] = v
		}
		for _, k := range keys {
			if !truthy(cp[k]) {
				cp[k] = []any{}
			}
		}
		out[i] = cp
	}
	return out
}
