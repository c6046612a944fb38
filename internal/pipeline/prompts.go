package pipeline

import (
	"encoding/json"
	"fmt"
	"sort"
)

func mustJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mappingPrompt(state *MigrationState) string {
	return fmt.Sprintf(`Generate a component mapping from Modus 1.0 to Modus 2.0.
V1 Components: %s
V2 Components: %s

Output the mapping as a JSON object where keys are V1 component filenames
and values are objects containing 'new_tag' (V2 filename) and 'props' (list of common prop names).
Only map components where a clear V2 equivalent exists. Guess common props based on names.
Example: { "modus-button.tsx": { "new_tag": "modus-wc-button.tsx", "props": ["size", "variant"] } }
Return ONLY the JSON object.`,
		mustJSON(sortedKeys(state.V1Components)),
		mustJSON(sortedKeys(state.V2Components)))
}

func constraintsPrompt(state *MigrationState) string {
	return fmt.Sprintf(`Based on this component mapping:
%s

Identify potential migration constraints (breaking changes, API differences, styling issues).
Output constraints as a JSON list of objects, each with 'type', 'description', and 'components'.
Example: [{ "type": "breaking", "description": "...", "components": [...] }]
Return ONLY the JSON list.`, mustJSON(state.ComponentMap))
}

func planPrompt(state *MigrationState) string {
	return fmt.Sprintf(`Generate a step-by-step migration plan based on:
Mapping: %s
Constraints: %s

Output the plan as a JSON list of objects, each with 'action', 'status', 'type'.
Example: [{ "action": "Step 1: ...", "status": "pending", "type": "step" }]
Return ONLY the JSON list.`, mustJSON(state.ComponentMap), mustJSON(state.Constraints))
}

func verificationRulesPrompt(state *MigrationState) string {
	return fmt.Sprintf(`Generate verification rules based on:
Plan: %s
Constraints: %s
Mapping: %s

Output rules as a JSON list of objects, each with 'rule', 'status', 'details'.
Example: [{ "rule": "Check tags...", "status": "pending", "details": [...] }]
Return ONLY the JSON list.`,
		mustJSON(state.MigrationPlan), mustJSON(state.Constraints), mustJSON(state.ComponentMap))
}

func migratePrompt(state *MigrationState, originalCode string) string {
	context := fmt.Sprintf(`V1 Components: %s
V2 Components: %s
Mapping: %s
Constraints: %s
Plan: %s`,
		mustJSON(state.V1Components), mustJSON(state.V2Components),
		mustJSON(state.ComponentMap), mustJSON(state.Constraints), mustJSON(state.MigrationPlan))

	return fmt.Sprintf(`Migrate the following code from Modus 1.0 to Modus 2.0.
Use the provided context, mapping, constraints, and plan.

Context:
%s

Original Code:
`+"```"+`
%s
`+"```"+`

Return ONLY the migrated code, enclosed in `+"```html ... ```"+`.`, context, originalCode)
}

func verifyPrompt(state *MigrationState, migratedCode string) string {
	return fmt.Sprintf(`Verify the following migrated code against the verification rules.

Migrated Code:
`+"```"+`
%s
`+"```"+`

Verification Rules:
%s

Output the verification results as a JSON list of objects,
each matching a rule with an added 'result' ('pass'/'fail'/'warn') and 'comment'.
Example: [{ "rule": "...", "status": "verified", "details": [...], "result": "pass", "comment": "..." }]
Return ONLY the JSON list.`, migratedCode, mustJSON(state.VerificationRules))
}
