// Package pipeline runs the migration workflow: an ordered chain of stages
// that accumulate a component mapping, constraints, a migration plan, and
// verification rules into one shared state record.
package pipeline

import "encoding/json"

// Component is one UI component with its attached documentation and the
// property names extracted from it.
type Component struct {
	Source        string   `json:"source,omitempty"`
	Documentation string   `json:"documentation,omitempty"`
	Props         []string `json:"props,omitempty"`
}

// MappingEntry maps an old component to its replacement.
type MappingEntry struct {
	NewTag string   `json:"new_tag"`
	Props  []string `json:"props,omitempty"`
}

// Constraint is one migration constraint the model identified.
type Constraint struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Components  []string `json:"components,omitempty"`
}

// PlanStep is one step in the generated migration plan.
type PlanStep struct {
	Action string `json:"action"`
	Status string `json:"status"`
	Type   string `json:"type"`
}

// VerificationRule is one generated rule. After VerifyMigration runs it
// also carries the outcome for the migrated code.
type VerificationRule struct {
	Rule    string          `json:"rule"`
	Status  string          `json:"status"`
	Details json.RawMessage `json:"details,omitempty"`
	Result  string          `json:"result,omitempty"`
	Comment string          `json:"comment,omitempty"`
}

// MigrationState is the shared record threaded through the stage chain.
// Each field is written by exactly one stage, except VerificationRules
// which VerifyMigration replaces wholesale.
type MigrationState struct {
	V1Components      map[string]*Component   `json:"v1_components"`
	V2Components      map[string]*Component   `json:"v2_components"`
	ComponentMap      map[string]MappingEntry `json:"component_map"`
	Constraints       []Constraint            `json:"constraints"`
	MigrationPlan     []PlanStep              `json:"migration_plan"`
	VerificationRules []VerificationRule      `json:"verification_rules"`
	CurrentFile       string                  `json:"current_file,omitempty"`
	ModifiedCode      map[string]string       `json:"modified_code"`
}

// NewState returns an empty state for one migration run.
func NewState() *MigrationState {
	return &MigrationState{
		V1Components: make(map[string]*Component),
		V2Components: make(map[string]*Component),
		ComponentMap: make(map[string]MappingEntry),
		ModifiedCode: make(map[string]string),
	}
}

// LookupMapping returns the mapped replacement file for a normalized v1
// filename. Satisfies retrieval.MappingState.
func (s *MigrationState) LookupMapping(v1Key string) (string, bool) {
	entry, ok := s.ComponentMap[v1Key]
	if !ok {
		return "", false
	}
	return entry.NewTag, true
}

// RunMetrics counts what one workflow run cost. Accumulated explicitly
// per run rather than in package globals.
type RunMetrics struct {
	ModelCalls     int
	CacheHits      int64
	DecodeFailures int
}
