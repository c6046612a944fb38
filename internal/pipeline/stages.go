package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/store"
)

// LoadContext bulk loads components, docs, plans, rules, and constraints
// from the metadata store. Store failures abort the run before any later
// stage executes.
func (w *Workflow) LoadContext(ctx context.Context, state *MigrationState) error {
	if err := w.store.Ping(ctx); err != nil {
		return fmt.Errorf("load context: %w", err)
	}

	v1Docs, err := w.loadDocs(ctx, store.CategoryV1Docs)
	if err != nil {
		return err
	}
	v2Docs, err := w.loadDocs(ctx, store.CategoryV2Docs)
	if err != nil {
		return err
	}

	state.V1Components, err = w.loadComponents(ctx, store.CategoryV1Components, v1Docs)
	if err != nil {
		return err
	}
	state.V2Components, err = w.loadComponents(ctx, store.CategoryV2Components, v2Docs)
	if err != nil {
		return err
	}

	state.MigrationPlan, err = loadList[PlanStep](ctx, w.store, store.CategoryMigrationPlan,
		func(text string) PlanStep { return PlanStep{Action: text, Status: "loaded", Type: "doc"} })
	if err != nil {
		return err
	}
	state.VerificationRules, err = loadList[VerificationRule](ctx, w.store, store.CategoryVerificationRules,
		func(text string) VerificationRule { return VerificationRule{Rule: text, Status: "loaded"} })
	if err != nil {
		return err
	}

	if err := w.loadConstraints(ctx, state); err != nil {
		return err
	}

	logging.Pipeline("[LoadContext] v1=%d v2=%d plan=%d rules=%d constraints=%d",
		len(state.V1Components), len(state.V2Components),
		len(state.MigrationPlan), len(state.VerificationRules), len(state.Constraints))
	return nil
}

func (w *Workflow) loadDocs(ctx context.Context, category string) (map[string]string, error) {
	units, err := w.store.LoadUnitsByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}
	docs := make(map[string]string, len(units))
	for _, u := range units {
		docs[u.Name] = u.Content
	}
	return docs, nil
}

func (w *Workflow) loadComponents(ctx context.Context, category string, docs map[string]string) (map[string]*Component, error) {
	units, err := w.store.LoadUnitsByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}
	components := make(map[string]*Component, len(units))
	for _, u := range units {
		// Doc units are keyed without the source file extension.
		doc := docs[strings.TrimSuffix(u.Name, ".tsx")]
		components[u.Name] = &Component{
			Source:        u.Content,
			Documentation: doc,
		}
	}
	return components, nil
}

// loadList reads a category whose units are either JSON lists of T or
// plain text, which wrap converts to a single entry.
func loadList[T any](ctx context.Context, s *store.ContextStore, category string, wrap func(string) T) ([]T, error) {
	units, err := s.LoadUnitsByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}
	var out []T
	for _, u := range units {
		var parsed []T
		if err := json.Unmarshal([]byte(u.Content), &parsed); err == nil {
			out = append(out, parsed...)
			continue
		}
		out = append(out, wrap(u.Content))
	}
	return out, nil
}

// loadConstraints handles the wrapped form {"constraints": [...]} some
// ingested constraint documents use.
func (w *Workflow) loadConstraints(ctx context.Context, state *MigrationState) error {
	units, err := w.store.LoadUnitsByCategory(ctx, store.CategoryConstraints)
	if err != nil {
		return fmt.Errorf("load context: %w", err)
	}

	var constraints []Constraint
	for _, u := range units {
		var wrapped struct {
			Constraints []Constraint `json:"constraints"`
		}
		if err := json.Unmarshal([]byte(u.Content), &wrapped); err == nil && wrapped.Constraints != nil {
			constraints = append(constraints, wrapped.Constraints...)
			continue
		}
		var list []Constraint
		if err := json.Unmarshal([]byte(u.Content), &list); err == nil {
			constraints = append(constraints, list...)
			continue
		}
		constraints = append(constraints, Constraint{Type: "note", Description: u.Content})
	}
	state.Constraints = constraints
	return nil
}

// AnalyzeComponents extracts candidate property names from each attached
// documentation text. Rule based, no model call.
func (w *Workflow) AnalyzeComponents(ctx context.Context, state *MigrationState) error {
	for _, comp := range state.V1Components {
		comp.Props = extractProps(comp.Documentation)
	}
	for _, comp := range state.V2Components {
		comp.Props = extractProps(comp.Documentation)
	}
	logging.Pipeline("[AnalyzeComponents] analyzed %d+%d components",
		len(state.V1Components), len(state.V2Components))
	return nil
}

// extractProps scans doc lines shaped "name: description" that mention
// prop or property, collecting the name before the colon.
func extractProps(doc string) []string {
	if doc == "" {
		return nil
	}
	seen := make(map[string]struct{})
	for _, line := range strings.Split(doc, "\n") {
		if !strings.Contains(line, ":") {
			continue
		}
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "prop") && !strings.Contains(lower, "property") {
			continue
		}
		prop := strings.TrimSpace(strings.SplitN(line, ":", 2)[0])
		if prop == "" {
			continue
		}
		propLower := strings.ToLower(prop)
		if propLower == "props" || propLower == "properties" {
			continue
		}
		seen[prop] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}
	props := make([]string, 0, len(seen))
	for p := range seen {
		props = append(props, p)
	}
	sort.Strings(props)
	return props
}

// GenerateMapping asks the model for the v1 to v2 component mapping.
// Unparsable output leaves an empty map and the chain continues.
func (w *Workflow) GenerateMapping(ctx context.Context, state *MigrationState) error {
	response, err := w.invoke(ctx, mappingPrompt(state), 0)
	if err != nil {
		return fmt.Errorf("generate mapping: %w", err)
	}

	mapping, ok := decodeOr(response, map[string]MappingEntry{})
	if !ok {
		w.metrics.DecodeFailures++
	}
	state.ComponentMap = mapping
	logging.Pipeline("[GenerateMapping] %d entries", len(mapping))
	return nil
}

// GenerateConstraints asks the model for migration constraints.
func (w *Workflow) GenerateConstraints(ctx context.Context, state *MigrationState) error {
	response, err := w.invoke(ctx, constraintsPrompt(state), 0)
	if err != nil {
		return fmt.Errorf("generate constraints: %w", err)
	}

	constraints, ok := decodeOr(response, []Constraint{})
	if !ok {
		w.metrics.DecodeFailures++
	}
	state.Constraints = constraints
	logging.Pipeline("[GenerateConstraints] %d constraints", len(constraints))
	return nil
}

// GeneratePlan asks the model for a step-by-step migration plan.
func (w *Workflow) GeneratePlan(ctx context.Context, state *MigrationState) error {
	response, err := w.invoke(ctx, planPrompt(state), 0)
	if err != nil {
		return fmt.Errorf("generate plan: %w", err)
	}

	plan, ok := decodeOr(response, []PlanStep{})
	if !ok {
		w.metrics.DecodeFailures++
	}
	state.MigrationPlan = plan
	logging.Pipeline("[GeneratePlan] %d steps", len(plan))
	return nil
}

// GenerateVerificationRules asks the model for rules to check migrated
// code against.
func (w *Workflow) GenerateVerificationRules(ctx context.Context, state *MigrationState) error {
	response, err := w.invoke(ctx, verificationRulesPrompt(state), 0)
	if err != nil {
		return fmt.Errorf("generate verification rules: %w", err)
	}

	rules, ok := decodeOr(response, []VerificationRule{})
	if !ok {
		w.metrics.DecodeFailures++
	}
	state.VerificationRules = rules
	logging.Pipeline("[GenerateVerificationRules] %d rules", len(rules))
	return nil
}

var codeFencePattern = regexp.MustCompile("(?s)```(?:html)?\n(.*?)```")

// MigrateCode rewrites the code staged under CurrentFile. No-ops with a
// logged condition when no code is staged.
func (w *Workflow) MigrateCode(ctx context.Context, state *MigrationState) error {
	if state.CurrentFile == "" || state.ModifiedCode[state.CurrentFile] == "" {
		logging.Pipeline("[MigrateCode] no code staged, skipping")
		return nil
	}

	originalCode := state.ModifiedCode[state.CurrentFile]
	response, err := w.invoke(ctx, migratePrompt(state, originalCode), 4096)
	if err != nil {
		return fmt.Errorf("migrate code: %w", err)
	}

	migrated := strings.TrimSpace(response)
	if m := codeFencePattern.FindStringSubmatch(response); m != nil {
		migrated = strings.TrimSpace(m[1])
	}

	state.ModifiedCode[state.CurrentFile] = migrated
	logging.Pipeline("[MigrateCode] migrated %s (%d bytes)", state.CurrentFile, len(migrated))
	return nil
}

// VerifyMigration checks the migrated code against the verification rules
// and replaces them with the result-carrying list. Unlike the Generate
// stages, a parse failure keeps the prior rules untouched.
func (w *Workflow) VerifyMigration(ctx context.Context, state *MigrationState) error {
	if state.CurrentFile == "" || state.ModifiedCode[state.CurrentFile] == "" {
		logging.Pipeline("[VerifyMigration] no migrated code, skipping")
		return nil
	}

	migratedCode := state.ModifiedCode[state.CurrentFile]
	response, err := w.invoke(ctx, verifyPrompt(state, migratedCode), 0)
	if err != nil {
		return fmt.Errorf("verify migration: %w", err)
	}

	if results, ok := decodeOr(response, []VerificationRule(nil)); ok {
		state.VerificationRules = results
		logging.Pipeline("[VerifyMigration] %d results for %s", len(results), state.CurrentFile)
	} else {
		w.metrics.DecodeFailures++
	}
	return nil
}
