// Package ingest turns component repositories into stored context units
// and builds the vector index over them.
package ingest

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"

	"github.com/ElishaSamPeterPrabhu/MigrateModusApi/internal/logging"
)

// ComponentDetail is the structured analysis of one component source file.
type ComponentDetail struct {
	Props  []NamedItem `json:"props"`
	Events []NamedItem `json:"events"`
	Slots  []NamedItem `json:"slots"`
}

// NamedItem is a prop, event, or slot with its doc comment.
type NamedItem struct {
	Name    string `json:"name"`
	Comment string `json:"comment"`
}

// Analyzer parses Stencil TSX component sources and extracts the decorated
// props and events plus named slots.
type Analyzer struct {
	parser *sitter.Parser
}

// NewAnalyzer creates a TSX analyzer.
func NewAnalyzer() *Analyzer {
	parser := sitter.NewParser()
	parser.SetLanguage(tsx.GetLanguage())
	return &Analyzer{parser: parser}
}

// Close releases the underlying parser.
func (a *Analyzer) Close() {
	a.parser.Close()
}

var slotPattern = regexp.MustCompile(`<slot\s+name=["'](\w+)["']`)

// Analyze extracts props, events, and slots from a component source.
func (a *Analyzer) Analyze(ctx context.Context, source []byte) (ComponentDetail, error) {
	tree, err := a.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return ComponentDetail{}, fmt.Errorf("failed to parse component: %w", err)
	}
	defer tree.Close()

	detail := ComponentDetail{}
	a.walkFields(tree.RootNode(), source, &detail)

	// Slots live in JSX render output, not in decorated class members.
	for _, m := range slotPattern.FindAllSubmatch(source, -1) {
		detail.Slots = append(detail.Slots, NamedItem{Name: string(m[1])})
	}

	logging.IngestDebug("[Analyzer] props=%d events=%d slots=%d",
		len(detail.Props), len(detail.Events), len(detail.Slots))
	return detail, nil
}

// walkFields finds class members decorated @Prop or @Event and pairs each
// with the comment node immediately above it.
func (a *Analyzer) walkFields(node *sitter.Node, source []byte, detail *ComponentDetail) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child.Type() == "public_field_definition" {
			decorator, name := fieldDecoratorAndName(child, source)
			if name == "" {
				continue
			}
			comment := precedingComment(node, i, source)
			switch decorator {
			case "Prop":
				detail.Props = append(detail.Props, NamedItem{Name: name, Comment: comment})
			case "Event":
				detail.Events = append(detail.Events, NamedItem{Name: name, Comment: comment})
			}
			continue
		}
		a.walkFields(child, source, detail)
	}
}

func fieldDecoratorAndName(field *sitter.Node, source []byte) (decorator, name string) {
	for i := 0; i < int(field.NamedChildCount()); i++ {
		child := field.NamedChild(i)
		switch child.Type() {
		case "decorator":
			text := child.Content(source)
			if strings.HasPrefix(text, "@Prop") {
				decorator = "Prop"
			} else if strings.HasPrefix(text, "@Event") {
				decorator = "Event"
			}
		case "property_identifier":
			name = child.Content(source)
		}
	}
	if decorator == "" {
		return "", ""
	}
	return decorator, name
}

// precedingComment returns the cleaned text of a comment sibling directly
// before position i, if any.
func precedingComment(parent *sitter.Node, i int, source []byte) string {
	if i == 0 {
		return ""
	}
	prev := parent.NamedChild(i - 1)
	if prev.Type() != "comment" {
		return ""
	}
	return cleanComment(prev.Content(source))
}

func cleanComment(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "/*") {
		raw = strings.TrimPrefix(raw, "/**")
		raw = strings.TrimPrefix(raw, "/*")
		raw = strings.TrimSuffix(raw, "*/")
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "*"))
			if line != "" {
				lines = append(lines, line)
			}
		}
		return strings.Join(lines, " ")
	}
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "//"))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, " ")
}
