package dag

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/quarrydata/quarry/pkg/core"
)

// Selector is a parsed model selection expression. Supported forms:
//
//	model_name    exact model name
//	+model_name   model and all ancestors
//	model_name+   model and all descendants
//	+model_name+  model, ancestors, and descendants
//	2+model_name  model and ancestors within 2 hops
//	model_name+2  model and descendants within 2 hops
//	tag:daily     models carrying the tag
//	path:staging/ models whose file path matches the pattern
type Selector struct {
	name string

	includeAncestors   bool
	includeDescendants bool
	// Negative bounds mean unbounded.
	ancestorHops   int
	descendantHops int

	tag  string
	path string
}

// ParseSelector parses a selector expression.
func ParseSelector(expr string) (*Selector, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("invalid selector: expression cannot be empty")
	}

	if pattern, ok := strings.CutPrefix(expr, "path:"); ok {
		if pattern == "" {
			return nil, fmt.Errorf("invalid selector %q: path: requires a pattern", expr)
		}
		return &Selector{path: pattern}, nil
	}

	if tag, ok := strings.CutPrefix(expr, "tag:"); ok {
		if tag == "" {
			return nil, fmt.Errorf("invalid selector %q: tag: requires a tag name", expr)
		}
		return &Selector{tag: tag}, nil
	}

	s := &Selector{ancestorHops: -1, descendantHops: -1}
	name := expr

	if pos := strings.Index(name, "+"); pos >= 0 && (pos == 0 || isDigits(name[:pos])) {
		if pos > 0 {
			n, err := strconv.Atoi(name[:pos])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid selector %q: bad ancestor depth", expr)
			}
			s.ancestorHops = n
		}
		s.includeAncestors = true
		name = name[pos+1:]
	}

	if pos := strings.LastIndex(name, "+"); pos >= 0 && (pos == len(name)-1 || isDigits(name[pos+1:])) {
		if pos < len(name)-1 {
			n, err := strconv.Atoi(name[pos+1:])
			if err != nil || n < 1 {
				return nil, fmt.Errorf("invalid selector %q: bad descendant depth", expr)
			}
			s.descendantHops = n
		}
		s.includeDescendants = true
		name = name[:pos]
	}

	if name == "" {
		return nil, fmt.Errorf("invalid selector %q: model name cannot be empty", expr)
	}
	s.name = name
	return s, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Apply resolves the selector against the graph and model set.
// Graph-position selectors return names in topological order; metadata
// selectors return names sorted.
func (s *Selector) Apply(g *Graph, models map[string]*core.CompiledModel) ([]string, error) {
	if s.tag != "" {
		return selectByTag(s.tag, models), nil
	}
	if s.path != "" {
		return selectByPath(s.path, models), nil
	}

	if !g.Has(s.name) {
		return nil, fmt.Errorf("model not found: %s", s.name)
	}

	selected := map[string]bool{s.name: true}
	if s.includeAncestors {
		for _, a := range g.reachable(s.name, g.parents, s.ancestorHops) {
			selected[a] = true
		}
	}
	if s.includeDescendants {
		for _, d := range g.reachable(s.name, g.children, s.descendantHops) {
			selected[d] = true
		}
	}

	var result []string
	for _, name := range g.TopologicalOrder() {
		if selected[name] {
			result = append(result, name)
		}
	}
	return result, nil
}

func selectByTag(tag string, models map[string]*core.CompiledModel) []string {
	var selected []string
	for name, m := range models {
		for _, t := range m.Tags {
			if t == tag {
				selected = append(selected, name)
				break
			}
		}
	}
	sort.Strings(selected)
	return selected
}

func selectByPath(pattern string, models map[string]*core.CompiledModel) []string {
	var selected []string
	for name, m := range models {
		if matchesPathPattern(m.Path, pattern) {
			selected = append(selected, name)
		}
	}
	sort.Strings(selected)
	return selected
}

// matchesPathPattern supports a single * or ** wildcard; a bare pattern
// matches by substring.
func matchesPathPattern(path, pattern string) bool {
	if strings.Contains(pattern, "**") {
		parts := strings.SplitN(pattern, "**", 2)
		prefix := strings.TrimSuffix(parts[0], "/")
		suffix := strings.TrimPrefix(parts[1], "/")

		okPrefix := prefix == "" || strings.Contains(path, prefix)
		okSuffix := suffix == "" || suffix == "*" || strings.HasSuffix(path, suffix) ||
			(strings.HasPrefix(suffix, "*.") && strings.HasSuffix(path, "."+strings.TrimPrefix(suffix, "*.")))
		return okPrefix && okSuffix
	}

	if strings.Count(pattern, "*") == 1 {
		parts := strings.SplitN(pattern, "*", 2)
		okPrefix := parts[0] == "" || strings.Contains(path, parts[0])
		okSuffix := parts[1] == "" || strings.HasSuffix(path, parts[1])
		return okPrefix && okSuffix
	}

	return strings.Contains(path, pattern)
}
