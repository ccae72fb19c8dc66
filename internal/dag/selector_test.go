package dag

import (
	"reflect"
	"testing"

	"github.com/quarrydata/quarry/pkg/core"
)

func testModels() (map[string][]string, map[string]*core.CompiledModel) {
	deps := map[string][]string{
		"stg_orders":    {},
		"stg_customers": {},
		"orders":        {"stg_orders", "stg_customers"},
		"revenue":       {"orders"},
	}
	models := map[string]*core.CompiledModel{
		"stg_orders":    {Name: "stg_orders", Path: "models/staging/stg_orders.sql", Tags: []string{"staging"}},
		"stg_customers": {Name: "stg_customers", Path: "models/staging/stg_customers.sql", Tags: []string{"staging"}},
		"orders":        {Name: "orders", Path: "models/marts/orders.sql", Tags: []string{"daily"}},
		"revenue":       {Name: "revenue", Path: "models/marts/revenue.sql", Tags: []string{"daily"}},
	}
	return deps, models
}

func applySelector(t *testing.T, expr string) []string {
	t.Helper()
	deps, models := testModels()
	g, err := Build(deps)
	if err != nil {
		t.Fatalf("failed to build graph: %v", err)
	}
	s, err := ParseSelector(expr)
	if err != nil {
		t.Fatalf("failed to parse selector %q: %v", expr, err)
	}
	got, err := s.Apply(g, models)
	if err != nil {
		t.Fatalf("failed to apply selector %q: %v", expr, err)
	}
	return got
}

func TestSelector_BareName(t *testing.T) {
	got := applySelector(t, "orders")
	if !reflect.DeepEqual(got, []string{"orders"}) {
		t.Errorf("expected [orders], got %v", got)
	}
}

func TestSelector_Ancestors(t *testing.T) {
	got := applySelector(t, "+revenue")
	want := []string{"stg_customers", "stg_orders", "orders", "revenue"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSelector_Descendants(t *testing.T) {
	got := applySelector(t, "stg_orders+")
	want := []string{"stg_orders", "orders", "revenue"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSelector_Both(t *testing.T) {
	got := applySelector(t, "+orders+")
	if len(got) != 4 {
		t.Errorf("expected all 4 models, got %v", got)
	}
}

func TestSelector_BoundedAncestors(t *testing.T) {
	got := applySelector(t, "1+revenue")
	want := []string{"orders", "revenue"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSelector_BoundedDescendants(t *testing.T) {
	got := applySelector(t, "stg_orders+1")
	want := []string{"stg_orders", "orders"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSelector_Tag(t *testing.T) {
	got := applySelector(t, "tag:staging")
	want := []string{"stg_customers", "stg_orders"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSelector_Path(t *testing.T) {
	got := applySelector(t, "path:models/marts/*")
	want := []string{"orders", "revenue"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestSelector_PathDoubleStar(t *testing.T) {
	got := applySelector(t, "path:models/**/*.sql")
	if len(got) != 4 {
		t.Errorf("expected all models to match, got %v", got)
	}
}

func TestSelector_UnknownModel(t *testing.T) {
	deps, models := testModels()
	g, _ := Build(deps)
	s, err := ParseSelector("missing")
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if _, err := s.Apply(g, models); err == nil {
		t.Error("expected error for unknown model name")
	}
}

func TestParseSelector_Invalid(t *testing.T) {
	for _, expr := range []string{"", "+", "tag:", "path:", "0+orders"} {
		if _, err := ParseSelector(expr); err == nil {
			t.Errorf("expected parse error for %q", expr)
		}
	}
}
