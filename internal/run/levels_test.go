package run

import (
	"log/slog"
	"reflect"
	"sort"
	"testing"

	"github.com/quarrydata/quarry/pkg/core"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func modelsFromDeps(deps map[string][]string) map[string]*core.CompiledModel {
	models := make(map[string]*core.CompiledModel, len(deps))
	for name, d := range deps {
		models[name] = &core.CompiledModel{
			Name:            name,
			SQL:             "SELECT 1",
			Materialization: core.MaterializationTable,
			Dependencies:    d,
		}
	}
	return models
}

func TestComputeExecutionLevels_DiamondFanOut(t *testing.T) {
	models := modelsFromDeps(map[string][]string{
		"a": {},
		"b": {"a"},
		"c": {"a"},
	})

	levels := computeExecutionLevels([]string{"a", "b", "c"}, models, discardLogger())

	if len(levels) != 2 {
		t.Fatalf("expected 2 waves, got %d: %v", len(levels), levels)
	}
	if !reflect.DeepEqual(levels[0], []string{"a"}) {
		t.Errorf("expected first wave [a], got %v", levels[0])
	}
	second := append([]string(nil), levels[1]...)
	sort.Strings(second)
	if !reflect.DeepEqual(second, []string{"b", "c"}) {
		t.Errorf("expected second wave {b, c}, got %v", levels[1])
	}
}

func TestComputeExecutionLevels_NoWaveBeforeDependencies(t *testing.T) {
	models := modelsFromDeps(map[string][]string{
		"a": {},
		"b": {"a"},
		"c": {"b"},
		"d": {"a", "c"},
	})
	order := []string{"a", "b", "c", "d"}

	levels := computeExecutionLevels(order, models, discardLogger())

	waveOf := map[string]int{}
	for i, wave := range levels {
		for _, name := range wave {
			waveOf[name] = i
		}
	}
	for name, m := range models {
		for _, dep := range m.Dependencies {
			if waveOf[dep] >= waveOf[name] {
				t.Errorf("dependency %s in wave %d does not precede %s in wave %d",
					dep, waveOf[dep], name, waveOf[name])
			}
		}
	}
}

func TestComputeExecutionLevels_DepsOutsideRunSetAreSatisfied(t *testing.T) {
	models := modelsFromDeps(map[string][]string{
		"b": {"a"},
		"c": {"b"},
	})

	// a is not part of the run-set, so b is immediately ready.
	levels := computeExecutionLevels([]string{"b", "c"}, models, discardLogger())

	if len(levels) != 2 {
		t.Fatalf("expected 2 waves, got %v", levels)
	}
	if !reflect.DeepEqual(levels[0], []string{"b"}) {
		t.Errorf("expected first wave [b], got %v", levels[0])
	}
}

func TestComputeExecutionLevels_SelfReferenceIsReady(t *testing.T) {
	models := modelsFromDeps(map[string][]string{
		"a": {"a"},
	})

	levels := computeExecutionLevels([]string{"a"}, models, discardLogger())

	if len(levels) != 1 || len(levels[0]) != 1 {
		t.Fatalf("expected a single one-model wave, got %v", levels)
	}
}

func TestComputeExecutionLevels_NoProgressEmitsRemainder(t *testing.T) {
	// Mutual dependencies cannot occur after cycle detection, but the
	// scheduler must still terminate if handed them.
	models := modelsFromDeps(map[string][]string{
		"a": {"b"},
		"b": {"a"},
	})

	levels := computeExecutionLevels([]string{"a", "b"}, models, discardLogger())

	total := 0
	for _, wave := range levels {
		total += len(wave)
	}
	if total != 2 {
		t.Errorf("expected all models emitted despite no progress, got %v", levels)
	}
}
