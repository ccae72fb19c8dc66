package run

import (
	"log/slog"

	"github.com/quarrydata/quarry/pkg/core"
)

// computeExecutionLevels partitions the execution order into waves. A model
// is ready when every dependency is either already completed or outside the
// run-set (satisfied by a previous run). Models within a wave carry no
// ordering relationship and may run concurrently.
func computeExecutionLevels(order []string, models map[string]*core.CompiledModel, logger *slog.Logger) [][]string {
	orderSet := make(map[string]bool, len(order))
	for _, name := range order {
		orderSet[name] = true
	}

	completed := make(map[string]bool)
	remaining := append([]string(nil), order...)

	var levels [][]string
	for len(remaining) > 0 {
		var wave []string
		for _, name := range remaining {
			if depsSatisfied(name, models, completed, orderSet) {
				wave = append(wave, name)
			} else if _, ok := models[name]; !ok {
				logger.Warn("model in execution order but not compiled", "model", name)
			}
		}

		if len(wave) == 0 {
			// Cannot happen on an acyclic graph restricted to the run-set,
			// but emit the remainder as one wave instead of spinning forever.
			logger.Warn("no progress computing execution levels, emitting remaining models as one wave",
				"remaining", len(remaining))
			levels = append(levels, remaining)
			break
		}

		waveSet := make(map[string]bool, len(wave))
		for _, name := range wave {
			completed[name] = true
			waveSet[name] = true
		}

		next := remaining[:0]
		for _, name := range remaining {
			if !waveSet[name] {
				next = append(next, name)
			}
		}
		remaining = next

		levels = append(levels, wave)
	}

	return levels
}

func depsSatisfied(name string, models map[string]*core.CompiledModel, completed, orderSet map[string]bool) bool {
	m, ok := models[name]
	if !ok {
		return false
	}
	for _, dep := range m.Dependencies {
		if dep == name {
			continue
		}
		if !completed[dep] && orderSet[dep] {
			return false
		}
	}
	return true
}
