package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jtarrant/orchid/pkg/models"
)

// PatternKey derives the stable fingerprint of a step list:
// sorted deduplicated agent types, sorted deduplicated tool names, and the
// step count, joined as "<agentTypes>|<tools>|<stepCount>". Identical step
// sets produce the same key regardless of order; the key joins plans to
// historical outcome stats, so stability matters more than readability.
func PatternKey(steps []models.PlanStep) string {
	agentTypes := sortedUnique(func(yield func(string)) {
		for _, s := range steps {
			yield(s.AgentType)
		}
	})
	tools := sortedUnique(func(yield func(string)) {
		for _, s := range steps {
			for _, t := range s.ToolsRequired {
				yield(t)
			}
		}
	})

	return fmt.Sprintf("%s|%s|%d",
		strings.Join(agentTypes, ","),
		strings.Join(tools, ","),
		len(steps))
}

// PatternStatsFor summarizes a step list into the stats row shape used by
// the pattern store when recording an outcome.
func PatternStatsFor(steps []models.PlanStep) models.PatternStats {
	stats := models.PatternStats{
		PatternKey: PatternKey(steps),
		StepCount:  len(steps),
	}
	stats.AgentTypes = sortedUnique(func(yield func(string)) {
		for _, s := range steps {
			yield(s.AgentType)
		}
	})
	stats.ToolsUsed = sortedUnique(func(yield func(string)) {
		for _, s := range steps {
			for _, t := range s.ToolsRequired {
				yield(t)
			}
		}
	})
	return stats
}

func sortedUnique(collect func(yield func(string))) []string {
	seen := make(map[string]struct{})
	var out []string
	collect(func(s string) {
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	})
	sort.Strings(out)
	if out == nil {
		out = []string{}
	}
	return out
}
