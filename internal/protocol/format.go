package protocol

import (
	"strconv"
	"strings"
)

// FormatPlan renders tasks back into the plan marker format. Parsing the
// result with ParsePlan yields an equal task list.
func FormatPlan(tasks []PlanTask) string {
	var b strings.Builder
	b.WriteString(PlanStartMarker)
	b.WriteString("\n")
	for i, t := range tasks {
		if i > 0 {
			b.WriteString(planBlockSeparator)
			b.WriteString("\n")
		}
		b.WriteString(taskFieldPrefix)
		b.WriteString(" ")
		b.WriteString(t.Title)
		b.WriteString("\n")
		b.WriteString(descFieldPrefix)
		b.WriteString(" ")
		b.WriteString(t.Description)
		b.WriteString("\n")
		b.WriteString(depsFieldPrefix)
		b.WriteString(" ")
		b.WriteString(formatDeps(t.Dependencies))
		b.WriteString("\n")
	}
	b.WriteString(PlanEndMarker)
	b.WriteString("\n")
	return b.String()
}

func formatDeps(deps []int) string {
	if len(deps) == 0 {
		return "none"
	}
	parts := make([]string, len(deps))
	for i, d := range deps {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, ", ")
}
