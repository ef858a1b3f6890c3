package autofix

import (
	"fmt"
	"strings"

	"github.com/prestige-dev/prestige/internal/llm"
	"github.com/prestige-dev/prestige/internal/problems"
)

const (
	maxPromptErrors   = 10
	maxPromptWarnings = 3
	// promptTokenBudget caps the fix prompt; snippets are dropped first
	// when the budget is exceeded.
	promptTokenBudget = 3000
)

// BuildFixPrompt renders a report into the prompt sent to the AI-fix
// function. Import and module-resolution errors come first since fixing
// them usually collapses the rest, then remaining errors up to the cap,
// then a few warnings.
func BuildFixPrompt(report *problems.Report, modelID string) string {
	prompt := renderFixPrompt(report, true)
	if llm.EstimateTokens(modelID, prompt) > promptTokenBudget {
		prompt = renderFixPrompt(report, false)
	}
	return prompt
}

func renderFixPrompt(report *problems.Report, withSnippets bool) string {
	var imports, rest []problems.Problem
	for _, p := range report.Errors() {
		if isImportError(p) {
			imports = append(imports, p)
		} else {
			rest = append(rest, p)
		}
	}

	selected := append(imports, rest...)
	if len(selected) > maxPromptErrors {
		selected = selected[:maxPromptErrors]
	}

	warnings := report.Warnings()
	if len(warnings) > maxPromptWarnings {
		warnings = warnings[:maxPromptWarnings]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The project has %d error(s) that must be fixed.\n\n", report.TotalErrors)

	b.WriteString("Errors:\n")
	for _, p := range selected {
		writeEntry(&b, p, withSnippets)
	}
	if report.TotalErrors > len(selected) {
		fmt.Fprintf(&b, "...and %d more error(s).\n", report.TotalErrors-len(selected))
	}

	if len(warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, p := range warnings {
			writeEntry(&b, p, false)
		}
	}

	b.WriteString("\nEmit minimal-diff prestige directives fixing these problems. " +
		"For every unresolved import, emit a <prestige-add-dependency> directive " +
		"with the missing package.")
	return b.String()
}

func writeEntry(b *strings.Builder, p problems.Problem, withSnippet bool) {
	fmt.Fprintf(b, "- %s\n", p.String())
	if withSnippet && p.Snippet != "" {
		for _, line := range strings.Split(p.Snippet, "\n") {
			fmt.Fprintf(b, "    %s\n", line)
		}
	}
}

// isImportError recognizes import/module-resolution failures.
func isImportError(p problems.Problem) bool {
	switch p.Code {
	case "TS2307", "TS2792": // cannot find module / resolution mode
		return true
	}
	msg := strings.ToLower(p.Message)
	return strings.Contains(msg, "cannot find module") ||
		strings.Contains(msg, "could not resolve") ||
		strings.Contains(msg, "failed to resolve import")
}
