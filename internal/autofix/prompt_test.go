package autofix

import (
	"strings"
	"testing"

	"github.com/prestige-dev/prestige/internal/problems"
)

func TestBuildFixPromptOrdersImportErrorsFirst(t *testing.T) {
	report := problems.NewReport("/project", []problems.Problem{
		{File: "src/app.ts", Line: 1, Column: 1, Message: "Type 'string' is not assignable to type 'number'.", Code: "TS2322", Severity: problems.SeverityError},
		{File: "src/util.ts", Line: 3, Column: 8, Message: "Cannot find module 'lodash' or its corresponding type declarations.", Code: "TS2307", Severity: problems.SeverityError},
	})

	prompt := BuildFixPrompt(report, "gpt-4o")

	importIdx := strings.Index(prompt, "Cannot find module")
	typeIdx := strings.Index(prompt, "not assignable")
	if importIdx < 0 || typeIdx < 0 {
		t.Fatalf("prompt missing entries:\n%s", prompt)
	}
	if importIdx > typeIdx {
		t.Errorf("import error should come before type error:\n%s", prompt)
	}
	if !strings.Contains(prompt, "prestige-add-dependency") {
		t.Errorf("prompt should instruct dependency directives:\n%s", prompt)
	}
}

func TestBuildFixPromptCapsErrors(t *testing.T) {
	var ps []problems.Problem
	for i := 0; i < 15; i++ {
		ps = append(ps, problems.Problem{
			File: "src/app.ts", Line: i + 1, Column: 1,
			Message: "unterminated statement", Severity: problems.SeverityError,
		})
	}
	report := problems.NewReport("/project", ps)

	prompt := BuildFixPrompt(report, "gpt-4o")

	if got := strings.Count(prompt, "unterminated statement"); got != maxPromptErrors {
		t.Errorf("entries = %d, want %d", got, maxPromptErrors)
	}
	if !strings.Contains(prompt, "5 more error(s)") {
		t.Errorf("prompt should mention elided errors:\n%s", prompt)
	}
}

func TestBuildFixPromptIncludesWarnings(t *testing.T) {
	report := problems.NewReport("/project", []problems.Problem{
		{File: "src/app.ts", Line: 1, Column: 1, Message: "broken", Severity: problems.SeverityError},
		{File: "src/app.ts", Line: 2, Column: 1, Message: "unused variable x", Severity: problems.SeverityWarning},
		{File: "src/app.ts", Line: 3, Column: 1, Message: "unused variable y", Severity: problems.SeverityWarning},
	})

	prompt := BuildFixPrompt(report, "gpt-4o")

	if !strings.Contains(prompt, "Warnings:") {
		t.Fatalf("prompt missing warnings section:\n%s", prompt)
	}
	if !strings.Contains(prompt, "unused variable x") {
		t.Errorf("warning entry missing:\n%s", prompt)
	}
}

func TestBuildFixPromptDropsSnippetsOverBudget(t *testing.T) {
	hugeSnippet := strings.Repeat("const padding = 'x';\n", 400)
	var ps []problems.Problem
	for i := 0; i < 5; i++ {
		ps = append(ps, problems.Problem{
			File: "src/app.ts", Line: i + 1, Column: 1,
			Message:  "syntax error near token",
			Severity: problems.SeverityError,
			Snippet:  hugeSnippet,
		})
	}
	report := problems.NewReport("/project", ps)

	prompt := BuildFixPrompt(report, "gpt-4o")

	if strings.Contains(prompt, "const padding") {
		t.Error("snippets should be dropped when the prompt exceeds the budget")
	}
	if !strings.Contains(prompt, "syntax error near token") {
		t.Errorf("entries must survive snippet drop:\n%s", prompt)
	}

	// Small snippets stay in.
	small := problems.NewReport("/project", []problems.Problem{{
		File: "src/app.ts", Line: 1, Column: 1,
		Message: "broken", Severity: problems.SeverityError,
		Snippet: ">    1 | const a: number = 'x';",
	}})
	if !strings.Contains(BuildFixPrompt(small, "gpt-4o"), "const a: number") {
		t.Error("small snippets should be kept")
	}
}
