package detect

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/prestige-dev/prestige/internal/problems"
)

// tscLine matches "src/app.ts(3,7): error TS2304: Cannot find name 'y'."
var tscLine = regexp.MustCompile(`^(.+?)\((\d+),(\d+)\): (error|warning) (TS\d+): (.+)$`)

// TypeScriptChecker runs the TypeScript compiler in no-emit mode and
// parses its diagnostics.
type TypeScriptChecker struct {
	// Command overrides the default npx invocation, mainly for tests.
	Command []string
}

func (c *TypeScriptChecker) Name() string { return "tsc" }

func (c *TypeScriptChecker) Check(ctx context.Context, projectRoot string) ([]problems.Problem, error) {
	command := c.Command
	if len(command) == 0 {
		command = []string{"npx", "--no-install", "tsc", "--noEmit", "--pretty", "false"}
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = projectRoot

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()
	found := ParseTSCOutput(buf.String())

	// tsc exits non-zero whenever it reports errors; that is diagnostics,
	// not a tool failure. A failing run with nothing parseable means the
	// tool itself broke.
	if runErr != nil && len(found) == 0 && buf.Len() == 0 {
		return nil, runErr
	}
	return found, nil
}

// ParseTSCOutput converts raw tsc --pretty false output into problems.
func ParseTSCOutput(output string) []problems.Problem {
	var found []problems.Problem
	for _, line := range strings.Split(output, "\n") {
		m := tscLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		colNo, _ := strconv.Atoi(m[3])

		severity := problems.SeverityError
		if m[4] == "warning" {
			severity = problems.SeverityWarning
		}

		found = append(found, problems.Problem{
			File:     filepath.ToSlash(m[1]),
			Line:     lineNo,
			Column:   colNo,
			Message:  m[6],
			Code:     m[5],
			Severity: severity,
			Source:   "tsc",
		})
	}
	return found
}
