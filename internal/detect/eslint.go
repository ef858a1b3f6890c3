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

// eslintLine matches the unix formatter:
// "src/app.js:1:10: 'x' is not defined. [Error/no-undef]"
var eslintLine = regexp.MustCompile(`^(.+?):(\d+):(\d+): (.+) \[(Error|Warning)/([^\]]+)\]$`)

// ESLintChecker runs eslint with the unix formatter and parses its output.
type ESLintChecker struct {
	Command []string
}

func (c *ESLintChecker) Name() string { return "eslint" }

func (c *ESLintChecker) Check(ctx context.Context, projectRoot string) ([]problems.Problem, error) {
	command := c.Command
	if len(command) == 0 {
		command = []string{"npx", "--no-install", "eslint", ".", "--format", "unix"}
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Dir = projectRoot

	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	runErr := cmd.Run()
	found := ParseESLintOutput(buf.String(), projectRoot)

	// eslint exits 1 when it finds problems; only an empty failing run is
	// a tool failure.
	if runErr != nil && len(found) == 0 && buf.Len() == 0 {
		return nil, runErr
	}
	return found, nil
}

// ParseESLintOutput converts unix-format eslint output into problems,
// relativizing absolute paths against projectRoot.
func ParseESLintOutput(output, projectRoot string) []problems.Problem {
	var found []problems.Problem
	for _, line := range strings.Split(output, "\n") {
		m := eslintLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}
		lineNo, _ := strconv.Atoi(m[2])
		colNo, _ := strconv.Atoi(m[3])

		severity := problems.SeverityError
		if m[5] == "Warning" {
			severity = problems.SeverityWarning
		}

		file := m[1]
		if filepath.IsAbs(file) && projectRoot != "" {
			if rel, err := filepath.Rel(projectRoot, file); err == nil {
				file = rel
			}
		}

		found = append(found, problems.Problem{
			File:     filepath.ToSlash(file),
			Line:     lineNo,
			Column:   colNo,
			Message:  m[4],
			Code:     m[6],
			Severity: severity,
			Source:   "eslint",
		})
	}
	return found
}
