package problems

import (
	"context"
	"fmt"
	"strings"

	"github.com/prestige-dev/prestige/internal/fs"
)

// snippetContext is the number of lines shown before and after the
// problem line.
const snippetContext = 2

// EnrichSnippets attaches a short contextual snippet to each problem,
// read from current file content. Read failures leave the snippet empty;
// a degraded problem beats a dropped one.
func EnrichSnippets(ctx context.Context, filesystem fs.FileSystem, problems []Problem) {
	for i := range problems {
		p := &problems[i]
		if p.File == "" || p.Line <= 0 {
			continue
		}

		from := p.Line - snippetContext
		if from < 1 {
			from = 1
		}
		to := p.Line + snippetContext

		lines, err := filesystem.ReadFileLines(ctx, p.File, from, to)
		if err != nil || len(lines) == 0 {
			continue
		}

		var b strings.Builder
		for offset, line := range lines {
			lineNo := from + offset
			marker := "  "
			if lineNo == p.Line {
				marker = "> "
			}
			fmt.Fprintf(&b, "%s%4d | %s\n", marker, lineNo, line)
		}
		p.Snippet = strings.TrimRight(b.String(), "\n")
	}
}
